package process

import (
	"sync"

	"github.com/pkg/errors"
)

// Handle is an open capability over one process. It must be closed
// exactly once; every method fails with ErrHandleClosed afterwards.
// A Handle may be shared between goroutines. Close waits for calls
// that are already in flight.
type Handle struct {
	pid    uint32
	mu     sync.RWMutex
	target Target
}

func newHandle(pid uint32, target Target) *Handle {
	return &Handle{
		pid:    pid,
		target: target,
	}
}

func (h *Handle) PID() uint32 {
	return h.pid
}

// do runs fn with the underlying target while holding the handle open.
// fn must not call back into h.
func (h *Handle) do(fn func(Target) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.target == nil {
		return ErrHandleClosed
	}

	return fn(h.target)
}

// Close releases the OS capability. Calling Close more than once is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.target == nil {
		return nil
	}

	err := h.target.Close()
	h.target = nil
	return errors.Wrapf(err, "failed to close handle for pid %d", h.pid)
}

// PointerSize returns the target's pointer width in bytes.
func (h *Handle) PointerSize() (int, error) {
	var size int
	err := h.do(func(t Target) error {
		size = t.PointerSize()
		return nil
	})
	return size, err
}

// ReadMemory copies n bytes at addr. On a partial copy the bytes that
// could be read are returned together with the error.
func (h *Handle) ReadMemory(addr uintptr, n uint) ([]byte, error) {
	var out []byte
	err := h.do(func(t Target) error {
		buf := make([]byte, n)
		count, err := t.ReadMemory(addr, buf)
		out = buf[:count]
		if err != nil {
			return errors.Wrapf(err, "failed to read %d bytes at 0x%x", n, addr)
		}
		if uint(count) != n {
			return errors.Wrapf(ErrShortRead, "read %d of %d bytes at 0x%x", count, n, addr)
		}
		return nil
	})
	return out, err
}

func (h *Handle) WriteMemory(addr uintptr, data []byte) error {
	return h.do(func(t Target) error {
		count, err := t.WriteMemory(addr, data)
		if err != nil {
			return errors.Wrapf(err, "failed to write %d bytes at 0x%x", len(data), addr)
		}
		if count != len(data) {
			return errors.Wrapf(ErrShortWrite, "wrote %d of %d bytes at 0x%x", count, len(data), addr)
		}
		return nil
	})
}
