package process

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// PointerChain is a base address followed by the offsets to add before
// each dereference.
type PointerChain struct {
	Base    uintptr
	Offsets []uint32
}

// ResolvePointer reads a pointer at base, then for every offset adds
// the offset to the current value and reads a pointer there. The last
// value read is returned.
//
// Resolution is best-effort: an unreadable step leaves the current
// value as it was and moves on, and a closed handle yields zero.
// A zero or implausible result must be treated as failure. Use
// ResolvePointerChain to learn which step failed.
func (h *Handle) ResolvePointer(base uintptr, offsets ...uint32) uintptr {
	addr, _ := h.resolve(PointerChain{Base: base, Offsets: offsets}, false)
	return addr
}

// ResolvePointerChain resolves chain like ResolvePointer, but stops at
// the first unreadable step and returns a *ChainError describing it.
func (h *Handle) ResolvePointerChain(chain PointerChain) (uintptr, error) {
	return h.resolve(chain, true)
}

func (h *Handle) resolve(chain PointerChain, strict bool) (uintptr, error) {
	var addr uintptr
	err := h.do(func(t Target) error {
		wrap := addressMask(t.PointerSize())

		for i := 0; i <= len(chain.Offsets); i++ {
			at := chain.Base
			if i > 0 {
				at = (addr + uintptr(chain.Offsets[i-1])) & wrap
			}

			next, err := readPointer(t, at)
			if err != nil {
				if strict {
					return &ChainError{Step: i, Address: at, Err: err}
				}
				Log.WithFields(logrus.Fields{"pid": h.pid, "step": i, "addr": at, "err": err}).
					Debug("pointer chain step unreadable")
				continue
			}
			addr = next
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return addr, nil
}

// addressMask keeps offset arithmetic inside a 32-bit target's address
// space when the host is 64-bit.
func addressMask(ptrSize int) uintptr {
	if ptrSize == 4 {
		return uintptr(^uint32(0))
	}
	return ^uintptr(0)
}

// readPointer reads one target-sized little endian pointer at addr.
func readPointer(t Target, addr uintptr) (uintptr, error) {
	size := t.PointerSize()
	buf := make([]byte, size)

	n, err := t.ReadMemory(addr, buf)
	if err != nil {
		return 0, err
	}
	if n != size {
		return 0, errors.Wrapf(ErrShortRead, "read %d of %d pointer bytes", n, size)
	}

	switch size {
	case 4:
		return uintptr(binary.LittleEndian.Uint32(buf)), nil
	case 8:
		return uintptr(binary.LittleEndian.Uint64(buf)), nil
	default:
		return 0, errors.Errorf("unsupported pointer size: %d", size)
	}
}
