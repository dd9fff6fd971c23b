//go:build linux

package process

import (
	"debug/elf"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func newOSBackend() Backend {
	return procfsBackend{root: "/proc"}
}

// procfsBackend reads processes through /proc/<pid>/mem.
type procfsBackend struct {
	root string
}

func (b procfsBackend) ProcessIDs() ([]uint32, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var pids []uint32
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil {
			continue
		}
		pids = append(pids, uint32(pid))
	}

	return pids, nil
}

func (b procfsBackend) OpenProcess(pid uint32) (Target, error) {
	dir := filepath.Join(b.root, strconv.FormatUint(uint64(pid), 10))

	fd, err := unix.Open(filepath.Join(dir, "mem"), unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil && (err == unix.EACCES || err == unix.EPERM || err == unix.EROFS) {
		fd, err = unix.Open(filepath.Join(dir, "mem"), unix.O_RDONLY|unix.O_CLOEXEC, 0)
	}
	if err != nil {
		return nil, formatOpenError(pid, err)
	}

	return &procfsTarget{
		pid:     pid,
		dir:     dir,
		fd:      fd,
		ptrSize: elfPointerSize(filepath.Join(dir, "exe")),
	}, nil
}

func formatOpenError(pid uint32, err error) error {
	switch err {
	case unix.EACCES, unix.EPERM:
		return errors.Wrapf(ErrAccessDenied, "pid %d", pid)
	case unix.ENOENT, unix.ESRCH:
		return errors.Wrapf(ErrNotFound, "pid %d", pid)
	default:
		return errors.Wrapf(err, "failed to open pid %d", pid)
	}
}

// elfPointerSize reads the ELF class of the executable, defaulting to
// the host's pointer size when the file is unreadable.
func elfPointerSize(exe string) int {
	f, err := elf.Open(exe)
	if err != nil {
		return int(unsafe.Sizeof(uintptr(0)))
	}
	defer f.Close()

	if f.Class == elf.ELFCLASS32 {
		return 4
	}
	return 8
}

type procfsTarget struct {
	pid     uint32
	dir     string
	fd      int
	ptrSize int

	mu     sync.Mutex
	images map[uintptr]mappedImage
}

func (o *procfsTarget) BaseName(p []byte) error {
	name := ""
	exe, err := os.Readlink(filepath.Join(o.dir, "exe"))
	if err == nil {
		name = filepath.Base(strings.TrimSuffix(exe, " (deleted)"))
	} else {
		comm, err := os.ReadFile(filepath.Join(o.dir, "comm"))
		if err != nil {
			return errors.WithStack(err)
		}
		name = strings.TrimSuffix(string(comm), "\n")
	}

	copyName(p, name)
	return nil
}

// copyName copies name into p and terminates it when there is room.
func copyName(p []byte, name string) {
	n := copy(p, name)
	if n < len(p) {
		p[n] = 0
	}
}

func (o *procfsTarget) readMaps() ([]mapping, error) {
	f, err := os.Open(filepath.Join(o.dir, "maps"))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	return parseMaps(f)
}

// ModuleHandles uses each image's base address as its handle and keeps
// the images for the name and info queries that follow.
func (o *procfsTarget) ModuleHandles() ([]uintptr, error) {
	maps, err := o.readMaps()
	if err != nil {
		return nil, err
	}

	images := mappedImages(maps)

	o.mu.Lock()
	defer o.mu.Unlock()

	o.images = make(map[uintptr]mappedImage, len(images))
	handles := make([]uintptr, len(images))
	for i, img := range images {
		handles[i] = uintptr(img.base)
		o.images[uintptr(img.base)] = img
	}

	return handles, nil
}

func (o *procfsTarget) image(module uintptr) (mappedImage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	img, hasIt := o.images[module]
	if !hasIt {
		return mappedImage{}, errors.Wrapf(ErrModuleNotFound, "handle 0x%x", module)
	}
	return img, nil
}

func (o *procfsTarget) ModuleBaseName(module uintptr, p []byte) error {
	img, err := o.image(module)
	if err != nil {
		return err
	}

	copyName(p, img.name())
	return nil
}

func (o *procfsTarget) ModuleInfo(module uintptr) (uintptr, uint, error) {
	img, err := o.image(module)
	if err != nil {
		return 0, 0, err
	}

	return uintptr(img.base), uint(img.end - img.base), nil
}

func (o *procfsTarget) QueryRegion(addr uintptr) (Region, error) {
	maps, err := o.readMaps()
	if err != nil {
		return Region{}, err
	}

	return regionAt(maps, addr), nil
}

func (o *procfsTarget) snapshotRegions() (regionSnapshot, error) {
	maps, err := o.readMaps()
	if err != nil {
		return nil, err
	}

	return mapsSnapshot(maps), nil
}

func (o *procfsTarget) ReadMemory(addr uintptr, p []byte) (int, error) {
	return o.transfer(addr, p, unix.Pread)
}

func (o *procfsTarget) WriteMemory(addr uintptr, p []byte) (int, error) {
	return o.transfer(addr, p, unix.Pwrite)
}

// transfer repeats fn until p is done, the kernel stops making progress,
// or an error occurs.
func (o *procfsTarget) transfer(addr uintptr, p []byte, fn func(int, []byte, int64) (int, error)) (int, error) {
	if uint64(addr) > math.MaxInt64 || uint64(len(p)) > math.MaxInt64-uint64(addr) {
		return 0, errors.Wrapf(ErrIntegerOverflow, "address 0x%x is not a valid file offset", addr)
	}

	total := 0
	for total < len(p) {
		n, err := fn(o.fd, p[total:], int64(addr)+int64(total))
		if n > 0 {
			total += n
		}
		if err != nil {
			return total, errors.Wrapf(err, "pid %d at 0x%x", o.pid, uint64(addr)+uint64(total))
		}
		if n == 0 {
			break
		}
	}

	return total, nil
}

func (o *procfsTarget) PointerSize() int {
	return o.ptrSize
}

func (o *procfsTarget) Close() error {
	return errors.WithStack(unix.Close(o.fd))
}
