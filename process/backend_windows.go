//go:build windows

package process

import (
	"math"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

var (
	modpsapi = windows.NewLazySystemDLL("psapi.dll")

	// The ANSI variant returns the raw bytes the name normalizer expects.
	procGetModuleBaseNameA = modpsapi.NewProc("GetModuleBaseNameA")
)

const (
	initialProcessCount = 1024
	initialModuleCount  = 256

	memFree = 0x10000
)

func newOSBackend() Backend {
	return winBackend{}
}

type winBackend struct{}

// ProcessIDs grows its buffer until EnumProcesses leaves room to spare,
// since the call cannot report how many identifiers it left out.
func (winBackend) ProcessIDs() ([]uint32, error) {
	pids := make([]uint32, initialProcessCount)
	for {
		if uint64(len(pids))*4 > math.MaxUint32 {
			return nil, errors.Wrapf(ErrIntegerOverflow, "%d process identifiers", len(pids))
		}

		var needed uint32
		err := windows.EnumProcesses(pids, &needed)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		n := int(needed / 4)
		if n < len(pids) {
			return pids[:n], nil
		}
		pids = make([]uint32, len(pids)*2)
	}
}

func (winBackend) OpenProcess(pid uint32) (Target, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_ALL_ACCESS, false, pid)
	if err != nil {
		switch err {
		case windows.ERROR_ACCESS_DENIED:
			return nil, errors.Wrapf(ErrAccessDenied, "pid %d", pid)
		case windows.ERROR_INVALID_PARAMETER:
			return nil, errors.Wrapf(ErrNotFound, "pid %d", pid)
		default:
			return nil, errors.Wrapf(err, "failed to open pid %d", pid)
		}
	}

	ptrSize := int(unsafe.Sizeof(uintptr(0)))
	var wow64 bool
	if windows.IsWow64Process(h, &wow64) == nil && wow64 {
		ptrSize = 4
	}

	return &winTarget{
		h:       h,
		ptrSize: ptrSize,
	}, nil
}

type winTarget struct {
	h       windows.Handle
	ptrSize int
}

func getModuleBaseNameA(process windows.Handle, module windows.Handle, p []byte) error {
	if len(p) == 0 {
		return nil
	}

	r1, _, e1 := procGetModuleBaseNameA.Call(
		uintptr(process),
		uintptr(module),
		uintptr(unsafe.Pointer(&p[0])),
		uintptr(len(p)))
	if r1 == 0 {
		return errors.WithStack(e1)
	}
	return nil
}

func (o *winTarget) BaseName(p []byte) error {
	return getModuleBaseNameA(o.h, 0, p)
}

func (o *winTarget) ModuleHandles() ([]uintptr, error) {
	const handleSize = uint32(unsafe.Sizeof(windows.Handle(0)))

	mods := make([]windows.Handle, initialModuleCount)
	for {
		if uint64(len(mods))*uint64(handleSize) > math.MaxUint32 {
			return nil, errors.Wrapf(ErrIntegerOverflow, "%d module handles", len(mods))
		}

		var needed uint32
		err := windows.EnumProcessModules(o.h, &mods[0], uint32(len(mods))*handleSize, &needed)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		n := int(needed / handleSize)
		if n <= len(mods) {
			out := make([]uintptr, n)
			for i := range out {
				out[i] = uintptr(mods[i])
			}
			return out, nil
		}
		mods = make([]windows.Handle, n)
	}
}

func (o *winTarget) ModuleBaseName(module uintptr, p []byte) error {
	return getModuleBaseNameA(o.h, windows.Handle(module), p)
}

func (o *winTarget) ModuleInfo(module uintptr) (uintptr, uint, error) {
	var mi windows.ModuleInfo
	err := windows.GetModuleInformation(o.h, windows.Handle(module), &mi, uint32(unsafe.Sizeof(mi)))
	if err != nil {
		return 0, 0, errors.WithStack(err)
	}

	return mi.BaseOfDll, uint(mi.SizeOfImage), nil
}

// QueryRegion reports addresses beyond the highest user-mode address,
// which VirtualQueryEx rejects, as one free region reaching the top of
// the address space.
func (o *winTarget) QueryRegion(addr uintptr) (Region, error) {
	var mbi windows.MemoryBasicInformation
	err := windows.VirtualQueryEx(o.h, addr, &mbi, unsafe.Sizeof(mbi))
	if err != nil {
		if err == windows.ERROR_INVALID_PARAMETER {
			return Region{Base: addr, Size: ^addr + 1, State: RegionFree}, nil
		}
		return Region{}, errors.WithStack(err)
	}

	state := RegionCommitted
	switch mbi.State {
	case memFree:
		state = RegionFree
	case windows.MEM_RESERVE:
		state = RegionReserved
	}

	return Region{
		Base:  mbi.BaseAddress,
		Size:  mbi.RegionSize,
		State: state,
	}, nil
}

func (o *winTarget) ReadMemory(addr uintptr, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var n uintptr
	err := windows.ReadProcessMemory(o.h, addr, &p[0], uintptr(len(p)), &n)
	return int(n), errors.WithStack(err)
}

func (o *winTarget) WriteMemory(addr uintptr, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var n uintptr
	err := windows.WriteProcessMemory(o.h, addr, &p[0], uintptr(len(p)), &n)
	return int(n), errors.WithStack(err)
}

func (o *winTarget) PointerSize() int {
	return o.ptrSize
}

func (o *winTarget) Close() error {
	return errors.WithStack(windows.CloseHandle(o.h))
}
