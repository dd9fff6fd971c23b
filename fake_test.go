package main

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"procMem/process"
)

const (
	gameBase = 0x400000
	gameSize = 0x2000
	libBase  = 0x7f0000000000
	libSize  = 0x1000
)

var errFault = errors.New("fake: bad address")

// memProc is a process with the main image and one library mapped
// back to back in a single committed segment each.
type memProc struct {
	pid  uint32
	name string
	game []byte
	lib  []byte
}

func newMemProc(pid uint32) *memProc {
	return &memProc{
		pid:  pid,
		name: "game.exe",
		game: make([]byte, gameSize),
		lib:  make([]byte, libSize),
	}
}

func (o *memProc) segment(addr uintptr) ([]byte, uintptr, bool) {
	switch {
	case addr-gameBase < gameSize:
		return o.game, gameBase, true
	case addr-libBase < libSize:
		return o.lib, libBase, true
	}
	return nil, 0, false
}

func (o *memProc) putPointer(addr uintptr, v uint64) {
	data, base, _ := o.segment(addr)
	binary.LittleEndian.PutUint64(data[addr-base:], v)
}

type memBackend struct {
	procs []*memProc
}

func (o *memBackend) ProcessIDs() ([]uint32, error) {
	pids := make([]uint32, len(o.procs))
	for i, p := range o.procs {
		pids[i] = p.pid
	}
	return pids, nil
}

func (o *memBackend) OpenProcess(pid uint32) (process.Target, error) {
	for _, p := range o.procs {
		if p.pid == pid {
			return &memTarget{proc: p}, nil
		}
	}
	return nil, process.ErrNotFound
}

type memTarget struct {
	proc   *memProc
	closed bool
}

func (o *memTarget) BaseName(p []byte) error {
	copy(p, append([]byte(o.proc.name), 0))
	return nil
}

func (o *memTarget) ModuleHandles() ([]uintptr, error) {
	return []uintptr{gameBase, libBase}, nil
}

func (o *memTarget) ModuleBaseName(module uintptr, p []byte) error {
	name := "Game.exe"
	if module == libBase {
		name = "libc.so.6"
	}
	copy(p, append([]byte(name), 0))
	return nil
}

func (o *memTarget) ModuleInfo(module uintptr) (uintptr, uint, error) {
	if module == libBase {
		return libBase, libSize, nil
	}
	return gameBase, gameSize, nil
}

func (o *memTarget) QueryRegion(addr uintptr) (process.Region, error) {
	if _, base, ok := o.proc.segment(addr); ok {
		size := uintptr(gameSize)
		if base == libBase {
			size = libSize
		}
		return process.Region{Base: base, Size: size, State: process.RegionCommitted}, nil
	}

	switch {
	case addr < gameBase:
		return process.Region{Base: addr, Size: gameBase - addr, State: process.RegionFree}, nil
	case addr < libBase:
		return process.Region{Base: addr, Size: libBase - addr, State: process.RegionFree}, nil
	}
	return process.Region{Base: addr, Size: ^addr + 1, State: process.RegionFree}, nil
}

func (o *memTarget) ReadMemory(addr uintptr, p []byte) (int, error) {
	data, base, ok := o.proc.segment(addr)
	if !ok {
		return 0, errFault
	}
	n := copy(p, data[addr-base:])
	if n < len(p) {
		return n, errFault
	}
	return n, nil
}

func (o *memTarget) WriteMemory(addr uintptr, p []byte) (int, error) {
	data, base, ok := o.proc.segment(addr)
	if !ok {
		return 0, errFault
	}
	n := copy(data[addr-base:], p)
	if n < len(p) {
		return n, errFault
	}
	return n, nil
}

func (o *memTarget) PointerSize() int {
	return 8
}

func (o *memTarget) Close() error {
	if o.closed {
		return errors.New("fake: closed twice")
	}
	o.closed = true
	return nil
}

func newTestSession(procs ...*memProc) *TypeSession {
	if len(procs) == 0 {
		procs = []*memProc{newMemProc(100)}
	}

	s, err := AttachName(process.NewSystem(&memBackend{procs: procs}), "game.exe",
		func([]*process.Process) (int, error) { return 0, nil })
	if err != nil {
		panic(err)
	}
	return s
}
