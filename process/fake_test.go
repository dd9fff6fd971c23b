package process

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var errFault = errors.New("fake: bad address")

// fakeSegment is a span of target memory. Reads starting at or beyond
// fault (when non-zero) fail, and reads crossing it are cut short.
type fakeSegment struct {
	base  uintptr
	data  []byte
	state RegionState
	fault uintptr
}

type fakeModule struct {
	name    []byte
	base    uintptr
	size    uint
	infoErr error
}

type fakeProc struct {
	pid      uint32
	name     []byte
	openErr  error
	ptrSize  int
	segments []*fakeSegment
	modules  []fakeModule
}

func cstr(s string) []byte {
	return append([]byte(s), 0)
}

func newFakeProc(pid uint32, name string) *fakeProc {
	return &fakeProc{
		pid:     pid,
		name:    cstr(name),
		ptrSize: 8,
	}
}

func (o *fakeProc) mapSegment(base uintptr, size int, state RegionState) *fakeSegment {
	seg := &fakeSegment{
		base:  base,
		data:  make([]byte, size),
		state: state,
	}
	o.segments = append(o.segments, seg)
	sort.Slice(o.segments, func(i, j int) bool {
		return o.segments[i].base < o.segments[j].base
	})
	return seg
}

func (o *fakeProc) segment(addr uintptr) *fakeSegment {
	for _, seg := range o.segments {
		if addr-seg.base < uintptr(len(seg.data)) {
			return seg
		}
	}
	return nil
}

func (o *fakeProc) put(addr uintptr, b []byte) {
	seg := o.segment(addr)
	if seg == nil {
		panic("fake: put outside of any segment")
	}
	copy(seg.data[addr-seg.base:], b)
}

func (o *fakeProc) putPointer(addr uintptr, v uintptr) {
	buf := make([]byte, o.ptrSize)
	if o.ptrSize == 4 {
		binary.LittleEndian.PutUint32(buf, uint32(v))
	} else {
		binary.LittleEndian.PutUint64(buf, uint64(v))
	}
	o.put(addr, buf)
}

type fakeBackend struct {
	mu         sync.Mutex
	procs      []*fakeProc
	enumerated int
	open       int
}

func newFakeBackend(procs ...*fakeProc) *fakeBackend {
	return &fakeBackend{
		procs: procs,
	}
}

func (o *fakeBackend) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

func (o *fakeBackend) ProcessIDs() ([]uint32, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.enumerated++
	pids := make([]uint32, len(o.procs))
	for i, p := range o.procs {
		pids[i] = p.pid
	}
	return pids, nil
}

func (o *fakeBackend) OpenProcess(pid uint32) (Target, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, p := range o.procs {
		if p.pid != pid {
			continue
		}
		if p.openErr != nil {
			return nil, p.openErr
		}
		o.open++
		return &fakeTarget{backend: o, proc: p}, nil
	}

	return nil, errors.Wrapf(ErrNotFound, "pid %d", pid)
}

type fakeTarget struct {
	backend *fakeBackend
	proc    *fakeProc
	mu      sync.Mutex
	closed  bool
}

func (o *fakeTarget) BaseName(p []byte) error {
	copy(p, o.proc.name)
	return nil
}

// Module handles are one-based indexes into proc.modules.
func (o *fakeTarget) ModuleHandles() ([]uintptr, error) {
	handles := make([]uintptr, len(o.proc.modules))
	for i := range handles {
		handles[i] = uintptr(i + 1)
	}
	return handles, nil
}

func (o *fakeTarget) ModuleBaseName(module uintptr, p []byte) error {
	copy(p, o.proc.modules[module-1].name)
	return nil
}

func (o *fakeTarget) ModuleInfo(module uintptr) (uintptr, uint, error) {
	m := o.proc.modules[module-1]
	if m.infoErr != nil {
		return 0, 0, m.infoErr
	}
	return m.base, m.size, nil
}

func (o *fakeTarget) QueryRegion(addr uintptr) (Region, error) {
	for _, seg := range o.proc.segments {
		if addr-seg.base < uintptr(len(seg.data)) {
			return Region{Base: seg.base, Size: uintptr(len(seg.data)), State: seg.state}, nil
		}
		if addr < seg.base {
			return Region{Base: addr, Size: seg.base - addr, State: RegionFree}, nil
		}
	}

	size := ^addr + 1
	if size == 0 {
		size = ^uintptr(0)
	}
	return Region{Base: addr, Size: size, State: RegionFree}, nil
}

func (o *fakeTarget) span(addr uintptr) ([]byte, error) {
	seg := o.proc.segment(addr)
	if seg == nil || seg.state != RegionCommitted {
		return nil, errFault
	}

	off := addr - seg.base
	end := uintptr(len(seg.data))
	if seg.fault != 0 {
		if off >= seg.fault {
			return nil, errFault
		}
		end = seg.fault
	}
	return seg.data[off:end], nil
}

func (o *fakeTarget) ReadMemory(addr uintptr, p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	src, err := o.span(addr)
	if err != nil {
		return 0, err
	}

	n := copy(p, src)
	if n < len(p) {
		return n, errFault
	}
	return n, nil
}

func (o *fakeTarget) WriteMemory(addr uintptr, p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	dst, err := o.span(addr)
	if err != nil {
		return 0, err
	}

	n := copy(dst, p)
	if n < len(p) {
		return n, errFault
	}
	return n, nil
}

func (o *fakeTarget) PointerSize() int {
	return o.proc.ptrSize
}

func (o *fakeTarget) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return errors.New("fake: target closed twice")
	}
	o.closed = true

	o.backend.mu.Lock()
	o.backend.open--
	o.backend.mu.Unlock()
	return nil
}

// openFake returns a handle on p through a fresh backend.
func openFake(p *fakeProc) *Handle {
	h, err := NewSystem(newFakeBackend(p)).Open(p.pid)
	if err != nil {
		panic(err)
	}
	return h
}

// countingTarget records the region queries and reads made through it.
type countingTarget struct {
	*fakeTarget

	mu      sync.Mutex
	queries int
	reads   []uintptr
}

func newCountingTarget(p *fakeProc) *countingTarget {
	target, err := newFakeBackend(p).OpenProcess(p.pid)
	if err != nil {
		panic(err)
	}
	return &countingTarget{fakeTarget: target.(*fakeTarget)}
}

func (o *countingTarget) QueryRegion(addr uintptr) (Region, error) {
	o.mu.Lock()
	o.queries++
	o.mu.Unlock()
	return o.fakeTarget.QueryRegion(addr)
}

func (o *countingTarget) ReadMemory(addr uintptr, p []byte) (int, error) {
	o.mu.Lock()
	o.reads = append(o.reads, addr)
	o.mu.Unlock()
	return o.fakeTarget.ReadMemory(addr, p)
}

// snapshotTarget also describes its address space in one call. The
// snapshot has no answer for addresses at or above limit.
type snapshotTarget struct {
	*countingTarget
	limit     uintptr
	snapshots int
}

func (o *snapshotTarget) snapshotRegions() (regionSnapshot, error) {
	o.snapshots++
	return fakeSnapshot{target: o.fakeTarget, limit: o.limit}, nil
}

type fakeSnapshot struct {
	target *fakeTarget
	limit  uintptr
}

func (o fakeSnapshot) regionAt(addr uintptr) (Region, bool) {
	if addr >= o.limit {
		return Region{}, false
	}
	r, _ := o.target.QueryRegion(addr)
	return r, true
}
