package process

// Backend is the operating system capability the package is built on.
// Implementations exist for Linux (procfs) and Windows (psapi/kernel32).
type Backend interface {
	// ProcessIDs returns every process identifier currently known
	// to the system.
	ProcessIDs() ([]uint32, error)

	// OpenProcess opens pid with read, write and query rights.
	OpenProcess(pid uint32) (Target, error)
}

// Target is an open OS capability over one process.
type Target interface {
	// BaseName copies the executable's base name into p, nul
	// terminated when it fits.
	BaseName(p []byte) error

	// ModuleHandles lists the opaque handles of every loaded module,
	// main executable first.
	ModuleHandles() ([]uintptr, error)

	ModuleBaseName(module uintptr, p []byte) error
	ModuleInfo(module uintptr) (base uintptr, size uint, err error)

	// QueryRegion describes the region containing addr.
	QueryRegion(addr uintptr) (Region, error)

	// ReadMemory and WriteMemory return the number of bytes that were
	// copied even when err is non-nil.
	ReadMemory(addr uintptr, p []byte) (int, error)
	WriteMemory(addr uintptr, p []byte) (int, error)

	// PointerSize is the width of a pointer in the target's address
	// space, in bytes.
	PointerSize() int

	Close() error
}

// regionSnapshotter is implemented by targets that can describe their
// whole address space in one call. A region walk takes one snapshot and
// only falls back to QueryRegion for addresses the snapshot cannot
// answer.
type regionSnapshotter interface {
	snapshotRegions() (regionSnapshot, error)
}

type regionSnapshot interface {
	regionAt(addr uintptr) (Region, bool)
}

type RegionState int

const (
	RegionFree RegionState = iota
	RegionReserved
	RegionCommitted
)

func (s RegionState) String() string {
	switch s {
	case RegionFree:
		return "free"
	case RegionReserved:
		return "reserved"
	case RegionCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// Region is a contiguous span of address space with a uniform state.
type Region struct {
	Base  uintptr
	Size  uintptr
	State RegionState
}

// End wraps to zero for a region that reaches the top of the address space.
func (r Region) End() uintptr {
	return r.Base + r.Size
}

func (r Region) Contains(addr uintptr) bool {
	return addr-r.Base < r.Size
}
