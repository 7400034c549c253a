package query

import (
	"fmt"
	"sort"
	"unsafe"
)

// State is the commit state of a region.
type State uint8

const (
	// StateFree means nothing is mapped at the address.
	StateFree State = iota
	// StateReserved means address space is reserved but not accessible.
	StateReserved
	// StateCommitted means the pages are backed and accessible with Prot.
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateReserved:
		return "reserved"
	case StateCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// Prot is a set of page protection bits.
type Prot uint8

const (
	ProtRead Prot = 1 << iota
	ProtWrite
	ProtExec
	ProtCopyOnWrite // Windows PAGE_WRITECOPY family; not writable in the snapshot sense
	ProtShared      // Linux shared mapping
)

// String renders the protection like /proc/<pid>/maps does.
func (p Prot) String() string {
	b := []byte("---")
	if p&ProtRead != 0 {
		b[0] = 'r'
	}
	if p&ProtWrite != 0 {
		b[1] = 'w'
	}
	if p&ProtExec != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// Region is one contiguous range of pages sharing state and protection.
type Region struct {
	Base  uintptr
	Size  uintptr
	State State
	Prot  Prot
	Path  string // backing file, if any (Linux only)
}

// End returns the first address past the region.
func (r Region) End() uintptr { return r.Base + r.Size }

// Contains reports whether addr falls inside the region.
func (r Region) Contains(addr uintptr) bool {
	return addr >= r.Base && addr-r.Base < r.Size
}

// Committed reports whether the region is committed memory.
func (r Region) Committed() bool { return r.State == StateCommitted }

// Writable reports whether the region is committed read-write or
// execute-read-write memory.
func (r Region) Writable() bool {
	return r.Committed() && r.Prot&(ProtRead|ProtWrite) == ProtRead|ProtWrite
}

func (r Region) String() string {
	s := fmt.Sprintf("%#x-%#x %s %s", r.Base, r.End(), r.Prot, r.State)
	if r.Path != "" {
		s += " " + r.Path
	}
	return s
}

// Module is one loaded image.
type Module struct {
	Path string
	Base uintptr
	Size uintptr
	Main bool // the process's own executable
}

// End returns the first address past the module image.
func (m Module) End() uintptr { return m.Base + m.Size }

// Querier resolves the region that contains an address.
type Querier interface {
	Query(addr uintptr) (Region, bool)
}

// System queries the live address space of the calling process.
var System Querier = systemQuerier{}

type systemQuerier struct{}

func (systemQuerier) Query(addr uintptr) (Region, bool) { return queryAddr(addr) }

// IsCommitted reports whether addr lies in committed memory of this process.
func IsCommitted(addr uintptr) bool { return Committed(System, addr) }

// IsWritable reports whether addr lies in committed, writable memory of this process.
func IsWritable(addr uintptr) bool { return Writable(System, addr) }

// Committed is IsCommitted against an arbitrary Querier.
func Committed(q Querier, addr uintptr) bool {
	r, ok := q.Query(addr)
	return ok && r.Committed()
}

// Writable is IsWritable against an arbitrary Querier.
func Writable(q Querier, addr uintptr) bool {
	r, ok := q.Query(addr)
	return ok && r.Writable()
}

// WritableSpan reports whether every byte of [addr, addr+size) is writable.
// Adjacent writable regions may cover the span together.
func WritableSpan(q Querier, addr, size uintptr) bool {
	if size == 0 {
		return Writable(q, addr)
	}
	end := addr + size
	if end < addr {
		return false
	}
	for pos := addr; pos < end; {
		r, ok := q.Query(pos)
		if !ok || !r.Writable() || r.End() <= pos {
			return false
		}
		pos = r.End()
	}
	return true
}

// Map is an immutable, sorted view of the address space taken by Load.
type Map struct {
	regions []Region // sorted by Base, non-overlapping, committed or reserved only
}

// NewMap builds a Map from regions. Free regions are dropped.
func NewMap(regions []Region) *Map {
	rs := make([]Region, 0, len(regions))
	for _, r := range regions {
		if r.State != StateFree && r.Size > 0 {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Base < rs[j].Base })
	return &Map{regions: rs}
}

// Regions returns a copy of the mapped regions in address order.
func (m *Map) Regions() []Region {
	out := make([]Region, len(m.regions))
	copy(out, m.regions)
	return out
}

// Query returns the mapped region containing addr, or the free gap around it.
func (m *Map) Query(addr uintptr) (Region, bool) {
	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].End() > addr })
	if i < len(m.regions) && m.regions[i].Contains(addr) {
		return m.regions[i], true
	}

	// Unmapped: report the gap up to the next mapping.
	gapEnd := ^uintptr(0)
	if i < len(m.regions) {
		gapEnd = m.regions[i].Base
	}
	return Region{Base: addr, Size: gapEnd - addr, State: StateFree}, true
}

// Bytes returns a slice aliasing size bytes of process memory at addr.
// The caller must know the range is mapped; see IsWritable and WritableSpan.
// addr must not point into the Go heap: the runtime does not track the result
// as a reference to that allocation, and checkptr rejects it.
func Bytes(addr, size uintptr) []byte {
	if addr == 0 || size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}
