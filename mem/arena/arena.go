package arena

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/procstate/internal/buf"
	"github.com/joshuapare/procstate/internal/logger"
)

// Arena is a fixed-address heap over one reserved region. It is never released.
type Arena struct {
	mu   sync.Mutex
	mem  []byte
	base uintptr
	heap heap
	log  *slog.Logger

	hwm        atomic.Uint64
	liveBlocks atomic.Int64
	liveBytes  atomic.Int64

	// broken is set when restored bytes describe a heap this arena cannot host.
	broken bool
}

// Stats is a point-in-time summary of heap usage.
type Stats struct {
	Capacity      uint64
	HighWaterMark uint64
	LiveBlocks    int64
	LiveBytes     int64 // block bytes, headers included
}

// New reserves the arena and initializes an empty heap over it.
func New(opts Options) (*Arena, error) {
	opts = opts.withDefaults()
	log := logger.Or(opts.Logger)

	mem, err := reserve(opts, log)
	if err != nil {
		return nil, err
	}
	a := &Arena{
		mem:  mem,
		base: uintptr(unsafe.Pointer(unsafe.SliceData(mem))),
		heap: heap{mem: mem},
		log:  log,
	}
	a.heap.init()
	a.hwm.Store(HeaderReserve)
	log.Info("arena reserved", "base", fmt.Sprintf("%#x", a.base), "capacity", len(mem))
	return a, nil
}

// reserve requests opts.Size bytes at a null hint, halving on failure.
func reserve(opts Options, log *slog.Logger) ([]byte, error) {
	size := opts.Size
	var lastErr error
	for attempt := 0; attempt < opts.MaxAttempts && size >= opts.MinSize; attempt++ {
		mem, err := opts.Reserver.Reserve(0, size)
		if err == nil && uint64(len(mem)) >= size {
			return mem[:size:size], nil
		}
		if err == nil {
			err = fmt.Errorf("reserver returned %d bytes", len(mem))
		}
		log.Debug("arena reservation failed", "size", size, "attempt", attempt+1, "err", err)
		lastErr = err
		size /= 2
	}
	if lastErr == nil {
		lastErr = errors.New("size below floor")
	}
	return nil, fmt.Errorf("%w: requested %d bytes, floor %d: %w", ErrReserveFailed, opts.Size, opts.MinSize, lastErr)
}

// Base returns the address of the first arena byte.
func (a *Arena) Base() uintptr { return a.base }

// Capacity returns the reserved size in bytes.
func (a *Arena) Capacity() uint64 { return uint64(len(a.mem)) }

// HighWaterMark returns the largest offset-plus-size ever allocated.
func (a *Arena) HighWaterMark() uint64 { return a.hwm.Load() }

// Stats returns usage counters without taking the arena lock.
func (a *Arena) Stats() Stats {
	return Stats{
		Capacity:      a.Capacity(),
		HighWaterMark: a.HighWaterMark(),
		LiveBlocks:    a.liveBlocks.Load(),
		LiveBytes:     a.liveBytes.Load(),
	}
}

// Contains reports whether ptr lies inside the arena.
func (a *Arena) Contains(ptr uintptr) bool {
	return ptr >= a.base && ptr-a.base < uintptr(len(a.mem))
}

// Offset converts ptr to an arena offset.
func (a *Arena) Offset(ptr uintptr) (int, bool) {
	if !a.Contains(ptr) {
		return 0, false
	}
	return int(ptr - a.base), true
}

// Pointer converts an arena offset to an address. It returns 0 for offsets outside the arena.
func (a *Arena) Pointer(off int) uintptr {
	if off < 0 || off >= len(a.mem) {
		return 0
	}
	return a.base + uintptr(off)
}

// Bytes returns the n arena bytes at ptr, or nil if the range leaves the arena.
func (a *Arena) Bytes(ptr uintptr, n int) []byte {
	off, ok := a.Offset(ptr)
	if !ok {
		return nil
	}
	b, ok := buf.Slice(a.mem, off, n)
	if !ok {
		return nil
	}
	return b[:n:n]
}

// Allocate returns a 16-byte aligned block of at least size bytes, or 0 when
// the arena is exhausted.
func (a *Arena) Allocate(size uintptr) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := 0
	if !a.broken && size <= uintptr(len(a.mem)) {
		p = a.heap.alloc(int(size))
	}
	if logAlloc {
		a.log.Debug("allocate", "size", size, "off", p)
	}
	return a.result(p, size)
}

// Reallocate resizes the block at ptr. A zero ptr allocates; a zero size frees
// and returns 0. The block may move; on failure the original stays valid and 0
// is returned.
func (a *Arena) Reallocate(ptr, size uintptr) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := 0
	if !a.broken && size <= uintptr(len(a.mem)) {
		if ptr == 0 {
			p = a.heap.alloc(int(size))
		} else if off, ok := a.Offset(ptr); ok {
			p = a.heap.realloc(off, int(size))
		}
	}
	if logAlloc {
		a.log.Debug("reallocate", "ptr", ptr, "size", size, "off", p)
	}
	return a.result(p, size)
}

// result records the allocation at payload offset p, updating the high-water
// mark and counters. Callers hold mu.
func (a *Arena) result(p int, size uintptr) uintptr {
	a.syncCounters()
	if p == 0 {
		return 0
	}
	if end := uint64(p) + uint64(size); end > a.hwm.Load() {
		a.hwm.Store(end)
	}
	return a.base + uintptr(p)
}

// Release frees the block at ptr. A zero ptr succeeds without effect. The
// high-water mark is never lowered.
func (a *Arena) Release(ptr uintptr) bool {
	if ptr == 0 {
		return true
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	off, ok := a.Offset(ptr)
	ok = ok && !a.broken && a.heap.free(off)
	if logAlloc {
		a.log.Debug("release", "ptr", ptr, "ok", ok)
	}
	a.syncCounters()
	return ok
}

// SizeOf returns the usable size of the live block at ptr.
func (a *Arena) SizeOf(ptr uintptr) (uintptr, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	off, ok := a.Offset(ptr)
	if !ok || a.broken {
		return 0, false
	}
	n, ok := a.heap.usable(off)
	return uintptr(n), ok
}

// Validate reports whether ptr addresses a live block.
func (a *Arena) Validate(ptr uintptr) bool {
	_, ok := a.SizeOf(ptr)
	return ok
}

// Check walks the whole heap and returns the first inconsistency found.
func (a *Arena) Check() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heap.check()
}

func (a *Arena) syncCounters() {
	if a.broken {
		a.liveBlocks.Store(0)
		a.liveBytes.Store(0)
		return
	}
	a.liveBlocks.Store(int64(a.heap.word(ctlLive)))
	a.liveBytes.Store(int64(a.heap.word(ctlLiveBytes)))
}

// State is exclusive access to the arena's raw bytes, handed out by Locked.
type State struct {
	a *Arena
}

// Memory returns every arena byte.
func (s *State) Memory() []byte { return s.a.mem }

// Capacity returns the reserved size.
func (s *State) Capacity() uint64 { return uint64(len(s.a.mem)) }

// HighWaterMark returns the current high-water mark.
func (s *State) HighWaterMark() uint64 { return s.a.hwm.Load() }

// SetHighWaterMark replaces the high-water mark, clamped to the capacity.
func (s *State) SetHighWaterMark(v uint64) {
	s.a.hwm.Store(min(v, uint64(len(s.a.mem))))
}

// Locked runs fn with the arena lock held. When fn rewrites the heap bytes the
// arena re-reads its bookkeeping afterwards; a heap that does not fit this
// arena disables allocation until the next successful restore.
func (a *Arena) Locked(fn func(*State) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := fn(&State{a: a})
	if a.broken = !a.heap.sane(); a.broken {
		a.log.Warn("arena heap unusable after restore", "capacity", len(a.mem))
	}
	a.syncCounters()
	return err
}
