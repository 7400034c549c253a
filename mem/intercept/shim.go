package intercept

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/joshuapare/procstate/internal/logger"
)

// Win32 BOOL values and the HeapSize failure result.
const (
	False      uintptr = 0
	True       uintptr = 1
	SizeFailed         = ^uintptr(0)
)

// Heap is the allocator behind the heap entry points.
type Heap interface {
	Allocate(size uintptr) uintptr
	Reallocate(ptr, size uintptr) uintptr
	Release(ptr uintptr) bool
	SizeOf(ptr uintptr) (uintptr, bool)
	Validate(ptr uintptr) bool
	Check() error
}

// Trampoline calls an original, pre-hook function.
type Trampoline func(args ...uintptr) uintptr

// Installer patches a hook into the process and returns the original function.
type Installer interface {
	Install(h Hook) (Trampoline, error)
}

// InstallerFunc adapts a function to Installer.
type InstallerFunc func(h Hook) (Trampoline, error)

// Install calls f.
func (f InstallerFunc) Install(h Hook) (Trampoline, error) { return f(h) }

// Shim holds the replacement functions and the originals they displace.
type Shim struct {
	heap      Heap
	log       *slog.Logger
	originals [numEntryPoints]atomic.Pointer[Trampoline]
	calls     [numEntryPoints]*xsync.Counter
	table     Table
}

// New returns a shim serving heap calls from heap.
func New(heap Heap, log *slog.Logger) *Shim {
	s := &Shim{heap: heap, log: logger.Or(log)}
	for i := range s.calls {
		s.calls[i] = xsync.NewCounter()
	}
	s.table = Table{hooks: []Hook{
		s.hook(HeapAlloc, s.HeapAlloc),
		s.hook(HeapReAlloc, s.HeapReAlloc),
		s.hook(HeapFree, s.HeapFree),
		s.hook(HeapValidate, s.HeapValidate),
		s.hook(HeapSize, s.HeapSize),
		s.hook(VirtualAlloc, s.VirtualAlloc),
		s.hook(VirtualFree, s.VirtualFree),
		s.hook(VirtualAllocEx, s.VirtualAllocEx),
		s.hook(VirtualFreeEx, s.VirtualFreeEx),
	}}
	return s
}

func (s *Shim) hook(ep EntryPoint, fn any) Hook {
	return Hook{Module: Kernel32, Symbol: ep.String(), Kind: ep.Kind(), EntryPoint: ep, Replacement: fn}
}

// Table returns the hooks bound to this shim.
func (s *Shim) Table() Table { return s.table }

// Install hands every hook to inst and records the returned originals. It
// stops at the first failure; hooks installed before it stay installed.
func (s *Shim) Install(inst Installer) error {
	for _, h := range s.table.hooks {
		orig, err := inst.Install(h)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInstall, h, err)
		}
		s.Bind(h.EntryPoint, orig)
		s.log.Debug("hook installed", "symbol", h.Symbol, "kind", h.Kind, "original", orig != nil)
	}
	return nil
}

// Bind records the original function for ep. A nil trampoline unbinds it.
func (s *Shim) Bind(ep EntryPoint, orig Trampoline) {
	if orig == nil {
		s.originals[ep].Store(nil)
		return
	}
	s.originals[ep].Store(&orig)
}

// Original returns the bound original for ep, or nil.
func (s *Shim) Original(ep EntryPoint) Trampoline {
	if p := s.originals[ep].Load(); p != nil {
		return *p
	}
	return nil
}

// Calls returns how many times the replacement for ep has run.
func (s *Shim) Calls(ep EntryPoint) int64 { return s.calls[ep].Value() }

func boolWord(b bool) uintptr {
	if b {
		return True
	}
	return False
}

// HeapAlloc allocates size bytes from the heap.
func (s *Shim) HeapAlloc(heap, flags, size uintptr) uintptr {
	s.calls[HeapAlloc].Inc()
	return s.heap.Allocate(size)
}

// HeapReAlloc resizes mem.
func (s *Shim) HeapReAlloc(heap, flags, mem, size uintptr) uintptr {
	s.calls[HeapReAlloc].Inc()
	return s.heap.Reallocate(mem, size)
}

// HeapFree releases mem.
func (s *Shim) HeapFree(heap, flags, mem uintptr) uintptr {
	s.calls[HeapFree].Inc()
	return boolWord(s.heap.Release(mem))
}

// HeapValidate checks mem, or the whole heap when mem is 0.
func (s *Shim) HeapValidate(heap, flags, mem uintptr) uintptr {
	s.calls[HeapValidate].Inc()
	if mem == 0 {
		err := s.heap.Check()
		if err != nil {
			s.log.Warn("heap validation failed", "err", err)
		}
		return boolWord(err == nil)
	}
	return boolWord(s.heap.Validate(mem))
}

// HeapSize returns the usable size of mem, or SizeFailed.
func (s *Shim) HeapSize(heap, flags, mem uintptr) uintptr {
	s.calls[HeapSize].Inc()
	n, ok := s.heap.SizeOf(mem)
	if !ok {
		return SizeFailed
	}
	return n
}

func (s *Shim) forward(ep EntryPoint, args ...uintptr) uintptr {
	s.calls[ep].Inc()
	orig := s.Original(ep)
	if orig == nil {
		return 0
	}
	return orig(args...)
}

// VirtualAlloc forwards to the original VirtualAlloc.
func (s *Shim) VirtualAlloc(addr, size, allocType, protect uintptr) uintptr {
	return s.forward(VirtualAlloc, addr, size, allocType, protect)
}

// VirtualFree forwards to the original VirtualFree.
func (s *Shim) VirtualFree(addr, size, freeType uintptr) uintptr {
	return s.forward(VirtualFree, addr, size, freeType)
}

// VirtualAllocEx forwards to the original VirtualAllocEx.
func (s *Shim) VirtualAllocEx(process, addr, size, allocType, protect uintptr) uintptr {
	return s.forward(VirtualAllocEx, process, addr, size, allocType, protect)
}

// VirtualFreeEx forwards to the original VirtualFreeEx.
func (s *Shim) VirtualFreeEx(process, addr, size, freeType uintptr) uintptr {
	return s.forward(VirtualFreeEx, process, addr, size, freeType)
}
