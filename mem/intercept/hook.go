package intercept

import (
	"fmt"
	"iter"
)

// Kernel32 is the module that owns every intercepted entry point.
const Kernel32 = "kernel32.dll"

// EntryPoint identifies an intercepted function.
type EntryPoint int

const (
	HeapAlloc EntryPoint = iota
	HeapReAlloc
	HeapFree
	HeapValidate
	HeapSize
	VirtualAlloc
	VirtualFree
	VirtualAllocEx
	VirtualFreeEx

	numEntryPoints
)

var entryPointNames = [numEntryPoints]string{
	HeapAlloc:      "HeapAlloc",
	HeapReAlloc:    "HeapReAlloc",
	HeapFree:       "HeapFree",
	HeapValidate:   "HeapValidate",
	HeapSize:       "HeapSize",
	VirtualAlloc:   "VirtualAlloc",
	VirtualFree:    "VirtualFree",
	VirtualAllocEx: "VirtualAllocEx",
	VirtualFreeEx:  "VirtualFreeEx",
}

// EntryPoints lists every entry point in table order.
func EntryPoints() []EntryPoint {
	eps := make([]EntryPoint, numEntryPoints)
	for i := range eps {
		eps[i] = EntryPoint(i)
	}
	return eps
}

// String returns the exported symbol name.
func (e EntryPoint) String() string {
	if e < 0 || e >= numEntryPoints {
		return fmt.Sprintf("EntryPoint(%d)", int(e))
	}
	return entryPointNames[e]
}

// Kind reports how the replacement treats the call.
func (e EntryPoint) Kind() Kind {
	if e >= VirtualAlloc {
		return KindPassThrough
	}
	return KindHeap
}

// Kind classifies a hook.
type Kind int

const (
	// KindHeap replacements are served by the arena.
	KindHeap Kind = iota
	// KindPassThrough replacements forward to the original function.
	KindPassThrough
)

func (k Kind) String() string {
	if k == KindPassThrough {
		return "pass-through"
	}
	return "heap"
}

// Hook describes one interceptable function.
type Hook struct {
	Module      string
	Symbol      string
	Ordinal     uint16 // unused; symbols are resolved by name
	Kind        Kind
	EntryPoint  EntryPoint
	Replacement any // func(uintptr, ...) uintptr with the entry point's arity
}

func (h Hook) String() string {
	return fmt.Sprintf("%s!%s (%s)", h.Module, h.Symbol, h.Kind)
}

// Table is an ordered, read-only set of hooks.
type Table struct {
	hooks []Hook
}

// Len returns the number of hooks.
func (t Table) Len() int { return len(t.hooks) }

// Hooks returns a copy of the hooks in order.
func (t Table) Hooks() []Hook { return append([]Hook(nil), t.hooks...) }

// All iterates the hooks in order.
func (t Table) All() iter.Seq2[int, Hook] {
	return func(yield func(int, Hook) bool) {
		for i, h := range t.hooks {
			if !yield(i, h) {
				return
			}
		}
	}
}

// Lookup returns the hook for ep.
func (t Table) Lookup(ep EntryPoint) (Hook, bool) {
	for _, h := range t.hooks {
		if h.EntryPoint == ep {
			return h, true
		}
	}
	return Hook{}, false
}
