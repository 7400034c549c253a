// Package intercept provides replacement implementations for the Win32 heap
// and virtual-memory entry points, and the registry that describes them to a
// hook installer.
//
// Heap entry points (HeapAlloc, HeapReAlloc, HeapFree, HeapValidate, HeapSize)
// route every request to a Heap, normally the process arena, ignoring the heap
// handle and flags. Virtual-memory entry points (VirtualAlloc, VirtualFree and
// their Ex variants) forward unchanged to the original functions captured at
// install time.
//
// Every replacement takes and returns uintptr words so it can be turned into
// a stdcall callback:
//
//	s := intercept.New(heap, nil)
//	if err := s.Install(installer); err != nil {
//	    return err
//	}
//	for _, h := range s.Table().Hooks() {
//	    fmt.Println(h.Module, h.Symbol, h.Kind)
//	}
//
// Installing the hooks into the process (import-table patching, detours) is
// the job of the Installer and is not part of this package.
package intercept
