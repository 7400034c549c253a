//go:build windows

package intercept

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/windows"
)

// Callback returns a stdcall-callable address for h's replacement, suitable
// for writing into an import table or detour.
func Callback(h Hook) uintptr {
	return windows.NewCallback(h.Replacement)
}

// ProcTrampoline returns a Trampoline that calls the function at addr.
func ProcTrampoline(addr uintptr) Trampoline {
	return func(args ...uintptr) uintptr {
		r, _, _ := syscall.SyscallN(addr, args...)
		return r
	}
}

// Resolve looks up h's current export and wraps it as a Trampoline. Installers
// call it before patching to capture the original.
func Resolve(h Hook) (Trampoline, error) {
	proc := windows.NewLazySystemDLL(h.Module).NewProc(h.Symbol)
	if err := proc.Find(); err != nil {
		return nil, fmt.Errorf("intercept: resolve %s: %w", h, err)
	}
	return ProcTrampoline(proc.Addr()), nil
}
