//go:build windows

package arena

import (
	"math"
	"unsafe"

	"golang.org/x/sys/windows"
)

// SystemReserver commits PAGE_EXECUTE_READWRITE memory with VirtualAlloc.
var SystemReserver Reserver = ReserverFunc(virtualAllocReserve)

func virtualAllocReserve(hint uintptr, size uint64) ([]byte, error) {
	if size > math.MaxInt {
		return nil, ErrTooLarge
	}
	addr, err := windows.VirtualAlloc(hint, uintptr(size),
		windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size)), nil
}
