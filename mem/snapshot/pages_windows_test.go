//go:build windows

package snapshot

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

// mapPages returns n committed read-write pages outside the Go heap.
func mapPages(t *testing.T, n int) []byte {
	t.Helper()
	addr, err := windows.VirtualAlloc(0, uintptr(n*page), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	require.NoError(t, err)
	t.Cleanup(func() { _ = windows.VirtualFree(addr, 0, windows.MEM_RELEASE) })
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n*page)
}
