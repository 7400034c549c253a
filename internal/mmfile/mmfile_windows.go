//go:build windows

// Package mmfile maps snapshot archives read-only so uncompressed arena images
// can be restored without an intermediate copy.
package mmfile

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Map maps the file at path read-only and returns its contents with a release func.
func Map(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := info.Size()
	if size == 0 {
		return []byte{}, noop, nil
	}
	if uint64(size) > uint64(^uintptr(0)>>1) {
		return nil, nil, fmt.Errorf("mmfile: %s too large to map (%d bytes)", path, size)
	}

	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY,
		uint32(uint64(size)>>32), uint32(size), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("mmfile: CreateFileMapping %s: %w", path, err)
	}
	// The view keeps the section alive after the handle is closed.
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		return nil, nil, fmt.Errorf("mmfile: MapViewOfFile %s: %w", path, err)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
	released := false
	release := func() error {
		if released {
			return nil
		}
		released = true
		return windows.UnmapViewOfFile(addr)
	}
	return data, release, nil
}

func noop() error { return nil }
