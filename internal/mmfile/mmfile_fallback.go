//go:build !unix && !windows

// Package mmfile maps snapshot archives read-only so uncompressed arena images
// can be restored without an intermediate copy.
package mmfile

import "os"

// Map reads the whole file where no mapping API is available.
func Map(path string) ([]byte, func() error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return nil }, nil
}
