// Package buf contains little-endian word helpers and bounds-checked slicing
// used by the arena heap and the archive stream.
package buf

import "encoding/binary"

// WordSize is the width of every fixed-size field written by this module.
// Fields are 8 bytes on all platforms so 32-bit and 64-bit snapshots share
// one layout.
const WordSize = 8

// PutU64 writes v at b[off:off+8] in little-endian order.
func PutU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+WordSize], v)
}

// U64 reads a little-endian uint64 at b[off:off+8].
func U64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+WordSize])
}

// AlignUp rounds n up to the next multiple of align. align must be a power of two.
//
//	AlignUp(1, 16)  = 16
//	AlignUp(16, 16) = 16
//	AlignUp(17, 16) = 32
func AlignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// IsAligned reports whether n is a multiple of align.
func IsAligned(n, align int) bool {
	return n&(align-1) == 0
}
