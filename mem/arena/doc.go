// Package arena provides the single fixed-address heap that backs every
// intercepted allocation of the process.
//
// # Overview
//
// An Arena reserves one contiguous read-write-execute region at an address the
// operating system chooses (a null hint), lays a general-purpose heap over it and
// never moves or releases it. Because the region never relocates, pointers stored
// inside it stay meaningful after the bytes are written out and read back.
//
//	a, err := arena.New(arena.Options{Size: 64 << 20})
//	if err != nil {
//	    return err
//	}
//	p := a.Allocate(128)
//	copy(a.Bytes(p, 128), payload)
//	a.Release(p)
//
// # Reservation
//
// New asks for Options.Size bytes. When the request fails it halves the size and
// retries, stopping with ErrReserveFailed once the size would fall below
// Options.MinSize or Options.MaxAttempts reservations were tried.
//
// # Layout
//
// All bookkeeping lives inside the arena itself and is addressed by offsets:
//
//	0x000  control block (magic, capacity, top, counters, free-list bins)
//	0x400  first block                                   <- HeaderReserve
//	...    [size|flags][prev size][payload ...] blocks
//	top    never-allocated space up to capacity
//
// Blocks are 16-byte aligned with a 16-byte header. A free block keeps its
// free-list links in the first 16 payload bytes and is always followed by an
// allocated block; a block freed next to top is folded back into top.
//
// # High-Water Mark
//
// HighWaterMark is the largest offset-plus-requested-size ever handed out. It
// only grows with allocation traffic. Every byte of allocator state lies below
// it, so persisting [Base, Base+HighWaterMark) captures the full heap.
//
// # Thread Safety
//
// Allocate, Reallocate, Release, SizeOf, Validate and Check serialize on one
// mutex. Base, Capacity and HighWaterMark are lock-free. Bytes inside allocated
// blocks are plain memory and are not protected by the arena.
package arena
