package arena

import (
	"fmt"
	"math/bits"

	"github.com/joshuapare/procstate/internal/buf"
)

// HeaderReserve is the size of the control block at the start of the arena and
// therefore the high-water mark of a freshly initialized arena.
const HeaderReserve = 1024

const (
	// Alignment of block headers and payloads.
	Alignment = 16

	blockHeader = 16 // size|flags word, previous-size word
	minBlock    = 32 // header plus two free-list links

	flagInUse    = 1 << 0
	flagPrevFree = 1 << 1
	flagMask     = Alignment - 1

	numBins = 48

	heapMagic uint64 = 0x3141_4e45_5241_5350 // "PSARENA1"
)

// Control block offsets.
const (
	ctlMagic     = 0
	ctlCapacity  = 8
	ctlTop       = 16
	ctlLive      = 24
	ctlLiveBytes = 32
	ctlFree      = 40
	ctlBins      = 64
)

// Compile-time check that the control block fits the reserved header.
var _ [HeaderReserve - (ctlBins + numBins*buf.WordSize)]struct{}

// heap is a boundary-tag allocator over mem. Every piece of state, including
// the bin heads, is stored in mem at offsets, so a byte copy of mem[:top] is a
// complete copy of the heap.
type heap struct {
	mem []byte
}

func (h *heap) word(off int) int         { return int(buf.U64(h.mem, off)) }
func (h *heap) setWord(off int, v int)   { buf.PutU64(h.mem, off, uint64(v)) }
func (h *heap) size(b int) int           { return h.word(b) &^ flagMask }
func (h *heap) flags(b int) int          { return h.word(b) & flagMask }
func (h *heap) setHeader(b, size, f int) { h.setWord(b, size|f) }
func (h *heap) setFlags(b, f int)        { h.setWord(b, h.size(b)|f) }
func (h *heap) prevSize(b int) int       { return h.word(b + 8) }
func (h *heap) setPrevSize(b, v int)     { h.setWord(b+8, v) }
func (h *heap) next(b int) int           { return h.word(b + blockHeader) }
func (h *heap) prev(b int) int           { return h.word(b + blockHeader + 8) }
func (h *heap) setNext(b, v int)         { h.setWord(b+blockHeader, v) }
func (h *heap) setPrev(b, v int)         { h.setWord(b+blockHeader+8, v) }
func (h *heap) top() int                 { return h.word(ctlTop) }
func (h *heap) setTop(v int)             { h.setWord(ctlTop, v) }
func (h *heap) binHead(bin int) int      { return h.word(ctlBins + bin*buf.WordSize) }
func (h *heap) setBinHead(bin, v int)    { h.setWord(ctlBins+bin*buf.WordSize, v) }

func (h *heap) init() {
	clear(h.mem[:HeaderReserve])
	buf.PutU64(h.mem, ctlMagic, heapMagic)
	h.setWord(ctlCapacity, len(h.mem))
	h.setTop(HeaderReserve)
}

// sane reports whether the control block can be trusted not to index outside mem.
// Restoring an archive taken from a larger arena can violate this.
func (h *heap) sane() bool {
	if buf.U64(h.mem, ctlMagic) != heapMagic {
		return false
	}
	top := h.top()
	return top >= HeaderReserve && top <= len(h.mem) && buf.IsAligned(top, Alignment)
}

// binOf maps a block size to its segregated list. Bin k holds sizes in
// [32<<k, 64<<k).
func binOf(size int) int {
	bin := bits.Len(uint(size)) - 6
	if bin < 0 {
		return 0
	}
	if bin >= numBins {
		return numBins - 1
	}
	return bin
}

// blockSize returns the block size that holds n payload bytes, or 0 if n cannot fit in mem.
func (h *heap) blockSize(n int) int {
	if n < 0 || n > len(h.mem) {
		return 0
	}
	s := buf.AlignUp(n+blockHeader, Alignment)
	if s < minBlock {
		s = minBlock
	}
	return s
}

func (h *heap) link(b int) {
	bin := binOf(h.size(b))
	head := h.binHead(bin)
	h.setNext(b, head)
	h.setPrev(b, 0)
	if head != 0 {
		h.setPrev(head, b)
	}
	h.setBinHead(bin, b)
	h.setWord(ctlFree, h.word(ctlFree)+1)
}

func (h *heap) unlink(b int) {
	next, prev := h.next(b), h.prev(b)
	if prev != 0 {
		h.setNext(prev, next)
	} else {
		h.setBinHead(binOf(h.size(b)), next)
	}
	if next != 0 {
		h.setPrev(next, prev)
	}
	h.setWord(ctlFree, h.word(ctlFree)-1)
}

func (h *heap) account(blocks, bytes int) {
	h.setWord(ctlLive, h.word(ctlLive)+blocks)
	h.setWord(ctlLiveBytes, h.word(ctlLiveBytes)+bytes)
}

// alloc returns the payload offset of a new block of at least n bytes, or 0.
func (h *heap) alloc(n int) int {
	need := h.blockSize(n)
	if need == 0 {
		return 0
	}
	if b := h.takeFree(need); b != 0 {
		h.place(b, need)
		h.account(1, h.size(b))
		return b + blockHeader
	}
	top := h.top()
	if need > len(h.mem)-top {
		return 0
	}
	// The block below top is never free, so prevFree stays clear.
	h.setHeader(top, need, flagInUse)
	h.setTop(top + need)
	h.account(1, need)
	return top + blockHeader
}

// takeFree unlinks the first free block of at least need bytes.
func (h *heap) takeFree(need int) int {
	for bin := binOf(need); bin < numBins; bin++ {
		for b := h.binHead(bin); b != 0; b = h.next(b) {
			if h.size(b) >= need {
				h.unlink(b)
				return b
			}
		}
	}
	return 0
}

// place marks the unlinked free block b in use, splitting off the tail when it
// is large enough to form its own block.
func (h *heap) place(b, need int) {
	s := h.size(b)
	after := b + s
	if s-need >= minBlock {
		h.setHeader(b, need, flagInUse)
		rem := b + need
		h.setHeader(rem, s-need, 0)
		h.link(rem)
		h.setPrevSize(after, s-need)
		return
	}
	h.setHeader(b, s, flagInUse)
	h.setFlags(after, h.flags(after)&^flagPrevFree)
}

// block returns the header offset for payload offset p when p addresses a live block.
func (h *heap) block(p int) (int, bool) {
	b := p - blockHeader
	top := h.top()
	if b < HeaderReserve || b >= top || !buf.Has(h.mem, b, top-b) || !buf.IsAligned(b, Alignment) {
		return 0, false
	}
	s := h.size(b)
	if h.flags(b)&flagInUse == 0 || s < minBlock || !buf.IsAligned(s, Alignment) || s > top-b {
		return 0, false
	}
	return b, true
}

// usable returns the payload capacity of the live block at p.
func (h *heap) usable(p int) (int, bool) {
	b, ok := h.block(p)
	if !ok {
		return 0, false
	}
	return h.size(b) - blockHeader, true
}

// free releases the live block at p, coalescing with free neighbours and top.
func (h *heap) free(p int) bool {
	b, ok := h.block(p)
	if !ok {
		return false
	}
	s := h.size(b)
	h.account(-1, -s)

	if h.flags(b)&flagPrevFree != 0 {
		ps := h.prevSize(b)
		b -= ps
		s += ps
		h.unlink(b)
	}
	after := b + s
	if after == h.top() {
		h.setTop(b)
		return true
	}
	if h.flags(after)&flagInUse == 0 {
		h.unlink(after)
		s += h.size(after)
		after = b + s
	}
	h.setHeader(b, s, 0)
	h.link(b)
	h.setPrevSize(after, s)
	h.setFlags(after, h.flags(after)|flagPrevFree)
	return true
}

// shrink trims the live block b to need bytes and frees the tail.
func (h *heap) shrink(b, need int) {
	s := h.size(b)
	if s-need < minBlock {
		return
	}
	h.setHeader(b, need, h.flags(b))
	rem := b + need
	h.setHeader(rem, s-need, flagInUse)
	h.account(1, 0)
	h.free(rem + blockHeader)
}

// realloc resizes the block at p, in place when the neighbour allows it.
func (h *heap) realloc(p, n int) int {
	if p == 0 {
		return h.alloc(n)
	}
	b, ok := h.block(p)
	if !ok {
		return 0
	}
	if n == 0 {
		h.free(p)
		return 0
	}
	need := h.blockSize(n)
	if need == 0 {
		return 0
	}
	s := h.size(b)
	if need <= s {
		h.shrink(b, need)
		return p
	}

	after := b + s
	top := h.top()
	switch {
	case after == top && need-s <= len(h.mem)-top:
		h.setHeader(b, need, h.flags(b))
		h.setTop(b + need)
		h.account(0, need-s)
		return p
	case after < top && h.flags(after)&flagInUse == 0 && s+h.size(after) >= need:
		ns := h.size(after)
		h.unlink(after)
		h.setHeader(b, s+ns, h.flags(b))
		next := b + s + ns
		h.setFlags(next, h.flags(next)&^flagPrevFree)
		h.account(0, ns)
		h.shrink(b, need)
		return p
	}

	q := h.alloc(n)
	if q == 0 {
		return 0
	}
	copy(h.mem[q:q+min(n, s-blockHeader)], h.mem[p:])
	h.free(p)
	return q
}

// check walks every block and free list and reports the first inconsistency.
func (h *heap) check() error {
	if !h.sane() {
		return fmt.Errorf("%w: bad control block", ErrCorrupt)
	}
	top := h.top()
	var live, liveBytes, free, prevSize int
	prevFree := false
	for b := HeaderReserve; b < top; {
		s, f := h.size(b), h.flags(b)
		if s < minBlock || !buf.IsAligned(s, Alignment) || s > top-b {
			return fmt.Errorf("%w: block 0x%x has size %d", ErrCorrupt, b, s)
		}
		if (f&flagPrevFree != 0) != prevFree {
			return fmt.Errorf("%w: block 0x%x prev-free flag mismatch", ErrCorrupt, b)
		}
		if prevFree && h.prevSize(b) != prevSize {
			return fmt.Errorf("%w: block 0x%x prev size %d, want %d", ErrCorrupt, b, h.prevSize(b), prevSize)
		}
		inUse := f&flagInUse != 0
		if inUse {
			live++
			liveBytes += s
		} else {
			if prevFree {
				return fmt.Errorf("%w: adjacent free blocks at 0x%x", ErrCorrupt, b)
			}
			free++
		}
		prevFree, prevSize = !inUse, s
		b += s
	}
	if prevFree {
		return fmt.Errorf("%w: free block below top", ErrCorrupt)
	}
	if live != h.word(ctlLive) || liveBytes != h.word(ctlLiveBytes) {
		return fmt.Errorf("%w: live counters %d/%d, walked %d/%d",
			ErrCorrupt, h.word(ctlLive), h.word(ctlLiveBytes), live, liveBytes)
	}
	if free != h.word(ctlFree) {
		return fmt.Errorf("%w: free counter %d, walked %d", ErrCorrupt, h.word(ctlFree), free)
	}

	listed := 0
	for bin := range numBins {
		prev := 0
		for b := h.binHead(bin); b != 0; b = h.next(b) {
			if b < HeaderReserve || b >= top || !buf.IsAligned(b, Alignment) {
				return fmt.Errorf("%w: bin %d links to 0x%x", ErrCorrupt, bin, b)
			}
			if h.flags(b)&flagInUse != 0 || binOf(h.size(b)) != bin || h.prev(b) != prev {
				return fmt.Errorf("%w: bin %d entry 0x%x", ErrCorrupt, bin, b)
			}
			if listed++; listed > free {
				return fmt.Errorf("%w: free lists cycle", ErrCorrupt)
			}
			prev = b
		}
	}
	if listed != free {
		return fmt.Errorf("%w: %d free blocks listed, %d walked", ErrCorrupt, listed, free)
	}
	return nil
}
