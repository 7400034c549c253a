// Package archive provides the bidirectional field stream that snapshots are
// written to and read from.
//
// A single traversal drives both directions: in writer mode each call emits the
// field, in reader mode the same call fills it. Fixed-size fields are 8-byte
// little-endian on every platform, so the layout is
//
//	Size / Pointer   8 bytes
//	Bytes(p)         len(p) raw bytes
//	Skip(n)          n bytes (zeros when writing)
package archive

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/joshuapare/procstate/internal/buf"
)

// Mode is the direction of an archive.
type Mode int

const (
	// ModeWriter emits fields.
	ModeWriter Mode = iota
	// ModeReader consumes fields.
	ModeReader
)

func (m Mode) String() string {
	switch m {
	case ModeWriter:
		return "writer"
	case ModeReader:
		return "reader"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Archive is one direction of a field stream.
type Archive interface {
	Mode() Mode
	// Size transfers a 64-bit count.
	Size(v *uint64) error
	// Pointer transfers an address as a 64-bit field.
	Pointer(v *uintptr) error
	// Bytes transfers len(p) raw bytes.
	Bytes(p []byte) error
	// Skip advances past n bytes, writing zeros in writer mode.
	Skip(n uint64) error
}

var zeros [32 << 10]byte

// Stream is an Archive over an io.Writer or io.Reader.
type Stream struct {
	mode Mode
	w    io.Writer
	r    io.Reader
	off  uint64
	word [buf.WordSize]byte
}

var _ Archive = (*Stream)(nil)

// NewWriter returns a writer-mode stream.
func NewWriter(w io.Writer) *Stream { return &Stream{mode: ModeWriter, w: w} }

// NewReader returns a reader-mode stream.
func NewReader(r io.Reader) *Stream { return &Stream{mode: ModeReader, r: r} }

// Mode reports the stream direction.
func (s *Stream) Mode() Mode { return s.mode }

// Offset returns the number of bytes transferred so far.
func (s *Stream) Offset() uint64 { return s.off }

func (s *Stream) Size(v *uint64) error {
	if s.mode == ModeWriter {
		buf.PutU64(s.word[:], 0, *v)
		return s.write(s.word[:])
	}
	if err := s.read(s.word[:]); err != nil {
		return err
	}
	*v = buf.U64(s.word[:], 0)
	return nil
}

func (s *Stream) Pointer(v *uintptr) error {
	if s.mode == ModeWriter {
		u := uint64(*v)
		return s.Size(&u)
	}
	at := s.off
	var u uint64
	if err := s.Size(&u); err != nil {
		return err
	}
	if uint64(uintptr(u)) != u {
		return fmt.Errorf("%w: pointer %#x at offset %d", ErrOverflow, u, at)
	}
	*v = uintptr(u)
	return nil
}

func (s *Stream) Bytes(p []byte) error {
	if s.mode == ModeWriter {
		return s.write(p)
	}
	return s.read(p)
}

func (s *Stream) Skip(n uint64) error {
	if s.mode == ModeWriter {
		for n > 0 {
			chunk := min(n, uint64(len(zeros)))
			if err := s.write(zeros[:chunk]); err != nil {
				return err
			}
			n -= chunk
		}
		return nil
	}
	if n > math.MaxInt64 {
		return fmt.Errorf("%w: skip of %d bytes at offset %d", ErrOverflow, n, s.off)
	}
	got, err := io.CopyN(io.Discard, s.r, int64(n))
	s.off += uint64(got)
	if err != nil {
		return s.readErr(err)
	}
	return nil
}

func (s *Stream) write(p []byte) error {
	n, err := s.w.Write(p)
	s.off += uint64(n)
	if err != nil {
		return fmt.Errorf("archive: write at offset %d: %w", s.off, err)
	}
	return nil
}

func (s *Stream) read(p []byte) error {
	n, err := io.ReadFull(s.r, p)
	s.off += uint64(n)
	if err != nil {
		return s.readErr(err)
	}
	return nil
}

func (s *Stream) readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w at offset %d", ErrTruncated, s.off)
	}
	return fmt.Errorf("archive: read at offset %d: %w", s.off, err)
}
