package archive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/joshuapare/procstate/internal/mmfile"
)

// Compression selects how a snapshot file is encoded.
type Compression int

const (
	// NoCompression stores fields as-is; such files are read through a memory mapping.
	NoCompression Compression = iota
	// ZstdCompression streams fields through a Zstandard encoder.
	ZstdCompression
)

// DefaultCompression is the encoding ParseCompression returns for "" and the
// default of the CLI --compress flag.
const DefaultCompression = ZstdCompression

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case ZstdCompression:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

// ParseCompression accepts "none", "zstd" or "".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "":
		return DefaultCompression, nil
	case "zstd":
		return ZstdCompression, nil
	case "none", "off":
		return NoCompression, nil
	}
	return 0, fmt.Errorf("archive: unknown compression %q", s)
}

// zstd frame magic, little-endian 0xFD2FB528.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// FileOptions configures Create.
type FileOptions struct {
	Compression Compression
	Level       zstd.EncoderLevel // Default: zstd.SpeedDefault
}

// File is a Stream backed by a snapshot file.
type File struct {
	*Stream
	compression Compression
	closers     []func() error
	closed      bool
}

// Create opens path for writing and returns a writer-mode archive.
func Create(path string, opts FileOptions) (*File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	af := &File{compression: opts.Compression}
	var w io.Writer = bw

	if af.compression == ZstdCompression {
		level := opts.Level
		if level == 0 {
			level = zstd.SpeedDefault
		}
		enc, err := zstd.NewWriter(bw, zstd.WithEncoderLevel(level))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("archive: zstd encoder: %w", err)
		}
		w = enc
		af.closers = append(af.closers, enc.Close)
	}
	af.closers = append(af.closers, bw.Flush, f.Close)
	af.Stream = NewWriter(w)
	return af, nil
}

// Open returns a reader-mode archive over the file at path. Compression is
// detected from the file contents.
func Open(path string) (*File, error) {
	data, release, err := mmfile.Map(path)
	if err != nil {
		return nil, err
	}
	af := &File{compression: NoCompression}
	var r io.Reader = bytes.NewReader(data)

	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			release()
			return nil, fmt.Errorf("archive: zstd decoder: %w", err)
		}
		r = dec
		af.compression = ZstdCompression
		af.closers = append(af.closers, func() error { dec.Close(); return nil })
	}
	af.closers = append(af.closers, release)
	af.Stream = NewReader(r)
	return af, nil
}

// Compression reports how the file is encoded.
func (f *File) Compression() Compression { return f.compression }

// Close flushes a writer and releases the file. Writers must be closed for the
// file to be complete.
func (f *File) Close() error {
	if f.closed {
		return ErrClosed
	}
	f.closed = true
	var errs []error
	for _, c := range f.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
