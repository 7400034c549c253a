package archive

import "errors"

var (
	// ErrTruncated indicates the stream ended inside a field.
	ErrTruncated = errors.New("archive: truncated")

	// ErrOverflow indicates a field value that does not fit this platform.
	ErrOverflow = errors.New("archive: value overflows platform word")

	// ErrClosed indicates use of a closed file.
	ErrClosed = errors.New("archive: file closed")
)
