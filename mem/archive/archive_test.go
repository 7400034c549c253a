package archive

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	count uint64
	addr  uintptr
	data  []byte
	pad   uint64
	tail  uint64
}

// transfer is one traversal used for both directions.
func transfer(ar Archive, r *record) error {
	if err := ar.Size(&r.count); err != nil {
		return err
	}
	if err := ar.Pointer(&r.addr); err != nil {
		return err
	}
	if ar.Mode() == ModeReader {
		r.data = make([]byte, r.count)
	}
	if err := ar.Bytes(r.data); err != nil {
		return err
	}
	if err := ar.Skip(r.pad); err != nil {
		return err
	}
	return ar.Size(&r.tail)
}

func TestStream_SymmetricTraversal(t *testing.T) {
	in := record{count: 5, addr: 0x7f00_1000, data: []byte("hello"), pad: 3, tail: 42}

	var b bytes.Buffer
	w := NewWriter(&b)
	require.NoError(t, transfer(w, &in))
	assert.Equal(t, uint64(8+8+5+3+8), w.Offset())
	assert.Equal(t, ModeWriter, w.Mode())

	out := record{pad: 3}
	r := NewReader(bytes.NewReader(b.Bytes()))
	require.NoError(t, transfer(r, &out))
	assert.Equal(t, w.Offset(), r.Offset())
	assert.Equal(t, in, out)
}

func TestStream_LittleEndianWords(t *testing.T) {
	var b bytes.Buffer
	w := NewWriter(&b)
	v := uint64(0x0102030405060708)
	require.NoError(t, w.Size(&v))
	p := uintptr(0x10)
	require.NoError(t, w.Pointer(&p))

	assert.Equal(t, []byte{
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
		0x10, 0, 0, 0, 0, 0, 0, 0,
	}, b.Bytes())
}

func TestStream_SkipWritesZeros(t *testing.T) {
	var b bytes.Buffer
	w := NewWriter(&b)
	require.NoError(t, w.Skip(100_000))
	assert.Equal(t, uint64(100_000), w.Offset())
	assert.Equal(t, make([]byte, 100_000), b.Bytes())
}

func TestStream_Truncated(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2, 3}))
	var v uint64
	err := r.Size(&v)
	require.ErrorIs(t, err, ErrTruncated)
	assert.Equal(t, uint64(3), r.Offset())

	r = NewReader(bytes.NewReader(make([]byte, 10)))
	require.ErrorIs(t, r.Skip(11), ErrTruncated)
	assert.Equal(t, uint64(10), r.Offset())

	r = NewReader(bytes.NewReader(nil))
	require.ErrorIs(t, r.Bytes(make([]byte, 1)), ErrTruncated)
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestStream_WriteError(t *testing.T) {
	w := NewWriter(failWriter{})
	v := uint64(1)
	err := w.Size(&v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "writer", ModeWriter.String())
	assert.Equal(t, "reader", ModeReader.String())
	assert.Equal(t, "Mode(7)", Mode(7).String())
}
