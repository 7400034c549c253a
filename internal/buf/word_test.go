package buf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordRoundTrip(t *testing.T) {
	data := make([]byte, 24)
	PutU64(data, 8, 0x0123456789abcdef)

	require.Equal(t, uint64(0x0123456789abcdef), U64(data, 8))
	assert.Equal(t, byte(0xef), data[8], "low byte first")
	assert.Equal(t, byte(0x01), data[15], "high byte last")
	assert.Zero(t, U64(data, 0))
	assert.Zero(t, U64(data, 16))
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want int
	}{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{1023, 1024, 1024},
		{4097, 4096, 8192},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AlignUp(tt.n, tt.align), "AlignUp(%d, %d)", tt.n, tt.align)
	}
}

func TestIsAligned(t *testing.T) {
	assert.True(t, IsAligned(0, 16))
	assert.True(t, IsAligned(1024, 16))
	assert.False(t, IsAligned(1032, 16))
}
