//go:build windows

package intercept

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

func TestResolve(t *testing.T) {
	orig, err := Resolve(Hook{Module: Kernel32, Symbol: "GetCurrentProcessId"})
	require.NoError(t, err)
	assert.Equal(t, uintptr(windows.GetCurrentProcessId()), orig())

	_, err = Resolve(Hook{Module: Kernel32, Symbol: "NoSuchExport"})
	assert.Error(t, err)
}

func TestCallback(t *testing.T) {
	s, _ := newShim(t)
	h, ok := s.Table().Lookup(HeapAlloc)
	require.True(t, ok)

	cb := Callback(h)
	require.NotZero(t, cb)
	p := ProcTrampoline(cb)(0, 0, 64)
	assert.NotZero(t, p)
	assert.Equal(t, int64(1), s.Calls(HeapAlloc))
}
