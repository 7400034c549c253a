package intercept

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/procstate/internal/testutil"
	"github.com/joshuapare/procstate/mem/arena"
)

func newShim(t *testing.T) (*Shim, *arena.Arena) {
	t.Helper()
	a := testutil.NewArena(t, 1<<20)
	return New(a, nil), a
}

func TestTable_Order(t *testing.T) {
	s, _ := newShim(t)
	table := s.Table()
	require.Equal(t, 9, table.Len())

	var symbols []string
	for i, h := range table.All() {
		assert.Equal(t, EntryPoint(i), h.EntryPoint)
		assert.Equal(t, Kernel32, h.Module)
		assert.NotNil(t, h.Replacement)
		symbols = append(symbols, h.Symbol)
	}
	assert.Equal(t, []string{
		"HeapAlloc", "HeapReAlloc", "HeapFree", "HeapValidate", "HeapSize",
		"VirtualAlloc", "VirtualFree", "VirtualAllocEx", "VirtualFreeEx",
	}, symbols)

	h, ok := table.Lookup(VirtualFree)
	require.True(t, ok)
	assert.Equal(t, KindPassThrough, h.Kind)
	h, ok = table.Lookup(HeapSize)
	require.True(t, ok)
	assert.Equal(t, KindHeap, h.Kind)
}

func TestTable_HooksIsACopy(t *testing.T) {
	s, _ := newShim(t)
	hooks := s.Table().Hooks()
	hooks[0].Symbol = "mutated"
	assert.Equal(t, "HeapAlloc", s.Table().Hooks()[0].Symbol)
}

func TestShim_HeapEntryPoints(t *testing.T) {
	s, a := newShim(t)
	const handle, flags = 0xdead, 0x8

	p := s.HeapAlloc(handle, flags, 100)
	require.NotZero(t, p)
	assert.True(t, a.Contains(p))
	assert.GreaterOrEqual(t, s.HeapSize(handle, flags, p), uintptr(100))
	assert.Equal(t, True, s.HeapValidate(handle, flags, p))
	assert.Equal(t, True, s.HeapValidate(handle, flags, 0), "whole-heap check")

	q := s.HeapReAlloc(handle, flags, p, 5000)
	require.NotZero(t, q)
	assert.GreaterOrEqual(t, a.HighWaterMark(), uint64(q-a.Base())+5000)

	assert.Equal(t, True, s.HeapFree(handle, flags, q))
	assert.Equal(t, False, s.HeapFree(handle, flags, q))
	assert.Equal(t, False, s.HeapValidate(handle, flags, q))
	assert.Equal(t, SizeFailed, s.HeapSize(handle, flags, q))

	assert.Equal(t, int64(1), s.Calls(HeapAlloc))
	assert.Equal(t, int64(2), s.Calls(HeapFree))
	assert.Equal(t, int64(3), s.Calls(HeapValidate))
}

func TestShim_PassThroughUnbound(t *testing.T) {
	s, _ := newShim(t)
	assert.Zero(t, s.VirtualAlloc(0, 4096, 0x3000, 0x04))
	assert.Zero(t, s.VirtualFree(0x1000, 0, 0x8000))
	assert.Equal(t, int64(1), s.Calls(VirtualAlloc))
}

func TestShim_InstallBindsOriginals(t *testing.T) {
	s, _ := newShim(t)

	var seen []string
	var got [][]uintptr
	inst := InstallerFunc(func(h Hook) (Trampoline, error) {
		seen = append(seen, h.Symbol)
		if h.Kind != KindPassThrough {
			return nil, nil
		}
		ep := h.EntryPoint
		return func(args ...uintptr) uintptr {
			got = append(got, append([]uintptr{uintptr(ep)}, args...))
			return 0x7000
		}, nil
	})
	require.NoError(t, s.Install(inst))
	assert.Len(t, seen, 9)
	assert.Nil(t, s.Original(HeapAlloc))
	assert.NotNil(t, s.Original(VirtualFreeEx))

	assert.Equal(t, uintptr(0x7000), s.VirtualAlloc(1, 2, 3, 4))
	assert.Equal(t, uintptr(0x7000), s.VirtualFree(5, 6, 7))
	assert.Equal(t, uintptr(0x7000), s.VirtualAllocEx(8, 9, 10, 11, 12))
	assert.Equal(t, uintptr(0x7000), s.VirtualFreeEx(13, 14, 15, 16))
	assert.Equal(t, [][]uintptr{
		{uintptr(VirtualAlloc), 1, 2, 3, 4},
		{uintptr(VirtualFree), 5, 6, 7},
		{uintptr(VirtualAllocEx), 8, 9, 10, 11, 12},
		{uintptr(VirtualFreeEx), 13, 14, 15, 16},
	}, got)

	s.Bind(VirtualAlloc, nil)
	assert.Zero(t, s.VirtualAlloc(1, 2, 3, 4))
}

func TestShim_InstallFailure(t *testing.T) {
	s, _ := newShim(t)
	boom := errors.New("patch refused")
	err := s.Install(InstallerFunc(func(h Hook) (Trampoline, error) {
		if h.EntryPoint == HeapFree {
			return nil, boom
		}
		return nil, nil
	}))
	require.ErrorIs(t, err, ErrInstall)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "kernel32.dll!HeapFree")
}

// corruptHeap reports every whole-heap check as failed.
type corruptHeap struct{ Heap }

func (corruptHeap) Check() error { return arena.ErrCorrupt }

func TestShim_HeapValidateReportsCorruption(t *testing.T) {
	_, a := newShim(t)
	s := New(corruptHeap{a}, nil)
	assert.Equal(t, False, s.HeapValidate(0, 0, 0))
}

func TestEntryPoint_String(t *testing.T) {
	assert.Equal(t, "HeapReAlloc", HeapReAlloc.String())
	assert.Equal(t, "EntryPoint(42)", EntryPoint(42).String())
	assert.Len(t, EntryPoints(), 9)
	assert.Equal(t, "pass-through", VirtualAllocEx.Kind().String())
}
