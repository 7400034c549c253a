//go:build linux

package snapshot

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/joshuapare/procstate/internal/testutil"
	"github.com/joshuapare/procstate/mem/archive"
	"github.com/joshuapare/procstate/mem/query"
)

// Real mappings with real protections, resolved through /proc/self/maps.
func TestSerialize_LiveMappings(t *testing.T) {
	mem, err := unix.Mmap(-1, 0, 3*page, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Munmap(mem) })

	for i := range mem {
		mem[i] = byte(i/page + 1)
	}
	require.NoError(t, unix.Mprotect(mem[page:2*page], unix.PROT_READ))

	mods := ModuleSourceFunc(func() ([]query.Module, error) {
		return []query.Module{{Path: "/fake/module", Base: addrOf(mem), Size: 3 * page, Main: true}}, nil
	})

	src := testutil.NewArena(t, 1<<20)
	data, rep := save(t, New(src, Options{Modules: mods}))
	require.Equal(t, 2, rep.Regions)

	clear(mem[:page])
	clear(mem[2*page:])
	require.NoError(t, unix.Mprotect(mem[2*page:], unix.PROT_READ))

	dst := testutil.NewArena(t, 1<<20)
	r := archive.NewReader(bytes.NewReader(data))
	rep, err = New(dst, Options{Modules: mods}).Serialize(r)
	require.NoError(t, err)

	assert.Equal(t, uint64(len(data)), r.Offset())
	assert.Equal(t, 1, rep.Regions)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, bytes.Repeat([]byte{1}, page), mem[:page])
	assert.Equal(t, bytes.Repeat([]byte{2}, page), mem[page:2*page])
	assert.Equal(t, make([]byte, page), mem[2*page:])
}

// The executable's own writable pages are found through the system module list.
func TestRegions_MainModule(t *testing.T) {
	e := New(testutil.NewArena(t, 64<<10), Options{})
	regions, err := e.Regions()
	require.NoError(t, err)
	require.NotEmpty(t, regions)
	for _, r := range regions {
		assert.True(t, query.WritableSpan(query.System, r.Addr, uintptr(r.Size)))
	}
}
