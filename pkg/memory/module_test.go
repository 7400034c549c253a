package memory

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/procstate/internal/testutil"
	"github.com/joshuapare/procstate/mem/archive"
	"github.com/joshuapare/procstate/mem/arena"
	"github.com/joshuapare/procstate/mem/intercept"
	"github.com/joshuapare/procstate/mem/snapshot"
)

func newModule(t *testing.T, opts ...Option) (*Module, *testutil.Reserver) {
	t.Helper()
	r := &testutil.Reserver{}
	base := []Option{WithMemorySize(1 << 20), WithReserver(r), WithScope(snapshot.NoModules)}
	return New(append(base, opts...)...), r
}

func TestModule_Identity(t *testing.T) {
	m, _ := newModule(t)
	assert.Equal(t, "memory", m.Name())
	assert.Equal(t, 9, m.Hooks().Len())
	assert.Same(t, m.Shim(), m.Shim())
	assert.Nil(t, m.Arena())
}

func TestModule_InitializeIdempotent(t *testing.T) {
	m, r := newModule(t)
	require.NoError(t, m.Initialize())
	a := m.Arena()
	require.NotNil(t, a)

	require.NoError(t, m.Initialize())
	assert.Same(t, a, m.Arena())
	assert.Equal(t, 1, r.Calls())
	assert.Equal(t, uint64(arena.HeaderReserve), a.HighWaterMark())
}

func TestModule_InitializeRetriesAfterFailure(t *testing.T) {
	m, r := newModule(t, WithMinMemorySize(1<<19))
	r.SetFail(true)
	err := m.Initialize()
	require.ErrorIs(t, err, arena.ErrReserveFailed)
	assert.Nil(t, m.Arena())
	assert.Zero(t, m.Shim().HeapAlloc(0, 0, 16), "heap calls fail without an arena")

	r.SetFail(false)
	require.NoError(t, m.Initialize())
	assert.NotNil(t, m.Arena())
}

func TestModule_LazyInitFromHeapCall(t *testing.T) {
	m, r := newModule(t)
	s := m.Shim()

	p := s.HeapAlloc(0, 0, 64)
	require.NotZero(t, p)
	require.NotNil(t, m.Arena())
	assert.True(t, m.Arena().Contains(p))
	assert.Equal(t, intercept.True, s.HeapFree(0, 0, p))
	assert.Equal(t, 1, r.Calls())
}

func TestModule_ConcurrentLazyInit(t *testing.T) {
	m, r := newModule(t)
	s := m.Shim()

	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			for range 100 {
				p := s.HeapAlloc(0, 0, 48)
				if p == 0 {
					return errors.New("allocation failed")
				}
				if s.HeapFree(0, 0, p) != intercept.True {
					return errors.New("free failed")
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, r.Calls())
	assert.Equal(t, intercept.True, s.HeapValidate(0, 0, 0))
	assert.Equal(t, int64(1600), s.Calls(intercept.HeapAlloc))
}

func TestModule_HandleMessage(t *testing.T) {
	m, r := newModule(t)

	assert.True(t, m.HandleMessage(Message{Command: CmdSetMemorySize, Value: String("256KiB")}))
	assert.False(t, m.HandleMessage(Message{Command: "setFrobnication", Value: Uint(1)}))
	assert.True(t, m.HandleMessage(Message{Command: CmdSetMemorySize, Value: String("lots")}), "recognized but invalid")

	require.NoError(t, m.Initialize())
	assert.Equal(t, uint64(256<<10), r.LastSize())
	assert.Equal(t, uint64(256<<10), m.Arena().Capacity())

	// Too late to matter, but still accepted.
	assert.True(t, m.HandleMessage(Message{Command: CmdSetMemorySize, Value: Uint(1 << 30)}))
	assert.Equal(t, uint64(256<<10), m.Arena().Capacity())
}

func TestModule_SerializeFresh(t *testing.T) {
	m, _ := newModule(t)
	var out bytes.Buffer
	require.NoError(t, m.Serialize(archive.NewWriter(&out)))
	assert.Equal(t, 8+8+arena.HeaderReserve+8, out.Len())
	assert.NotNil(t, m.Arena(), "serialize initializes")
}

func TestModule_SaveRestore(t *testing.T) {
	saver, _ := newModule(t)
	s := saver.Shim()
	words := []string{"alpha", "bravo", "charlie", "delta"}
	offsets := make([]int, len(words))
	for i, w := range words {
		p := s.HeapAlloc(0, 0, uintptr(len(w)))
		require.NotZero(t, p)
		copy(saver.Arena().Bytes(p, len(w)), w)
		offsets[i], _ = saver.Arena().Offset(p)
	}

	var out bytes.Buffer
	rep, err := saver.Snapshot(archive.NewWriter(&out))
	require.NoError(t, err)
	assert.Equal(t, saver.Arena().HighWaterMark(), rep.ArenaBytes)

	restorer, _ := newModule(t)
	require.NoError(t, restorer.Serialize(archive.NewReader(&out)))
	a := restorer.Arena()
	for i, w := range words {
		p := a.Pointer(offsets[i])
		assert.True(t, a.Validate(p))
		assert.Equal(t, w, string(a.Bytes(p, len(w))))
	}
	assert.Equal(t, intercept.True, restorer.Shim().HeapValidate(0, 0, 0))
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv(EnvMemorySize, "2MiB")
	r := &testutil.Reserver{}
	m := New(append(OptionsFromEnv(), WithReserver(r))...)
	require.NoError(t, m.Initialize())
	assert.Equal(t, uint64(2<<20), m.Arena().Capacity())

	t.Setenv(EnvMemorySize, "garbage")
	assert.Empty(t, OptionsFromEnv())
}

func TestDefaultSize(t *testing.T) {
	m := New()
	assert.Equal(t, arena.DefaultSize, m.opts.size)
	assert.Equal(t, "main", m.opts.scope.String())
}
