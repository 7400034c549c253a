// Package testutil holds helpers shared by procstate tests.
package testutil

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/procstate/mem/arena"
)

// ErrNoMemory is returned by a failing Reserver.
var ErrNoMemory = errors.New("testutil: no memory")

// Reserver hands out Go-allocated memory instead of mapping pages, so arena
// tests need no platform support. It counts calls and can be told to fail.
type Reserver struct {
	calls atomic.Int32
	fail  atomic.Bool
	last  atomic.Uint64
}

var _ arena.Reserver = (*Reserver)(nil)

// Reserve returns size zeroed bytes, or ErrNoMemory while failing.
func (r *Reserver) Reserve(_ uintptr, size uint64) ([]byte, error) {
	r.calls.Add(1)
	if r.fail.Load() {
		return nil, ErrNoMemory
	}
	r.last.Store(size)
	return make([]byte, size), nil
}

// Calls returns the number of Reserve calls.
func (r *Reserver) Calls() int { return int(r.calls.Load()) }

// LastSize returns the size of the last successful reservation.
func (r *Reserver) LastSize() uint64 { return r.last.Load() }

// SetFail makes subsequent reservations fail or succeed.
func (r *Reserver) SetFail(fail bool) { r.fail.Store(fail) }

// NewArena returns an arena of size bytes backed by Go memory.
func NewArena(t testing.TB, size uint64) *arena.Arena {
	t.Helper()
	a, err := arena.New(arena.Options{Size: size, Reserver: &Reserver{}})
	require.NoError(t, err)
	return a
}
