package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/procstate/mem/archive"
	"github.com/joshuapare/procstate/mem/snapshot"
	"github.com/joshuapare/procstate/pkg/memory"
)

func saveDemo(t *testing.T, compress string, words ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.snap")
	_, err := captureOutput(t, func() error {
		return runDemoSave(path, words, demoSaveOptions{size: "1MiB", scope: "none", compress: compress})
	})
	require.NoError(t, err)
	return path
}

func TestDemoSaveRestore(t *testing.T) {
	for _, compress := range []string{"zstd", "none"} {
		t.Run(compress, func(t *testing.T) {
			path := saveDemo(t, compress, "hello", "snapshot", "world")

			out, err := captureOutput(t, func() error { return runDemoRestore(path) })
			require.NoError(t, err)
			assert.Contains(t, out, "Restored 3 words")
			assert.Contains(t, out, "hello")
			assert.Contains(t, out, "snapshot")
			assert.Contains(t, out, "world")
		})
	}
}

func TestDemoRestore_JSON(t *testing.T) {
	path := saveDemo(t, "zstd")
	withJSON(t)

	out, err := captureOutput(t, func() error { return runDemoRestore(path) })
	require.NoError(t, err)

	var words []restoredWord
	assertJSON(t, out, &words)
	require.Len(t, words, len(defaultDemoWords))
	for i, w := range words {
		assert.Equal(t, defaultDemoWords[i], w.Text)
		assert.Greater(t, w.Offset, demoIndexOffset)
	}
}

func TestDemoSave_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.snap")
	many := make([]string, maxDemoWords+1)
	for i := range many {
		many[i] = "w"
	}
	assert.Error(t, runDemoSave(path, many, demoSaveOptions{size: "1MiB", scope: "none"}))
	assert.ErrorIs(t, runDemoSave(path, nil, demoSaveOptions{size: "big", scope: "none"}), memory.ErrBadSize)
	assert.Error(t, runDemoSave(path, nil, demoSaveOptions{size: "1MiB", scope: "none", compress: "lz4"}))
}

func TestDemoRestore_NoIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.snap")
	m := memory.New(memory.WithMemorySize(1<<20), memory.WithScope(snapshot.NoModules))
	f, err := archive.Create(path, archive.FileOptions{})
	require.NoError(t, err)
	require.NoError(t, m.Serialize(f))
	require.NoError(t, f.Close())

	_, err = captureOutput(t, func() error { return runDemoRestore(path) })
	assert.ErrorContains(t, err, "no demo index")
}

func TestInspect(t *testing.T) {
	path := saveDemo(t, "zstd", "one")

	out, err := captureOutput(t, func() error { return runInspect(path) })
	require.NoError(t, err)
	assert.Contains(t, out, "Compression:     zstd")
	assert.Contains(t, out, "Arena capacity:  1,048,576 bytes")
	assert.Contains(t, out, "Module regions:  0 (0 bytes)")

	withJSON(t)
	out, err = captureOutput(t, func() error { return runInspect(path) })
	require.NoError(t, err)
	var m manifestJSON
	assertJSON(t, out, &m)
	assert.Equal(t, uint64(1<<20), m.Capacity)
	assert.Greater(t, m.HighWaterMark, uint64(demoIndexOffset+demoIndexSize))
	assert.Empty(t, m.Regions)
}

func TestInspect_Missing(t *testing.T) {
	err := runInspect(filepath.Join(t.TempDir(), "missing.snap"))
	assert.ErrorContains(t, err, "failed to open archive")
}
