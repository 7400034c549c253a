package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/procstate/internal/buf"
	"github.com/joshuapare/procstate/internal/logger"
	"github.com/joshuapare/procstate/mem/archive"
	"github.com/joshuapare/procstate/mem/arena"
	"github.com/joshuapare/procstate/mem/snapshot"
	"github.com/joshuapare/procstate/pkg/memory"
)

// The demo index is the first allocation in a fresh arena:
//
//	[count][offset, length] x maxDemoWords
const (
	maxDemoWords    = 64
	demoIndexSize   = buf.WordSize + maxDemoWords*2*buf.WordSize
	demoIndexOffset = arena.HeaderReserve + arena.Alignment
)

var defaultDemoWords = []string{"procstate", "keeps", "this", "heap", "across", "runs"}

func init() {
	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Save and restore strings through an intercepted heap",
	}
	demoCmd.AddCommand(newDemoSaveCmd(), newDemoRestoreCmd())
	rootCmd.AddCommand(demoCmd)
}

type demoSaveOptions struct {
	size     string
	scope    string
	compress string
}

func newDemoSaveCmd() *cobra.Command {
	opts := demoSaveOptions{}
	cmd := &cobra.Command{
		Use:   "save <archive> [words...]",
		Short: "Allocate words through the heap shim and write a snapshot",
		Long: `The save command creates a memory module, stores each word in a block
obtained from the intercepted HeapAlloc, records their offsets in an index
block, and serializes the arena (plus the selected module regions) to a file.

Example:
  procstate demo save state.snap
  procstate demo save state.snap hello world --size 16MiB --compress none`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemoSave(args[0], args[1:], opts)
		},
	}
	cmd.Flags().StringVar(&opts.size, "size", "64MiB", "Arena size")
	cmd.Flags().StringVar(&opts.scope, "scope", "none", "Modules to capture: main, all, none, or comma-separated paths")
	cmd.Flags().StringVar(&opts.compress, "compress", archive.DefaultCompression.String(), "Archive compression: zstd or none")
	return cmd
}

func runDemoSave(path string, words []string, opts demoSaveOptions) error {
	if len(words) == 0 {
		words = defaultDemoWords
	}
	if len(words) > maxDemoWords {
		return fmt.Errorf("at most %d words, got %d", maxDemoWords, len(words))
	}
	size, err := memory.ParseSize(opts.size)
	if err != nil {
		return err
	}
	scope, err := snapshot.ParseScope(opts.scope)
	if err != nil {
		return err
	}
	compression, err := archive.ParseCompression(opts.compress)
	if err != nil {
		return err
	}

	m := memory.New(memory.WithMemorySize(size), memory.WithScope(scope), memory.WithLogger(logger.L))
	shim := m.Shim()

	index := shim.HeapAlloc(0, 0, demoIndexSize)
	if index == 0 {
		return errors.New("failed to allocate index block")
	}
	a := m.Arena()
	if off, _ := a.Offset(index); off != demoIndexOffset {
		return fmt.Errorf("index block at offset %d, want %d", off, demoIndexOffset)
	}
	idx := a.Bytes(index, demoIndexSize)
	buf.PutU64(idx, 0, uint64(len(words)))

	for i, w := range words {
		p := shim.HeapAlloc(0, 0, uintptr(len(w)))
		if p == 0 {
			return fmt.Errorf("arena exhausted storing word %d", i)
		}
		copy(a.Bytes(p, len(w)), w)
		off, _ := a.Offset(p)
		buf.PutU64(idx, buf.WordSize+i*2*buf.WordSize, uint64(off))
		buf.PutU64(idx, 2*buf.WordSize+i*2*buf.WordSize, uint64(len(w)))
		printVerbose("  stored %q at offset %d\n", w, off)
	}

	f, err := archive.Create(path, archive.FileOptions{Compression: compression})
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	rep, err := m.Snapshot(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if jsonOut {
		return printJSON(rep)
	}
	printInfo("Saved %d words to %s\n", len(words), path)
	printInfo("  Arena:   %d of %d bytes (base %s)\n", rep.ArenaBytes, rep.Capacity, hex(a.Base()))
	printInfo("  Regions: %d (%d bytes)\n", rep.Regions, rep.RegionBytes)
	return nil
}

func newDemoRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <archive>",
		Short: "Restore a demo snapshot into a fresh arena and print its words",
		Long: `The restore command creates a fresh memory module sized from the
archive, restores only the arena, and reads the words back through the
index block. Module regions are skipped: restoring them into a different
process image would overwrite live runtime state.

Example:
  procstate demo restore state.snap`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemoRestore(args[0])
		},
	}
}

type restoredWord struct {
	Offset int    `json:"offset"`
	Text   string `json:"text"`
}

func runDemoRestore(path string) error {
	manifest, err := readManifest(path)
	if err != nil {
		return err
	}

	m := memory.New(
		memory.WithMemorySize(manifest.Capacity),
		memory.WithScope(snapshot.NoModules),
		memory.WithLogger(logger.L),
	)
	f, err := archive.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()
	rep, err := m.Snapshot(f)
	if err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	printVerbose("Restored %d arena bytes, skipped %d regions\n", rep.ArenaBytes, rep.Skipped)

	words, err := readDemoWords(m.Arena())
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(words)
	}
	printInfo("Restored %d words from %s\n", len(words), path)
	for _, w := range words {
		printInfo("  %6d  %s\n", w.Offset, w.Text)
	}
	return nil
}

func readManifest(path string) (snapshot.Manifest, error) {
	f, err := archive.Open(path)
	if err != nil {
		return snapshot.Manifest{}, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()
	m, err := snapshot.Inspect(f)
	if err != nil {
		return m, fmt.Errorf("failed to read archive: %w", err)
	}
	return m, nil
}

func readDemoWords(a *arena.Arena) ([]restoredWord, error) {
	index := a.Pointer(demoIndexOffset)
	if n, ok := a.SizeOf(index); !ok || n < demoIndexSize {
		return nil, errors.New("archive has no demo index block")
	}
	idx := a.Bytes(index, demoIndexSize)
	count := buf.U64(idx, 0)
	if count > maxDemoWords {
		return nil, fmt.Errorf("demo index claims %d words", count)
	}

	words := make([]restoredWord, 0, count)
	for i := range int(count) {
		off := int(buf.U64(idx, buf.WordSize+i*2*buf.WordSize))
		n := int(buf.U64(idx, 2*buf.WordSize+i*2*buf.WordSize))
		p := a.Pointer(off)
		if usable, ok := a.SizeOf(p); !ok || uintptr(n) > usable {
			return nil, fmt.Errorf("word %d: offset %d is not a live block", i, off)
		}
		words = append(words, restoredWord{Offset: off, Text: string(a.Bytes(p, n))})
	}
	return words, nil
}
