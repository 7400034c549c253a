package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/procstate/mem/archive"
	"github.com/joshuapare/procstate/mem/snapshot"
)

func init() {
	rootCmd.AddCommand(newInspectCmd())
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Describe a snapshot archive without restoring it",
		Long: `The inspect command reads a snapshot archive and prints the arena
capacity, high-water mark and the module regions it contains.

Example:
  procstate inspect state.snap
  procstate inspect state.snap --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args[0])
		},
	}
}

type manifestJSON struct {
	Compression   string       `json:"compression"`
	Capacity      uint64       `json:"capacity"`
	HighWaterMark uint64       `json:"high_water_mark"`
	RegionBytes   uint64       `json:"region_bytes"`
	Regions       []regionJSON `json:"regions"`
}

func runInspect(path string) error {
	f, err := archive.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	m, err := snapshot.Inspect(f)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}

	if jsonOut {
		out := manifestJSON{
			Compression:   f.Compression().String(),
			Capacity:      m.Capacity,
			HighWaterMark: m.HighWaterMark,
			RegionBytes:   m.RegionBytes(),
			Regions:       make([]regionJSON, 0, len(m.Regions)),
		}
		for _, r := range m.Regions {
			out.Regions = append(out.Regions, regionJSON{Addr: hex(r.Addr), Size: r.Size})
		}
		return printJSON(out)
	}

	printInfo("\nSnapshot: %s\n", path)
	printInfo("  Compression:     %s\n", f.Compression())
	printInfo("  Arena capacity:  %d bytes\n", m.Capacity)
	printInfo("  High-water mark: %d bytes\n", m.HighWaterMark)
	printInfo("  Module regions:  %d (%d bytes)\n", len(m.Regions), m.RegionBytes())
	for _, r := range m.Regions {
		printVerbose("    %18s %14d\n", hex(r.Addr), r.Size)
	}
	return nil
}
