package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/procstate/mem/query"
)

func init() {
	rootCmd.AddCommand(newModulesCmd())
}

func newModulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the images loaded into this process",
		Long: `The modules command lists every executable image mapped into the
procstate process itself, marking the main module.

Example:
  procstate modules
  procstate modules --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModules()
		},
	}
}

type moduleJSON struct {
	Path string `json:"path"`
	Base string `json:"base"`
	End  string `json:"end"`
	Size uint64 `json:"size"`
	Main bool   `json:"main"`
}

func runModules() error {
	mods, err := query.Modules()
	if err != nil {
		return fmt.Errorf("failed to enumerate modules: %w", err)
	}

	if jsonOut {
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{Path: m.Path, Base: hex(m.Base), End: hex(m.End()), Size: uint64(m.Size), Main: m.Main})
		}
		return printJSON(out)
	}

	printInfo("%d modules\n", len(mods))
	for _, m := range mods {
		marker := " "
		if m.Main {
			marker = "*"
		}
		printInfo("%s %18s %18s %14d  %s\n", marker, hex(m.Base), hex(m.End()), uint64(m.Size), m.Path)
	}
	return nil
}
