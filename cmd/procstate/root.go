package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/procstate/internal/logger"
)

var (
	// Global flags
	verbose     bool
	quiet       bool
	jsonOut     bool
	logDir      string
	profileMode string
)

// printer formats byte counts with digit grouping.
var printer = message.NewPrinter(language.English)

var (
	closeLog    = func() error { return nil }
	stopProfile = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "procstate",
	Short: "Inspect process memory and save/restore arena snapshots",
	Long: `procstate examines the address space of a process, lists the writable
pages a snapshot would capture, inspects snapshot archives, and demonstrates
saving and restoring a heap arena.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) { teardown() },
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and debug logging")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Write JSON logs to a dated file in this directory")
	rootCmd.PersistentFlags().StringVar(&profileMode, "profile", "", "Profile the command: cpu or mem")
}

func setup(cmd *cobra.Command, args []string) error {
	opts := logger.Options{Enabled: verbose || logDir != "", LogDir: logDir}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	closer, err := logger.Init(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	closeLog = closer

	switch profileMode {
	case "":
	case "cpu":
		stopProfile = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop
	case "mem":
		stopProfile = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop
	default:
		return fmt.Errorf("unknown profile mode %q (want cpu or mem)", profileMode)
	}
	return nil
}

func teardown() {
	stopProfile()
	stopProfile = func() {}
	_ = closeLog()
	closeLog = func() error { return nil }
}

func execute() {
	err := rootCmd.Execute()
	teardown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		printer.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		printer.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func hex(v uintptr) string { return fmt.Sprintf("%#x", v) }
