package main

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/nao1215/pathfinder/internal/config"
	"github.com/nao1215/pathfinder/internal/log"
)

// NewRootCmd creates the root command for pathfinder.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pathfinder",
		Short: "Enumerate fixed-length paths of a web origin",
		Long: `pathfinder probes every path of a fixed length over an alphabet
(aaaa, aaab, ... zzzz) against one origin and reports the paths whose
responses differ from the origin's not-found page.

The not-found page is measured once before the scan starts. The path space
is split between concurrent workers that back off when the origin starts
rate limiting. Findings are appended to a log as soon as they are found, and
an interrupted scan prints the index to resume from.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCalibrateCmd())
	cmd.AddCommand(NewFindingsCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewStopCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the masking logger for cfg. Configured header names
// are treated as sensitive because they usually carry credentials.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return log.NewLogger(w,
		log.WithVerbose(cfg.Verbose),
		log.WithSensitiveKeys(slices.Collect(maps.Keys(cfg.Headers))...),
	)
}
