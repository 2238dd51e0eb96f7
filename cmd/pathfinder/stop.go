package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/pathfinder/internal/config"
)

// NewStopCmd creates the stop command.
func NewStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running scan",
		Long: `Stop raises the cancellation signal of the running scan.

Every worker finishes or aborts its in-flight request and stops. The scan
then prints its summary, including the index to resume from, and exits.
Findings reported before the stop are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStop(cmd, config.XDGStateDir())
		},
	}
	return cmd
}

// runStop signals the scan holding the run lock in stateDir.
func runStop(cmd *cobra.Command, stateDir string) error {
	pid, err := runningScanPID(stateDir)
	if err != nil {
		return err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find scan process %d: %w", pid, err)
	}
	if err := proc.Signal(os.Interrupt); err != nil {
		return fmt.Errorf("failed to signal scan process %d: %w", pid, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for scan process %d\n", pid)
	return nil
}
