package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/pathfinder/internal/model"
)

// NewCalibrateCmd creates the calibrate command.
func NewCalibrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibrate <origin>",
		Short: "Capture the not-found baseline of an origin",
		Long: `Calibrate asks the origin for paths that cannot exist, checks that the
responses agree and prints the resulting baseline. The baseline is stored in
the database and reused by later scans with the same method and
Accept-Encoding.

Examples:
  # Capture a fresh baseline
  pathfinder calibrate https://example.com

  # Show the cached baseline, calibrating only when none is stored
  pathfinder calibrate https://example.com --cached

  # Drop every cached baseline of the origin
  pathfinder calibrate https://example.com --forget`,
		Args: cobra.ExactArgs(1),
		RunE: runCalibrate,
	}

	addTargetFlags(cmd)
	cmd.Flags().Bool("cached", false, "Print the cached baseline when one exists")
	cmd.Flags().Bool("forget", false, "Delete the cached baselines of the origin and exit")
	cmd.Flags().Bool("json", false, "Print the baseline as JSON")

	return cmd
}

// runCalibrate executes the calibrate command.
func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args[0])
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	cached, _ := cmd.Flags().GetBool("cached")
	forget, _ := cmd.Flags().GetBool("forget")
	asJSON, _ := cmd.Flags().GetBool("json")
	if !cached {
		cfg.Recalibrate = true
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	if forget {
		if store == nil {
			return errors.New("--forget needs the database; remove --no-db")
		}
		if err := store.DeleteBaseline(ctx, cfg.Origin); err != nil {
			return fmt.Errorf("failed to delete baseline: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cached baselines of %s deleted\n", cfg.Origin)
		return nil
	}

	client, err := newProbeClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	calibrator, err := newCalibrator(client, cfg, store, logger)
	if err != nil {
		return err
	}

	b, fromCache, err := calibrator.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}

	if asJSON {
		return writeBaselineJSON(cmd.OutOrStdout(), b)
	}
	printBaseline(cmd.OutOrStdout(), b, fromCache)
	return nil
}

func writeBaselineJSON(w io.Writer, b *model.Baseline) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// printBaseline renders b as a property table.
func printBaseline(w io.Writer, b *model.Baseline, fromCache bool) {
	size := sizeOrUnknown(b.Size, b.SizeKnown)
	source := "calibrated"
	if fromCache {
		source = "cache"
	}

	rows := [][]string{
		{"Origin", b.Origin},
		{"Method", b.Method},
		{"Accept-Encoding", valueOrDash(b.AcceptEncoding)},
		{"Status", strconv.Itoa(b.StatusCode)},
		{"Size", size},
		{"Content-Encoding", b.ContentEncoding},
		{"Signature", valueOrDash(b.Signature)},
		{"Fingerprint", valueOrDash(b.Fingerprint)},
		{"Samples", strconv.Itoa(b.Samples)},
		{"Captured", b.CapturedAt.Local().Format(time.DateTime)},
		{"Source", source},
	}
	fmt.Fprintln(w, renderTable([]string{"Property", "Value"}, rows, nil))
}

func sizeOrUnknown(size int64, known bool) string {
	if !known {
		return "unknown"
	}
	return strconv.FormatInt(size, 10)
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
