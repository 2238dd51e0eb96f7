package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/pathfinder/internal/config"
	"github.com/nao1215/pathfinder/internal/database"
)

// ErrScanNotFound is returned when --show names an unknown or unfinished scan.
var ErrScanNotFound = errors.New("scan not found")

// NewHistoryCmd creates the history command.
// This command lists past scans and renders stored reports.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [origin]",
		Short: "List past scans",
		Long: `History lists the scans stored in the database, newest first. Cancelled
scans show the path to resume from.

Examples:
  # Every scan in the database
  pathfinder history

  # Scans of one origin
  pathfinder history https://example.com

  # Render the stored report of a scan as Markdown
  pathfinder history --show 6f1c2a9e-... -f markdown

  # List the indexes a scan could not classify
  pathfinder history --undetermined 6f1c2a9e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")
	cmd.Flags().String("show", "", "Render the stored report of the scan with this id")
	cmd.Flags().String("undetermined", "", "List the undetermined indexes of the scan with this id")
	cmd.Flags().StringP("format", "f", config.ReportText, "Report format for --show: text, json or markdown")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	origin, err := originArg(args)
	if err != nil {
		return err
	}
	showID, err := cmd.Flags().GetString("show")
	if err != nil {
		return err
	}
	undeterminedID, err := cmd.Flags().GetString("undetermined")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	switch format {
	case config.ReportText, config.ReportJSON, config.ReportMarkdown:
	default:
		return config.ErrInvalidReportFormat
	}

	store, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	switch {
	case showID != "":
		return showScan(ctx, w, store, showID, format, getVerboseFlag(cmd))
	case undeterminedID != "":
		return writeUndeterminedList(ctx, w, store, undeterminedID)
	default:
		return listScanHistory(ctx, w, store, origin)
	}
}

// listScanHistory prints the scan history as a table.
func listScanHistory(ctx context.Context, w io.Writer, store *database.Store, origin string) error {
	scans, err := store.ListScans(ctx, origin)
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		fmt.Fprintln(w, "No scans stored. Use 'pathfinder scan' to perform a scan.")
		return nil
	}

	rows := make([][]string, 0, len(scans))
	for _, sc := range scans {
		rows = append(rows, []string{
			sc.ID,
			sc.Origin,
			localTime(sc.StartedAt),
			strconv.FormatInt(sc.Processed, 10),
			strconv.Itoa(sc.Matches),
			strconv.Itoa(sc.Undetermined),
			scanState(sc),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"ID", "Origin", "Started", "Processed", "Matches", "Undetermined", "State"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	return nil
}

// writeUndeterminedList prints the indexes scan id could not classify.
func writeUndeterminedList(ctx context.Context, w io.Writer, store *database.Store, id string) error {
	records, err := store.ListUndetermined(ctx, id)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No undetermined indexes stored for scan "+id+".")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, u := range records {
		rows = append(rows, []string{
			strconv.FormatInt(u.Index, 10),
			"/" + u.Path,
			string(u.Reason),
			strconv.Itoa(u.Attempts),
			valueOrDash(u.LastError),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Index", "Path", "Reason", "Attempts", "Last Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(w, "%d undetermined\n", len(records))
	return nil
}

// showScan renders the stored report of scan id.
func showScan(ctx context.Context, w io.Writer, store *database.Store, id, format string, verbose bool) error {
	r, err := store.GetScan(ctx, id)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: %s", ErrScanNotFound, id)
	}
	_, err = newReportWriter(format, w, verbose).Write(r)
	return err
}

// scanState summarizes how a scan ended.
func scanState(sc database.ScanSummary) string {
	switch {
	case sc.FinishedAt == "":
		return "running"
	case sc.Cancelled:
		return "cancelled at " + strconv.FormatInt(sc.ResumeIndex, 10)
	default:
		return "complete"
	}
}

// localTime renders a stored timestamp in local time.
func localTime(stored string) string {
	t, err := time.Parse(time.RFC3339Nano, stored)
	if err != nil {
		return stored
	}
	return t.Local().Format(time.DateTime)
}
