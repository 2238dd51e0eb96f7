package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nao1215/pathfinder/internal/config"
	"github.com/nao1215/pathfinder/internal/database"
)

// NewFindingsCmd creates the findings command.
// This command lists the findings stored in the database.
func NewFindingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "findings [origin]",
		Short: "List stored findings",
		Long: `Findings lists every path reported by previous scans, ordered by origin
and path. A path found by several scans is listed once per scan.

Examples:
  # All findings in the database
  pathfinder findings

  # Findings of one origin as JSON
  pathfinder findings https://example.com --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runFindingsCmd,
	}

	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")
	cmd.Flags().BoolP("json", "j", false, "Output findings in JSON format")

	return cmd
}

// runFindingsCmd executes the findings command.
func runFindingsCmd(cmd *cobra.Command, args []string) error {
	origin, err := originArg(args)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	store, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.ListFindings(cmd.Context(), origin)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if records == nil {
			records = []database.FindingRecord{}
		}
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No findings stored.")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.URL(),
			strconv.Itoa(rec.StatusCode),
			sizeOrUnknown(rec.Size, rec.Size >= 0),
			strconv.FormatInt(rec.Diff, 10),
			valueOrDash(rec.Title),
			shortID(rec.ScanID),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"URL", "Status", "Size", "Diff", "Title", "Scan"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	))
	fmt.Fprintf(w, "%d findings\n", len(records))
	return nil
}

// originArg normalizes the optional origin argument. No argument means
// every origin.
func originArg(args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	return config.NormalizeOrigin(args[0])
}

// openHistoryStore opens the database named by the --db-dir flag.
func openHistoryStore(cmd *cobra.Command) (*database.Store, error) {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	store, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// shortID returns the first block of a scan id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
