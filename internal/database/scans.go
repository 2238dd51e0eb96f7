package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nao1215/pathfinder/internal/model"
)

// BeginScan records the start of a scan.
func (s *Store) BeginScan(ctx context.Context, r *model.ScanReport) error {
	query := `
	INSERT INTO scans (id, origin, started_at)
	VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, r.ID, r.Origin, formatTimestamp(r.StartedAt)); err != nil {
		return fmt.Errorf("failed to begin scan: %w", err)
	}
	return nil
}

// FinishScan stores the final counters and the full report of a scan.
func (s *Store) FinishScan(ctx context.Context, r *model.ScanReport) error {
	reportJSON, err := jsonReport(r)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO scans (id, origin, started_at, finished_at, processed, matches, undetermined, cancelled, resume_index, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		finished_at = excluded.finished_at,
		processed = excluded.processed,
		matches = excluded.matches,
		undetermined = excluded.undetermined,
		cancelled = excluded.cancelled,
		resume_index = excluded.resume_index,
		report_json = excluded.report_json
	`
	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.Origin, formatTimestamp(r.StartedAt), formatTimestamp(r.FinishedAt),
		r.Processed, len(r.Findings), len(r.Undetermined), r.Cancelled, r.ResumeIndex,
		reportJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to finish scan: %w", err)
	}
	return nil
}

// ScanSummary is one row of the scan history.
type ScanSummary struct {
	ID           string
	Origin       string
	StartedAt    string
	FinishedAt   string
	Processed    int64
	Matches      int
	Undetermined int
	Cancelled    bool
	ResumeIndex  int64
}

// ListScans returns the scan history, newest first. An empty origin lists
// every origin.
func (s *Store) ListScans(ctx context.Context, origin string) ([]ScanSummary, error) {
	query := `
	SELECT id, origin, started_at, COALESCE(finished_at, ''), processed, matches, undetermined, cancelled, resume_index
	FROM scans
	WHERE (? = '' OR origin = ?)
	ORDER BY started_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, origin, origin)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var out []ScanSummary
	for rows.Next() {
		var sc ScanSummary
		if err := rows.Scan(&sc.ID, &sc.Origin, &sc.StartedAt, &sc.FinishedAt,
			&sc.Processed, &sc.Matches, &sc.Undetermined, &sc.Cancelled, &sc.ResumeIndex); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// GetScan returns the stored report of scan id, or (nil, nil) when the scan
// is unknown or has not finished.
func (s *Store) GetScan(ctx context.Context, id string) (*model.ScanReport, error) {
	var reportJSON sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM scans WHERE id = ?`, id).Scan(&reportJSON)
	if err == sql.ErrNoRows || (err == nil && !reportJSON.Valid) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	var r model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON.String), &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}
