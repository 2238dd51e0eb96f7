package database

import (
	"context"
	"fmt"

	"github.com/nao1215/pathfinder/internal/model"
)

// InsertFinding stores a finding of scan scanID. A path reported twice in
// the same scan is stored once.
func (s *Store) InsertFinding(ctx context.Context, scanID string, f model.Finding) error {
	query := `
	INSERT INTO findings (scan_id, origin, path, path_index, status_code, size, diff, title, fingerprint, worker_id, found_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(scan_id, path) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		scanID, f.Origin, f.Path, f.Index, f.StatusCode, f.Size, f.Diff,
		f.Title, f.Fingerprint, f.WorkerID, formatTimestamp(f.FoundAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert finding: %w", err)
	}
	return nil
}

// InsertUndetermined stores an undetermined index of scan scanID.
func (s *Store) InsertUndetermined(ctx context.Context, scanID string, u model.Undetermined) error {
	query := `
	INSERT INTO undetermined (scan_id, origin, path, path_index, reason, attempts, last_error, worker_id, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(scan_id, path) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		scanID, u.Origin, u.Path, u.Index, string(u.Reason), u.Attempts,
		u.LastError, u.WorkerID, formatTimestamp(u.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert undetermined index: %w", err)
	}
	return nil
}

// FindingRecord is a stored finding with the scan that produced it.
type FindingRecord struct {
	ScanID string `json:"scan_id"`
	model.Finding
}

// ListFindings returns stored findings ordered by origin and path. An empty
// origin lists every origin. Paths found by several scans appear once per scan.
func (s *Store) ListFindings(ctx context.Context, origin string) ([]FindingRecord, error) {
	query := `
	SELECT scan_id, origin, path, path_index, status_code, size, diff,
		COALESCE(title, ''), COALESCE(fingerprint, ''), COALESCE(worker_id, 0), found_at
	FROM findings
	WHERE (? = '' OR origin = ?)
	ORDER BY origin, path, found_at
	`

	rows, err := s.db.QueryContext(ctx, query, origin, origin)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	defer rows.Close()

	var out []FindingRecord
	for rows.Next() {
		var rec FindingRecord
		var foundAt string
		if err := rows.Scan(&rec.ScanID, &rec.Origin, &rec.Path, &rec.Index, &rec.StatusCode,
			&rec.Size, &rec.Diff, &rec.Title, &rec.Fingerprint, &rec.WorkerID, &foundAt); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		rec.FoundAt = parseTimestamp(foundAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListUndetermined returns the undetermined indexes of scan scanID in index order.
func (s *Store) ListUndetermined(ctx context.Context, scanID string) ([]model.Undetermined, error) {
	query := `
	SELECT origin, path, path_index, reason, attempts, COALESCE(last_error, ''), COALESCE(worker_id, 0), recorded_at
	FROM undetermined
	WHERE scan_id = ?
	ORDER BY path_index
	`

	rows, err := s.db.QueryContext(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list undetermined indexes: %w", err)
	}
	defer rows.Close()

	var out []model.Undetermined
	for rows.Next() {
		var u model.Undetermined
		var reason, recordedAt string
		if err := rows.Scan(&u.Origin, &u.Path, &u.Index, &reason, &u.Attempts,
			&u.LastError, &u.WorkerID, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan undetermined index: %w", err)
		}
		u.Reason = model.UndeterminedReason(reason)
		u.RecordedAt = parseTimestamp(recordedAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

// ScanSink records the findings of one scan. It satisfies the telemetry sink.
type ScanSink struct {
	store  *Store
	scanID string
}

// SinkFor returns a sink writing findings of scan scanID.
func (s *Store) SinkFor(scanID string) *ScanSink {
	return &ScanSink{store: s, scanID: scanID}
}

// RecordFinding stores f.
func (k *ScanSink) RecordFinding(ctx context.Context, f model.Finding) error {
	return k.store.InsertFinding(ctx, k.scanID, f)
}

// RecordUndetermined stores u.
func (k *ScanSink) RecordUndetermined(ctx context.Context, u model.Undetermined) error {
	return k.store.InsertUndetermined(ctx, k.scanID, u)
}
