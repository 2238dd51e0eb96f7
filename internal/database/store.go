package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pathfinder/internal/model"
)

// FileName is the database file name inside the database directory.
const FileName = "pathfinder.db"

// Store is the SQLite store of baselines, scans and findings.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the store in dbDir.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, FileName)

	dsn := dbPath + "?mode=rwc"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(context.Background(), "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS baselines (
		origin TEXT NOT NULL,
		method TEXT NOT NULL,
		accept_encoding TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		size INTEGER NOT NULL,
		size_known INTEGER NOT NULL,
		content_encoding TEXT,
		excerpt BLOB,
		signature TEXT,
		fingerprint TEXT,
		samples INTEGER NOT NULL,
		captured_at TEXT NOT NULL,
		PRIMARY KEY (origin, method, accept_encoding)
	);

	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		origin TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		processed INTEGER DEFAULT 0,
		matches INTEGER DEFAULT 0,
		undetermined INTEGER DEFAULT 0,
		cancelled INTEGER DEFAULT 0,
		resume_index INTEGER DEFAULT -1,
		report_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_scans_origin ON scans(origin);

	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL,
		origin TEXT NOT NULL,
		path TEXT NOT NULL,
		path_index INTEGER NOT NULL,
		status_code INTEGER NOT NULL,
		size INTEGER NOT NULL,
		diff INTEGER NOT NULL,
		title TEXT,
		fingerprint TEXT,
		worker_id INTEGER,
		found_at TEXT NOT NULL,
		UNIQUE(scan_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_findings_origin ON findings(origin);

	CREATE TABLE IF NOT EXISTS undetermined (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL,
		origin TEXT NOT NULL,
		path TEXT NOT NULL,
		path_index INTEGER NOT NULL,
		reason TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		last_error TEXT,
		worker_id INTEGER,
		recorded_at TEXT NOT NULL,
		UNIQUE(scan_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_undetermined_origin ON undetermined(origin);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// LoadBaseline returns the cached baseline for the key, or (nil, nil) when
// none is stored.
func (s *Store) LoadBaseline(ctx context.Context, origin, method, acceptEncoding string) (*model.Baseline, error) {
	query := `
	SELECT status_code, size, size_known, content_encoding, excerpt, signature, fingerprint, samples, captured_at
	FROM baselines
	WHERE origin = ? AND method = ? AND accept_encoding = ?
	`

	b := model.Baseline{Origin: origin, Method: method, AcceptEncoding: acceptEncoding}
	var capturedAt string
	var contentEncoding, signature, fingerprint sql.NullString
	err := s.db.QueryRowContext(ctx, query, origin, method, acceptEncoding).Scan(
		&b.StatusCode,
		&b.Size,
		&b.SizeKnown,
		&contentEncoding,
		&b.Excerpt,
		&signature,
		&fingerprint,
		&b.Samples,
		&capturedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline: %w", err)
	}

	b.ContentEncoding = contentEncoding.String
	b.Signature = signature.String
	b.Fingerprint = fingerprint.String
	b.CapturedAt = parseTimestamp(capturedAt)
	return &b, nil
}

// SaveBaseline stores b, replacing any baseline with the same key.
func (s *Store) SaveBaseline(ctx context.Context, b *model.Baseline) error {
	query := `
	INSERT INTO baselines (origin, method, accept_encoding, status_code, size, size_known,
		content_encoding, excerpt, signature, fingerprint, samples, captured_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(origin, method, accept_encoding) DO UPDATE SET
		status_code = excluded.status_code,
		size = excluded.size,
		size_known = excluded.size_known,
		content_encoding = excluded.content_encoding,
		excerpt = excluded.excerpt,
		signature = excluded.signature,
		fingerprint = excluded.fingerprint,
		samples = excluded.samples,
		captured_at = excluded.captured_at
	`

	_, err := s.db.ExecContext(ctx, query,
		b.Origin, b.Method, b.AcceptEncoding,
		b.StatusCode, b.Size, b.SizeKnown,
		b.ContentEncoding, b.Excerpt, b.Signature, b.Fingerprint,
		b.Samples, formatTimestamp(b.CapturedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save baseline: %w", err)
	}
	return nil
}

// DeleteBaseline removes every cached baseline of origin.
func (s *Store) DeleteBaseline(ctx context.Context, origin string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM baselines WHERE origin = ?`, origin); err != nil {
		return fmt.Errorf("failed to delete baseline: %w", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
}

// parseTimestamp parses a stored timestamp, returning the zero time when no
// format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// jsonReport serializes a report for the scans table.
func jsonReport(r *model.ScanReport) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to serialize report: %w", err)
	}
	return string(data), nil
}
