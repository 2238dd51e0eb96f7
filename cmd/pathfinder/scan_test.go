package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/pathfinder/internal/config"
	"github.com/nao1215/pathfinder/internal/database"
	"github.com/nao1215/pathfinder/internal/report"
)

const notFoundPage = `<html><head><title>Not Found</title></head><body><h1>Page Not Found</h1></body></html>`

// newTestOrigin serves the not-found page for every path except the ones
// in found, which get a large 200 page.
func newTestOrigin(t *testing.T, found ...string) *httptest.Server {
	t.Helper()
	existing := make(map[string]bool, len(found))
	for _, p := range found {
		existing[p] = true
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if existing[strings.TrimPrefix(r.URL.Path, "/")] {
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, "<html><head><title>Secret</title></head><body>"+strings.Repeat("x", 4096)+"</body></html>")
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, notFoundPage)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testScanConfig enumerates the four paths of length 2 over "ab".
func testScanConfig(t *testing.T, origin string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.NewConfig()
	cfg.Origin = origin
	cfg.PathLength = 2
	cfg.Alphabet = "ab"
	cfg.Workers = 2
	cfg.BatchSize = 1
	cfg.BackoffDelay = time.Millisecond
	cfg.ErrorBackoff = time.Millisecond
	cfg.MaxBackoff = 10 * time.Millisecond
	cfg.RequestTimeout = 5 * time.Second
	cfg.ReportInterval = time.Hour
	cfg.FindingsFile = filepath.Join(dir, "found_pages.txt")
	cfg.DBDir = filepath.Join(dir, "db")
	cfg.SaveToDB = true
	cfg.ReportFormat = config.ReportJSON
	cfg.ReportFile = filepath.Join(dir, "report.json")

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

func readJSONReport(t *testing.T, path string) report.JSONReport {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test file
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	var out report.JSONReport
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to parse report: %v", err)
	}
	return out
}

func TestRunScan(t *testing.T) {
	t.Parallel()

	t.Run("finds existing path", func(t *testing.T) {
		t.Parallel()
		srv := newTestOrigin(t, "ba")
		cfg := testScanConfig(t, srv.URL)

		var stdout, stderr bytes.Buffer
		logger := setupLogger(io.Discard, cfg)
		if err := runScan(context.Background(), cfg, logger, &stdout, &stderr); err != nil {
			t.Fatalf("runScan() error = %v\nstderr: %s", err, stderr.String())
		}

		got := readJSONReport(t, cfg.ReportFile)
		if !got.Complete {
			t.Error("scan should be complete")
		}
		r := got.Report
		if r.Processed != 4 {
			t.Errorf("Processed = %d, want 4", r.Processed)
		}
		if len(r.Findings) != 1 || r.Findings[0].Path != "ba" {
			t.Fatalf("Findings = %+v, want [ba]", r.Findings)
		}
		if r.Findings[0].Title != "Secret" {
			t.Errorf("Title = %q, want Secret", r.Findings[0].Title)
		}
		if r.Baseline == nil || r.Baseline.StatusCode != http.StatusNotFound {
			t.Errorf("Baseline = %+v", r.Baseline)
		}

		log, err := os.ReadFile(cfg.FindingsFile)
		if err != nil {
			t.Fatalf("failed to read findings log: %v", err)
		}
		if !strings.Contains(string(log), "MATCH /ba status=200") {
			t.Errorf("findings log = %q", string(log))
		}

		store, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()

		records, err := store.ListFindings(context.Background(), cfg.Origin)
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 1 || records[0].ScanID != r.ID {
			t.Errorf("stored findings = %+v", records)
		}
		stored, err := store.GetScan(context.Background(), r.ID)
		if err != nil || stored == nil {
			t.Fatalf("GetScan() = %v, %v", stored, err)
		}
		if stored.Processed != 4 || stored.Cancelled {
			t.Errorf("stored scan = %+v", stored)
		}
	})

	t.Run("second scan reuses cached baseline", func(t *testing.T) {
		t.Parallel()
		srv := newTestOrigin(t)
		cfg := testScanConfig(t, srv.URL)
		logger := setupLogger(io.Discard, cfg)

		for i := range 2 {
			if err := runScan(context.Background(), cfg, logger, io.Discard, io.Discard); err != nil {
				t.Fatalf("runScan() #%d error = %v", i, err)
			}
		}
		if got := readJSONReport(t, cfg.ReportFile); !got.Report.BaselineCached {
			t.Error("second scan should use the cached baseline")
		}
	})

	t.Run("interrupted before enumeration", func(t *testing.T) {
		t.Parallel()
		srv := newTestOrigin(t)
		cfg := testScanConfig(t, srv.URL)
		cfg.StartPath = "ab"

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var stderr bytes.Buffer
		if err := runScan(ctx, cfg, setupLogger(io.Discard, cfg), io.Discard, &stderr); err != nil {
			t.Fatalf("runScan() error = %v, want nil for a cancelled scan", err)
		}

		r := readJSONReport(t, cfg.ReportFile).Report
		if !r.Cancelled || r.ResumeIndex != 1 || r.ResumePath != "ab" {
			t.Errorf("Cancelled/ResumeIndex/ResumePath = %v/%d/%q", r.Cancelled, r.ResumeIndex, r.ResumePath)
		}
		want := "Resume with: pathfinder scan " + cfg.Origin + " --start ab"
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("stderr = %q, want %q", stderr.String(), want)
		}
	})

	t.Run("unreachable origin fails", func(t *testing.T) {
		t.Parallel()
		srv := newTestOrigin(t)
		cfg := testScanConfig(t, srv.URL)
		cfg.SaveToDB = false
		srv.Close()

		err := runScan(context.Background(), cfg, setupLogger(io.Discard, cfg), io.Discard, io.Discard)
		if err == nil {
			t.Fatal("runScan() should fail when calibration cannot reach the origin")
		}
		if !strings.Contains(err.Error(), "scan failed") {
			t.Errorf("error = %v", err)
		}
	})
}
