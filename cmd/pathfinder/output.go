package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/pathfinder/internal/config"
	"github.com/nao1215/pathfinder/internal/model"
	"github.com/nao1215/pathfinder/internal/report"
)

// newReportWriter returns the writer for format.
func newReportWriter(format string, w io.Writer, verbose bool) report.Writer {
	switch format {
	case config.ReportJSON:
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case config.ReportMarkdown:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(verbose))
	}
}

// outputReport writes the scan report to path, or to stdout when path is empty.
func outputReport(stdout io.Writer, format, path string, verbose bool, scanReport *model.ScanReport) error {
	output := stdout
	if path != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports may contain session details that should only be readable by the owner
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided output path
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := newReportWriter(format, output, verbose).Write(scanReport)
	return err
}
