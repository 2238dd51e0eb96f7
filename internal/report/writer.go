package report

import (
	"fmt"
	"io"
	"time"

	"github.com/nao1215/pathfinder/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.ScanReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.ScanReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// status returns a short description of how the scan ended.
func status(r *model.ScanReport) string {
	switch {
	case r.ErrorMessage != "":
		return "ERROR - " + r.ErrorMessage
	case r.Cancelled:
		return fmt.Sprintf("CANCELLED - resume at index %d (%s)", r.ResumeIndex, r.ResumePath)
	default:
		return "Complete"
	}
}

// sizeText renders a response size, which is -1 when unknown.
func sizeText(size int64) string {
	if size < 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d", size)
}

// durationText rounds d for display.
func durationText(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
