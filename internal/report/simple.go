package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/pathfinder/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no records are shown.
	showEmpty bool

	// verbose adds baseline details and undetermined indexes.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeBaseline(&sb, report)
	w.writeFindings(&sb, report)
	w.writeUndetermined(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with scan information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ScanReport) {
	title := cases.Title(language.English)

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         PATHFINDER REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Origin:         %s\n", report.Origin)
	fmt.Fprintf(sb, "Scan ID:        %s\n", report.ID)
	fmt.Fprintf(sb, "Scan Date:      %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Strategy:       %s\n", title.String(strings.ReplaceAll(report.Strategy, "-", " ")))
	fmt.Fprintf(sb, "Method:         %s\n", report.Method)
	fmt.Fprintf(sb, "Path Length:    %d\n", report.PathLength)
	fmt.Fprintf(sb, "Span:           [%d, %d)\n", report.StartIndex, report.EndIndex)
	fmt.Fprintf(sb, "Workers:        %d\n", report.Workers)
	fmt.Fprintf(sb, "Processed:      %d / %d\n", report.Processed, report.Total())
	fmt.Fprintf(sb, "Elapsed:        %s (%.1f req/s)\n", durationText(report.Elapsed()), report.Throughput())
	fmt.Fprintf(sb, "Status:         %s\n", status(report))
	sb.WriteString("\n")
}

// writeBaseline writes the not-found signature in verbose mode.
func (w *SimpleWriter) writeBaseline(sb *strings.Builder, report *model.ScanReport) {
	if !w.verbose || report.Baseline == nil {
		return
	}

	b := report.Baseline
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("BASELINE\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	size := "unknown"
	if b.SizeKnown {
		size = sizeText(b.Size)
	}
	fmt.Fprintf(sb, "  Status:     %d\n", b.StatusCode)
	fmt.Fprintf(sb, "  Size:       %s\n", size)
	fmt.Fprintf(sb, "  Encoding:   %s\n", b.ContentEncoding)
	if b.Signature != "" {
		fmt.Fprintf(sb, "  Signature:  %q\n", b.Signature)
	}
	if report.BaselineCached {
		sb.WriteString("  Source:     cache\n")
	}
	sb.WriteString("\n")
}

// writeFindings writes every match.
func (w *SimpleWriter) writeFindings(sb *strings.Builder, report *model.ScanReport) {
	if !report.HasFindings() && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "FINDINGS (%d)\n", len(report.Findings))
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if !report.HasFindings() {
		sb.WriteString("  No paths found\n\n")
		return
	}

	for _, f := range report.Findings {
		fmt.Fprintf(sb, "  [+] /%s\n", f.Path)
		fmt.Fprintf(sb, "      Status: %d  Size: %s  Diff: %d\n", f.StatusCode, sizeText(f.Size), f.Diff)
		if f.Title != "" {
			fmt.Fprintf(sb, "      Title: %s\n", f.Title)
		}
	}
	sb.WriteString("\n")
}

// writeUndetermined writes the indexes that exhausted their retries.
func (w *SimpleWriter) writeUndetermined(sb *strings.Builder, report *model.ScanReport) {
	if len(report.Undetermined) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "UNDETERMINED (%d)\n", len(report.Undetermined))
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Undetermined) == 0 {
		sb.WriteString("  Every index was classified\n\n")
		return
	}
	if !w.verbose {
		sb.WriteString("  Re-run with --verbose to list them\n\n")
		return
	}

	for _, u := range report.Undetermined {
		fmt.Fprintf(sb, "  [?] /%s (%s, %d attempts)\n", u.Path, u.Reason, u.Attempts)
		if u.LastError != "" {
			fmt.Fprintf(sb, "      Last error: %s\n", u.LastError)
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by pathfinder\n")
	sb.WriteString("https://github.com/nao1215/pathfinder\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
