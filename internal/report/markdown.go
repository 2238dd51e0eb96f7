package report

import (
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/pathfinder/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeAlert(md, report)
	w.writeBaseline(md, report)
	w.writeFindings(md, report)
	w.writeUndetermined(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with scan information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("pathfinder Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Origin", "`" + report.Origin + "`"},
			{"Scan ID", "`" + report.ID + "`"},
			{"Scan Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Strategy", report.Strategy},
			{"Method", report.Method},
			{"Alphabet", "`" + report.Alphabet + "`"},
			{"Path Length", strconv.Itoa(report.PathLength)},
			{"Workers", strconv.Itoa(report.Workers)},
			{"Processed", strconv.FormatInt(report.Processed, 10) + " / " + strconv.FormatInt(report.Total(), 10)},
			{"Elapsed", durationText(report.Elapsed())},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.ScanReport) string {
	if report.ErrorMessage != "" {
		return "❌ Error - " + report.ErrorMessage
	}
	if report.Cancelled {
		return "⚠️ Cancelled (resume at `" + report.ResumePath + "`)"
	}
	return "✅ Complete"
}

// writeAlert writes an alert summarizing the outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.ScanReport) {
	switch {
	case report.ErrorMessage != "":
		md.Cautionf("The scan failed: %s", report.ErrorMessage)
	case report.Cancelled:
		md.Warningf(
			"The scan was cancelled. Resume with `--start %d` to cover the rest of the span.",
			report.ResumeIndex,
		)
	case len(report.Undetermined) > 0:
		md.Importantf(
			"%d index(es) could not be classified and should be probed again.",
			len(report.Undetermined),
		)
	case report.HasFindings():
		md.Note(strconv.Itoa(len(report.Findings)) + " path(s) found.")
	default:
		md.Tip("No paths differ from the not-found baseline.")
	}
	md.PlainText("")
}

// writeBaseline writes the not-found signature.
func (w *MarkdownWriter) writeBaseline(md *markdown.Markdown, report *model.ScanReport) {
	if report.Baseline == nil {
		return
	}
	b := report.Baseline

	md.H2("Baseline")
	md.PlainText("")

	size := "unknown"
	if b.SizeKnown {
		size = sizeText(b.Size)
	}
	rows := [][]string{
		{"Status", strconv.Itoa(b.StatusCode)},
		{"Size", size},
		{"Content-Encoding", b.ContentEncoding},
		{"Samples", strconv.Itoa(b.Samples)},
		{"Cached", strconv.FormatBool(report.BaselineCached)},
	}
	if b.Signature != "" {
		rows = append(rows, []string{"Signature", "`" + b.Signature + "`"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFindings writes a table of matches and their status distribution.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Findings")
	md.PlainText("")

	if !report.HasFindings() {
		md.PlainText("No paths found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Findings))
	for i, f := range report.Findings {
		title := f.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			"`/" + f.Path + "`",
			strconv.Itoa(f.StatusCode),
			sizeText(f.Size),
			strconv.FormatInt(f.Diff, 10),
			truncateString(title, 50),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Path", "Status", "Size", "Diff", "Title"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, report.Findings)
}

// writePieChart writes a mermaid pie chart of finding status codes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, findings []model.Finding) {
	counts := make(map[int]uint64)
	for _, f := range findings {
		counts[f.StatusCode]++
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Findings by Status"),
		piechart.WithShowData(true),
	)
	for _, code := range slices.Sorted(maps.Keys(counts)) {
		chart.LabelAndIntValue(strconv.Itoa(code), counts[code])
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeUndetermined lists the indexes that exhausted their retries.
func (w *MarkdownWriter) writeUndetermined(md *markdown.Markdown, report *model.ScanReport) {
	if len(report.Undetermined) == 0 {
		return
	}

	md.H2("Undetermined")
	md.PlainText("")

	rows := make([][]string, len(report.Undetermined))
	for i, u := range report.Undetermined {
		lastErr := u.LastError
		if lastErr == "" {
			lastErr = "-"
		}
		rows[i] = []string{
			"`/" + u.Path + "`",
			string(u.Reason),
			strconv.Itoa(u.Attempts),
			truncateString(lastErr, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Path", "Reason", "Attempts", "Last Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [pathfinder](https://github.com/nao1215/pathfinder)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
