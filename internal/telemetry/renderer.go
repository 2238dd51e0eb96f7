package telemetry

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LineRenderer prints one progress line per Render call. On a terminal the
// line is rewritten in place; otherwise each snapshot gets its own line.
type LineRenderer struct {
	mu       sync.Mutex
	w        io.Writer
	inPlace  bool
	printer  *message.Printer
	rendered bool
}

// NewLineRenderer creates a renderer writing to w. In-place rewriting is
// enabled when w is a terminal.
func NewLineRenderer(w io.Writer) *LineRenderer {
	return &LineRenderer{
		w:       w,
		inPlace: isTerminal(w),
		printer: message.NewPrinter(language.English),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Render prints the progress line for s.
func (r *LineRenderer) Render(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := r.FormatProgress(s)
	if r.inPlace {
		fmt.Fprintf(r.w, "\r%s\x1b[K", line)
	} else {
		fmt.Fprintln(r.w, line)
	}
	r.rendered = true
}

// Finish prints the final summary line.
func (r *LineRenderer) Finish(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inPlace && r.rendered {
		fmt.Fprintln(r.w)
	}
	fmt.Fprintln(r.w, r.FormatSummary(s))
}

// FormatProgress renders s as
//
//	[path] | 1,234 req/s | 12.34% | ETA 5m | 3 matches
func (r *LineRenderer) FormatProgress(s Snapshot) string {
	parts := []string{
		fmt.Sprintf("[%s]", s.LastPath),
		r.printer.Sprintf("%d req/s", int64(s.Throughput+0.5)),
		fmt.Sprintf("%.2f%%", s.Percent()),
		"ETA " + formatETA(s.ETA, s.Throughput > 0),
		r.printer.Sprintf("%d matches", s.Matches),
	}
	if s.Undetermined > 0 {
		parts = append(parts, r.printer.Sprintf("%d undetermined", s.Undetermined))
	}
	return strings.Join(parts, " | ")
}

// FormatSummary renders the final line of a scan.
func (r *LineRenderer) FormatSummary(s Summary) string {
	status := "complete"
	if !s.Complete() {
		status = r.printer.Sprintf("cancelled, resume at index %d", s.ResumeIndex)
	}
	return r.printer.Sprintf("%s: %d/%d paths in %s (%d req/s), %d matches, %d undetermined, %d transport errors",
		status,
		s.Processed, s.Total,
		s.Elapsed.Round(time.Second),
		int64(s.Throughput+0.5),
		s.Matches, s.Undetermined, s.TransportErrors,
	)
}

func formatETA(eta time.Duration, known bool) string {
	if !known {
		return "--"
	}
	if eta < time.Minute {
		return eta.Round(time.Second).String()
	}
	return fmt.Sprintf("%dm", int64(eta.Round(time.Minute)/time.Minute))
}
