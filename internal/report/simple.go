package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitemirror/internal/model"
)

// SimpleWriter outputs human-readable text for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every download, not only the failures.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every download in the summary.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary.
func (w *SimpleWriter) Write(s *Summary) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        SITEMIRROR SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	st := s.Stats
	fmt.Fprintf(&sb, "Seed URL:         %s\n", st.SeedURL)
	if st.RunID != "" {
		fmt.Fprintf(&sb, "Run ID:           %s\n", st.RunID)
	}
	fmt.Fprintf(&sb, "Started:          %s\n", formatTime(st.StartedAt))
	fmt.Fprintf(&sb, "Duration:         %s\n", formatDuration(st.Duration()))
	fmt.Fprintf(&sb, "Status:           %s\n", statusText(s))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Pages parsed:     %d (%d enqueued)\n", st.PagesProcessed, st.TotalEnqueued)
	fmt.Fprintf(&sb, "Files downloaded: %d (%s)\n", st.FilesDownloaded, formatBytes(st.BytesDownloaded))
	fmt.Fprintf(&sb, "Files skipped:    %d\n", st.FilesSkipped)
	fmt.Fprintf(&sb, "Files failed:     %d\n", st.FilesFailed)

	records := s.Failed()
	title := "Failed downloads"
	if w.verbose {
		records = s.Downloads
		title = "Downloads"
	}
	if len(records) > 0 {
		sb.WriteString("\n")
		sb.WriteString(title + ":\n")
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n")
		for _, d := range records {
			fmt.Fprintf(&sb, "  [%s] %s\n", d.Status, d.URL)
			fmt.Fprintf(&sb, "      -> %s", d.Path)
			if d.Error != "" {
				fmt.Fprintf(&sb, " (%s)", d.Error)
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// WriteRuns outputs one line per run.
func (w *SimpleWriter) WriteRuns(runs []model.RunStats) (int, error) {
	if len(runs) == 0 {
		return io.WriteString(w.output, "No runs recorded.\n")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-27s  %-23s  %6s  %6s  %6s  %10s  %s\n",
		"RUN ID", "STARTED", "PAGES", "FILES", "FAILED", "BYTES", "SEED")
	for _, r := range runs {
		fmt.Fprintf(&sb, "%-27s  %-23s  %6d  %6d  %6d  %10s  %s\n",
			r.RunID,
			formatTime(r.StartedAt),
			r.PagesProcessed,
			r.FilesDownloaded,
			r.FilesFailed,
			formatBytes(r.BytesDownloaded),
			truncateString(r.SeedURL, 60),
		)
	}
	return w.output.Write([]byte(sb.String()))
}
