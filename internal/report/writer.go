package report

import (
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/sitemirror/internal/model"
)

// Summary is everything reported at the end of a run.
type Summary struct {
	// Version is the sitemirror version that produced the run.
	Version string `json:"version,omitempty"`

	// Stats are the final run counters.
	Stats model.RunStats `json:"stats"`

	// Downloads lists the download outcomes, when the journal is enabled.
	Downloads []model.DownloadRecord `json:"downloads,omitempty"`

	// Interrupted is true when the run was cancelled before the frontier
	// emptied.
	Interrupted bool `json:"interrupted,omitempty"`
}

// NewSummary creates a Summary.
func NewSummary(version string, stats model.RunStats, downloads []model.DownloadRecord) *Summary {
	return &Summary{Version: version, Stats: stats, Downloads: downloads}
}

// Failed returns the failed downloads.
func (s *Summary) Failed() []model.DownloadRecord {
	var out []model.DownloadRecord
	for _, d := range s.Downloads {
		if d.Status == model.StatusFailed {
			out = append(out, d)
		}
	}
	return out
}

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the summary of one run.
	Write(s *Summary) (int, error)

	// WriteRuns outputs a list of past runs, newest first.
	WriteRuns(runs []model.RunStats) (int, error)
}

// MultiWriter writes to multiple Writers. It stops on the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all configured Writers.
func (m *MultiWriter) Write(s *Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(s)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteRuns outputs the run list to all configured Writers.
func (m *MultiWriter) WriteRuns(runs []model.RunStats) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteRuns(runs)
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

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

const timeLayout = "2006-01-02 15:04:05 MST"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func statusText(s *Summary) string {
	switch {
	case s.Interrupted:
		return "Interrupted"
	case s.Stats.FilesFailed > 0:
		return "Completed with failures"
	default:
		return "Completed"
	}
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
