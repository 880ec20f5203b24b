package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sitemirror/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(s *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, s)
	w.writeCounters(md, s)
	w.writeFailures(md, s)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteRuns outputs the run history as a table.
func (w *MarkdownWriter) WriteRuns(runs []model.RunStats) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Sitemirror Runs")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			"`" + r.RunID + "`",
			formatTime(r.StartedAt),
			strconv.Itoa(r.PagesProcessed),
			strconv.Itoa(r.FilesDownloaded),
			strconv.Itoa(r.FilesFailed),
			formatBytes(r.BytesDownloaded),
			r.SeedURL,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Run", "Started", "Pages", "Files", "Failed", "Bytes", "Seed"},
		Rows:   rows,
	})
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("Sitemirror Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed URL", "`" + s.Stats.SeedURL + "`"},
	}
	if s.Stats.RunID != "" {
		rows = append(rows, []string{"Run ID", "`" + s.Stats.RunID + "`"})
	}
	rows = append(rows,
		[]string{"Started", formatTime(s.Stats.StartedAt)},
		[]string{"Duration", formatDuration(s.Stats.Duration())},
		[]string{"Status", statusText(s)},
	)
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeCounters(md *markdown.Markdown, s *Summary) {
	st := s.Stats

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Pages parsed", strconv.Itoa(st.PagesProcessed)},
			{"Pages enqueued", strconv.Itoa(st.TotalEnqueued)},
			{"Files downloaded", strconv.Itoa(st.FilesDownloaded)},
			{"Bytes downloaded", formatBytes(st.BytesDownloaded)},
			{"Files skipped", strconv.Itoa(st.FilesSkipped)},
			{"Files failed", strconv.Itoa(st.FilesFailed)},
		},
	})

	if st.FilesDownloaded+st.FilesSkipped+st.FilesFailed > 0 {
		w.writePieChart(md, st)
	}

	switch {
	case s.Interrupted:
		md.Warningf("The run was interrupted after %d pages.", st.PagesProcessed)
	case st.FilesFailed > 0:
		md.Cautionf("%d downloads failed. Partial files are resumed on the next run.", st.FilesFailed)
	case st.FilesDownloaded == 0:
		md.Note("No new files were downloaded.")
	default:
		md.Tip("All eligible files were downloaded.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, st model.RunStats) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("File Outcomes"),
		piechart.WithShowData(true),
	)
	if st.FilesDownloaded > 0 {
		chart.LabelAndIntValue("Downloaded", uint64(st.FilesDownloaded))
	}
	if st.FilesSkipped > 0 {
		chart.LabelAndIntValue("Skipped", uint64(st.FilesSkipped))
	}
	if st.FilesFailed > 0 {
		chart.LabelAndIntValue("Failed", uint64(st.FilesFailed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, s *Summary) {
	failed := s.Failed()
	if len(failed) == 0 {
		return
	}

	md.H2("Failed Downloads")
	md.PlainText("")
	rows := make([][]string, 0, len(failed))
	for _, d := range failed {
		rows = append(rows, []string{
			truncateString(d.URL, 80),
			"`" + d.Path + "`",
			truncateString(d.Error, 80),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Path", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitemirror](https://github.com/nao1215/sitemirror)*")
}
