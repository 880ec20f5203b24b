package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/report"
)

// newReportWriter selects the report format.
func newReportWriter(jsonReport, markdownReport bool, output io.Writer, verbose bool) report.Writer {
	switch {
	case jsonReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint())
	case markdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(verbose))
	}
}

// openReportFile creates or truncates path with owner-only permissions,
// creating parent directories as needed.
func openReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	// Summaries list URLs that may carry session tokens.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided report path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// outputSummary writes the run summary to stdout. With a report file, the
// selected format goes to the file and stdout still gets the text summary.
func outputSummary(cfg *config.Config, s *report.Summary, stdout io.Writer) (err error) {
	if cfg.ReportFile == "" {
		_, err = newReportWriter(cfg.JSONReport, cfg.MarkdownReport, stdout, cfg.Verbose).Write(s)
		return err
	}

	f, err := openReportFile(cfg.ReportFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := report.NewMultiWriter(
		newReportWriter(cfg.JSONReport, cfg.MarkdownReport, f, cfg.Verbose),
		report.NewSimpleWriter(stdout, report.WithVerbose(cfg.Verbose)),
	)
	_, err = w.Write(s)
	return err
}
