package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/report"
)

func TestOutputSummary(t *testing.T) {
	t.Parallel()

	summary := report.NewSummary("v0.0.0", model.RunStats{SeedURL: "https://example.com/", PagesProcessed: 2}, nil)

	tests := []struct {
		name     string
		json     bool
		markdown bool
		want     string
	}{
		{"text", false, false, "SITEMIRROR SUMMARY"},
		{"json", true, false, `"pages_processed": 2`},
		{"markdown", false, true, "# Sitemirror Report"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.NewConfig()
			cfg.JSONReport, cfg.MarkdownReport = tt.json, tt.markdown

			var buf bytes.Buffer
			if err := outputSummary(cfg, summary, &buf); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q in output, got:\n%s", tt.want, buf.String())
			}
		})
	}

	t.Run("report file", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.ReportFile = filepath.Join(t.TempDir(), "out", "summary.md")
		cfg.MarkdownReport = true

		var stdout bytes.Buffer
		if err := outputSummary(cfg, summary, &stdout); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout.String(), "SITEMIRROR SUMMARY") {
			t.Errorf("expected text summary on stdout, got %q", stdout.String())
		}
		info, err := os.Stat(cfg.ReportFile)
		if err != nil {
			t.Fatalf("expected report file: %v", err)
		}
		if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
			t.Errorf("expected permissions 0600, got %o", info.Mode().Perm())
		}
		data, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(data), "# Sitemirror Report") {
			t.Errorf("expected Markdown in report file, got:\n%s", data)
		}
	})
}
