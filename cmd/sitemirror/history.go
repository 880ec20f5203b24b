package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/nao1215/sitemirror/internal/report"
)

// defaultHistoryLimit is the number of runs listed when --limit is not given.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded mirror runs",
		Long: `History lists the runs recorded in the journal, newest first.

Given a run ID, it prints the summary of that run including every download
it attempted.

The journal lives in the XDG data directory (~/.local/share/sitemirror on
Linux) unless WEBSCRAPER_DB_DIR points elsewhere.

Examples:
  # Show the last 20 runs
  sitemirror history

  # Show every run as JSON
  sitemirror history --limit 0 --json

  # Show one run in detail
  sitemirror history 2TzJ4cXh3Q0rD1a8lWmXz0bY5nE`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list, 0 for all")
	cmd.Flags().BoolP("json", "j", false,
		"Output as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output as Markdown (mutually exclusive with --json)")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	jsonReport, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownReport, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonReport && markdownReport {
		return config.ErrConflictingReportFormats
	}

	cfg := config.NewConfig()
	if err := cfg.LoadEnv(); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	jdb, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer jdb.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := newReportWriter(jsonReport, markdownReport, cmd.OutOrStdout(), true)

	if len(args) == 1 {
		return showRun(ctx, jdb, args[0], w)
	}
	return listRuns(ctx, jdb, limit, w)
}

func listRuns(ctx context.Context, jdb *database.JournalDB, limit int, w report.Writer) error {
	runs, err := jdb.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	_, err = w.WriteRuns(runs)
	return err
}

func showRun(ctx context.Context, jdb *database.JournalDB, runID string, w report.Writer) error {
	run, err := jdb.GetRun(ctx, runID)
	if errors.Is(err, database.ErrRunNotFound) {
		return fmt.Errorf("no run with ID %s", runID)
	}
	if err != nil {
		return err
	}
	downloads, err := jdb.Downloads(ctx, runID)
	if err != nil {
		return err
	}

	s := report.NewSummary("", *run, downloads)
	s.Interrupted = run.FinishedAt.IsZero()
	_, err = w.Write(s)
	return err
}
