package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/crawler"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/nao1215/sitemirror/internal/download"
	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/filter"
	"github.com/nao1215/sitemirror/internal/log"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/pipeline"
	"github.com/nao1215/sitemirror/internal/report"
)

// errInterrupted is returned when the run was stopped by a signal.
var errInterrupted = errors.New("interrupted")

// NewMirrorCmd creates the mirror command.
func NewMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror <url> [include] [exclude] [minSize] [maxSize] [depth] [delayMs] [sameOrigin]",
		Short: "Crawl a site and download the files it links to",
		Long: `Mirror crawls the seed page, downloads every linked image, video and file
that passes the filters and follows links to further pages up to the given
depth. Files are stored under downloads/<host>/<path>.

Positional arguments (use "" to keep a default):
  url         seed page, absolute http(s) URL
  include     regular expression a URL must match to be downloaded (default: all)
  exclude     regular expression that prevents a download (default: none)
  minSize     minimum content length in bytes, 0 for none
  maxSize     maximum content length in bytes, 0 for none
  depth       levels of pages crawled below the seed (default 0)
  delayMs     pause between links and pages in milliseconds (default 500)
  sameOrigin  "true" to stay under the seed's scheme and host

Examples:
  # Mirror every file linked from one page
  sitemirror mirror https://example.com/gallery/

  # Only images, two levels deep, on the same site
  sitemirror mirror https://example.com/ '\.(jpe?g|png)$' "" 0 0 2 500 true

  # Send a session cookie
  sitemirror mirror -H "Cookie: session=abc" https://example.com/private/

Environment variables (WEBSCRAPER_*):
  LOG_LEVEL, DOWNLOAD_SEGMENTS_SIZE, REPLACE_DIFFERENT_SIZE, RESUME_PARTIAL,
  PROBE_TIMEOUT, DOWNLOAD_TIMEOUT, RETRIES, QUEUE_ORDER, HEADER_PROFILE,
  SEGMENTED, OUTPUT_DIR, PROXY, JOURNAL, DB_DIR`,
		Args: cobra.RangeArgs(1, 8),
		RunE: runMirrorCmd,
	}

	cmd.Flags().StringArrayP("header", "H", nil,
		`Additional request header "Name: value" (repeatable)`)
	cmd.Flags().StringP("config", "c", "",
		"Site configuration file (default: .sitemirror in current or home directory)")

	cmd.Flags().BoolP("json", "j", false,
		"Output the summary as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the summary as Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the summary to the specified file (creates directories if needed)")

	return cmd
}

func runMirrorCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	return runMirror(cmd.Context(), cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from positional arguments, flags, the
// environment and the site file, in that order of precedence.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	explicit, err := parseMirrorArgs(cfg, args)
	if err != nil {
		return nil, err
	}

	headers, err := cmd.Flags().GetStringArray("header")
	if err != nil {
		return nil, err
	}
	for _, h := range headers {
		name, value, err := fetch.ParseHeaderFlag(h)
		if err != nil {
			return nil, err
		}
		cfg.Headers[name] = value
	}

	if err := cfg.LoadEnv(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	cfg.Verbose = getVerboseFlag(cmd)

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	// An invalid seed is reported by Validate.
	if cfg.SiteConfigs != nil {
		if seed, err := config.ParseSeedURL(cfg.SeedURL); err == nil {
			cfg.MergeSite(cfg.SiteConfigs.GetSiteConfig(seed.Host), explicit)
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}
	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseMirrorArgs fills cfg from the positional arguments and returns the
// settings that were given explicitly. An empty argument keeps the default.
func parseMirrorArgs(cfg *config.Config, args []string) (map[string]bool, error) {
	explicit := make(map[string]bool)
	arg := func(i int) string {
		if i < len(args) {
			return strings.TrimSpace(args[i])
		}
		return ""
	}

	cfg.SeedURL = arg(0)

	if v := arg(1); v != "" {
		cfg.Include = v
		explicit["include"] = true
	}
	if v := arg(2); v != "" {
		cfg.Exclude = v
		explicit["exclude"] = true
	}

	var err error
	if v := arg(3); v != "" {
		if cfg.MinSize, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid minSize %q: %w", v, err)
		}
	}
	if v := arg(4); v != "" {
		if cfg.MaxSize, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid maxSize %q: %w", v, err)
		}
	}
	if v := arg(5); v != "" {
		if cfg.Depth, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid depth %q: %w", v, err)
		}
		explicit["depth"] = true
	}
	if v := arg(6); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid delayMs %q: %w", v, err)
		}
		cfg.Delay = time.Duration(ms) * time.Millisecond
	}
	if v := arg(7); v != "" {
		if cfg.SameOrigin, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid sameOrigin %q: %w", v, err)
		}
	}
	return explicit, nil
}

// setupLogger creates the console logger. --verbose forces trace level.
func setupLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%s_%s: %w", config.EnvPrefix, strings.ToUpper(config.EnvLogLevel), err)
	}
	if cfg.Verbose {
		level = log.LevelTrace
	}
	return log.NewLogger(os.Stderr, level, log.IsTerminal(os.Stderr)), nil
}

// runMirror performs one run and writes its summary to stdout, or to the
// report file. The summary is written even when the run was interrupted.
func runMirror(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var clientOpts []fetch.ClientOption
	if cfg.Proxy != "" {
		clientOpts = append(clientOpts, fetch.WithProxy(cfg.Proxy))
	}
	client, err := fetch.NewClient(clientOpts...)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	profile, err := fetch.ParseProfile(cfg.HeaderProfile)
	if err != nil {
		return err
	}
	headers := fetch.NewBuilder(profile, cfg.Headers)

	base, err := crawler.BaseURL(cfg.SeedURL)
	if err != nil {
		return err
	}
	filters, err := filter.New(cfg.Include, cfg.Exclude, filter.SizeRange{Min: cfg.MinSize, Max: cfg.MaxSize})
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	runID := database.NewRunID()
	journal := openJournal(ctx, cfg, runID, logger)
	if journal != nil {
		defer journal.Close()
	}

	steps := newResourcePipeline(cfg, client, headers, filters, base, logger)
	logger.Debug("Resource pipeline", "steps", steps.String())
	downloader := download.New(client, headers,
		download.WithSegmentSize(cfg.SegmentSize),
		download.WithSegmented(cfg.Segmented),
		download.WithTimeout(cfg.DownloadTimeout),
		download.WithRetries(cfg.Retries),
		download.WithLogger(logger),
	)

	frontier := crawler.NewFrontier(base, cfg.SameOrigin, cfg.QueueOrder)
	handlerOpts := []crawler.HandlerOption{crawler.WithHandlerLogger(logger)}
	if journal != nil {
		handlerOpts = append(handlerOpts, crawler.WithJournal(journal, runID))
	}
	handler := crawler.NewHandler(frontier, steps, downloader, handlerOpts...)
	spider := crawler.NewSpider(client, headers, frontier, handler,
		crawler.WithDelay(cfg.Delay),
		crawler.WithRetries(cfg.Retries),
		crawler.WithPageTimeout(cfg.ProbeTimeout),
		crawler.WithSpiderLogger(logger),
	)

	logger.Debug("Starting run",
		"run_id", runID,
		"seed", cfg.SeedURL,
		"depth", cfg.Depth,
		"same_origin", cfg.SameOrigin,
		"output_dir", cfg.OutputDir,
	)

	stats, runErr := crawl(ctx, spider, model.WorkItem{URL: cfg.SeedURL, RemainingDepth: cfg.Depth}, logger)
	stats.RunID = runID
	interrupted := errors.Is(runErr, errInterrupted) || errors.Is(runErr, context.Canceled)
	if runErr != nil && !interrupted {
		return runErr
	}

	// The run context may be cancelled by now.
	finishCtx := context.WithoutCancel(ctx)
	var downloads []model.DownloadRecord
	if journal != nil {
		if err := journal.FinishRun(finishCtx, stats); err != nil {
			logger.Warn("Failed to finish journal run", "run_id", runID, "error", err)
		}
		if downloads, err = journal.Downloads(finishCtx, runID); err != nil {
			logger.Warn("Failed to read journal downloads", "run_id", runID, "error", err)
		}
	}

	summary := report.NewSummary(getVersion(), stats, downloads)
	summary.Interrupted = interrupted
	if err := outputSummary(cfg, summary, stdout); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if interrupted {
		return errInterrupted
	}
	return nil
}

// crawl runs the spider next to a signal watcher. The first SIGINT or
// SIGTERM cancels the run.
func crawl(ctx context.Context, spider *crawler.Spider, seed model.WorkItem, logger *slog.Logger) (model.RunStats, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	var stats model.RunStats
	g.Go(func() error {
		defer cancel()
		var err error
		stats, err = spider.Run(gctx, seed)
		return err
	})
	g.Go(func() error {
		return watchSignals(gctx, logger)
	})

	err := g.Wait()
	return stats, err
}

func watchSignals(ctx context.Context, logger *slog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		return nil
	case sig := <-sigCh:
		logger.Warn("Received shutdown signal, stopping", "signal", sig.String())
		return errInterrupted
	}
}

// newResourcePipeline assembles the decision steps in evaluation order.
func newResourcePipeline(cfg *config.Config, client fetch.Fetcher, headers *fetch.Builder, filters *filter.Filters, base string, logger *slog.Logger) *pipeline.Pipeline {
	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewPathStep(cfg.OutputDir),
		pipeline.NewAdmissionStep(filters, base, cfg.SameOrigin),
		pipeline.NewProbeStep(client, headers,
			pipeline.WithProbeTimeout(cfg.ProbeTimeout),
			pipeline.WithProbeRetries(cfg.Retries),
			pipeline.WithProbeLogger(logger),
		),
		pipeline.NewSizeStep(filters.Size),
		pipeline.NewExistingFileStep(
			pipeline.WithReplaceDifferentSize(cfg.ReplaceDifferentSize),
			pipeline.WithResumePartial(cfg.ResumePartial),
			pipeline.WithExistingFileLogger(logger),
		),
	)
	return p
}

// openJournal opens the journal and records the start of the run. The run
// goes on without a journal when it cannot be opened.
func openJournal(ctx context.Context, cfg *config.Config, runID string, logger *slog.Logger) *database.JournalDB {
	if !cfg.Journal {
		return nil
	}

	jdb, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		logger.Warn("Journal disabled", "dir", cfg.DBDir, "error", err)
		return nil
	}

	start := model.RunStats{RunID: runID, SeedURL: cfg.SeedURL, StartedAt: time.Now()}
	if err := jdb.StartRun(ctx, start); err != nil {
		logger.Warn("Journal disabled", "path", jdb.Path(), "error", err)
		_ = jdb.Close() //nolint:errcheck // best effort cleanup
		return nil
	}
	logger.Debug("Journal opened", "path", jdb.Path(), "run_id", runID)
	return jdb
}
