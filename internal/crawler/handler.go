package crawler

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/sitemirror/internal/download"
	"github.com/nao1215/sitemirror/internal/filter"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/pipeline"
)

// Downloader writes one resource to disk.
type Downloader interface {
	Download(ctx context.Context, req download.Request) (download.Result, error)
}

// Journal records the outcome of every download attempt.
type Journal interface {
	RecordDownload(ctx context.Context, rec model.DownloadRecord) error
}

// Handler decides, for each discovered URL, whether to download it and
// whether to crawl it.
type Handler struct {
	frontier   *Frontier
	pipeline   *pipeline.Pipeline
	downloader Downloader
	journal    Journal
	runID      string
	logger     *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithJournal records downloads under runID.
func WithJournal(j Journal, runID string) HandlerOption {
	return func(h *Handler) {
		h.journal = j
		h.runID = runID
	}
}

// WithHandlerLogger sets a custom logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a Handler. p holds the decision steps, normally path,
// admission, probe, size and existing file in that order.
func NewHandler(f *Frontier, p *pipeline.Pipeline, d Downloader, opts ...HandlerOption) *Handler {
	h := &Handler{
		frontier:   f,
		pipeline:   p,
		downloader: d,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle evaluates url, discovered on refererURL with remainingDepth levels
// left. Download failures are logged and counted; the returned error only
// reports that the URL could not be evaluated at all.
func (h *Handler) Handle(ctx context.Context, url, refererURL string, remainingDepth int) error {
	h.logger.Debug("Handle", "url", url, "depth", remainingDepth)

	d := model.NewResourceDecision(url, refererURL, remainingDepth)
	if err := h.pipeline.Execute(ctx, d); err != nil {
		return err
	}

	switch {
	case d.Eligible:
		h.download(ctx, d)
	case d.Rejected(model.ReasonExists):
		h.frontier.MarkSkipped()
		h.logger.Debug("Already downloaded", "path", d.Path)
	default:
		h.logger.Debug("Not downloaded", "url", url, "reasons", d.Reasons)
	}

	if d.Crawlable && filter.IsPageLike(d.Extension) {
		item := model.WorkItem{URL: url, RefererURL: refererURL, RemainingDepth: remainingDepth - 1}
		if h.frontier.Enqueue(item) {
			h.logger.Debug("Enqueued", "url", url, "depth", item.RemainingDepth)
		}
	}
	return nil
}

func (h *Handler) download(ctx context.Context, d *model.ResourceDecision) {
	h.logger.Info("Downloading", "url", d.URL, "path", d.Path, "size", d.ContentLength)

	var (
		res download.Result
		err error
	)
	if mkErr := os.MkdirAll(filepath.Dir(d.Path), 0o755); mkErr != nil { //nolint:gosec // mirror directories are world readable
		err = &download.FileError{Op: "mkdir", Path: filepath.Dir(d.Path), Err: mkErr}
	} else {
		res, err = h.downloader.Download(ctx, download.Request{
			URL:          d.URL,
			RefererURL:   d.RefererURL,
			Path:         d.Path,
			Total:        d.ContentLength,
			AcceptRanges: d.AcceptRanges,
			Offset:       d.ResumeOffset,
		})
	}

	rec := model.DownloadRecord{
		RunID:     h.runID,
		URL:       d.URL,
		Path:      d.Path,
		Bytes:     res.Written,
		Status:    model.StatusDownloaded,
		CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		h.frontier.MarkFailed()
		h.logger.Error("Download failed", "url", d.URL, "path", d.Path, "error", err)
		rec.Status = model.StatusFailed
		rec.Error = err.Error()
	} else {
		h.frontier.MarkDownloaded(res.Written)
		h.logger.Info("Downloaded", "path", d.Path, "bytes", res.Size)
	}

	if h.journal != nil {
		if jerr := h.journal.RecordDownload(ctx, rec); jerr != nil {
			h.logger.Warn("Failed to record download", "url", d.URL, "error", jerr)
		}
	}
}
