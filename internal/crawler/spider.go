package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/retry"
)

// DefaultMaxBodySize limits how much of a page is read for link extraction.
const DefaultMaxBodySize int64 = 10 << 20

// Spider runs the crawl loop: pop a page, fetch and parse it, hand every
// link to the Handler, wait, repeat.
type Spider struct {
	fetcher     fetch.Fetcher
	headers     *fetch.Builder
	frontier    *Frontier
	handler     *Handler
	delay       time.Duration
	retries     int
	timeout     time.Duration
	maxBodySize int64
	logger      *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithDelay sets the pause after each page and after each link.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithRetries sets the number of retries of a page fetch.
func WithRetries(n int) SpiderOption {
	return func(s *Spider) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithPageTimeout bounds each page fetch attempt.
func WithPageTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.timeout = d
	}
}

// WithMaxBodySize sets the maximum page size read for parsing.
func WithMaxBodySize(n int64) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.maxBodySize = n
		}
	}
}

// WithSpiderLogger sets a custom logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a Spider over a frontier and the handler that evaluates
// discovered links.
func NewSpider(f fetch.Fetcher, headers *fetch.Builder, frontier *Frontier, handler *Handler, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:     f,
		headers:     headers,
		frontier:    frontier,
		handler:     handler,
		delay:       500 * time.Millisecond,
		retries:     2,
		timeout:     30 * time.Second,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run crawls from seed until the frontier is empty or ctx is cancelled and
// returns the run counters. Errors on single pages or files are logged and
// never end the run; only cancellation is returned.
func (s *Spider) Run(ctx context.Context, seed model.WorkItem) (model.RunStats, error) {
	s.frontier.Seed(seed)

	var runErr error
	for {
		item, ok := s.frontier.Next()
		if !ok {
			break
		}
		if err := s.scrap(ctx, item); err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			s.logger.Warn("Page failed", "url", item.URL, "error", err)
		}
		if err := s.sleep(ctx); err != nil {
			runErr = err
			break
		}
	}

	s.frontier.Finish()
	stats := s.frontier.Stats()
	s.logger.Info(fmt.Sprintf("Completed [%d files downloaded; %d pages parsed]",
		stats.FilesDownloaded, stats.PagesProcessed))
	return stats, runErr
}

// scrap fetches one page and handles each of its links.
func (s *Spider) scrap(ctx context.Context, item model.WorkItem) error {
	s.frontier.MarkProcessed()
	stats := s.frontier.Stats()
	s.logger.Info(fmt.Sprintf("Scrap [%d/%d|%d|%d] %q",
		stats.PagesProcessed, stats.TotalEnqueued, s.frontier.Len(), item.RemainingDepth, item.URL))

	page, doc, err := s.fetchPage(ctx, item)
	if err != nil {
		return err
	}
	if doc == nil {
		s.logger.Debug("Not a document", "url", item.URL, "content_type", page.ContentType)
		return nil
	}
	s.logger.Debug("Parsed", "url", item.URL, "title", page.Title, "links", len(doc.Links))

	for _, link := range doc.Links {
		abs := Resolve(link, item.URL, s.frontier.BaseURL())
		if err := s.handler.Handle(ctx, abs, item.URL, item.RemainingDepth); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("Skipping", "url", abs, "error", err)
		}
		if err := s.sleep(ctx); err != nil {
			return err
		}
	}
	return nil
}

// fetchPage retrieves item through the retry combinator. doc is nil when
// the response is not HTML.
func (s *Spider) fetchPage(ctx context.Context, item model.WorkItem) (*model.Page, *Document, error) {
	type fetched struct {
		page *model.Page
		doc  *Document
	}

	onError := func(err error) {
		s.logger.Warn("Fetch failed", "url", item.URL, "error", err)
	}
	countdown := retry.Countdown(s.retries, onError)
	shouldRetry := func(err error) bool {
		if ctx.Err() != nil || !fetch.IsRetryable(err) {
			onError(err)
			return false
		}
		return countdown(err)
	}

	out, err := retry.RetryWithTimeout(func(int) (fetched, error) {
		page, doc, err := s.fetchOnce(ctx, item)
		return fetched{page: page, doc: doc}, err
	}, shouldRetry, s.timeout)
	if err != nil {
		return nil, nil, err
	}
	return out.page, out.doc, nil
}

// fetchOnce checks with HEAD that the page is HTML before reading it.
func (s *Spider) fetchOnce(ctx context.Context, item model.WorkItem) (*model.Page, *Document, error) {
	headers := s.headers.Build(item.URL, item.RefererURL)

	md, err := fetch.Head(ctx, s.fetcher, item.URL, headers)
	if err != nil {
		return nil, nil, err
	}
	page := &model.Page{URL: item.URL, ContentType: md.ContentType}
	if !IsHTML(md.ContentType) {
		return page, nil, nil
	}

	resp, err := s.fetcher.Do(ctx, http.MethodGet, item.URL, headers)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	page.StatusCode = resp.StatusCode
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		page.ContentType = ct
	}
	doc, err := ParseDocument(io.LimitReader(resp.Body, s.maxBodySize), page.ContentType)
	if err != nil {
		// Parsing only fails when reading the body fails.
		return nil, nil, &fetch.NetworkError{URL: item.URL, Err: err}
	}
	page.Title = doc.Title
	page.Links = doc.Links
	return page, doc, nil
}

// sleep waits for the configured delay unless ctx ends first.
func (s *Spider) sleep(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
