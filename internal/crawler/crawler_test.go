package crawler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/download"
	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/filter"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/pipeline"
)

// routingTransport sends every request to one test server whatever its
// host, recording "METHOD host/path" for each.
type routingTransport struct {
	target *url.URL
	mu     sync.Mutex
	seen   []string
}

func (rt *routingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	rt.seen = append(rt.seen, req.Method+" "+req.URL.Host+req.URL.Path)
	rt.mu.Unlock()

	out := req.Clone(req.Context())
	out.URL.Scheme = rt.target.Scheme
	out.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(out)
}

func (rt *routingTransport) requests() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]string(nil), rt.seen...)
}

type memoryJournal struct {
	records []model.DownloadRecord
}

func (j *memoryJournal) RecordDownload(_ context.Context, rec model.DownloadRecord) error {
	j.records = append(j.records, rec)
	return nil
}

type runOptions struct {
	include    string
	sameOrigin bool
}

type testRun struct {
	root      string
	transport *routingTransport
	journal   *memoryJournal
	spider    *Spider
	frontier  *Frontier
	seed      string
}

func newTestRun(t *testing.T, h http.Handler, seed string, opts runOptions) *testRun {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	target, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	rt := &routingTransport{target: target}
	client := fetch.NewClientFromHTTP(&http.Client{Transport: rt})
	headers := fetch.NewBuilder(fetch.ProfileExtended, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	base, err := BaseURL(seed)
	if err != nil {
		t.Fatal(err)
	}
	filters, err := filter.New(opts.include, "", filter.SizeRange{})
	if err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	steps := pipeline.New(pipeline.WithLogger(logger))
	steps.AddSteps(
		pipeline.NewPathStep(root),
		pipeline.NewAdmissionStep(filters, base, opts.sameOrigin),
		pipeline.NewProbeStep(client, headers, pipeline.WithProbeLogger(logger)),
		pipeline.NewSizeStep(filters.Size),
		pipeline.NewExistingFileStep(pipeline.WithExistingFileLogger(logger)),
	)

	journal := &memoryJournal{}
	frontier := NewFrontier(base, opts.sameOrigin, config.QueueFIFO)
	handler := NewHandler(frontier, steps, download.New(client, headers, download.WithLogger(logger)),
		WithJournal(journal, "run-1"), WithHandlerLogger(logger))
	spider := NewSpider(client, headers, frontier, handler, WithDelay(0), WithSpiderLogger(logger))

	return &testRun{root: root, transport: rt, journal: journal, spider: spider, frontier: frontier, seed: seed}
}

func (r *testRun) run(t *testing.T, depth int) model.RunStats {
	t.Helper()
	stats, err := r.spider.Run(context.Background(), model.WorkItem{URL: r.seed, RemainingDepth: depth})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return stats
}

func TestSpiderSameOriginScenario(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, `<html><body><img src="/a.png"><img src="http://other.com/b.png"></body></html>`)
		}
	})
	mux.HandleFunc("/a.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, "PNGDATA")
		}
	})

	tr := newTestRun(t, mux, "http://example.com/", runOptions{sameOrigin: true})
	stats := tr.run(t, 1)

	data, err := os.ReadFile(filepath.Join(tr.root, "example.com", "a.png"))
	if err != nil {
		t.Fatalf("expected a.png to be mirrored: %v", err)
	}
	if string(data) != "PNGDATA" {
		t.Errorf("expected PNGDATA, got %q", data)
	}

	requests := tr.transport.requests()
	if !slices.Contains(requests, "HEAD example.com/a.png") || !slices.Contains(requests, "GET example.com/a.png") {
		t.Errorf("expected a.png to be probed and fetched, got %v", requests)
	}
	for _, r := range requests {
		if r == "HEAD other.com/b.png" || r == "GET other.com/b.png" {
			t.Errorf("expected other origin never to be fetched, got %q", r)
		}
	}
	if _, err := os.Stat(filepath.Join(tr.root, "other.com")); !errors.Is(err, os.ErrNotExist) {
		t.Error("expected nothing mirrored for other.com")
	}

	if stats.FilesDownloaded != 1 || stats.PagesProcessed != 1 || stats.TotalEnqueued != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(tr.journal.records) != 1 || tr.journal.records[0].Status != model.StatusDownloaded {
		t.Errorf("expected one downloaded journal record, got %+v", tr.journal.records)
	}
	if tr.journal.records[0].RunID != "run-1" || tr.journal.records[0].Bytes != 7 {
		t.Errorf("unexpected journal record: %+v", tr.journal.records[0])
	}
}

func TestSpiderIncludePatternStillCrawlsPages(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	served := map[string]int{}
	mux := http.NewServeMux()
	page := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			if r.Method == http.MethodGet {
				mu.Lock()
				served[r.URL.Path]++
				mu.Unlock()
				_, _ = io.WriteString(w, body)
			}
		}
	}
	mux.HandleFunc("/index.html", page(`<a href="next.html">next</a><img src="pic.png">`))
	mux.HandleFunc("/next.html", page(`<a href="index.html">back</a><img src="deep.png">`))
	mux.HandleFunc("/pic.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, "pic")
	})
	mux.HandleFunc("/deep.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, "deep")
	})

	tr := newTestRun(t, mux, "http://example.com/index.html", runOptions{include: `\.(jpg|png)$`})
	stats := tr.run(t, 1)

	if _, err := os.Stat(filepath.Join(tr.root, "example.com", "pic.png")); err != nil {
		t.Errorf("expected pic.png downloaded: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tr.root, "example.com", "deep.png")); err != nil {
		t.Errorf("expected deep.png from the second page: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tr.root, "example.com", "next.html")); !errors.Is(err, os.ErrNotExist) {
		t.Error("expected next.html not to be downloaded")
	}

	mu.Lock()
	defer mu.Unlock()
	if served["/next.html"] != 1 {
		t.Errorf("expected next.html to be crawled once, got %d", served["/next.html"])
	}
	if served["/index.html"] != 1 {
		t.Errorf("expected index.html to be crawled once, got %d", served["/index.html"])
	}
	if stats.PagesProcessed != 2 || stats.TotalEnqueued != 2 {
		t.Errorf("expected 2 pages, got %+v", stats)
	}
	if stats.FilesDownloaded != 2 {
		t.Errorf("expected 2 downloads, got %d", stats.FilesDownloaded)
	}
}

func TestSpiderCrawlsDottedDirectory(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	served := map[string]int{}
	html := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			if r.Method == http.MethodGet {
				mu.Lock()
				served[r.URL.Path]++
				mu.Unlock()
				_, _ = io.WriteString(w, body)
			}
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", html(`<a href="/docs/v2.0/">docs</a>`))
	mux.HandleFunc("/docs/v2.0/{$}", html(`<img src="pic.png">`))
	mux.HandleFunc("/docs/v2.0/pic.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, "pic")
	})

	tr := newTestRun(t, mux, "http://example.com/", runOptions{include: `\.png$`})
	stats := tr.run(t, 1)

	mu.Lock()
	defer mu.Unlock()
	if served["/docs/v2.0/"] != 1 {
		t.Errorf("expected /docs/v2.0/ to be crawled once, got %d", served["/docs/v2.0/"])
	}
	if _, err := os.Stat(filepath.Join(tr.root, "example.com", "docs", "v2.0", "pic.png")); err != nil {
		t.Errorf("expected pic.png from the dotted directory: %v", err)
	}
	if stats.PagesProcessed != 2 || stats.TotalEnqueued != 2 {
		t.Errorf("expected 2 pages, got %+v", stats)
	}
}

func TestSpiderSecondRunSkipsExistingFiles(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, `<img src="a.png">`)
		}
	})
	mux.HandleFunc("/a.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "data")
	})

	tr := newTestRun(t, mux, "http://example.com/", runOptions{include: `\.png$`})
	dest := filepath.Join(tr.root, "example.com", "a.png")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	stats := tr.run(t, 0)
	if stats.FilesDownloaded != 0 || stats.FilesSkipped != 1 {
		t.Errorf("expected the existing file to be skipped, got %+v", stats)
	}
	if data, _ := os.ReadFile(dest); string(data) != "old" {
		t.Errorf("expected existing file untouched, got %q", data)
	}
}

func TestSpiderFailedDownloadIsNotFatal(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, `<img src="broken.png"><img src="ok.png">`)
		}
	})
	mux.HandleFunc("/broken.png", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			return
		}
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})

	tr := newTestRun(t, mux, "http://example.com/", runOptions{})
	stats := tr.run(t, 0)

	if stats.FilesFailed != 1 || stats.FilesDownloaded != 1 {
		t.Errorf("expected one failure and one download, got %+v", stats)
	}
	var failed int
	for _, rec := range tr.journal.records {
		if rec.Status == model.StatusFailed {
			failed++
			if rec.Error == "" {
				t.Error("expected failed record to carry the error")
			}
		}
	}
	if failed != 1 {
		t.Errorf("expected one failed record, got %d", failed)
	}
}

func TestSpiderNonHTMLSeedIsNotParsed(t *testing.T) {
	t.Parallel()

	var gets int
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/file.zip", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			mu.Lock()
			gets++
			mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/zip")
	})

	tr := newTestRun(t, mux, "http://example.com/file.zip", runOptions{})
	stats := tr.run(t, 2)

	mu.Lock()
	defer mu.Unlock()
	if gets != 0 {
		t.Errorf("expected no GET for a non-HTML seed, got %d", gets)
	}
	if stats.PagesProcessed != 1 {
		t.Errorf("expected the seed to count as processed, got %d", stats.PagesProcessed)
	}
}

func TestSpiderCancellation(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	})
	tr := newTestRun(t, mux, "http://example.com/", runOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := tr.spider.Run(ctx, model.WorkItem{URL: tr.seed})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if stats.FinishedAt.IsZero() {
		t.Error("expected finished stats even when cancelled")
	}
}

func TestHandlerProbeFailureAbortsURL(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	tr := newTestRun(t, mux, "http://example.com/", runOptions{})
	tr.frontier.Seed(model.WorkItem{URL: "http://example.com/", RemainingDepth: 2})
	handler := tr.spider.handler

	err := handler.Handle(context.Background(), "http://example.com/missing", "http://example.com/", 2)
	var se *fetch.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if tr.frontier.Len() != 1 {
		t.Errorf("expected nothing enqueued after a failed probe, got %d queued", tr.frontier.Len())
	}
	stats := tr.frontier.Stats()
	if stats.FilesDownloaded != 0 || stats.FilesFailed != 0 {
		t.Errorf("expected no download attempt, got %+v", stats)
	}
}
