package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/filter"
	"github.com/nao1215/sitemirror/internal/model"
)

func TestPathStep(t *testing.T) {
	t.Parallel()

	t.Run("maps url and extension", func(t *testing.T) {
		t.Parallel()

		d := model.NewResourceDecision("https://example.com/img/a%20b.PNG?x=1", "", 0)
		if err := NewPathStep("out").Do(context.Background(), d); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := filepath.Join("out", "example.com", "img", "a b.PNG_x=1"); d.Path != want {
			t.Errorf("expected path %q, got %q", want, d.Path)
		}
		if d.Extension != "PNG" {
			t.Errorf("expected extension PNG, got %q", d.Extension)
		}
	})

	t.Run("empty root falls back to downloads", func(t *testing.T) {
		t.Parallel()

		d := model.NewResourceDecision("https://example.com/", "", 0)
		_ = NewPathStep("").Do(context.Background(), d)
		if want := filepath.Join("downloads", "example.com", "index"); d.Path != want {
			t.Errorf("expected path %q, got %q", want, d.Path)
		}
		if d.Extension != "" {
			t.Errorf("expected no extension, got %q", d.Extension)
		}
	})
}

func TestAdmissionStep(t *testing.T) {
	t.Parallel()

	filters, err := filter.New(`\.(jpg|png)$`, "thumb", filter.SizeRange{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		url        string
		sameOrigin bool
		eligible   bool
		reason     string
	}{
		{"included", "https://example.com/a.png", true, true, ""},
		{"not included", "https://example.com/page.html", false, false, model.ReasonFiltered},
		{"excluded", "https://example.com/thumb.png", false, false, model.ReasonFiltered},
		{"other origin", "https://cdn.example.net/a.png", true, false, model.ReasonOrigin},
		{"other origin allowed", "https://cdn.example.net/a.png", false, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := model.NewResourceDecision(tt.url, "", 1)
			step := NewAdmissionStep(filters, "https://example.com", tt.sameOrigin)
			if err := step.Do(context.Background(), d); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Eligible != tt.eligible {
				t.Errorf("expected eligible=%v, got %v (%v)", tt.eligible, d.Eligible, d.Reasons)
			}
			if tt.reason != "" && !d.Rejected(tt.reason) {
				t.Errorf("expected reason %q, got %v", tt.reason, d.Reasons)
			}
		})
	}
}

func newProbeServer(t *testing.T, heads *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			heads.Add(1)
		}
		switch r.URL.Path {
		case "/a.png":
			http.ServeContent(w, r, "a.png", time.Time{}, bytes.NewReader(make([]byte, 1234)))
		case "/article":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
		case "/gone.png":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProbe(srv *httptest.Server, opts ...ProbeStepOption) *ProbeStep {
	return NewProbeStep(fetch.NewClientFromHTTP(srv.Client()), fetch.NewBuilder(fetch.ProfileExtended, nil), opts...)
}

func TestProbeStep(t *testing.T) {
	t.Parallel()

	t.Run("captures length and range support", func(t *testing.T) {
		t.Parallel()

		var heads atomic.Int32
		srv := newProbeServer(t, &heads)
		d := model.NewResourceDecision(srv.URL+"/a.png", srv.URL+"/", 0)
		_ = NewPathStep(t.TempDir()).Do(context.Background(), d)

		if err := newTestProbe(srv).Do(context.Background(), d); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Probed || d.ContentLength != 1234 || !d.AcceptRanges {
			t.Errorf("unexpected probe result: probed=%v length=%d ranges=%v", d.Probed, d.ContentLength, d.AcceptRanges)
		}
		if d.Extension != "png" {
			t.Errorf("expected extension to stay png, got %q", d.Extension)
		}
	})

	t.Run("derives extension from media type", func(t *testing.T) {
		t.Parallel()

		var heads atomic.Int32
		srv := newProbeServer(t, &heads)
		root := t.TempDir()
		d := model.NewResourceDecision(srv.URL+"/article", "", 1)
		d.Reject(model.ReasonFiltered)
		_ = NewPathStep(root).Do(context.Background(), d)

		if err := newTestProbe(srv).Do(context.Background(), d); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Extension != "html" {
			t.Errorf("expected html, got %q", d.Extension)
		}
		if filepath.Ext(d.Path) != ".html" {
			t.Errorf("expected .html appended to path, got %q", d.Path)
		}
		if heads.Load() != 1 {
			t.Errorf("expected 1 HEAD request, got %d", heads.Load())
		}
	})

	t.Run("skips ineligible urls with a known extension", func(t *testing.T) {
		t.Parallel()

		var heads atomic.Int32
		srv := newProbeServer(t, &heads)
		d := model.NewResourceDecision(srv.URL+"/a.png", "", 3)
		d.Reject(model.ReasonFiltered)
		_ = NewPathStep(t.TempDir()).Do(context.Background(), d)

		if err := newTestProbe(srv).Do(context.Background(), d); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if heads.Load() != 0 || d.Probed {
			t.Errorf("expected no probe, got %d HEAD requests", heads.Load())
		}
	})

	t.Run("skips ineligible urls that cannot be crawled", func(t *testing.T) {
		t.Parallel()

		var heads atomic.Int32
		srv := newProbeServer(t, &heads)
		d := model.NewResourceDecision(srv.URL+"/article", "", 0)
		d.Reject(model.ReasonFiltered)

		if err := newTestProbe(srv).Do(context.Background(), d); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if heads.Load() != 0 {
			t.Errorf("expected no probe, got %d HEAD requests", heads.Load())
		}
	})

	t.Run("client errors are not retried and abort the url", func(t *testing.T) {
		t.Parallel()

		var heads atomic.Int32
		srv := newProbeServer(t, &heads)
		d := model.NewResourceDecision(srv.URL+"/gone.png", "", 0)

		err := newTestProbe(srv, WithProbeRetries(3)).Do(context.Background(), d)
		var se *fetch.StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 StatusError, got %v", err)
		}
		if heads.Load() != 1 {
			t.Errorf("expected 1 HEAD request, got %d", heads.Load())
		}
	})

	t.Run("server errors are retried", func(t *testing.T) {
		t.Parallel()

		var heads atomic.Int32
		srv := newProbeServer(t, &heads)
		d := model.NewResourceDecision(srv.URL+"/down.png", "", 0)

		err := newTestProbe(srv, WithProbeRetries(2), WithProbeTimeout(time.Second)).Do(context.Background(), d)
		if err == nil {
			t.Fatal("expected error")
		}
		if heads.Load() != 3 {
			t.Errorf("expected 3 HEAD requests, got %d", heads.Load())
		}
	})
}

func TestSizeStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		length   int64
		eligible bool
	}{
		{"unknown length passes", model.UnknownLength, true},
		{"inside range", 500, true},
		{"too small", 10, false},
		{"too large", 5000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := model.NewResourceDecision("http://example.com/a.png", "", 0)
			d.ContentLength = tt.length
			_ = NewSizeStep(filter.SizeRange{Min: 100, Max: 1000}).Do(context.Background(), d)
			if d.Eligible != tt.eligible {
				t.Errorf("expected eligible=%v, got %v", tt.eligible, d.Eligible)
			}
		})
	}
}

func TestExistingFileStep(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T, existing int, length int64, ranges bool) *model.ResourceDecision {
		t.Helper()
		d := model.NewResourceDecision("http://example.com/a.png", "", 0)
		d.Path = filepath.Join(t.TempDir(), "a.png")
		d.ContentLength = length
		d.AcceptRanges = ranges
		if existing >= 0 {
			if err := os.WriteFile(d.Path, make([]byte, existing), 0o600); err != nil {
				t.Fatal(err)
			}
		}
		return d
	}

	t.Run("missing file is downloaded", func(t *testing.T) {
		t.Parallel()

		d := setup(t, -1, 100, true)
		if err := NewExistingFileStep().Do(context.Background(), d); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Eligible {
			t.Error("expected decision to stay eligible")
		}
	})

	t.Run("existing file is skipped by default", func(t *testing.T) {
		t.Parallel()

		d := setup(t, 40, 100, true)
		_ = NewExistingFileStep().Do(context.Background(), d)
		if d.Eligible || !d.Rejected(model.ReasonExists) {
			t.Errorf("expected skip, got eligible=%v reasons=%v", d.Eligible, d.Reasons)
		}
	})

	t.Run("shorter file is resumed", func(t *testing.T) {
		t.Parallel()

		d := setup(t, 40, 100, true)
		_ = NewExistingFileStep(WithResumePartial(true)).Do(context.Background(), d)
		if !d.Eligible || d.ResumeOffset != 40 {
			t.Errorf("expected resume at 40, got eligible=%v offset=%d", d.Eligible, d.ResumeOffset)
		}
	})

	t.Run("resume needs range support", func(t *testing.T) {
		t.Parallel()

		d := setup(t, 40, 100, false)
		_ = NewExistingFileStep(WithResumePartial(true)).Do(context.Background(), d)
		if d.Eligible {
			t.Error("expected skip without range support")
		}
	})

	t.Run("different size is replaced", func(t *testing.T) {
		t.Parallel()

		d := setup(t, 150, 100, false)
		if err := NewExistingFileStep(WithReplaceDifferentSize(true)).Do(context.Background(), d); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Eligible || d.ResumeOffset != 0 {
			t.Errorf("expected fresh download, got eligible=%v offset=%d", d.Eligible, d.ResumeOffset)
		}
		if _, err := os.Stat(d.Path); !os.IsNotExist(err) {
			t.Errorf("expected old file removed, got %v", err)
		}
	})

	t.Run("same size is kept even when replacing", func(t *testing.T) {
		t.Parallel()

		d := setup(t, 100, 100, true)
		_ = NewExistingFileStep(WithReplaceDifferentSize(true), WithResumePartial(true)).Do(context.Background(), d)
		if d.Eligible {
			t.Error("expected complete file to be skipped")
		}
	})

	t.Run("unknown length is never replaced", func(t *testing.T) {
		t.Parallel()

		d := setup(t, 10, model.UnknownLength, false)
		_ = NewExistingFileStep(WithReplaceDifferentSize(true)).Do(context.Background(), d)
		if d.Eligible {
			t.Error("expected skip when length is unknown")
		}
	})
}
