package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientDo(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("X-Seen-UA", r.Header.Get("User-Agent"))
			w.Header().Set("X-Seen-Host", r.Host)
			_, _ = io.WriteString(w, "hello")
		case "/missing":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClientFromHTTP(srv.Client())

	t.Run("success returns readable body and sends headers", func(t *testing.T) {
		t.Parallel()

		h := NewHeaderSet()
		h.Set("User-Agent", "tester")
		resp, err := client.Do(context.Background(), http.MethodGet, srv.URL+"/ok", h)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "hello" {
			t.Errorf("expected body 'hello', got %q", body)
		}
		if got := resp.Header.Get("X-Seen-UA"); got != "tester" {
			t.Errorf("expected User-Agent 'tester', got %q", got)
		}
	})

	t.Run("non-2xx becomes StatusError", func(t *testing.T) {
		t.Parallel()

		_, err := client.Do(context.Background(), http.MethodGet, srv.URL+"/missing", nil)
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if se.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", se.StatusCode)
		}
		if IsRetryable(err) {
			t.Error("expected 404 not to be retryable")
		}
	})

	t.Run("server error is retryable", func(t *testing.T) {
		t.Parallel()

		_, err := client.Do(context.Background(), http.MethodGet, srv.URL+"/down", nil)
		if !IsRetryable(err) {
			t.Errorf("expected 503 to be retryable, got %v", err)
		}
	})

	t.Run("connection failure becomes NetworkError", func(t *testing.T) {
		t.Parallel()

		closed := httptest.NewServer(http.NotFoundHandler())
		addr := closed.URL
		closed.Close()

		_, err := client.Do(context.Background(), http.MethodGet, addr, nil)
		var ne *NetworkError
		if !errors.As(err, &ne) {
			t.Fatalf("expected NetworkError, got %v", err)
		}
		if !IsRetryable(err) {
			t.Error("expected network errors to be retryable")
		}
	})
}

func TestHead(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", "1234")
		w.Header().Set("Accept-Ranges", "bytes")
	}))
	t.Cleanup(srv.Close)

	md, err := Head(context.Background(), NewClientFromHTTP(srv.Client()), srv.URL+"/a", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.ContentType != "image/png" {
		t.Errorf("expected image/png, got %q", md.ContentType)
	}
	if md.ContentLength != 1234 {
		t.Errorf("expected length 1234, got %d", md.ContentLength)
	}
	if !md.AcceptRanges {
		t.Error("expected AcceptRanges to be true")
	}
}

func TestMetadataFromHeader(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("Accept-Ranges", "none")
	md := MetadataFromHeader(h)
	if md.ContentLength != -1 {
		t.Errorf("expected unknown length -1, got %d", md.ContentLength)
	}
	if md.AcceptRanges {
		t.Error("expected AcceptRanges false for 'none'")
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"400", &StatusError{StatusCode: 400}, false},
		{"403", &StatusError{StatusCode: 403}, false},
		{"408", &StatusError{StatusCode: 408}, true},
		{"429", &StatusError{StatusCode: 429}, true},
		{"500", &StatusError{StatusCode: 500}, true},
		{"plain", errors.New("x"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNewClientProxy(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(WithProxy("127.0.0.1:9050")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, addr := range []string{"127.0.0.1", ":9050", "host:0", "host:70000"} {
		if _, err := NewClient(WithProxy(addr)); !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("%q: expected ErrInvalidProxyAddress, got %v", addr, err)
		}
	}
}
