// Package download implements the segmented downloader and its progress
// reporter.
//
// A resource is fetched in byte ranges of at most the configured segment
// size when the server supports ranges, otherwise in one request. Each
// segment goes through the retry combinator with its own timeout, scaled by
// the segment size. A segment body is read completely inside its attempt and
// only appended to the destination once the attempt succeeded, so writes are
// strictly ordered and contiguous even when a timed-out attempt is still
// running in the background.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/log"
	"github.com/nao1215/sitemirror/internal/retry"
)

const (
	// DefaultSegmentSize is the largest byte range fetched in one request.
	DefaultSegmentSize int64 = 10 << 20

	// DefaultTimeout bounds the transfer of one default-sized segment.
	DefaultTimeout = 120 * time.Second

	// DefaultRetries is the number of retries after the first attempt.
	DefaultRetries = 2
)

// Request describes one file to download.
type Request struct {
	URL        string
	RefererURL string
	Path       string

	// Total is the resource length, negative when unknown.
	Total int64

	// AcceptRanges enables segmented transfer.
	AcceptRanges bool

	// Offset is the number of bytes already present in Path.
	Offset int64
}

// Result summarizes a finished download.
type Result struct {
	// Written is the number of bytes appended by this download.
	Written int64

	// Size is the final file size.
	Size int64

	// Requests is the number of successful GET requests.
	Requests int
}

// Downloader fetches resources into files. It is not safe for concurrent use
// on the same destination.
type Downloader struct {
	fetcher          fetch.Fetcher
	headers          *fetch.Builder
	logger           *slog.Logger
	segmentSize      int64
	segmented        bool
	baseTimeout      time.Duration
	retries          int
	progressInterval time.Duration
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithSegmentSize sets the maximum range size. Non-positive values are ignored.
func WithSegmentSize(n int64) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.segmentSize = n
		}
	}
}

// WithSegmented enables or disables ranged transfer.
func WithSegmented(enabled bool) Option {
	return func(d *Downloader) {
		d.segmented = enabled
	}
}

// WithTimeout sets the baseline timeout of a default-sized segment.
func WithTimeout(t time.Duration) Option {
	return func(d *Downloader) {
		d.baseTimeout = t
	}
}

// WithRetries sets how many times a failed segment is retried.
func WithRetries(n int) Option {
	return func(d *Downloader) {
		if n >= 0 {
			d.retries = n
		}
	}
}

// WithLogger sets the logger. Progress lines go out at trace level.
func WithLogger(l *slog.Logger) Option {
	return func(d *Downloader) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithProgressInterval sets the progress throttle.
func WithProgressInterval(i time.Duration) Option {
	return func(d *Downloader) {
		d.progressInterval = i
	}
}

// New creates a Downloader.
func New(f fetch.Fetcher, headers *fetch.Builder, opts ...Option) *Downloader {
	d := &Downloader{
		fetcher:          f,
		headers:          headers,
		logger:           slog.Default(),
		segmentSize:      DefaultSegmentSize,
		segmented:        true,
		baseTimeout:      DefaultTimeout,
		retries:          DefaultRetries,
		progressInterval: DefaultProgressInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SegmentTimeout scales the baseline timeout by size relative to the default
// segment size, never going below the baseline.
func (d *Downloader) SegmentTimeout(size int64) time.Duration {
	if d.baseTimeout <= 0 {
		return 0
	}
	scaled := time.Duration(float64(d.baseTimeout) * float64(size) / float64(DefaultSegmentSize))
	return max(d.baseTimeout, scaled)
}

// Download appends the resource to req.Path, starting at req.Offset.
//
// On failure the partially written file is left in place and the error wraps
// the cause: a *FileError for the filesystem, otherwise the last transport
// error.
func (d *Downloader) Download(ctx context.Context, req Request) (Result, error) {
	f, err := os.OpenFile(req.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // mirror files are world readable
	if err != nil {
		return Result{}, &FileError{Op: "open", Path: req.Path, Err: err}
	}

	res, err := d.transfer(ctx, f, req)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = &FileError{Op: "close", Path: req.Path, Err: cerr}
	}
	return res, err
}

func (d *Downloader) transfer(ctx context.Context, f *os.File, req Request) (Result, error) {
	res := Result{Size: req.Offset}
	progress := NewProgress(req.Total, func(line string) {
		d.logger.Log(ctx, log.LevelTrace, line, "path", req.Path)
	}, WithInterval(d.progressInterval))
	progress.Start(req.Offset)

	if req.Total < 0 {
		body, err := d.fetchWithRetry(ctx, req, -1, -1)
		if err != nil {
			return res, err
		}
		if err := appendBody(f, req.Path, body); err != nil {
			return res, err
		}
		res.Requests++
		res.Written = int64(len(body))
		res.Size += res.Written
		progress.Finish(res.Size)
		return res, nil
	}

	segmentSize := req.Total
	if req.AcceptRanges && d.segmented {
		segmentSize = d.segmentSize
	}

	offset := req.Offset
	for offset < req.Total {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		end := min(offset+segmentSize, req.Total) - 1

		var body []byte
		var err error
		if req.AcceptRanges || offset > 0 {
			body, err = d.fetchWithRetry(ctx, req, offset, end)
		} else {
			body, err = d.fetchWithRetry(ctx, req, -1, -1)
		}
		if err != nil {
			return res, fmt.Errorf("segment %d-%d: %w", offset, end, err)
		}
		if err := appendBody(f, req.Path, body); err != nil {
			return res, err
		}
		res.Requests++
		offset += int64(len(body))
		res.Written += int64(len(body))
		res.Size = offset
		progress.Update(offset)
	}
	progress.Finish(offset)

	if offset != req.Total {
		return res, fmt.Errorf("%w: wrote %d of %d bytes", ErrIncomplete, offset, req.Total)
	}
	return res, nil
}

// fetchWithRetry fetches bytes start..end (inclusive) or, with start < 0,
// the whole resource, retrying per policy. Each attempt has its own timeout.
func (d *Downloader) fetchWithRetry(ctx context.Context, req Request, start, end int64) ([]byte, error) {
	timeout := d.baseTimeout
	if start >= 0 {
		timeout = d.SegmentTimeout(end - start + 1)
	} else if req.Total > 0 {
		timeout = d.SegmentTimeout(req.Total)
	}

	onError := func(err error) {
		d.logger.Warn("Segment failed", "url", req.URL, "start", start, "end", end, "error", err)
	}
	return retry.RetryWithTimeout(func(int) ([]byte, error) {
		return d.fetchSegment(ctx, req, start, end)
	}, shouldRetry(ctx, d.retries, onError), timeout)
}

// shouldRetry combines the retry budget with the non-retryable cases.
func shouldRetry(ctx context.Context, retries int, onError func(error)) retry.Predicate {
	countdown := retry.Countdown(retries, onError)
	return func(err error) bool {
		if ctx.Err() != nil || errors.Is(err, ErrRangeIgnored) || !fetch.IsRetryable(err) {
			onError(err)
			return false
		}
		return countdown(err)
	}
}

func (d *Downloader) fetchSegment(ctx context.Context, req Request, start, end int64) ([]byte, error) {
	var headers *fetch.HeaderSet
	if start >= 0 {
		headers = d.headers.BuildRange(req.URL, req.RefererURL, start, end)
	} else {
		headers = d.headers.Build(req.URL, req.RefererURL)
	}

	resp, err := d.fetcher.Do(ctx, http.MethodGet, req.URL, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	want := int64(-1)
	switch {
	case start < 0:
		want = req.Total
	case resp.StatusCode == http.StatusPartialContent:
		want = end - start + 1
	case start == 0:
		// Range ignored at the start: the body is the whole resource.
		want = req.Total
	default:
		return nil, fmt.Errorf("%w: status %d for offset %d", ErrRangeIgnored, resp.StatusCode, start)
	}

	var r io.Reader = resp.Body
	if want >= 0 {
		r = io.LimitReader(resp.Body, want+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, &fetch.NetworkError{URL: req.URL, Err: err}
	}
	if want >= 0 && int64(len(body)) != want {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrShortBody, len(body), want)
	}
	return body, nil
}

func appendBody(f *os.File, path string, body []byte) error {
	if _, err := f.Write(body); err != nil {
		return &FileError{Op: "write", Path: path, Err: err}
	}
	return nil
}
