package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/filter"
	"github.com/nao1215/sitemirror/internal/mirror"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/retry"
)

// PathStep maps the URL onto the mirror and takes the extension from the
// URL path.
type PathStep struct {
	root string
}

// NewPathStep creates a PathStep rooted at root.
func NewPathStep(root string) *PathStep {
	if root == "" {
		root = mirror.DefaultRoot
	}
	return &PathStep{root: root}
}

// Name returns the step name.
func (s *PathStep) Name() string {
	return "path"
}

// Do executes the path step.
func (s *PathStep) Do(_ context.Context, d *model.ResourceDecision) error {
	d.Path = mirror.LocalPath(s.root, d.URL)
	d.Extension = mirror.ExtensionFromURL(d.URL)
	return nil
}

// AdmissionStep applies the same-origin restriction and the include and
// exclude patterns.
type AdmissionStep struct {
	filters    *filter.Filters
	baseURL    string
	sameOrigin bool
}

// NewAdmissionStep creates an AdmissionStep. baseURL is only consulted
// when sameOrigin is true.
func NewAdmissionStep(filters *filter.Filters, baseURL string, sameOrigin bool) *AdmissionStep {
	return &AdmissionStep{filters: filters, baseURL: baseURL, sameOrigin: sameOrigin}
}

// Name returns the step name.
func (s *AdmissionStep) Name() string {
	return "admission"
}

// Do executes the admission step.
func (s *AdmissionStep) Do(_ context.Context, d *model.ResourceDecision) error {
	if s.sameOrigin && !filter.WithinOrigin(d.URL, s.baseURL) {
		d.Reject(model.ReasonOrigin)
		return nil
	}
	if s.filters != nil && !s.filters.Admit(d.URL) {
		d.Reject(model.ReasonFiltered)
	}
	return nil
}

// ProbeStep issues a HEAD request for URLs that will be downloaded, and for
// crawlable URLs whose extension cannot be told from the path.
type ProbeStep struct {
	fetcher fetch.Fetcher
	headers *fetch.Builder
	timeout time.Duration
	retries int
	logger  *slog.Logger
}

// ProbeStepOption configures a ProbeStep.
type ProbeStepOption func(*ProbeStep)

// WithProbeTimeout bounds each probe attempt.
func WithProbeTimeout(d time.Duration) ProbeStepOption {
	return func(s *ProbeStep) {
		s.timeout = d
	}
}

// WithProbeRetries sets the number of retries after the first attempt.
func WithProbeRetries(n int) ProbeStepOption {
	return func(s *ProbeStep) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithProbeLogger sets a custom logger for the probe step.
func WithProbeLogger(logger *slog.Logger) ProbeStepOption {
	return func(s *ProbeStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewProbeStep creates a ProbeStep.
func NewProbeStep(f fetch.Fetcher, headers *fetch.Builder, opts ...ProbeStepOption) *ProbeStep {
	s := &ProbeStep{
		fetcher: f,
		headers: headers,
		timeout: 30 * time.Second,
		retries: 2,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ProbeStep) Name() string {
	return "probe"
}

// Do executes the probe step. A failed probe aborts the URL.
func (s *ProbeStep) Do(ctx context.Context, d *model.ResourceDecision) error {
	if !d.Eligible && (d.Extension != "" || !d.Crawlable) {
		return nil
	}

	onError := func(err error) {
		s.logger.Warn("Probe failed", "url", d.URL, "error", err)
	}
	countdown := retry.Countdown(s.retries, onError)
	shouldRetry := func(err error) bool {
		if ctx.Err() != nil || !fetch.IsRetryable(err) {
			onError(err)
			return false
		}
		return countdown(err)
	}

	headers := s.headers.Build(d.URL, d.RefererURL)
	md, err := retry.RetryWithTimeout(func(int) (fetch.Metadata, error) {
		return fetch.Head(ctx, s.fetcher, d.URL, headers)
	}, shouldRetry, s.timeout)
	if err != nil {
		return fmt.Errorf("probe %s: %w", d.URL, err)
	}

	d.Probed = true
	d.ContentType = md.ContentType
	d.ContentLength = md.ContentLength
	d.AcceptRanges = md.AcceptRanges
	if d.Extension == "" {
		if ext := mirror.ExtensionFromContentType(md.ContentType); ext != "" {
			d.Extension = ext
			d.Path += "." + ext
		}
	}
	return nil
}

// SizeStep rejects resources whose known length lies outside the range.
type SizeStep struct {
	size filter.SizeRange
}

// NewSizeStep creates a SizeStep.
func NewSizeStep(size filter.SizeRange) *SizeStep {
	return &SizeStep{size: size}
}

// Name returns the step name.
func (s *SizeStep) Name() string {
	return "size"
}

// Do executes the size step.
func (s *SizeStep) Do(_ context.Context, d *model.ResourceDecision) error {
	if d.Eligible && !s.size.Contains(d.ContentLength) {
		d.Reject(model.ReasonSize)
	}
	return nil
}

// ExistingFileStep decides what happens when the destination already
// exists: skip it, resume it, or replace it.
type ExistingFileStep struct {
	replaceDifferentSize bool
	resumePartial        bool
	logger               *slog.Logger
}

// ExistingFileStepOption configures an ExistingFileStep.
type ExistingFileStepOption func(*ExistingFileStep)

// WithReplaceDifferentSize deletes and re-downloads files whose size differs
// from the announced length.
func WithReplaceDifferentSize(enabled bool) ExistingFileStepOption {
	return func(s *ExistingFileStep) {
		s.replaceDifferentSize = enabled
	}
}

// WithResumePartial continues shorter files with ranged requests when the
// server supports them.
func WithResumePartial(enabled bool) ExistingFileStepOption {
	return func(s *ExistingFileStep) {
		s.resumePartial = enabled
	}
}

// WithExistingFileLogger sets a custom logger.
func WithExistingFileLogger(logger *slog.Logger) ExistingFileStepOption {
	return func(s *ExistingFileStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewExistingFileStep creates an ExistingFileStep. By default any existing
// file is skipped.
func NewExistingFileStep(opts ...ExistingFileStepOption) *ExistingFileStep {
	s := &ExistingFileStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ExistingFileStep) Name() string {
	return "existing_file"
}

// Do executes the existing file step.
func (s *ExistingFileStep) Do(_ context.Context, d *model.ResourceDecision) error {
	if !d.Eligible {
		return nil
	}

	size, ok, err := mirror.FileSize(d.Path)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", d.Path, err)
	}
	if !ok {
		return nil
	}

	switch {
	case s.resumePartial && d.AcceptRanges && d.LengthKnown() && size < d.ContentLength:
		s.logger.Info("Resuming", "path", d.Path, "offset", size, "total", d.ContentLength)
		d.ResumeOffset = size
	case s.replaceDifferentSize && d.LengthKnown() && size != d.ContentLength:
		s.logger.Info("Replacing", "path", d.Path, "size", size, "expected", d.ContentLength)
		if err := os.Remove(d.Path); err != nil {
			return fmt.Errorf("remove %s: %w", d.Path, err)
		}
	default:
		d.Reject(model.ReasonExists)
	}
	return nil
}

