package model

import "slices"

// UnknownLength marks a content length the server did not announce.
const UnknownLength int64 = -1

// Reasons a decision becomes ineligible for download.
const (
	ReasonOrigin   = "outside the seed origin"
	ReasonFiltered = "filtered by include/exclude"
	ReasonSize     = "size out of range"
	ReasonExists   = "already downloaded"
)

// ResourceDecision is the outcome of evaluating one discovered URL. It lives
// for a single Resource Handler invocation and is never persisted.
type ResourceDecision struct {
	URL            string
	RefererURL     string
	RemainingDepth int

	// Path is the destination file. The probe may append an extension.
	Path string

	// Extension is taken from the URL path, or from the media type when the
	// path has none. Empty when neither yields one.
	Extension string

	// ContentType is the Content-Type seen by the probe.
	ContentType string

	// ContentLength is UnknownLength until a probe reports one.
	ContentLength int64

	// AcceptRanges is true when the server advertises byte ranges.
	AcceptRanges bool

	// Probed is true once a metadata probe succeeded.
	Probed bool

	// ResumeOffset is where the download starts; non-zero when a shorter
	// existing file is resumed.
	ResumeOffset int64

	// Eligible is true while the URL may still be downloaded.
	Eligible bool

	// Crawlable is true while the URL may still be enqueued as a page.
	Crawlable bool

	// Reasons records why the decision became ineligible, in order.
	Reasons []string
}

// NewResourceDecision starts an eligible decision with unknown length.
func NewResourceDecision(url, refererURL string, remainingDepth int) *ResourceDecision {
	return &ResourceDecision{
		URL:            url,
		RefererURL:     refererURL,
		RemainingDepth: remainingDepth,
		ContentLength:  UnknownLength,
		Eligible:       true,
		Crawlable:      remainingDepth > 0,
	}
}

// Reject marks the decision ineligible for download and records why.
func (d *ResourceDecision) Reject(reason string) {
	d.Eligible = false
	d.Reasons = append(d.Reasons, reason)
}

// LengthKnown reports whether the probe found a content length.
func (d *ResourceDecision) LengthKnown() bool {
	return d.ContentLength >= 0
}

// Rejected reports whether reason was recorded.
func (d *ResourceDecision) Rejected(reason string) bool {
	return slices.Contains(d.Reasons, reason)
}
