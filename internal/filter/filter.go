// Package filter holds the compiled include/exclude patterns, the size range
// and the page-like extension heuristic that decide what gets downloaded and
// what gets crawled.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a compiled, case-insensitive regular expression with an
// explicit behaviour for the empty pattern.
type Pattern struct {
	source     string
	re         *regexp.Regexp
	emptyMatch bool
}

// NewInclude compiles an include pattern. The empty pattern matches everything.
func NewInclude(expr string) (*Pattern, error) {
	return compile(expr, true)
}

// NewExclude compiles an exclude pattern. The empty pattern matches nothing.
func NewExclude(expr string) (*Pattern, error) {
	return compile(expr, false)
}

func compile(expr string, emptyMatch bool) (*Pattern, error) {
	p := &Pattern{source: expr, emptyMatch: emptyMatch}
	if expr == "" {
		return p, nil
	}
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	p.re = re
	return p, nil
}

// Match reports whether s matches the pattern.
func (p *Pattern) Match(s string) bool {
	if p == nil || p.re == nil {
		return p == nil || p.emptyMatch
	}
	return p.re.MatchString(s)
}

// String returns the source expression.
func (p *Pattern) String() string {
	if p == nil {
		return ""
	}
	return p.source
}

// SizeRange bounds a content length in bytes. A zero bound is open.
type SizeRange struct {
	Min int64
	Max int64
}

// Contains reports whether n lies inside the range. An unknown length (n < 0)
// always passes.
func (r SizeRange) Contains(n int64) bool {
	if n < 0 {
		return true
	}
	if r.Min > 0 && n < r.Min {
		return false
	}
	if r.Max > 0 && n > r.Max {
		return false
	}
	return true
}

// Validate rejects negative bounds and an inverted range.
func (r SizeRange) Validate() error {
	if r.Min < 0 || r.Max < 0 {
		return fmt.Errorf("size bounds must not be negative (min=%d, max=%d)", r.Min, r.Max)
	}
	if r.Max > 0 && r.Min > r.Max {
		return fmt.Errorf("minimum size %d exceeds maximum size %d", r.Min, r.Max)
	}
	return nil
}

var pageLike = regexp.MustCompile(`(?i)^(htm|php)`)

// IsPageLike reports whether an extension (without the dot) names a document
// that may contain further links: htm, html, php, php5 and so on.
func IsPageLike(ext string) bool {
	return pageLike.MatchString(ext)
}

// Filters groups everything the Resource Handler checks a URL against.
type Filters struct {
	Include *Pattern
	Exclude *Pattern
	Size    SizeRange
}

// New compiles include and exclude and validates the size range.
func New(include, exclude string, size SizeRange) (*Filters, error) {
	inc, err := NewInclude(include)
	if err != nil {
		return nil, err
	}
	exc, err := NewExclude(exclude)
	if err != nil {
		return nil, err
	}
	if err := size.Validate(); err != nil {
		return nil, err
	}
	return &Filters{Include: inc, Exclude: exc, Size: size}, nil
}

// Admit reports whether rawURL passes include and exclude.
func (f *Filters) Admit(rawURL string) bool {
	return f.Include.Match(rawURL) && !f.Exclude.Match(rawURL)
}

// WithinOrigin reports whether rawURL lies under baseURL: equal to it or
// continuing it with "/" or "?".
func WithinOrigin(rawURL, baseURL string) bool {
	rest, ok := strings.CutPrefix(rawURL, baseURL)
	if !ok {
		return false
	}
	return rest == "" || rest[0] == '/' || rest[0] == '?'
}
