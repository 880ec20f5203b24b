package fetch

import (
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// Profile selects the base header set sent with every request.
type Profile string

const (
	// ProfileExtended mimics a desktop browser navigation request.
	ProfileExtended Profile = "extended"

	// ProfileLegacy only sends Accept, Accept-Language, User-Agent and Referer.
	ProfileLegacy Profile = "legacy"
)

// DefaultUserAgent is the browser identity used by both profiles.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:108.0) Gecko/20100101 Firefox/108.0"

// ParseProfile converts a configuration string into a Profile.
func ParseProfile(s string) (Profile, error) {
	switch Profile(strings.ToLower(strings.TrimSpace(s))) {
	case ProfileExtended, "":
		return ProfileExtended, nil
	case ProfileLegacy:
		return ProfileLegacy, nil
	default:
		return "", fmt.Errorf("unknown header profile %q (want extended or legacy)", s)
	}
}

// HeaderSet is an ordered header mapping. Setting an existing name replaces
// its value in place, so later layers override earlier ones while the
// original insertion order is preserved on the wire.
type HeaderSet struct {
	names  []string
	values map[string]string
}

// NewHeaderSet returns an empty HeaderSet.
func NewHeaderSet() *HeaderSet {
	return &HeaderSet{values: make(map[string]string)}
}

// Set adds or replaces a header. Names are canonicalized.
func (h *HeaderSet) Set(name, value string) {
	key := http.CanonicalHeaderKey(strings.TrimSpace(name))
	if key == "" {
		return
	}
	if _, ok := h.values[key]; !ok {
		h.names = append(h.names, key)
	}
	h.values[key] = value
}

// Get returns the value of a header, or "" when absent.
func (h *HeaderSet) Get(name string) string {
	return h.values[http.CanonicalHeaderKey(name)]
}

// Merge applies every header of other on top of h.
func (h *HeaderSet) Merge(other *HeaderSet) {
	if other == nil {
		return
	}
	for _, name := range other.names {
		h.Set(name, other.values[name])
	}
}

// MergeMap applies a plain map on top of h in sorted-name order.
func (h *HeaderSet) MergeMap(m map[string]string) {
	for _, name := range sortedKeys(m) {
		h.Set(name, m[name])
	}
}

// Names returns the header names in insertion order.
func (h *HeaderSet) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Len returns the number of headers.
func (h *HeaderSet) Len() int {
	return len(h.names)
}

// Clone returns an independent copy.
func (h *HeaderSet) Clone() *HeaderSet {
	c := NewHeaderSet()
	c.Merge(h)
	return c
}

// Apply writes the headers onto req. Host is carried by req.Host because
// net/http ignores a Host entry in req.Header.
func (h *HeaderSet) Apply(req *http.Request) {
	for _, name := range h.names {
		value := h.values[name]
		if name == "Host" {
			req.Host = value
			continue
		}
		req.Header.Set(name, value)
	}
}

// Builder produces the header set of each outgoing request.
//
// Precedence, lowest first: profile base headers, Range, additional headers.
type Builder struct {
	profile    Profile
	userAgent  string
	additional *HeaderSet
}

// NewBuilder creates a Builder. additional may be nil.
func NewBuilder(profile Profile, additional map[string]string) *Builder {
	extra := NewHeaderSet()
	extra.MergeMap(additional)
	return &Builder{
		profile:    profile,
		userAgent:  DefaultUserAgent,
		additional: extra,
	}
}

// Build returns the headers for a request to target, referred by refererURL.
func (b *Builder) Build(target, refererURL string) *HeaderSet {
	return b.build(target, refererURL, "")
}

// BuildRange is Build plus a "Range: bytes=start-end" header (end inclusive).
func (b *Builder) BuildRange(target, refererURL string, start, end int64) *HeaderSet {
	return b.build(target, refererURL, fmt.Sprintf("bytes=%d-%d", start, end))
}

func (b *Builder) build(target, refererURL, byteRange string) *HeaderSet {
	h := NewHeaderSet()
	host := hostOf(target)
	referer := refererOrigin(refererURL)

	switch b.profile {
	case ProfileLegacy:
		h.Set("Accept", "*/*")
		h.Set("Accept-Language", "en-US,en;q=0.5")
		h.Set("User-Agent", b.userAgent)
		if referer != "" {
			h.Set("Referer", referer)
		}
	default:
		h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
		// Ranges and Content-Length must describe the bytes written to disk.
		h.Set("Accept-Encoding", "identity")
		h.Set("Accept-Language", "fr,fr-FR;q=0.8,en-US;q=0.5,en;q=0.3")
		if host != "" {
			h.Set("Alt-Used", host)
			h.Set("Host", host)
		}
		if referer != "" {
			h.Set("Referer", referer)
		}
		h.Set("Sec-Fetch-Dest", "document")
		h.Set("Sec-Fetch-Mode", "navigate")
		h.Set("Sec-Fetch-Site", "same-origin")
		h.Set("Sec-Fetch-User", "?1")
		h.Set("Upgrade-Insecure-Requests", "1")
		h.Set("User-Agent", b.userAgent)
	}

	if byteRange != "" {
		h.Set("Range", byteRange)
	}
	h.Merge(b.additional)
	return h
}

// hostOf returns the host[:port] of rawURL, or "" if it cannot be parsed.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// refererOrigin reduces a referring page URL to "scheme://host/".
func refererOrigin(refererURL string) string {
	if refererURL == "" {
		return ""
	}
	u, err := url.Parse(refererURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

// ParseHeaderFlag parses a "Name: value" or "Name=value" command line value.
func ParseHeaderFlag(s string) (string, string, error) {
	idx := strings.IndexAny(s, ":=")
	if idx <= 0 {
		return "", "", fmt.Errorf("invalid header %q: expected \"Name: value\"", s)
	}
	name := strings.TrimSpace(s[:idx])
	value := strings.TrimSpace(s[idx+1:])
	if name == "" {
		return "", "", fmt.Errorf("invalid header %q: empty name", s)
	}
	return name, value, nil
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
