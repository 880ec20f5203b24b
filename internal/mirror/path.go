// Package mirror maps resource URLs onto the local mirror tree.
//
// A URL is stored under <root>/<host>/<path>: the scheme is stripped, the
// rest percent-decoded and NFC-normalized, characters that are illegal on
// common filesystems become "_" and dot segments are dropped so nothing can
// escape the root. A URL whose path is empty or ends in "/" is stored as
// ".../index".
package mirror

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultRoot is the mirror root used when none is configured.
const DefaultRoot = "downloads"

// IndexName is appended to URLs that end in a directory.
const IndexName = "index"

// Placeholder replaces characters that cannot appear in a file name.
const Placeholder = "_"

var (
	schemePrefix = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)
	urlExt       = regexp.MustCompile(`(?i)\.([a-z0-9]+)$`)
	mediaSubtype = regexp.MustCompile(`^[^/]+?/([\w-]+)`)
)

// LocalPath returns the destination of rawURL under root.
func LocalPath(root, rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if i := strings.IndexByte(trimmed, '#'); i >= 0 {
		trimmed = trimmed[:i]
	}
	rest := schemePrefix.ReplaceAllString(trimmed, "")

	dirLike := endsInDirectory(trimmed)

	if decoded, err := url.PathUnescape(rest); err == nil {
		rest = decoded
	}
	rest = norm.NFC.String(rest)
	rest = strings.ReplaceAll(rest, `\`, "/")
	rest = sanitize(rest)

	segments := []string{root}
	for _, seg := range strings.Split(rest, "/") {
		switch strings.TrimSpace(seg) {
		case "", ".", "..":
			continue
		}
		segments = append(segments, seg)
	}
	if dirLike {
		segments = append(segments, IndexName)
	}
	return filepath.Join(segments...)
}

// endsInDirectory reports whether the path of rawURL is empty or ends in
// "/". The query is not part of the path.
func endsInDirectory(rawURL string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		p = u.EscapedPath()
	} else {
		p = schemePrefix.ReplaceAllString(p, "")
		if i := strings.IndexByte(p, '?'); i >= 0 {
			p = p[:i]
		}
		i := strings.IndexByte(p, '/')
		if i < 0 {
			return true
		}
		p = p[i:]
	}
	return p == "" || strings.HasSuffix(p, "/")
}

// sanitize replaces : * ? " < > | and control characters.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteString(Placeholder)
		case strings.ContainsRune(`:*?"<>|`, r):
			b.WriteString(Placeholder)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ExtensionFromURL returns the extension of the last path segment of rawURL,
// without the dot, or "" when it has none or the path names a directory.
// Query and fragment are ignored.
func ExtensionFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	// A directory has no extension even if its name has a dot.
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	m := urlExt.FindStringSubmatch(path.Base(p))
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// ExtensionFromContentType derives an extension from a media type:
// "text/html; charset=utf-8" gives "html", "image/svg+xml" gives "svg".
func ExtensionFromContentType(contentType string) string {
	m := mediaSubtype.FindStringSubmatch(strings.TrimSpace(contentType))
	if len(m) < 2 {
		return ""
	}
	return strings.ToLower(m[1])
}

// FileSize returns the size of the file at p. ok is false when nothing exists
// there; any other stat failure is returned as err.
func FileSize(p string) (size int64, ok bool, err error) {
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return info.Size(), true, nil
}
