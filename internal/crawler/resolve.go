package crawler

import (
	"regexp"
	"strings"

	"github.com/nao1215/sitemirror/internal/config"
)

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// BaseURL returns "scheme://host" of a valid http(s) seed URL.
func BaseURL(seed string) (string, error) {
	u, err := config.ParseSeedURL(seed)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

// Resolve turns a link found on pageURL into an absolute URL without a
// fragment. Root-relative links are anchored under baseURL rather than the
// page host. Resolving an already resolved URL returns it unchanged.
func Resolve(link, pageURL, baseURL string) string {
	link = strings.TrimSpace(link)
	if i := strings.IndexByte(link, '#'); i >= 0 {
		link = link[:i]
	}

	var abs string
	switch {
	case schemeRe.MatchString(link):
		abs = link
	case strings.HasPrefix(link, "//"):
		abs = schemeOf(pageURL) + ":" + link
	case strings.HasPrefix(link, "/"):
		abs = strings.TrimSuffix(baseURL, "/") + link
	case strings.HasPrefix(link, "?"):
		page, _, _ := strings.Cut(stripFragment(pageURL), "?")
		abs = page + link
	case link == "":
		abs = stripFragment(pageURL)
	default:
		abs = directoryOf(pageURL) + link
	}
	return collapseDots(abs)
}

func stripFragment(s string) string {
	before, _, _ := strings.Cut(s, "#")
	return before
}

func schemeOf(rawURL string) string {
	if m := schemeRe.FindString(rawURL); m != "" {
		return strings.ToLower(strings.TrimSuffix(m, ":"))
	}
	return "http"
}

// splitAuthority splits "scheme://host/path?query" into "scheme://host" and
// the rest. ok is false for URLs without an authority, such as mailto:.
func splitAuthority(rawURL string) (prefix, rest string, ok bool) {
	m := schemeRe.FindString(rawURL)
	if m == "" || !strings.HasPrefix(rawURL[len(m):], "//") {
		return "", rawURL, false
	}
	start := len(m) + 2
	end := strings.IndexAny(rawURL[start:], "/?")
	if end < 0 {
		return rawURL, "", true
	}
	return rawURL[:start+end], rawURL[start+end:], true
}

// directoryOf returns pageURL up to and including the last "/" of its path.
func directoryOf(pageURL string) string {
	page, _, _ := strings.Cut(stripFragment(pageURL), "?")
	prefix, path, ok := splitAuthority(page)
	if !ok {
		return page
	}
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return prefix + "/"
	}
	return prefix + path[:i+1]
}

// collapseDots removes "." segments and folds "segment/.." pairs in the path.
// The scheme, host and query are never touched.
func collapseDots(rawURL string) string {
	prefix, rest, ok := splitAuthority(rawURL)
	if !ok || rest == "" {
		return rawURL
	}
	path, query, hasQuery := strings.Cut(rest, "?")
	if path == "" {
		return rawURL
	}

	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if !hasDotSegment(segs) {
		return rawURL
	}

	out := make([]string, 0, len(segs))
	trailing := false
	for i, seg := range segs {
		last := i == len(segs)-1
		switch seg {
		case ".":
			trailing = trailing || last
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			trailing = trailing || last
		default:
			out = append(out, seg)
		}
	}

	path = "/" + strings.Join(out, "/")
	if trailing && len(out) > 0 {
		path += "/"
	}
	if hasQuery {
		return prefix + path + "?" + query
	}
	return prefix + path
}

func hasDotSegment(segs []string) bool {
	for _, s := range segs {
		if s == "." || s == ".." {
			return true
		}
	}
	return false
}
