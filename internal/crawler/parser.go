package crawler

import (
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// linkSelector matches every element whose URL attribute is a candidate
// for download or crawling.
const linkSelector = "img[src], a[href], video[src], source[src]"

// Document is what the parser extracts from one page.
type Document struct {
	// Title is the text of the first <title> element.
	Title string

	// Links holds the raw URL attribute values in document order.
	Links []string
}

// IsHTML reports whether a Content-Type names an HTML document.
func IsHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "text/html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// ParseDocument decodes body using the charset announced by contentType or
// the document itself, then collects its candidate links.
func ParseDocument(body io.Reader, contentType string) (*Document, error) {
	r, err := charset.NewReader(body, contentType)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	result := &Document{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Links: make([]string, 0),
	}
	doc.Find(linkSelector).Each(func(_ int, s *goquery.Selection) {
		attr := "src"
		if goquery.NodeName(s) == "a" {
			attr = "href"
		}
		v, ok := s.Attr(attr)
		if !ok {
			return
		}
		v = strings.TrimSpace(v)
		if shouldSkipLink(v) {
			return
		}
		result.Links = append(result.Links, v)
	})
	return result, nil
}

// shouldSkipLink filters values that never name a fetchable resource.
func shouldSkipLink(href string) bool {
	lower := strings.ToLower(href)
	switch {
	case lower == "", strings.HasPrefix(lower, "#"):
		return true
	case strings.HasPrefix(lower, "javascript:"),
		strings.HasPrefix(lower, "mailto:"),
		strings.HasPrefix(lower, "tel:"),
		strings.HasPrefix(lower, "data:"):
		return true
	}
	return false
}
