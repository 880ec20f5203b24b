package model

// WorkItem is a page scheduled for crawling. It is created when a discovered
// URL is admitted and consumed exactly once when popped from the frontier.
type WorkItem struct {
	// URL is the canonical absolute URL of the page.
	URL string `json:"url"`

	// RefererURL is the page the URL was discovered on; empty for the seed.
	RefererURL string `json:"referer_url,omitempty"`

	// RemainingDepth is how many more levels may be crawled below this page.
	RemainingDepth int `json:"remaining_depth"`
}

// Page is a fetched document.
type Page struct {
	// URL is the page URL after canonicalization.
	URL string `json:"url"`

	// StatusCode is the HTTP status of the GET.
	StatusCode int `json:"status_code"`

	// ContentType is the raw Content-Type header.
	ContentType string `json:"content_type"`

	// Title is the text of <title>, if any.
	Title string `json:"title,omitempty"`

	// Links are the raw attribute values of img[src], a[href], video[src]
	// and source[src], in document order, before resolution.
	Links []string `json:"links,omitempty"`
}
