package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Fetcher is the transport capability used by the crawler and the downloader.
//
// The returned response always has a 2xx status; any other status is turned
// into a *StatusError and the body is closed. Callers must close the body of
// a successful response.
type Fetcher interface {
	Do(ctx context.Context, method, rawURL string, headers *HeaderSet) (*http.Response, error)
}

// Client is the net/http based Fetcher.
type Client struct {
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	proxyAddress string
	timeout      time.Duration
	maxRedirects int
}

// WithProxy routes every connection through a SOCKS5 proxy at host:port.
func WithProxy(address string) ClientOption {
	return func(o *clientOptions) {
		o.proxyAddress = address
	}
}

// WithTimeout sets an overall per-request timeout on the underlying client.
// Attempts are already bounded by the retry combinator, so the default is none.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithMaxRedirects limits how many redirects are followed.
func WithMaxRedirects(n int) ClientOption {
	return func(o *clientOptions) {
		o.maxRedirects = n
	}
}

// NewClient creates a Client. It fails only when a proxy address is given
// and is malformed.
func NewClient(opts ...ClientOption) (*Client, error) {
	o := clientOptions{maxRedirects: 10}
	for _, opt := range opts {
		opt(&o)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		// Bodies are written to disk byte for byte, so never let the
		// transport negotiate and transparently decode gzip.
		DisableCompression: true,
	}

	if o.proxyAddress != "" {
		if !isValidProxyAddress(o.proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", o.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	}

	maxRedirects := o.maxRedirects
	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   o.timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}, nil
}

// NewClientFromHTTP wraps an existing *http.Client, typically an
// httptest server client.
func NewClientFromHTTP(c *http.Client) *Client {
	return &Client{httpClient: c}
}

// Do issues a request with the given headers.
func (c *Client) Do(ctx context.Context, method, rawURL string, headers *HeaderSet) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if headers != nil {
		headers.Apply(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}
	return resp, nil
}

// Metadata is what a HEAD probe reveals about a resource.
type Metadata struct {
	// ContentType is the raw Content-Type header.
	ContentType string

	// ContentLength is -1 when the server did not announce a length.
	ContentLength int64

	// AcceptRanges is true when the server advertises "Accept-Ranges: bytes".
	AcceptRanges bool
}

// Head probes rawURL with a HEAD request and returns its metadata.
func Head(ctx context.Context, f Fetcher, rawURL string, headers *HeaderSet) (Metadata, error) {
	resp, err := f.Do(ctx, http.MethodHead, rawURL, headers)
	if err != nil {
		return Metadata{}, err
	}
	defer resp.Body.Close()
	return MetadataFromHeader(resp.Header), nil
}

// MetadataFromHeader extracts Metadata from response headers.
func MetadataFromHeader(h http.Header) Metadata {
	md := Metadata{
		ContentType:   h.Get("Content-Type"),
		ContentLength: -1,
	}
	if v := strings.TrimSpace(h.Get("Content-Length")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			md.ContentLength = n
		}
	}
	for _, v := range h.Values("Accept-Ranges") {
		for _, unit := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(unit), "bytes") {
				md.AcceptRanges = true
			}
		}
	}
	return md
}

// isValidProxyAddress checks for a non-empty host and a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}
