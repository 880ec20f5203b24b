package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidProxyAddress is returned when the proxy address is not host:port.
var ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

// StatusError is returned for every non-2xx response.
type StatusError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// URL is the requested URL.
	URL string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// NetworkError wraps a transport failure: DNS, connect, TLS, reset or a body
// that stopped short.
type NetworkError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether another attempt could succeed.
//
// Client errors are permanent except 408 Request Timeout and
// 429 Too Many Requests. Everything else, including timeouts and
// server errors, is worth another try.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode >= 400 && se.StatusCode < 500 {
			return se.StatusCode == http.StatusRequestTimeout || se.StatusCode == http.StatusTooManyRequests
		}
	}
	return true
}
