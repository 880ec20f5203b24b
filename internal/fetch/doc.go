// Package fetch is the HTTP transport of sitemirror.
//
// It provides the Fetcher capability (status, headers and a readable body),
// the ordered request header set with its precedence rules, the optional
// SOCKS5 proxy dialer and the transport error taxonomy used by the retry
// predicates:
//
//   - *NetworkError: connection level failure, always retryable
//   - *StatusError: non-2xx response, retryable unless it is a 4xx other
//     than 408 or 429
//
// Header precedence, lowest first, is: profile base headers, the Range
// header of segmented downloads, then caller supplied additional headers.
package fetch
