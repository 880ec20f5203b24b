// Package retry provides the retry and timeout combinators every network
// call in sitemirror is built on.
//
// # Combinators
//
//   - Retry: repeat an operation while a caller-supplied predicate allows it
//   - Countdown / RetryN: bounded retries with an error observer
//   - WithTimeout: race one attempt against a timer
//   - RetryWithTimeout: bound every attempt of a retry loop independently
//
// # Timeouts do not cancel
//
// WithTimeout never cancels the operation it races. When the timer fires
// first the caller gets a *TimeoutError immediately, while the operation keeps
// running in its own goroutine until it settles; its outcome is then dropped.
// Operations that write to shared state must therefore buffer their result and
// let the caller commit it, as the segmented downloader does.
//
// # Usage
//
//	body, err := retry.RetryWithTimeout(
//	    func(attempt int) ([]byte, error) { return fetchSegment(ctx, attempt) },
//	    retry.Countdown(2, logFailure),
//	    30*time.Second,
//	)
package retry
