package retry

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is matched by every *TimeoutError through errors.Is.
var ErrTimeout = errors.New("operation timed out")

// TimeoutError reports that a single attempt exceeded its time bound.
type TimeoutError struct {
	// Delay is the bound that was exceeded.
	Delay time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout(%s)", e.Delay)
}

// Is makes errors.Is(err, ErrTimeout) true for any TimeoutError.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Operation is one attempt of a retried call. attempt starts at 0.
type Operation[T any] func(attempt int) (T, error)

// Predicate decides, after a failed attempt, whether another attempt is made.
type Predicate func(err error) bool

// Retry invokes op until it succeeds or shouldRetry returns false.
//
// The outcome of the last attempt is returned as is: when shouldRetry refuses
// another attempt, the caller receives exactly the value and error that
// attempt produced.
func Retry[T any](op Operation[T], shouldRetry Predicate) (T, error) {
	for attempt := 0; ; attempt++ {
		result, err := op(attempt)
		if err == nil {
			return result, nil
		}
		if !shouldRetry(err) {
			return result, err
		}
	}
}

// Countdown returns a predicate that allows n retries after the first
// attempt. onError, when non-nil, observes every failure including the last.
//
// The returned predicate is stateful; build a fresh one per retried call.
func Countdown(n int, onError func(err error)) Predicate {
	remaining := n
	return func(err error) bool {
		if onError != nil {
			onError(err)
		}
		if remaining <= 0 {
			return false
		}
		remaining--
		return true
	}
}

// RetryN invokes op at most n+1 times, reporting each failure to onError.
func RetryN[T any](op Operation[T], n int, onError func(err error)) (T, error) {
	return Retry(op, Countdown(n, onError))
}

// outcome carries the result of an operation across the timeout race.
type outcome[T any] struct {
	value T
	err   error
}

// WithTimeout runs op and waits at most d for it to settle.
//
// If the timer fires first a *TimeoutError is returned and op is left
// running; whatever it eventually returns is discarded. The timer is stopped
// as soon as op settles. A non-positive d disables the bound.
func WithTimeout[T any](op func() (T, error), d time.Duration) (T, error) {
	if d <= 0 {
		return op()
	}

	// Buffered so an abandoned op can always deliver and exit.
	done := make(chan outcome[T], 1)
	go func() {
		value, err := op()
		done <- outcome[T]{value: value, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.value, out.err
	case <-timer.C:
		var zero T
		return zero, &TimeoutError{Delay: d}
	}
}

// RetryWithTimeout is Retry where every attempt is bounded by d on its own.
func RetryWithTimeout[T any](op Operation[T], shouldRetry Predicate, d time.Duration) (T, error) {
	return Retry(func(attempt int) (T, error) {
		return WithTimeout(func() (T, error) { return op(attempt) }, d)
	}, shouldRetry)
}

// RetryNWithTimeout is RetryN where every attempt is bounded by d on its own.
func RetryNWithTimeout[T any](op Operation[T], n int, d time.Duration, onError func(err error)) (T, error) {
	return RetryWithTimeout(op, Countdown(n, onError), d)
}
