package download

import (
	"errors"
	"fmt"
)

var (
	// ErrRangeIgnored is returned when a server answers a ranged request for
	// a non-zero offset with the whole resource. Retrying cannot help.
	ErrRangeIgnored = errors.New("server ignored the Range header")

	// ErrShortBody is returned when a response body is shorter or longer than
	// the requested range. It is retried like a network failure.
	ErrShortBody = errors.New("unexpected response body length")

	// ErrIncomplete is returned when the file does not reach the total length.
	ErrIncomplete = errors.New("download incomplete")
)

// FileError reports a filesystem failure on the destination file. It aborts
// only the download it belongs to.
type FileError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}
