package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidSeedURL is returned when the seed is not an absolute http(s)
	// URL. The run aborts before any request is made.
	ErrInvalidSeedURL = errors.New("invalid seed URL: expected an absolute http:// or https:// URL")

	// ErrInvalidDepth is returned for a negative crawl depth.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidDelay is returned for a negative delay.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidSizeRange is returned for negative or inverted size bounds.
	ErrInvalidSizeRange = errors.New("invalid size range: bounds must be non-negative and min must not exceed max")

	// ErrInvalidSegmentSize is returned when the segment size is not positive.
	ErrInvalidSegmentSize = errors.New("invalid segment size: must be positive")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetries is returned for a negative retry count.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")

	// ErrInvalidQueueOrder is returned for a queue order other than fifo or lifo.
	ErrInvalidQueueOrder = errors.New("invalid queue order: must be fifo or lifo")

	// ErrInvalidHeaderProfile is returned for a profile other than extended or legacy.
	ErrInvalidHeaderProfile = errors.New("invalid header profile: must be extended or legacy")

	// ErrEmptyOutputDir is returned when no mirror root is set.
	ErrEmptyOutputDir = errors.New("output directory must not be empty")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidEnvValue is returned when a WEBSCRAPER_* variable cannot be
	// parsed as the type of its setting.
	ErrInvalidEnvValue = errors.New("invalid environment value")
)
