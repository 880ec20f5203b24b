package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitemirror"

	// DefaultDelay is the pause between two work items and between two
	// links handled on one page.
	DefaultDelay = 500 * time.Millisecond

	// DefaultSegmentSize is the largest byte range requested at once.
	DefaultSegmentSize int64 = 10 * 1024 * 1024

	// DefaultProbeTimeout bounds one HEAD probe or page fetch attempt.
	DefaultProbeTimeout = 30 * time.Second

	// DefaultDownloadTimeout bounds the transfer of one 10 MiB segment.
	// Larger segments get a proportionally longer bound.
	DefaultDownloadTimeout = 120 * time.Second

	// DefaultRetries is the number of retries after a failed first attempt.
	DefaultRetries = 2

	// DefaultOutputDir is the mirror root, relative to the working directory.
	DefaultOutputDir = "downloads"

	// DefaultLogLevel is the minimum level printed as regular lines.
	DefaultLogLevel = "info"

	// DefaultHeaderProfile selects the browser-like header set.
	DefaultHeaderProfile = "extended"
)

// QueueOrder selects the frontier discipline.
type QueueOrder string

const (
	// QueueFIFO crawls breadth-first: pages are processed in discovery order.
	QueueFIFO QueueOrder = "fifo"

	// QueueLIFO crawls depth-first: the most recently discovered page goes next.
	QueueLIFO QueueOrder = "lifo"
)

// Config holds every setting of one mirror run. It is filled from positional
// arguments and flags, then from the environment, then from the site file,
// and passed down explicitly.
type Config struct {
	// SeedURL is the first page to crawl. Must be an absolute http(s) URL.
	SeedURL string

	// Include is matched case-insensitively against every discovered URL;
	// empty matches everything.
	Include string

	// Exclude is matched case-insensitively; empty matches nothing.
	Exclude string

	// MinSize and MaxSize bound the content length in bytes; 0 is unbounded.
	MinSize int64
	MaxSize int64

	// Depth is how many levels of pages below the seed are crawled.
	Depth int

	// Delay is the fixed pause between work items and between links.
	Delay time.Duration

	// SameOrigin restricts downloads and crawling to URLs under the seed's
	// scheme and host.
	SameOrigin bool

	// Headers are merged last into every request.
	Headers map[string]string

	// LogLevel is one of trace, debug, info, warn, error, tty, none.
	LogLevel string

	// Verbose forces the trace level.
	Verbose bool

	// SegmentSize is the largest byte range of a segmented download.
	SegmentSize int64

	// Segmented enables ranged downloads when the server supports them.
	Segmented bool

	// ReplaceDifferentSize deletes and downloads again an existing file whose
	// size differs from the announced length.
	ReplaceDifferentSize bool

	// ResumePartial continues an existing shorter file with a range request
	// instead of skipping it.
	ResumePartial bool

	// ProbeTimeout bounds each HEAD probe and page fetch attempt.
	ProbeTimeout time.Duration

	// DownloadTimeout is the baseline per-segment timeout.
	DownloadTimeout time.Duration

	// Retries is how many times a failed request is retried.
	Retries int

	// QueueOrder is fifo (breadth-first) or lifo (depth-first).
	QueueOrder QueueOrder

	// HeaderProfile is extended or legacy.
	HeaderProfile string

	// OutputDir is the mirror root.
	OutputDir string

	// Proxy is an optional SOCKS5 proxy address in host:port form.
	Proxy string

	// Journal records the run and every download in the SQLite journal.
	Journal bool

	// DBDir is the directory of the journal database.
	DBDir string

	// ConfigFilePath is the site file given with --config.
	ConfigFilePath string

	// SiteConfigs is the loaded site file, nil when none was found.
	SiteConfigs *File

	// JSONReport and MarkdownReport select the summary format.
	// They are mutually exclusive.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile receives the summary instead of stdout when set.
	ReportFile string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Delay:           DefaultDelay,
		Headers:         make(map[string]string),
		LogLevel:        DefaultLogLevel,
		SegmentSize:     DefaultSegmentSize,
		Segmented:       true,
		ProbeTimeout:    DefaultProbeTimeout,
		DownloadTimeout: DefaultDownloadTimeout,
		Retries:         DefaultRetries,
		QueueOrder:      QueueFIFO,
		HeaderProfile:   DefaultHeaderProfile,
		OutputDir:       DefaultOutputDir,
		Journal:         true,
		DBDir:           XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for sitemirror.
// On Linux: ~/.local/share/sitemirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitemirror.
// On Linux: ~/.config/sitemirror
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ParseSeedURL checks that raw is an absolute http or https URL with a host.
func ParseSeedURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, ErrInvalidSeedURL
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return nil, ErrInvalidSeedURL
	}
	return u, nil
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if _, err := ParseSeedURL(c.SeedURL); err != nil {
		return err
	}
	if c.Depth < 0 {
		return ErrInvalidDepth
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.MinSize < 0 || c.MaxSize < 0 || (c.MaxSize > 0 && c.MinSize > c.MaxSize) {
		return ErrInvalidSizeRange
	}
	if c.SegmentSize <= 0 {
		return ErrInvalidSegmentSize
	}
	if c.ProbeTimeout <= 0 || c.DownloadTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.QueueOrder != QueueFIFO && c.QueueOrder != QueueLIFO {
		return ErrInvalidQueueOrder
	}
	switch strings.ToLower(c.HeaderProfile) {
	case "extended", "legacy":
	default:
		return ErrInvalidHeaderProfile
	}
	if c.OutputDir == "" {
		return ErrEmptyOutputDir
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// MergeSite applies a site file entry. Values given on the command line win:
// explicit lists the settings that were set there ("include", "exclude",
// "depth"). Site headers go below the command line headers.
func (c *Config) MergeSite(sc SiteConfig, explicit map[string]bool) {
	if sc.Include != "" && !explicit["include"] {
		c.Include = sc.Include
	}
	if sc.Exclude != "" && !explicit["exclude"] {
		c.Exclude = sc.Exclude
	}
	if sc.Depth != nil && !explicit["depth"] {
		c.Depth = *sc.Depth
	}
	if len(sc.Headers) == 0 {
		return
	}
	merged := make(map[string]string, len(sc.Headers)+len(c.Headers))
	for k, v := range sc.Headers {
		merged[k] = v
	}
	for k, v := range c.Headers {
		merged[k] = v
	}
	c.Headers = merged
}
