package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment setting.
const EnvPrefix = "WEBSCRAPER"

// Environment keys, without the prefix.
const (
	EnvLogLevel             = "log_level"
	EnvSegmentSize          = "download_segments_size"
	EnvReplaceDifferentSize = "replace_different_size"
	EnvResumePartial        = "resume_partial"
	EnvProbeTimeout         = "probe_timeout"
	EnvDownloadTimeout      = "download_timeout"
	EnvRetries              = "retries"
	EnvQueueOrder           = "queue_order"
	EnvHeaderProfile        = "header_profile"
	EnvSegmented            = "segmented"
	EnvOutputDir            = "output_dir"
	EnvProxy                = "proxy"
	EnvJournal              = "journal"
	EnvDBDir                = "db_dir"
)

// LoadEnv overrides c with WEBSCRAPER_* environment variables. Unset
// variables keep the current value. Timeouts accept Go durations ("45s") or
// a plain number of milliseconds.
func (c *Config) LoadEnv() error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(EnvLogLevel, c.LogLevel)
	v.SetDefault(EnvSegmentSize, c.SegmentSize)
	v.SetDefault(EnvReplaceDifferentSize, c.ReplaceDifferentSize)
	v.SetDefault(EnvResumePartial, c.ResumePartial)
	v.SetDefault(EnvProbeTimeout, c.ProbeTimeout.String())
	v.SetDefault(EnvDownloadTimeout, c.DownloadTimeout.String())
	v.SetDefault(EnvRetries, c.Retries)
	v.SetDefault(EnvQueueOrder, string(c.QueueOrder))
	v.SetDefault(EnvHeaderProfile, c.HeaderProfile)
	v.SetDefault(EnvSegmented, c.Segmented)
	v.SetDefault(EnvOutputDir, c.OutputDir)
	v.SetDefault(EnvProxy, c.Proxy)
	v.SetDefault(EnvJournal, c.Journal)
	v.SetDefault(EnvDBDir, c.DBDir)

	probe, err := envDuration(v, EnvProbeTimeout)
	if err != nil {
		return err
	}
	download, err := envDuration(v, EnvDownloadTimeout)
	if err != nil {
		return err
	}
	segmentSize, err := envConvert(v, EnvSegmentSize, cast.ToInt64E)
	if err != nil {
		return err
	}
	retries, err := envConvert(v, EnvRetries, cast.ToIntE)
	if err != nil {
		return err
	}
	bools := map[string]*bool{
		EnvReplaceDifferentSize: &c.ReplaceDifferentSize,
		EnvResumePartial:        &c.ResumePartial,
		EnvSegmented:            &c.Segmented,
		EnvJournal:              &c.Journal,
	}
	for key, dst := range bools {
		b, err := envConvert(v, key, cast.ToBoolE)
		if err != nil {
			return err
		}
		*dst = b
	}

	c.LogLevel = v.GetString(EnvLogLevel)
	c.SegmentSize = segmentSize
	c.ProbeTimeout = probe
	c.DownloadTimeout = download
	c.Retries = retries
	c.QueueOrder = QueueOrder(strings.ToLower(strings.TrimSpace(v.GetString(EnvQueueOrder))))
	c.HeaderProfile = strings.ToLower(strings.TrimSpace(v.GetString(EnvHeaderProfile)))
	c.OutputDir = v.GetString(EnvOutputDir)
	c.Proxy = v.GetString(EnvProxy)
	c.DBDir = v.GetString(EnvDBDir)
	return nil
}

// envConvert reads key and converts it with conv. Environment values are
// trimmed first. A value that does not convert is an error naming the
// variable rather than a silent zero.
func envConvert[T any](v *viper.Viper, key string, conv func(any) (T, error)) (T, error) {
	raw := v.Get(key)
	if s, ok := raw.(string); ok {
		raw = strings.TrimSpace(s)
	}
	out, err := conv(raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s=%v", ErrInvalidEnvValue, envName(key), raw)
	}
	return out, nil
}

func envDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := parseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidEnvValue, envName(key), err)
	}
	return d, nil
}

// envName returns the full variable name of key, e.g. WEBSCRAPER_RETRIES.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

// parseDuration accepts "1m30s" style durations or whole milliseconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
