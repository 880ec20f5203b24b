package config

import "strings"

// SiteConfig holds per-host settings from the site file.
type SiteConfig struct {
	// Headers are merged into every request to this host, below --header.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Include overrides the include pattern when none is given on the
	// command line.
	Include string `yaml:"include,omitempty"`

	// Exclude overrides the exclude pattern when none is given on the
	// command line.
	Exclude string `yaml:"exclude,omitempty"`

	// Depth overrides the crawl depth when none is given on the command line.
	// A pointer so that an explicit 0 can be told apart from "unset".
	Depth *int `yaml:"depth,omitempty"`
}

// File represents the structure of the .sitemirror configuration file.
type File struct {
	// Sites maps a host (e.g. "example.com" or "example.com:8080") to its
	// settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every host unless overridden per site.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the settings for host, merged over the defaults.
// Host matching is case-insensitive.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	siteConfig, ok := cf.Sites[host]
	if !ok {
		for name, sc := range cf.Sites {
			if strings.EqualFold(name, host) {
				siteConfig, ok = sc, true
				break
			}
		}
	}
	if !ok {
		return result
	}

	if siteConfig.Include != "" {
		result.Include = siteConfig.Include
	}
	if siteConfig.Exclude != "" {
		result.Exclude = siteConfig.Exclude
	}
	if siteConfig.Depth != nil {
		result.Depth = siteConfig.Depth
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	return result
}
