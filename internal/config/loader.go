package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/sitemirror/internal/filter"
)

// DefaultConfigFile is the site file name looked up in the working and home
// directories.
const DefaultConfigFile = ".sitemirror"

// ErrConfigNotFound is returned when the site file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads the site file at path. Unknown keys are rejected so
// that a misspelled "exclude" does not silently mirror everything. Every
// section is checked for a non-negative depth and compilable patterns.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // the path comes from the user
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}

	var cf File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	if err := cf.Defaults.check(); err != nil {
		return nil, fmt.Errorf("%s: defaults: %w", path, err)
	}
	for host, sc := range cf.Sites {
		if err := sc.check(); err != nil {
			return nil, fmt.Errorf("%s: sites.%s: %w", path, host, err)
		}
	}
	return &cf, nil
}

func (sc SiteConfig) check() error {
	if sc.Depth != nil && *sc.Depth < 0 {
		return ErrInvalidDepth
	}
	if _, err := filter.NewInclude(sc.Include); err != nil {
		return err
	}
	_, err := filter.NewExclude(sc.Exclude)
	return err
}

// FindConfigFile returns the site file to use, or "" when there is none.
// An explicit configPath is used only if it exists. Otherwise the first of
// ./.sitemirror, ~/.sitemirror and $XDG_CONFIG_HOME/sitemirror/config.yaml
// that exists wins.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if exists(configPath) {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, c := range candidates {
		if exists(c) {
			return c
		}
	}
	return ""
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
