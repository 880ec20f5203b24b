// Package config provides the run configuration of sitemirror.
//
// Settings come from three layers, later ones filling what earlier ones
// left unset:
//
//   - positional arguments and flags of the mirror command
//   - WEBSCRAPER_* environment variables (LoadEnv)
//   - the YAML site file, .sitemirror by default (LoadConfigFile)
//
// Validate must be called before a run starts; an invalid seed URL is
// reported as ErrInvalidSeedURL before any request is made.
package config
