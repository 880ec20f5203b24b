// Package main provides the entry point for the sitemirror CLI.
//
// sitemirror crawls a web site from a seed page and mirrors the files it
// links to into a local directory tree, resuming and skipping what is
// already there.
//
// Usage:
//
//	sitemirror mirror <url> [include] [exclude] [minSize] [maxSize] [depth] [delayMs] [sameOrigin]
//	sitemirror history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
