// Package database provides the SQLite download journal of sitemirror.
//
// The journal keeps one row per run (seed URL and final counters) and one
// row per download attempt (URL, local path, bytes written, outcome). It is
// an audit log: the mirror itself lives on the filesystem and never depends
// on the journal.
//
// Run IDs are KSUIDs, so ordering by ID orders runs by start time.
package database
