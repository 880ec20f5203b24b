// Package model defines the data structures shared by the crawler, the
// resource pipeline, the downloader, the journal and the report writers.
//
// The types live in their own package so that crawler, pipeline, database
// and report can all use them without importing each other.
//
//   - WorkItem: one page waiting in the frontier
//   - Page: a fetched document and the links found in it
//   - ResourceDecision: the evaluation of one discovered URL
//   - RunStats: the counters of a run
//   - DownloadRecord: one journal row
package model
