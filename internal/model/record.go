package model

import "time"

// DownloadStatus is the outcome of one download attempt.
type DownloadStatus string

const (
	// StatusDownloaded means every byte was written.
	StatusDownloaded DownloadStatus = "downloaded"

	// StatusFailed means the download gave up; a partial file may remain.
	StatusFailed DownloadStatus = "failed"
)

// DownloadRecord is one row of the download journal.
type DownloadRecord struct {
	RunID     string         `json:"run_id"`
	URL       string         `json:"url"`
	Path      string         `json:"path"`
	Bytes     int64          `json:"bytes"`
	Status    DownloadStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
