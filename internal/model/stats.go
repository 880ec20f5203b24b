package model

import "time"

// RunStats holds the counters of one run. Each counter is incremented once
// per event; TotalEnqueued starts at 1 for the seed and never falls below
// PagesProcessed.
type RunStats struct {
	RunID           string    `json:"run_id,omitempty"`
	SeedURL         string    `json:"seed_url"`
	PagesProcessed  int       `json:"pages_processed"`
	TotalEnqueued   int       `json:"total_enqueued"`
	FilesDownloaded int       `json:"files_downloaded"`
	FilesSkipped    int       `json:"files_skipped"`
	FilesFailed     int       `json:"files_failed"`
	BytesDownloaded int64     `json:"bytes_downloaded"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at,omitzero"`
}

// Duration returns the run time, or zero while the run is in progress.
func (s RunStats) Duration() time.Duration {
	if s.FinishedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
