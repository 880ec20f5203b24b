package crawler

import (
	"time"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/filter"
	"github.com/nao1215/sitemirror/internal/model"
)

// Frontier holds the pages still to be crawled, the set of URLs already
// scheduled and the run counters. It is owned by a single goroutine.
type Frontier struct {
	baseURL    string
	sameOrigin bool
	order      config.QueueOrder

	seen  map[string]struct{}
	queue []model.WorkItem
	stats model.RunStats
	now   func() time.Time
}

// NewFrontier creates an empty Frontier. With sameOrigin set, only URLs under
// baseURL are admitted.
func NewFrontier(baseURL string, sameOrigin bool, order config.QueueOrder) *Frontier {
	if order != config.QueueLIFO {
		order = config.QueueFIFO
	}
	return &Frontier{
		baseURL:    baseURL,
		sameOrigin: sameOrigin,
		order:      order,
		seen:       make(map[string]struct{}),
		now:        time.Now,
	}
}

// BaseURL returns the origin the frontier was created with.
func (f *Frontier) BaseURL() string {
	return f.baseURL
}

// Seed schedules the first page and starts the run clock.
func (f *Frontier) Seed(item model.WorkItem) {
	f.seen[item.URL] = struct{}{}
	f.queue = append(f.queue, item)
	f.stats.SeedURL = item.URL
	f.stats.TotalEnqueued = 1
	f.stats.StartedAt = f.now()
}

// Admit reports whether url may be scheduled: it has not been seen and, with
// the same-origin restriction, lies under the base URL.
func (f *Frontier) Admit(url string) bool {
	if _, ok := f.seen[url]; ok {
		return false
	}
	return !f.sameOrigin || filter.WithinOrigin(url, f.baseURL)
}

// Enqueue schedules item if it is admitted.
func (f *Frontier) Enqueue(item model.WorkItem) bool {
	if !f.Admit(item.URL) {
		return false
	}
	f.seen[item.URL] = struct{}{}
	f.queue = append(f.queue, item)
	f.stats.TotalEnqueued++
	return true
}

// Next pops the next page: the oldest for fifo, the newest for lifo.
func (f *Frontier) Next() (model.WorkItem, bool) {
	if len(f.queue) == 0 {
		return model.WorkItem{}, false
	}
	var item model.WorkItem
	if f.order == config.QueueLIFO {
		last := len(f.queue) - 1
		item = f.queue[last]
		f.queue = f.queue[:last]
	} else {
		item = f.queue[0]
		f.queue[0] = model.WorkItem{}
		f.queue = f.queue[1:]
	}
	return item, true
}

// Len returns the number of pages waiting.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// MarkProcessed counts a popped page.
func (f *Frontier) MarkProcessed() {
	f.stats.PagesProcessed++
}

// MarkDownloaded counts a completed download of n bytes.
func (f *Frontier) MarkDownloaded(n int64) {
	f.stats.FilesDownloaded++
	f.stats.BytesDownloaded += n
}

// MarkSkipped counts a file left alone because it already exists.
func (f *Frontier) MarkSkipped() {
	f.stats.FilesSkipped++
}

// MarkFailed counts a download that gave up.
func (f *Frontier) MarkFailed() {
	f.stats.FilesFailed++
}

// Finish stops the run clock.
func (f *Frontier) Finish() {
	f.stats.FinishedAt = f.now()
}

// Stats returns a copy of the counters.
func (f *Frontier) Stats() model.RunStats {
	return f.stats
}
