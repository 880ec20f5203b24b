// Package crawler drives a mirror run.
//
// A Spider pops pages from a Frontier, fetches and parses them, resolves
// each discovered link with Resolve and passes it to a Handler. The Handler
// runs the decision pipeline, downloads what is eligible and schedules
// page-like URLs one level deeper. Everything runs in one goroutine; the
// only concurrency is the abandoned attempts of the retry combinator.
//
// # Queue order
//
// The frontier is breadth-first by default: pages are crawled in the order
// they were discovered. config.QueueLIFO switches to depth-first.
//
// # Usage
//
//	frontier := crawler.NewFrontier(base, cfg.SameOrigin, cfg.QueueOrder)
//	handler := crawler.NewHandler(frontier, steps, downloader)
//	spider := crawler.NewSpider(client, headers, frontier, handler)
//	stats, err := spider.Run(ctx, model.WorkItem{URL: seed, RemainingDepth: cfg.Depth})
package crawler
