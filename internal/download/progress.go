package download

import (
	"fmt"
	"time"
)

// DefaultProgressInterval is the minimum time between two progress lines.
const DefaultProgressInterval = time.Second

type sizeUnit struct {
	name  string
	bytes float64
}

var sizeUnits = []sizeUnit{
	{"B", 1},
	{"KB", 1 << 10},
	{"MB", 1 << 20},
	{"GB", 1 << 30},
}

// unitFor returns the largest unit in which n is at least 1.
func unitFor(n float64) sizeUnit {
	u := sizeUnits[0]
	for _, c := range sizeUnits {
		if n >= c.bytes {
			u = c
		}
	}
	return u
}

// Progress formats and throttles the progress lines of one transfer.
//
// The downloaded and total amounts share one unit chosen from the total when
// the transfer starts; throughput picks its own unit on every line.
type Progress struct {
	total    int64
	unit     sizeUnit
	interval time.Duration
	now      func() time.Time
	emit     func(line string)

	prevOffset int64
	prevTime   time.Time
	lastEmit   time.Time
}

// ProgressOption configures a Progress.
type ProgressOption func(*Progress)

// WithInterval sets the throttle interval.
func WithInterval(d time.Duration) ProgressOption {
	return func(p *Progress) {
		p.interval = d
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ProgressOption {
	return func(p *Progress) {
		p.now = now
	}
}

// NewProgress creates a reporter for a transfer of total bytes (negative when
// unknown). emit receives every line that passes the throttle.
func NewProgress(total int64, emit func(line string), opts ...ProgressOption) *Progress {
	p := &Progress{
		total:    total,
		interval: DefaultProgressInterval,
		now:      time.Now,
		emit:     emit,
	}
	for _, opt := range opts {
		opt(p)
	}
	if total > 0 {
		p.unit = unitFor(float64(total))
	} else {
		p.unit = sizeUnits[1]
	}
	return p
}

// Start records the initial offset and always emits.
func (p *Progress) Start(offset int64) {
	now := p.now()
	p.prevOffset = offset
	p.prevTime = now
	p.report(offset, now)
}

// Update emits a line unless one was emitted less than the interval ago.
func (p *Progress) Update(offset int64) {
	now := p.now()
	if now.Sub(p.lastEmit) < p.interval {
		return
	}
	p.report(offset, now)
}

// Finish always emits.
func (p *Progress) Finish(offset int64) {
	p.report(offset, p.now())
}

func (p *Progress) report(offset int64, now time.Time) {
	line := p.Format(offset, now)
	p.prevOffset = offset
	p.prevTime = now
	p.lastEmit = now
	if p.emit != nil {
		p.emit(line)
	}
}

// Format renders the line for offset at now, measuring throughput since the
// previous sample. Numeric columns are right-aligned to a fixed width, e.g.
// "  40.00%     4.00/   10.00 MB     2.00 MB/s  00:00:03".
func (p *Progress) Format(offset int64, now time.Time) string {
	rate := 0.0
	if elapsed := now.Sub(p.prevTime).Seconds(); elapsed > 0 && offset > p.prevOffset {
		rate = float64(offset-p.prevOffset) / elapsed
	}
	rateUnit := unitFor(rate)

	percent := "  --.--%"
	total := "?"
	eta := "--:--:--"
	if p.total > 0 {
		percent = fmt.Sprintf("%7.2f%%", 100*float64(offset)/float64(p.total))
		total = fmt.Sprintf("%.2f", float64(p.total)/p.unit.bytes)
		switch {
		case offset >= p.total:
			eta = formatETA(0)
		case rate > 0:
			eta = formatETA(time.Duration(float64(p.total-offset) / rate * float64(time.Second)))
		}
	} else if p.total == 0 {
		percent = fmt.Sprintf("%7.2f%%", 100.0)
		total = "0.00"
		eta = formatETA(0)
	}

	return fmt.Sprintf("%s %8.2f/%8s %s %8.2f %s/s  %s",
		percent,
		float64(offset)/p.unit.bytes, total, p.unit.name,
		rate/rateUnit.bytes, rateUnit.name,
		eta,
	)
}

// formatETA renders d as HH:MM:SS, hours unbounded.
func formatETA(d time.Duration) string {
	s := int64(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}
