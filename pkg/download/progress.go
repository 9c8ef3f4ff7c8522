package download

import "time"

// progressInterval throttles intermediate progress events.
const progressInterval = 5 * time.Second

// Event is one progress notification for a running transfer.
type Event struct {
	// URL identifies the transfer.
	URL string
	// Bytes is the cumulative number of bytes written so far.
	Bytes int64
	// Total is the expected transfer size. Zero or negative when the
	// remote doesn't announce one.
	Total int64
	// Done marks the final event of a successful transfer.
	Done bool
}

// ProgressFunc receives progress events. Intermediate events arrive at most
// every five seconds; a final event with Done set always follows a
// successful transfer.
type ProgressFunc func(Event)

// progressTracker rate-limits progress callbacks for one transfer.
type progressTracker struct {
	fn       ProgressFunc
	url      string
	total    int64
	bytes    int64
	lastEmit time.Time
}

func newProgressTracker(fn ProgressFunc, url string, total int64) *progressTracker {
	return &progressTracker{fn: fn, url: url, total: total}
}

// Add accounts for n freshly written bytes and emits an event when enough
// time has passed since the last one.
func (p *progressTracker) Add(n int) {
	p.bytes += int64(n)
	if p.fn == nil {
		return
	}
	if time.Since(p.lastEmit) < progressInterval {
		return
	}
	p.lastEmit = time.Now()
	p.fn(Event{URL: p.url, Bytes: p.bytes, Total: p.total})
}

// Finish emits the final event.
func (p *progressTracker) Finish() {
	if p.fn == nil {
		return
	}
	p.fn(Event{URL: p.url, Bytes: p.bytes, Total: p.total, Done: true})
}
