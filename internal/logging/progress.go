package logging

import (
	"time"

	"github.com/gologme/log"
)

// Progress tracks one long-running maintenance scan (compress, rebuilds)
// and reports a line every `every` items, with byte and rate accounting.
type Progress struct {
	log   *log.Logger
	label string
	every int
	count int
	bytes int64
	start time.Time
}

func NewProgress(logger *log.Logger, label string, every int) *Progress {
	return &Progress{
		log:   logger,
		label: label,
		every: every,
		start: time.Now(),
	}
}

// Step records one processed item of n bytes.
func (p *Progress) Step(n int64) {
	p.count++
	p.bytes += n
	if p.every > 0 && p.count%p.every == 0 {
		p.log.Printf("%s: %d items scanned (%.2f MB, %.0f items/s)",
			p.label, p.count, float64(p.bytes)/(1024*1024), p.rate())
	}
}

// Done emits the final summary line.
func (p *Progress) Done() {
	p.log.Printf("%s: finished, %d items (%.2f MB) in %s",
		p.label, p.count, float64(p.bytes)/(1024*1024), time.Since(p.start).Round(time.Millisecond))
}

// Count returns the number of items recorded so far.
func (p *Progress) Count() int {
	return p.count
}

func (p *Progress) rate() float64 {
	elapsed := time.Since(p.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.count) / elapsed
}
