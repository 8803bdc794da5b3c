package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress for long-running operations such as
// paging a large audit log.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Finish()
	Error(err error)
}

// barReporter renders a single-line text progress bar, redrawn in place.
// All output goes to one writer; commands exporting data to stdout pass
// os.Stderr so the bar never interleaves with the payload.
type barReporter struct {
	mu      sync.Mutex
	total   int64
	current int64
	started time.Time
	writer  io.Writer
}

// NewProgressReporter creates a progress reporter writing to w. A nil
// writer defaults to os.Stderr.
func NewProgressReporter(w io.Writer) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &barReporter{writer: w}
}

// Start begins a new run with the expected total number of entries.
func (p *barReporter) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.current = 0
	p.started = time.Now()
	p.render()
}

// Update sets the number of entries processed so far.
func (p *barReporter) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	p.render()
}

// Finish completes the bar and moves past it.
func (p *barReporter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total <= 0 {
		return
	}
	p.current = p.total
	p.render()
	fmt.Fprintln(p.writer)
}

// Error abandons the bar and reports the failure.
func (p *barReporter) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "\nerror: %v\n", err)
}

// render redraws the bar. Caller holds the lock.
func (p *barReporter) render() {
	if p.total <= 0 {
		return
	}

	fraction := float64(p.current) / float64(p.total)
	if fraction > 1 {
		fraction = 1
	}

	const width = 32
	filled := int(fraction * width)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", width-filled)

	rate := 0.0
	if elapsed := time.Since(p.started).Seconds(); elapsed > 0 {
		rate = float64(p.current) / elapsed
	}

	fmt.Fprintf(p.writer, "\r[%s] %d/%d entries (%.0f%%) %.0f/s",
		bar, p.current, p.total, fraction*100, rate)
}
