package output

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// Progress tracks and displays overall scan progress on stderr. The total
// grows as recursion registers new scans.
type Progress struct {
	total     atomic.Int64
	completed atomic.Int64
	filtered  atomic.Int64
	errors    atomic.Int64
	start     time.Time
	done      chan struct{}
	quiet     bool
}

// NewProgress creates a progress tracker. Call Start() to begin display
// updates.
func NewProgress(quiet bool) *Progress {
	return &Progress{
		start: time.Now(),
		done:  make(chan struct{}),
		quiet: quiet,
	}
}

// Start begins periodically printing progress to stderr.
func (p *Progress) Start() {
	if p.quiet {
		return
	}
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.print()
			case <-p.done:
				p.print()
				fmt.Fprint(os.Stderr, "\n")
				return
			}
		}
	}()
}

// AddTotal raises the expected request count when a new scan starts.
func (p *Progress) AddTotal(n int) {
	p.total.Add(int64(n))
}

// Increment records a completed request.
func (p *Progress) Increment() {
	p.completed.Add(1)
}

// IncrementFiltered records a filtered result.
func (p *Progress) IncrementFiltered() {
	p.filtered.Add(1)
}

// IncrementErrors records an error.
func (p *Progress) IncrementErrors() {
	p.errors.Add(1)
}

// Stop ends the progress display.
func (p *Progress) Stop() {
	if p.quiet {
		return
	}
	close(p.done)
}

// ClearLine erases the progress line so a result row can be printed cleanly.
func (p *Progress) ClearLine() {
	if p.quiet {
		return
	}
	fmt.Fprint(os.Stderr, "\r\033[K")
}

func (p *Progress) print() {
	completed := p.completed.Load()
	total := p.total.Load()
	elapsed := time.Since(p.start).Seconds()
	rate := float64(0)
	if elapsed > 0 {
		rate = float64(completed) / elapsed
	}

	pct := float64(0)
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}

	fmt.Fprintf(os.Stderr, "\r\033[K[%3.0f%%] %d/%d | %.0f req/s | Filtered: %d | Errors: %d",
		pct, completed, total, rate,
		p.filtered.Load(), p.errors.Load())
}
