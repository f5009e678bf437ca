package scanner

import "sync"

// Outcome classifies a finished request for error-rate tracking.
type Outcome uint8

const (
	OutcomeOK Outcome = iota
	OutcomeError
	OutcomeStatus403
	OutcomeStatus429
)

// Window is a fixed-size rolling window over the most recent request
// outcomes of one scan. The governor reads its ratios to drive auto-tune and
// auto-bail decisions.
type Window struct {
	mu       sync.Mutex
	outcomes []Outcome
	next     int
	filled   int
	total    int
}

// NewWindow creates a rolling window covering the last size requests.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{outcomes: make([]Outcome, size)}
}

// Record appends an outcome, evicting the oldest once the window is full.
func (w *Window) Record(o Outcome) {
	w.mu.Lock()
	w.outcomes[w.next] = o
	w.next = (w.next + 1) % len(w.outcomes)
	if w.filled < len(w.outcomes) {
		w.filled++
	}
	w.total++
	w.mu.Unlock()
}

// Ratio returns the fraction of the window occupied by the given outcome.
// Returns 0 until at least half the window has been observed, so a couple of
// early failures cannot trigger policy enforcement.
func (w *Window) Ratio(o Outcome) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.filled < len(w.outcomes)/2 {
		return 0
	}
	count := 0
	for i := 0; i < w.filled; i++ {
		if w.outcomes[i] == o {
			count++
		}
	}
	return float64(count) / float64(w.filled)
}

// Total returns the number of outcomes recorded over the scan's lifetime.
func (w *Window) Total() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

// Size returns the window's capacity.
func (w *Window) Size() int {
	return len(w.outcomes)
}
