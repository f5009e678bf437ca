package scans

import (
	"fmt"
	"strings"
	"sync"
)

// Registry is the authoritative store of all Scan records. Every mutation is
// linearized through its mutex so concurrent worker completions cannot lose
// updates. Scans are held in insertion order for stable display and FIFO
// admission.
type Registry struct {
	mu       sync.Mutex
	ordered  []*Scan
	byID     map[string]*Scan
	byURL    map[string]*Scan // keyed by normalized URL, duplicate guard
	maxDepth int              // 0 = unlimited
}

// NewRegistry creates an empty registry enforcing the given depth cap.
func NewRegistry(maxDepth int) *Registry {
	return &Registry{
		byID:     make(map[string]*Scan),
		byURL:    make(map[string]*Scan),
		maxDepth: maxDepth,
	}
}

// Register creates and stores a Queued scan. It fails when the depth cap is
// exceeded or the URL is already known (slash-insensitive).
func (r *Registry) Register(url string, typ ScanType, parentID string, depth, threads, rateLimit int) (*Scan, error) {
	if r.maxDepth > 0 && depth > r.maxDepth {
		return nil, fmt.Errorf("depth %d exceeds maximum %d for %s", depth, r.maxDepth, url)
	}

	s := NewScan(url, typ, parentID, depth, threads, rateLimit)

	r.mu.Lock()
	defer r.mu.Unlock()

	norm := s.NormalizedURL()
	if existing, ok := r.byURL[norm]; ok {
		return existing, fmt.Errorf("scan for %s already registered", url)
	}

	r.ordered = append(r.ordered, s)
	r.byID[s.ID] = s
	r.byURL[norm] = s
	return s, nil
}

// Adopt inserts a scan restored from a state file, preserving its ID and
// status. Duplicate URLs or IDs are dropped silently.
func (r *Registry) Adopt(s *Scan) {
	r.mu.Lock()
	defer r.mu.Unlock()

	norm := s.NormalizedURL()
	if _, ok := r.byURL[norm]; ok {
		return
	}
	if _, ok := r.byID[s.ID]; ok {
		return
	}
	r.ordered = append(r.ordered, s)
	r.byID[s.ID] = s
	r.byURL[norm] = s
}

// Get looks a scan up by ID.
func (r *Registry) Get(id string) (*Scan, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	return s, ok
}

// Contains reports whether a scan for the URL is already registered.
func (r *Registry) Contains(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byURL[strings.TrimRight(url, "/")+"/"]
	return ok
}

// Transition moves the scan with the given ID into a new state. A violation
// of the terminal-state invariant comes back as an error; callers log it
// rather than treating it as fatal.
func (r *Registry) Transition(id string, status ScanStatus) error {
	s, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("no scan with id %s", id)
	}
	return s.transition(status)
}

// NextQueued returns the oldest Queued scan. Registration order is the FIFO
// admission order; the registry mutex makes that order total, so admission is
// deterministic for a given registration sequence.
func (r *Registry) NextQueued() *Scan {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.ordered {
		if s.Status() == StatusQueued {
			return s
		}
	}
	return nil
}

// List returns the scans matching the predicate, in insertion order. A nil
// predicate returns everything.
func (r *Registry) List(pred func(*Scan) bool) []*Scan {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Scan, 0, len(r.ordered))
	for _, s := range r.ordered {
		if pred == nil || pred(s) {
			out = append(out, s)
		}
	}
	return out
}

// CountByStatus tallies scans per lifecycle state.
func (r *Registry) CountByStatus() map[ScanStatus]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[ScanStatus]int, 5)
	for _, s := range r.ordered {
		counts[s.Status()]++
	}
	return counts
}

// HasActive reports whether any scan is queued, running, or paused.
func (r *Registry) HasActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.ordered {
		if s.IsActive() {
			return true
		}
	}
	return false
}

// Snapshot returns the scans in insertion order for checkpointing.
func (r *Registry) Snapshot() []*Scan {
	return r.List(nil)
}

// CancelTree cancels the scan and, transitively, every non-terminal
// descendant. Returns the number of scans actually cancelled.
func (r *Registry) CancelTree(id, reason string) int {
	s, ok := r.Get(id)
	if !ok {
		return 0
	}

	cancelled := 0
	if s.Cancel(reason) {
		cancelled++
	}

	for _, child := range r.List(func(c *Scan) bool { return c.ParentID == id }) {
		cancelled += r.CancelTree(child.ID, reason)
	}
	return cancelled
}

// CancelAll cancels every non-terminal scan, used on time-limit expiry and
// final shutdown.
func (r *Registry) CancelAll(reason string) int {
	cancelled := 0
	for _, s := range r.List(func(s *Scan) bool { return s.IsActive() }) {
		if s.Cancel(reason) {
			cancelled++
		}
	}
	return cancelled
}
