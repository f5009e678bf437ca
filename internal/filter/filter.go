package filter

import (
	"sync"

	"github.com/burrowscan/burrow/internal/scanner"
)

// Filter decides whether a response should be dropped from output and
// recursion. Implementations must be safe for concurrent reads.
type Filter interface {
	Name() string
	ShouldFilter(resp *scanner.Response) bool
}

// Set is the ordered, short-circuiting filter pipeline. Static filters are
// installed at startup; the wildcard filter is the only member that grows
// during a run (signatures are added, never retracted), so classification of
// any single response is deterministic given the set's state at that instant.
type Set struct {
	mu      sync.RWMutex
	filters []Filter
}

// NewSet returns an empty pipeline.
func NewSet() *Set {
	return &Set{}
}

// Add appends a filter. Evaluation order is insertion order.
func (s *Set) Add(f Filter) {
	s.mu.Lock()
	s.filters = append(s.filters, f)
	s.mu.Unlock()
}

// Apply runs the response through the pipeline. The first filter to match
// ends evaluation; the matching filter's name is returned as the drop reason.
func (s *Set) Apply(resp *scanner.Response) (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.filters {
		if f.ShouldFilter(resp) {
			return true, f.Name()
		}
	}
	return false, ""
}

// Len returns the number of installed filters.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filters)
}
