package filter

import "github.com/burrowscan/burrow/internal/scanner"

// DenyStatusFilter drops responses whose status code is explicitly excluded.
// It is the cheapest check and runs first in the pipeline.
type DenyStatusFilter struct {
	codes map[int]struct{}
}

// NewDenyStatusFilter creates a deny-list filter from the given codes.
func NewDenyStatusFilter(codes []int) *DenyStatusFilter {
	f := &DenyStatusFilter{codes: make(map[int]struct{}, len(codes))}
	for _, c := range codes {
		f.codes[c] = struct{}{}
	}
	return f
}

func (f *DenyStatusFilter) Name() string { return "status-deny" }

func (f *DenyStatusFilter) ShouldFilter(resp *scanner.Response) bool {
	_, ok := f.codes[resp.StatusCode]
	return ok
}

// AllowStatusFilter drops responses whose status code is not in the allow
// list.
type AllowStatusFilter struct {
	codes map[int]struct{}
}

// NewAllowStatusFilter creates an allow-list filter from the given codes.
func NewAllowStatusFilter(codes []int) *AllowStatusFilter {
	f := &AllowStatusFilter{codes: make(map[int]struct{}, len(codes))}
	for _, c := range codes {
		f.codes[c] = struct{}{}
	}
	return f
}

func (f *AllowStatusFilter) Name() string { return "status-allow" }

func (f *AllowStatusFilter) ShouldFilter(resp *scanner.Response) bool {
	if len(f.codes) == 0 {
		return false
	}
	_, ok := f.codes[resp.StatusCode]
	return !ok
}
