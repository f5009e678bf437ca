package filter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/burrowscan/burrow/internal/scanner"
)

// tolerancePercent is the width of the fallback tolerance band for dynamic
// wildcard pages whose length varies unpredictably between probes.
const tolerancePercent = 3

// Signature describes the shape of a directory's wildcard response. A
// response in that directory matching the signature is treated as a false
// positive and suppressed.
type Signature struct {
	Status int   `json:"status"`
	Length int64 `json:"length"`
	// Tolerance widens the length match to a ±Tolerance byte band. Zero
	// means exact match.
	Tolerance int64 `json:"tolerance,omitempty"`
	// Dynamic marks signatures for pages that reflect the requested URL;
	// Length then holds the response size minus the request path length.
	Dynamic bool `json:"dynamic,omitempty"`
}

// Matches reports whether the response fits the signature.
func (s Signature) Matches(resp *scanner.Response) bool {
	if resp.StatusCode != s.Status {
		return false
	}

	expected := s.Length
	if s.Dynamic {
		expected += int64(len(resp.Path))
	}

	diff := resp.ContentLength - expected
	if diff < 0 {
		diff = -diff
	}
	return diff <= s.Tolerance
}

// WildcardFilter holds the signatures recorded per base directory. It is the
// only filter that grows during a run: the detector adds signatures before a
// directory's wordlist requests begin, and signatures are never retracted.
type WildcardFilter struct {
	mu       sync.RWMutex
	sigs     map[string][]Signature
	disabled bool
}

// NewWildcardFilter creates an empty wildcard filter. disabled suppresses
// all matching (--dont-filter).
func NewWildcardFilter(disabled bool) *WildcardFilter {
	return &WildcardFilter{
		sigs:     make(map[string][]Signature),
		disabled: disabled,
	}
}

func (f *WildcardFilter) Name() string { return "wildcard" }

// AddSignature installs a signature for the given base directory URL.
func (f *WildcardFilter) AddSignature(baseDir string, sig Signature) {
	key := strings.TrimRight(baseDir, "/")
	f.mu.Lock()
	f.sigs[key] = append(f.sigs[key], sig)
	f.mu.Unlock()
}

// Signatures returns a copy of all recorded signatures, for checkpointing.
func (f *WildcardFilter) Signatures() map[string][]Signature {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string][]Signature, len(f.sigs))
	for k, v := range f.sigs {
		out[k] = append([]Signature(nil), v...)
	}
	return out
}

// Restore installs previously checkpointed signatures.
func (f *WildcardFilter) Restore(sigs map[string][]Signature) {
	f.mu.Lock()
	for k, v := range sigs {
		f.sigs[k] = append(f.sigs[k], v...)
	}
	f.mu.Unlock()
}

func (f *WildcardFilter) ShouldFilter(resp *scanner.Response) bool {
	if f.disabled {
		return false
	}

	base := resp.URL
	if idx := strings.LastIndex(base, "/"); idx > strings.Index(base, "://")+2 {
		base = base[:idx]
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sig := range f.sigs[strings.TrimRight(base, "/")] {
		if sig.Matches(resp) {
			return true
		}
	}
	return false
}

// Detector probes directories about to be scanned for wildcard behavior and
// installs the resulting signatures into a WildcardFilter.
type Detector struct {
	req    *scanner.Requester
	filter *WildcardFilter
}

// NewDetector wires a detector to the requester and the target filter.
func NewDetector(req *scanner.Requester, filter *WildcardFilter) *Detector {
	return &Detector{req: req, filter: filter}
}

// probeToken returns a random path segment that should not exist on any real
// server. length is the number of UUIDs strung together (32 chars each); two
// probes of different lengths tell reflected pages apart from static ones.
func probeToken(length int) string {
	var sb strings.Builder
	for i := 0; i < length; i++ {
		sb.WriteString(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return sb.String()
}

// Calibrate probes baseDir with two nonexistent paths of different lengths
// and records a signature if the server answers with something other than a
// plain 404. It must run before the directory's wordlist requests begin so
// every matching response is suppressed from the start. Returns the recorded
// signature, or nil when the directory behaves.
func (d *Detector) Calibrate(ctx context.Context, baseDir string) (*Signature, error) {
	base := strings.TrimRight(baseDir, "/")

	tokenOne := probeToken(1)
	tokenTwo := probeToken(3)

	respOne, err := d.req.Do(ctx, "GET", base+"/"+tokenOne)
	if err != nil {
		return nil, fmt.Errorf("wildcard probe against %s: %w", baseDir, err)
	}

	if respOne.StatusCode == 404 {
		return nil, nil
	}

	sig := Signature{
		Status: respOne.StatusCode,
		Length: respOne.ContentLength,
	}

	if respOne.ContentLength == 0 {
		d.filter.AddSignature(base, sig)
		return &sig, nil
	}

	respTwo, err := d.req.Do(ctx, "GET", base+"/"+tokenTwo)
	if err != nil {
		// one good probe is still usable as an exact-size signature
		d.filter.AddSignature(base, sig)
		return &sig, nil
	}

	lenOne := respOne.ContentLength
	lenTwo := respTwo.ContentLength

	switch {
	case lenOne == lenTwo:
		// static wildcard page, exact size match

	case lenTwo == lenOne+int64(len(tokenTwo)-len(tokenOne)):
		// requested path is reflected verbatim: store the size of the
		// static remainder and match against length + path length
		sig.Dynamic = true
		sig.Length = lenOne - int64(len(respOne.Path))

	default:
		// dynamic page without clean reflection: fall back to a band
		// around the midpoint of the two observations
		mid := (lenOne + lenTwo) / 2
		sig.Length = mid
		sig.Tolerance = mid * tolerancePercent / 100
		if sig.Tolerance < 8 {
			sig.Tolerance = 8
		}
	}

	d.filter.AddSignature(base, sig)
	return &sig, nil
}
