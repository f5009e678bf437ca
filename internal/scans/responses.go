package scans

import (
	"sync"

	"github.com/burrowscan/burrow/internal/scanner"
)

// ResponseLog is the accumulation buffer of accepted responses, read by
// state persistence and reporting and appended to by scan executors. The URL
// seen-set keeps a resumed run from re-reporting responses collected before
// the checkpoint.
type ResponseLog struct {
	mu        sync.Mutex
	responses []*scanner.Response
	seen      map[string]struct{}
}

// NewResponseLog creates an empty log.
func NewResponseLog() *ResponseLog {
	return &ResponseLog{seen: make(map[string]struct{})}
}

// Add appends an accepted response. Returns false when the URL was already
// recorded (e.g. restored from a state file), in which case the response is
// not appended again.
func (l *ResponseLog) Add(resp *scanner.Response) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[resp.URL]; ok {
		return false
	}
	l.seen[resp.URL] = struct{}{}
	l.responses = append(l.responses, resp)
	return true
}

// Restore pre-loads responses from a state file without reporting them.
func (l *ResponseLog) Restore(responses []*scanner.Response) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, resp := range responses {
		if _, ok := l.seen[resp.URL]; ok {
			continue
		}
		l.seen[resp.URL] = struct{}{}
		l.responses = append(l.responses, resp)
	}
}

// Snapshot returns a copy of the accumulated responses for checkpointing.
func (l *ResponseLog) Snapshot() []*scanner.Response {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*scanner.Response(nil), l.responses...)
}

// Len returns the number of accepted responses.
func (l *ResponseLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.responses)
}
