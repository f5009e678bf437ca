package scans

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ScanType flags what a scan enumerates.
type ScanType string

const (
	// TypeInitial marks an operator-supplied root target.
	TypeInitial ScanType = "initial"
	// TypeDirectory marks a directory discovered via recursion or extraction.
	TypeDirectory ScanType = "directory"
	// TypeFile marks a single direct probe of an extracted file link.
	TypeFile ScanType = "file"
)

// ScanStatus is a scan's lifecycle state.
type ScanStatus string

const (
	StatusQueued    ScanStatus = "queued"
	StatusRunning   ScanStatus = "running"
	StatusPaused    ScanStatus = "paused"
	StatusCancelled ScanStatus = "cancelled"
	StatusComplete  ScanStatus = "complete"
)

// terminal reports whether a status permits no further transitions.
func (s ScanStatus) terminal() bool {
	return s == StatusCancelled || s == StatusComplete
}

// Scan is one unit of work: a wordlist enumerated against one base URL.
// ParentID is a weak back-reference resolved through the Registry, never an
// owning pointer, so scan trees cannot form reference cycles.
type Scan struct {
	ID        string   `json:"id"`
	URL       string   `json:"url"`
	Type      ScanType `json:"scan_type"`
	ParentID  string   `json:"parent_id,omitempty"`
	Depth     int      `json:"depth"`
	Threads   int      `json:"threads"`
	RateLimit int      `json:"rate_limit"`

	mu           sync.Mutex
	status       ScanStatus
	cancelReason string
	cancel       context.CancelFunc // runtime only, not serialized
}

// NewScan creates a Queued scan with a fresh ID.
func NewScan(url string, typ ScanType, parentID string, depth, threads, rateLimit int) *Scan {
	return &Scan{
		ID:        strings.ReplaceAll(uuid.NewString(), "-", ""),
		URL:       url,
		Type:      typ,
		ParentID:  parentID,
		Depth:     depth,
		Threads:   threads,
		RateLimit: rateLimit,
		status:    StatusQueued,
	}
}

// Status returns the current lifecycle state.
func (s *Scan) Status() ScanStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CancelReason returns why the scan was cancelled, if it was.
func (s *Scan) CancelReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelReason
}

// transition moves the scan to a new state, enforcing the terminal-state
// invariant: a Cancelled or Complete scan never transitions again.
func (s *Scan) transition(next ScanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.terminal() {
		return fmt.Errorf("scan %s is %s, refusing transition to %s", s.ID, s.status, next)
	}
	s.status = next
	return nil
}

// setCancel stores the runtime cancellation token for this scan's context.
func (s *Scan) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
}

// Cancel transitions the scan to Cancelled with the given reason and fires
// its cancellation token. Workers observe the token at their next request
// boundary; in-flight requests complete normally. Cancelling an already
// terminal scan is a no-op.
func (s *Scan) Cancel(reason string) bool {
	s.mu.Lock()
	if s.status.terminal() {
		s.mu.Unlock()
		return false
	}
	s.status = StatusCancelled
	s.cancelReason = reason
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

// IsActive reports whether the scan is queued, running, or paused.
func (s *Scan) IsActive() bool {
	switch s.Status() {
	case StatusQueued, StatusRunning, StatusPaused:
		return true
	}
	return false
}

// NormalizedURL returns the URL in slash-terminated form, used for duplicate
// detection across wordlist- and link-discovered targets.
func (s *Scan) NormalizedURL() string {
	return strings.TrimRight(s.URL, "/") + "/"
}

// PrepareResume rewrites a deserialized scan's status for re-seeding:
// Complete stays Complete and is never re-executed; Cancelled is kept as
// Complete so it is neither resumed nor re-requested; anything else goes
// back to Queued, restarting its wordlist from the beginning. This runs on
// freshly restored records before they enter a registry, so the runtime
// terminal-state invariant does not apply.
func (s *Scan) PrepareResume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case StatusComplete, StatusCancelled:
		s.status = StatusComplete
	default:
		s.status = StatusQueued
	}
}

// scanJSON is the serialized shape of a Scan.
type scanJSON struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Type      ScanType   `json:"scan_type"`
	ParentID  string     `json:"parent_id,omitempty"`
	Depth     int        `json:"depth"`
	Threads   int        `json:"threads"`
	RateLimit int        `json:"rate_limit"`
	Status    ScanStatus `json:"status"`
	Reason    string     `json:"cancel_reason,omitempty"`
}

// MarshalJSON serializes the scan including its guarded status.
func (s *Scan) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	rec := scanJSON{
		ID:        s.ID,
		URL:       s.URL,
		Type:      s.Type,
		ParentID:  s.ParentID,
		Depth:     s.Depth,
		Threads:   s.Threads,
		RateLimit: s.RateLimit,
		Status:    s.status,
		Reason:    s.cancelReason,
	}
	s.mu.Unlock()
	return json.Marshal(rec)
}

// UnmarshalJSON restores a scan from its serialized shape.
func (s *Scan) UnmarshalJSON(data []byte) error {
	var rec scanJSON
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	s.ID = rec.ID
	s.URL = rec.URL
	s.Type = rec.Type
	s.ParentID = rec.ParentID
	s.Depth = rec.Depth
	s.Threads = rec.Threads
	s.RateLimit = rec.RateLimit
	s.status = rec.Status
	s.cancelReason = rec.Reason
	if s.status == "" {
		s.status = StatusQueued
	}
	return nil
}
