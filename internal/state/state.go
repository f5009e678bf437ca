package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/burrowscan/burrow/internal/config"
	"github.com/burrowscan/burrow/internal/filter"
	"github.com/burrowscan/burrow/internal/scanner"
	"github.com/burrowscan/burrow/internal/scans"
)

// SavedConfig is the subset of the run configuration embedded in a state
// file, used to decide whether a resume attempt is compatible with the
// current invocation.
type SavedConfig struct {
	URL          string        `json:"url"`
	WordlistPath string        `json:"wordlist"`
	Extensions   []string      `json:"extensions,omitempty"`
	Threads      int           `json:"threads"`
	MaxDepth     int           `json:"max_depth"`
	ScanLimit    int           `json:"scan_limit"`
	RateLimit    int           `json:"rate_limit"`
	TimeLimit    time.Duration `json:"time_limit"`
}

// File is the on-disk checkpoint of an entire run.
type File struct {
	Scans     []*scans.Scan                 `json:"scans"`
	Config    SavedConfig                   `json:"config"`
	Responses []*scanner.Response           `json:"responses"`
	Wildcards map[string][]filter.Signature `json:"wildcards,omitempty"`
}

// NewFile assembles a checkpoint from the live run.
func NewFile(cfg *config.RunConfig, reg *scans.Registry, log *scans.ResponseLog, wildcards map[string][]filter.Signature) *File {
	return &File{
		Scans: reg.Snapshot(),
		Config: SavedConfig{
			URL:          cfg.URL,
			WordlistPath: cfg.WordlistPath,
			Extensions:   cfg.Extensions,
			Threads:      cfg.Threads,
			MaxDepth:     cfg.MaxDepth,
			ScanLimit:    cfg.ScanLimit,
			RateLimit:    cfg.RateLimit,
			TimeLimit:    cfg.TimeLimit,
		},
		Responses: log.Snapshot(),
		Wildcards: wildcards,
	}
}

// Save writes the checkpoint atomically: the JSON document goes to a
// temporary file in the same directory, then renames over the final path.
// A crash mid-write never corrupts the previous checkpoint.
func Save(path string, f *File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing state: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".burrow-state-*")
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing state file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// Load reads and parses a checkpoint. A file that exists but does not parse
// is a fatal startup error: resuming is all-or-nothing.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading state file %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", path, err)
	}
	return &f, nil
}

// Validate checks that the checkpoint was produced by a compatible
// invocation. A different target or wordlist makes within-run bookkeeping
// meaningless, so the mismatch is fatal.
func (f *File) Validate(cfg *config.RunConfig) error {
	if cfg.URL != "" && f.Config.URL != "" && cfg.URL != f.Config.URL {
		return fmt.Errorf("state file targets %s but current invocation targets %s", f.Config.URL, cfg.URL)
	}
	if cfg.WordlistPath != "" && f.Config.WordlistPath != "" && cfg.WordlistPath != f.Config.WordlistPath {
		return fmt.Errorf("state file used wordlist %s but current invocation uses %s", f.Config.WordlistPath, cfg.WordlistPath)
	}
	return nil
}

// Reseed re-populates the registry from the checkpoint: Complete (and
// Cancelled) scans are kept as Complete and never re-executed; every other
// scan is re-queued from the start of its wordlist. Previously accepted
// responses are restored into the log without being re-reported. Returns the
// number of kept and re-queued scans.
func (f *File) Reseed(reg *scans.Registry, log *scans.ResponseLog) (kept, requeued int) {
	for _, s := range f.Scans {
		s.PrepareResume()
		reg.Adopt(s)
		if s.Status() == scans.StatusComplete {
			kept++
		} else {
			requeued++
		}
	}
	log.Restore(f.Responses)
	return kept, requeued
}
