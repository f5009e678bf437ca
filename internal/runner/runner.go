package runner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/burrowscan/burrow/internal/config"
	"github.com/burrowscan/burrow/internal/extract"
	"github.com/burrowscan/burrow/internal/filter"
	"github.com/burrowscan/burrow/internal/output"
	"github.com/burrowscan/burrow/internal/recursion"
	"github.com/burrowscan/burrow/internal/scanner"
	"github.com/burrowscan/burrow/internal/scans"
	"github.com/burrowscan/burrow/internal/state"
	"github.com/burrowscan/burrow/internal/wordlist"
)

// Sentinel errors the CLI maps to distinct exit codes.
var (
	// ErrInterrupted means the run was stopped by SIGINT/SIGTERM after
	// saving a state file for --resume-from.
	ErrInterrupted = errors.New("scan interrupted")
	// ErrTimeLimit means --time-limit expired before the scan queue drained.
	ErrTimeLimit = errors.New("time limit reached")
)

// checkpointInterval is how often in-progress state is flushed to disk so a
// hard kill loses at most this much discovery work.
const checkpointInterval = 30 * time.Second

// Runner owns the shared collaborators of one invocation: the registry and
// governor driving scans, the filter set, the output writer, and the state
// checkpointing machinery. Per-scan resources (pool, limiter, window) are
// created fresh inside executeScan.
type Runner struct {
	cfg       *config.RunConfig
	reg       *scans.Registry
	log       *scans.ResponseLog
	req       *scanner.Requester
	filters   *filter.Set
	wildcards *filter.WildcardFilter
	detector  *filter.Detector
	policy    *recursion.Policy
	governor  *scans.Governor
	writer    output.Writer
	progress  *output.Progress
	pauser    *scanner.Pauser
	words     []string
	statePath string

	start            time.Time
	interrupted      atomic.Bool
	exhaustionWarned atomic.Bool

	requests  atomic.Int64
	filtered  atomic.Int64
	wildcardN atomic.Int64
	errorsN   atomic.Int64
}

// Run executes a full scan: seed (or resume) the registry, drive the scan
// governor until the queue drains, and write the footer. The returned error
// is nil on success, ErrInterrupted / ErrTimeLimit for the corresponding
// early exits, or a fatal setup error.
func Run(ctx context.Context, cfg *config.RunConfig) error {
	words, skipped, err := wordlist.Load(cfg.WordlistPath, cfg.Extensions)
	if err != nil {
		return fmt.Errorf("loading wordlist: %w", err)
	}
	if len(words) == 0 {
		return fmt.Errorf("wordlist %s has no usable entries", cfg.WordlistPath)
	}
	if skipped > 0 && !cfg.Quiet {
		fmt.Fprintf(os.Stderr, "[!] Skipped %d malformed wordlist entries\n", skipped)
	}

	req, err := scanner.NewRequester(cfg)
	if err != nil {
		return fmt.Errorf("creating requester: %w", err)
	}

	writer, err := createWriter(cfg)
	if err != nil {
		return fmt.Errorf("creating output writer: %w", err)
	}
	defer writer.Close()

	wildcards := filter.NewWildcardFilter(cfg.DontFilter)
	reg := scans.NewRegistry(cfg.MaxDepth)

	r := &Runner{
		cfg:       cfg,
		reg:       reg,
		log:       scans.NewResponseLog(),
		req:       req,
		wildcards: wildcards,
		detector:  filter.NewDetector(req, wildcards),
		policy:    recursion.NewPolicy(cfg, reg),
		writer:    writer,
		progress:  output.NewProgress(cfg.Quiet),
		pauser:    scanner.NewPauser(),
		words:     words,
	}
	r.filters = r.buildFilters(ctx)
	r.statePath = resolveStatePath(cfg)

	var root *scans.Scan
	if cfg.ResumeFrom != "" {
		saved, err := state.Load(cfg.ResumeFrom)
		if err != nil {
			return err
		}
		if err := saved.Validate(cfg); err != nil {
			return err
		}
		kept, requeued := saved.Reseed(r.reg, r.log)
		r.wildcards.Restore(saved.Wildcards)
		if !cfg.Quiet {
			fmt.Fprintf(os.Stderr, "[+] Resuming from %s: %d scans kept, %d requeued\n",
				cfg.ResumeFrom, kept, requeued)
		}
	} else {
		root, err = r.reg.Register(cfg.URL, scans.TypeInitial, "", 0, cfg.Threads, cfg.RateLimit)
		if err != nil {
			return fmt.Errorf("registering target: %w", err)
		}
	}

	if cfg.ScanRobots && root != nil {
		r.seedFromRobots(ctx, root)
	}

	r.governor = scans.NewGovernor(r.reg, cfg.ScanLimit, r.executeScan)

	var runCtx context.Context
	var cancel context.CancelFunc
	if cfg.TimeLimit > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.TimeLimit)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			r.interrupted.Store(true)
			cancel()
		case <-runCtx.Done():
		}
	}()

	cleanup := r.startControl()
	defer cleanup()

	if !cfg.NoState {
		go r.checkpointLoop(runCtx)
	}

	if err := r.writer.WriteHeader(); err != nil {
		return err
	}
	r.start = time.Now()
	r.progress.Start()

	govErr := r.governor.Run(runCtx)

	r.progress.Stop()
	r.writeFooter()

	switch {
	case r.interrupted.Load():
		r.checkpoint()
		if !cfg.NoState && !cfg.Quiet {
			fmt.Fprintf(os.Stderr, "[*] State saved to %s — resume with --resume-from\n", r.statePath)
		}
		return ErrInterrupted

	case govErr != nil && errors.Is(govErr, context.DeadlineExceeded):
		r.reg.CancelAll("time limit reached")
		r.checkpoint()
		if !cfg.Quiet {
			fmt.Fprintf(os.Stderr, "[!] Time limit reached, %d scans cancelled\n",
				r.reg.CountByStatus()[scans.StatusCancelled])
		}
		return ErrTimeLimit

	case govErr != nil && !errors.Is(govErr, context.Canceled):
		return govErr
	}

	// a clean finish needs no resume file
	if !cfg.NoState && cfg.ResumeFrom == "" {
		_ = os.Remove(r.statePath)
	}
	return nil
}

// buildFilters assembles the response filter set in evaluation order. The
// cheap verdicts (status codes) run before the ones that touch the body.
func (r *Runner) buildFilters(ctx context.Context) *filter.Set {
	cfg := r.cfg
	set := filter.NewSet()

	if len(cfg.DenyStatus) > 0 {
		set.Add(filter.NewDenyStatusFilter(cfg.DenyStatus))
	}
	set.Add(filter.NewAllowStatusFilter(cfg.AllowStatus))
	set.Add(r.wildcards)

	if len(cfg.FilterSize) > 0 {
		set.Add(filter.NewSizeFilter(cfg.FilterSize))
	}
	if len(cfg.FilterWords) > 0 {
		set.Add(filter.NewWordsFilter(cfg.FilterWords))
	}
	if len(cfg.FilterLines) > 0 {
		set.Add(filter.NewLinesFilter(cfg.FilterLines))
	}
	for _, re := range cfg.FilterRegex {
		set.Add(filter.NewRegexFilter(re))
	}

	// each --filter-similar-to target is fetched once up front so its
	// fingerprint is ready before the first wordlist request
	for _, target := range cfg.SimilarTo {
		r.pauser.Wait()
		resp, err := r.req.Do(ctx, "GET", target)
		if err != nil {
			if !cfg.Quiet {
				fmt.Fprintf(os.Stderr, "[!] Similarity reference %s unreachable: %v\n", target, err)
			}
			continue
		}
		set.Add(filter.NewSimilarityFilter(filter.Fingerprint(resp.Body), target, cfg.SimilarCutoff))
	}

	return set
}

// seedFromRobots fetches /robots.txt and feeds its Allow/Disallow paths into
// the registry before the main scan starts.
func (r *Runner) seedFromRobots(ctx context.Context, root *scans.Scan) {
	u, err := url.Parse(r.cfg.URL)
	if err != nil {
		return
	}
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	resp, err := r.req.Do(ctx, "GET", robotsURL)
	if err != nil || resp.StatusCode != 200 {
		return
	}

	links := extract.FromRobots(resp.Body, r.cfg.URL)
	seeded := 0
	for _, dir := range links.Directories {
		if r.policy.ConsiderURL(dir, root) != nil {
			seeded++
		}
	}
	for _, file := range links.Files {
		if r.registerFileProbe(file, root) {
			seeded++
		}
	}
	if seeded > 0 && !r.cfg.Quiet {
		fmt.Fprintf(os.Stderr, "[+] robots.txt seeded %d additional targets\n", seeded)
	}
}

// registerFileProbe queues a single direct request for an extracted file
// link. Duplicates and out-of-depth targets are silently dropped.
func (r *Runner) registerFileProbe(rawURL string, parent *scans.Scan) bool {
	if r.reg.Contains(rawURL) {
		return false
	}
	_, err := r.reg.Register(rawURL, scans.TypeFile, parent.ID, parent.Depth, parent.Threads, parent.RateLimit)
	if err != nil {
		return false
	}
	if r.governor != nil {
		r.governor.Kick()
	}
	return true
}

// checkpointLoop flushes state periodically until the run context ends.
func (r *Runner) checkpointLoop(ctx context.Context) {
	ticker := time.NewTicker(checkpointInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.checkpoint()
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) checkpoint() {
	if r.cfg.NoState {
		return
	}
	f := state.NewFile(r.cfg, r.reg, r.log, r.wildcards.Signatures())
	if err := state.Save(r.statePath, f); err != nil && !r.cfg.Quiet {
		fmt.Fprintf(os.Stderr, "[!] Could not save state: %v\n", err)
	}
}

func (r *Runner) writeFooter() {
	counts := r.reg.CountByStatus()

	stats := output.Stats{
		TotalRequests:  int(r.requests.Load()),
		FilteredCount:  int(r.filtered.Load()),
		WildcardCount:  int(r.wildcardN.Load()),
		ErrorCount:     int(r.errorsN.Load()),
		ScansRun:       counts[scans.StatusComplete] + counts[scans.StatusCancelled],
		ScansCancelled: counts[scans.StatusCancelled],
		Duration:       time.Since(r.start),
	}
	if secs := stats.Duration.Seconds(); secs > 0 {
		stats.RequestsPerSec = float64(stats.TotalRequests) / secs
	}
	_ = r.writer.WriteFooter(stats)
}

// resolveStatePath picks the checkpoint file: an explicit --state-file wins,
// resuming reuses the loaded file, otherwise a per-run name is derived from
// the target.
func resolveStatePath(cfg *config.RunConfig) string {
	if cfg.StateFile != "" {
		return cfg.StateFile
	}
	if cfg.ResumeFrom != "" {
		return cfg.ResumeFrom
	}
	sanitized := strings.NewReplacer("://", "_", "/", "_", ":", "_", ".", "_").Replace(cfg.URL)
	return fmt.Sprintf("burrow-%s-%d.state", sanitized, time.Now().Unix())
}

func createWriter(cfg *config.RunConfig) (output.Writer, error) {
	switch cfg.OutputFormat {
	case "json":
		return output.NewJSONWriter(cfg.OutputFile)
	default:
		return output.NewTextWriter(cfg.OutputFile, cfg.NoColor, cfg.Quiet)
	}
}
