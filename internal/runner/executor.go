package runner

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/burrowscan/burrow/internal/extract"
	"github.com/burrowscan/burrow/internal/scanner"
	"github.com/burrowscan/burrow/internal/scans"
)

const (
	// bailRatio is the rolling-window error rate at which an auto-bail
	// scan gives up on its target.
	bailRatio = 0.90
	// tuneErrorRatio and tuneTooManyRatio are the rates of transport
	// errors and 429 responses that trigger an auto-tune step down.
	tuneErrorRatio   = 0.25
	tuneTooManyRatio = 0.30
	// tuneCooldown spaces successive auto-tune adjustments so one burst
	// of errors does not collapse the pool in a single window.
	tuneCooldown = time.Second
)

// executeScan runs one admitted scan to completion: wildcard calibration,
// wordlist enumeration through a fresh worker pool, and per-result filtering,
// reporting, recursion, and extraction. Invoked by the governor.
func (r *Runner) executeScan(ctx context.Context, s *scans.Scan) {
	if s.Type == scans.TypeFile {
		r.probeFile(ctx, s)
		return
	}

	base := s.NormalizedURL()

	limiter := scanner.NewLimiter(s.RateLimit)
	window := scanner.NewWindow(r.cfg.ErrorWindow)
	pool := scanner.NewPool(s.Threads, limiter, r.pauser, window)

	if !r.cfg.DontFilter {
		// calibration probes honor the same pause and rate gates as the
		// wordlist requests that follow them
		r.pauser.Wait()
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		sig, err := r.detector.Calibrate(ctx, base)
		switch {
		case err != nil && ctx.Err() == nil && !r.cfg.Quiet:
			fmt.Fprintf(os.Stderr, "[!] Wildcard calibration failed for %s: %v\n", base, err)
		case sig != nil && !r.cfg.Quiet:
			r.progress.ClearLine()
			fmt.Fprintf(os.Stderr, "[*] Wildcard response detected at %s (status %d), auto-filtering\n",
				base, sig.Status)
		}
	}

	urls := make([]string, 0, len(r.words))
	for _, w := range r.words {
		urls = append(urls, base+w)
	}
	r.progress.AddTotal(len(urls))

	t := &tuner{
		scan:    s,
		pool:    pool,
		limiter: limiter,
		window:  window,
		started: time.Now(),
	}

	for res := range pool.Run(ctx, r.req, http.MethodGet, urls) {
		if !s.IsActive() {
			continue // drain after bail or menu cancellation
		}

		t.issued++
		r.progress.Increment()
		r.requests.Add(1)

		if res.Err != nil {
			r.errorsN.Add(1)
			r.progress.IncrementErrors()
			if scanner.IsExhaustionError(res.Err) && r.exhaustionWarned.CompareAndSwap(false, true) {
				r.progress.ClearLine()
				fmt.Fprintf(os.Stderr, "[!] File descriptors exhausted — lower --threads or raise `ulimit -n`\n")
			}
		} else {
			r.handleResponse(s, res.Response)
		}

		r.adjust(t)
	}
}

// probeFile issues the single direct request of a file-type scan, gated on
// the pause flag like every other request.
func (r *Runner) probeFile(ctx context.Context, s *scans.Scan) {
	r.progress.AddTotal(1)

	r.pauser.Wait()
	if ctx.Err() != nil || !s.IsActive() {
		return
	}

	resp, err := r.req.Do(ctx, http.MethodGet, s.URL)
	r.progress.Increment()
	r.requests.Add(1)
	if err != nil {
		if ctx.Err() == nil {
			r.errorsN.Add(1)
			r.progress.IncrementErrors()
		}
		return
	}
	r.handleResponse(s, resp)
}

// handleResponse runs one successful response through the filter set and,
// when it survives, reports it and feeds recursion and link extraction.
func (r *Runner) handleResponse(s *scans.Scan, resp *scanner.Response) {
	dropped, reason := r.filters.Apply(resp)
	if dropped {
		r.filtered.Add(1)
		r.progress.IncrementFiltered()
		if reason == "wildcard" {
			r.wildcardN.Add(1)
		}
		return
	}

	// duplicates across resumed runs are counted but reported only once
	if !r.log.Add(resp) {
		return
	}

	r.progress.ClearLine()
	if err := r.writer.WriteResult(resp); err != nil && !r.cfg.Quiet {
		fmt.Fprintf(os.Stderr, "[!] Write error: %v\n", err)
	}

	if child := r.policy.Consider(resp, s); child != nil {
		r.governor.Kick()
	}

	if r.cfg.ExtractLinks && len(resp.Body) > 0 {
		links := extract.FromHTML(resp.Body, resp.URL)
		for _, dir := range links.Directories {
			if r.policy.ConsiderURL(dir, s) != nil {
				r.governor.Kick()
			}
		}
		for _, file := range links.Files {
			r.registerFileProbe(file, s)
		}
	}

	// body already served filtering and extraction
	resp.Body = nil
}

// tuner carries the per-scan feedback state between results.
type tuner struct {
	scan       *scans.Scan
	pool       *scanner.Pool
	limiter    *scanner.Limiter
	window     *scanner.Window
	started    time.Time
	issued     int
	lastAdjust time.Time
}

// adjust applies the auto-bail and auto-tune policies after each result.
// Ratios stay at zero until the window holds enough samples, so neither
// policy can trigger on startup noise.
func (r *Runner) adjust(t *tuner) {
	errRatio := t.window.Ratio(scanner.OutcomeError)
	tooMany := t.window.Ratio(scanner.OutcomeStatus429)

	if r.cfg.AutoBail && errRatio >= bailRatio {
		if t.scan.Cancel("error rate exceeded the bail threshold") {
			r.progress.ClearLine()
			if !r.cfg.Quiet {
				fmt.Fprintf(os.Stderr, "[!] Too many errors from %s, cancelling scan\n", t.scan.URL)
			}
		}
		return
	}

	if !r.cfg.AutoTune {
		return
	}
	if errRatio < tuneErrorRatio && tooMany < tuneTooManyRatio {
		return
	}
	if time.Since(t.lastAdjust) < tuneCooldown {
		return
	}
	t.lastAdjust = time.Now()

	if !t.limiter.AtFloor() {
		observed := 0
		if secs := time.Since(t.started).Seconds(); secs > 0 {
			observed = int(float64(t.issued) / secs)
		}
		newRate := t.limiter.Tighten(observed)
		if !r.cfg.Quiet {
			r.progress.ClearLine()
			fmt.Fprintf(os.Stderr, "[*] Auto-tune: limiting %s to %d req/s\n", t.scan.URL, newRate)
		}
		return
	}

	if !t.pool.AtFloor() {
		remaining := t.pool.Reduce()
		if !r.cfg.Quiet {
			r.progress.ClearLine()
			fmt.Fprintf(os.Stderr, "[*] Auto-tune: reducing %s to %d threads\n", t.scan.URL, remaining)
		}
	}
}
