package scans

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/remeh/sizedwaitgroup"
)

// unboundedScans stands in for "no scan limit" when sizing the admission
// barrier, since the waitgroup needs a concrete capacity.
const unboundedScans = 1 << 20

// ExecuteFunc runs one admitted scan to completion. It must honor ctx: on
// cancellation it finishes in-flight requests and returns without triggering
// recursion from remaining results.
type ExecuteFunc func(ctx context.Context, scan *Scan)

// Governor admits Queued scans for execution under the global scan-limit.
// Admission is FIFO by registration order; while the limit is saturated the
// admission loop blocks until a running scan finishes.
type Governor struct {
	reg      *Registry
	execute  ExecuteFunc
	swg      sizedwaitgroup.SizedWaitGroup
	inflight atomic.Int32
	kick     chan struct{}
	wg       sync.WaitGroup
}

// NewGovernor creates a governor admitting at most scanLimit concurrent
// scans (0 = unlimited).
func NewGovernor(reg *Registry, scanLimit int, execute ExecuteFunc) *Governor {
	if scanLimit <= 0 {
		scanLimit = unboundedScans
	}
	return &Governor{
		reg:     reg,
		execute: execute,
		swg:     sizedwaitgroup.New(scanLimit),
		kick:    make(chan struct{}, 1),
	}
}

// Kick nudges the admission loop after new scans are registered.
func (g *Governor) Kick() {
	select {
	case g.kick <- struct{}{}:
	default:
	}
}

// Running returns the number of currently admitted scans.
func (g *Governor) Running() int {
	return int(g.inflight.Load())
}

// Run drives admission until the registry holds no queued or running scans,
// or ctx is done (time-limit expiry or interrupt). It blocks until every
// admitted scan has returned.
func (g *Governor) Run(ctx context.Context) error {
	defer g.wg.Wait()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		next := g.reg.NextQueued()
		if next == nil {
			if g.inflight.Load() == 0 {
				return nil // registry drained
			}
			select {
			case <-g.kick:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if err := g.swg.AddWithContext(ctx); err != nil {
			return err
		}

		// a scan cancelled while waiting in the queue must not run
		if next.Status() != StatusQueued {
			g.swg.Done()
			continue
		}

		scanCtx, cancel := context.WithCancel(ctx)
		next.setCancel(cancel)
		if err := next.transition(StatusRunning); err != nil {
			cancel()
			g.swg.Done()
			continue
		}

		g.inflight.Add(1)
		g.wg.Add(1)
		go func(s *Scan) {
			defer func() {
				cancel()
				g.inflight.Add(-1)
				g.swg.Done()
				g.Kick()
				g.wg.Done()
			}()

			g.execute(scanCtx, s)

			// executor may have cancelled (auto-bail) or the scan may have
			// been cancelled from the menu; otherwise it completed. A scan
			// interrupted by run shutdown stays Running so the checkpoint
			// re-queues it on resume instead of recording it as done.
			if scanCtx.Err() == nil && s.IsActive() {
				_ = s.transition(StatusComplete)
			}
		}(next)
	}
}
