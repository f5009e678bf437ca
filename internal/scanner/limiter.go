package scanner

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter is a leaky-bucket rate limiter shared by all workers of one scan.
// A rate of 0 means unlimited. Tighten halves the rate and is monotonic: the
// rate is never raised again within a run.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	current int
	floor   int
}

// NewLimiter creates a per-scan limiter allowing perSecond requests/second.
func NewLimiter(perSecond int) *Limiter {
	l := &Limiter{current: perSecond, floor: 1}
	if perSecond > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
	}
	return l
}

// Wait blocks until a token is available or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	lim := l.limiter
	l.mu.Unlock()
	if lim == nil {
		return ctx.Err()
	}
	return lim.Wait(ctx)
}

// Tighten halves the request rate, flooring at 1 req/s. An unlimited limiter
// is first seeded from the given observed rate so there is something to
// tighten. Returns the new rate.
func (l *Limiter) Tighten(observedPerSecond int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limiter == nil {
		if observedPerSecond < 2 {
			observedPerSecond = 2
		}
		l.current = observedPerSecond
		l.limiter = rate.NewLimiter(rate.Limit(l.current), l.current)
	}

	next := l.current / 2
	if next < l.floor {
		next = l.floor
	}
	if next != l.current {
		l.current = next
		l.limiter.SetLimit(rate.Limit(next))
		l.limiter.SetBurst(next)
	}
	return l.current
}

// Rate returns the current requests/second cap, 0 when unlimited.
func (l *Limiter) Rate() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limiter == nil {
		return 0
	}
	return l.current
}

// AtFloor reports whether tightening has bottomed out.
func (l *Limiter) AtFloor() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limiter != nil && l.current <= l.floor
}
