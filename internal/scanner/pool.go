package scanner

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// retryBackoff is how long a worker sleeps before the single retry granted to
// a failed request. Only the retried failure counts toward the error window.
const retryBackoff = 500 * time.Millisecond

// Result pairs a probe URL with its outcome. Exactly one of Response and Err
// is set.
type Result struct {
	URL      string
	Response *Response
	Err      error
}

// Pool is the bounded worker pool executing one scan's requests. The number
// of active workers can be reduced at runtime (auto-tune) but never raised.
type Pool struct {
	allowed atomic.Int32 // workers with id >= allowed retire
	started int32
	limiter *Limiter
	pauser  *Pauser
	window  *Window
}

// NewPool creates a worker pool of the given size. limiter and pauser may be
// shared with other components; window records every request outcome.
func NewPool(threads int, limiter *Limiter, pauser *Pauser, window *Window) *Pool {
	if threads < 1 {
		threads = 1
	}
	p := &Pool{
		started: int32(threads),
		limiter: limiter,
		pauser:  pauser,
		window:  window,
	}
	p.allowed.Store(int32(threads))
	return p
}

// ActiveThreads returns the current worker cap.
func (p *Pool) ActiveThreads() int {
	return int(p.allowed.Load())
}

// Reduce halves the worker cap, flooring at 1, and returns the new cap.
// Retired workers drain on their next item boundary.
func (p *Pool) Reduce() int {
	for {
		cur := p.allowed.Load()
		next := cur / 2
		if next < 1 {
			next = 1
		}
		if cur == next || p.allowed.CompareAndSwap(cur, next) {
			return int(next)
		}
	}
}

// AtFloor reports whether the worker cap has bottomed out.
func (p *Pool) AtFloor() bool {
	return p.allowed.Load() <= 1
}

// Run fans the urls out across the pool's workers and returns a channel of
// results, closed when every URL has been attempted or the context is
// cancelled. Workers gate on the pauser and the limiter before each request;
// in-flight requests are never aborted by pause or cancellation.
func (p *Pool) Run(ctx context.Context, req *Requester, method string, urls []string) <-chan Result {
	threads := int(p.started)
	urlCh := make(chan string, threads*2)
	resultCh := make(chan Result, threads*2)

	go func() {
		defer close(urlCh)
		for _, u := range urls {
			select {
			case urlCh <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(id int32) {
			defer wg.Done()
			for {
				// retirement is checked before pulling work, so a reduced
				// cap never discards an already-claimed URL
				if id >= p.allowed.Load() {
					return
				}
				u, ok := <-urlCh
				if !ok {
					return
				}

				p.pauser.Wait()

				if err := p.limiter.Wait(ctx); err != nil {
					return
				}
				if ctx.Err() != nil {
					return
				}

				resp, err := p.attempt(ctx, req, method, u)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					p.window.Record(OutcomeError)
					resultCh <- Result{URL: u, Err: err}
					continue
				}

				switch resp.StatusCode {
				case 403:
					p.window.Record(OutcomeStatus403)
				case 429:
					p.window.Record(OutcomeStatus429)
				default:
					p.window.Record(OutcomeOK)
				}

				resultCh <- Result{URL: u, Response: resp}
			}
		}(int32(i))
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	return resultCh
}

// attempt issues the request with a single bounded retry for transport
// errors. Context cancellation is returned immediately, never retried.
func (p *Pool) attempt(ctx context.Context, req *Requester, method, u string) (*Response, error) {
	resp, err := req.Do(ctx, method, u)
	if err == nil || ctx.Err() != nil {
		return resp, err
	}

	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return req.Do(ctx, method, u)
}

// IsExhaustionError reports whether the request failure stems from file
// descriptor exhaustion rather than the network. These still count as plain
// errors for policy purposes but deserve a distinct operator warning.
func IsExhaustionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "too many open files") ||
		strings.Contains(msg, "no buffer space")
}
