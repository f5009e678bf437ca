package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestPool(threads int) *Pool {
	return NewPool(threads, NewLimiter(0), NewPauser(), NewWindow(50))
}

func TestPool_CoversEveryURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	urls := make([]string, 40)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/path%d", srv.URL, i)
	}

	pool := newTestPool(8)
	req := newTestRequester(t, nil)

	got := make(map[string]bool)
	for res := range pool.Run(context.Background(), req, "GET", urls) {
		if res.Err != nil {
			t.Fatalf("unexpected error for %s: %v", res.URL, res.Err)
		}
		got[res.URL] = true
	}

	if len(got) != len(urls) {
		t.Errorf("received %d results, want %d", len(got), len(urls))
	}
}

func TestPool_RecordsOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/throttled":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		default:
			fmt.Fprint(w, "ok")
		}
	}))
	defer srv.Close()

	window := NewWindow(4)
	pool := NewPool(2, NewLimiter(0), NewPauser(), window)
	req := newTestRequester(t, nil)

	urls := []string{
		srv.URL + "/throttled",
		srv.URL + "/throttled",
		srv.URL + "/forbidden",
		srv.URL + "/fine",
	}
	for range pool.Run(context.Background(), req, "GET", urls) {
	}

	if r := window.Ratio(OutcomeStatus429); r != 0.5 {
		t.Errorf("429 ratio = %v, want 0.5", r)
	}
	if r := window.Ratio(OutcomeStatus403); r != 0.25 {
		t.Errorf("403 ratio = %v, want 0.25", r)
	}
}

func TestPool_ContextCancelStops(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	urls := make([]string, 100)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/p%d", srv.URL, i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := newTestPool(4)
	results := pool.Run(ctx, newTestRequester(t, nil), "GET", urls)

	cancel()

	done := make(chan struct{})
	go func() {
		for range results {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not shut down after cancellation")
	}
}

func TestPool_Reduce(t *testing.T) {
	pool := newTestPool(16)

	if got := pool.Reduce(); got != 8 {
		t.Errorf("first reduce = %d, want 8", got)
	}
	pool.Reduce()
	pool.Reduce()
	pool.Reduce()
	if got := pool.ActiveThreads(); got != 1 {
		t.Errorf("threads after bottoming out = %d, want 1", got)
	}
	if !pool.AtFloor() {
		t.Error("expected pool at floor")
	}
	if got := pool.Reduce(); got != 1 {
		t.Errorf("reduce at floor = %d, want 1", got)
	}
}

func TestPool_ReduceLosesNoURLs(t *testing.T) {
	var inflight atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inflight.Add(1)
		<-release
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	urls := make([]string, 200)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/p%d", srv.URL, i)
	}

	pool := newTestPool(8)
	results := pool.Run(context.Background(), newTestRequester(t, nil), "GET", urls)

	// wait until the full pool is blocked in-flight, then reduce to the floor
	deadline := time.After(10 * time.Second)
	for inflight.Load() < 8 {
		select {
		case <-deadline:
			t.Fatal("workers never became busy")
		case <-time.After(5 * time.Millisecond):
		}
	}
	for !pool.AtFloor() {
		pool.Reduce()
	}
	close(release)

	attempted := 0
	for range results {
		attempted++
	}
	if attempted != len(urls) {
		t.Errorf("attempted %d of %d URLs after thread reduction", attempted, len(urls))
	}
}

func TestIsExhaustionError(t *testing.T) {
	if !IsExhaustionError(errors.New("dial tcp: too many open files")) {
		t.Error("fd exhaustion should be recognized")
	}
	if IsExhaustionError(errors.New("connection refused")) {
		t.Error("ordinary refusals are not exhaustion")
	}
	if IsExhaustionError(nil) {
		t.Error("nil error is not exhaustion")
	}
}
