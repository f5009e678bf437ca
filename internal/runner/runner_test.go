package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/burrowscan/burrow/internal/config"
	"github.com/burrowscan/burrow/internal/filter"
	"github.com/burrowscan/burrow/internal/output"
	"github.com/burrowscan/burrow/internal/recursion"
	"github.com/burrowscan/burrow/internal/scanner"
	"github.com/burrowscan/burrow/internal/scans"
)

// testRunner assembles a Runner without going through Run, for tests that
// drive the executor or control plane directly.
func testRunner(t *testing.T, cfg *config.RunConfig) *Runner {
	t.Helper()
	req, err := scanner.NewRequester(cfg)
	if err != nil {
		t.Fatal(err)
	}
	wild := filter.NewWildcardFilter(cfg.DontFilter)
	reg := scans.NewRegistry(cfg.MaxDepth)
	r := &Runner{
		cfg:       cfg,
		reg:       reg,
		log:       scans.NewResponseLog(),
		req:       req,
		wildcards: wild,
		detector:  filter.NewDetector(req, wild),
		policy:    recursion.NewPolicy(cfg, reg),
		progress:  output.NewProgress(true),
		pauser:    scanner.NewPauser(),
	}
	r.filters = r.buildFilters(context.Background())
	return r
}

func writeWordlist(t *testing.T, entries string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte(entries), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testOptions(t *testing.T, srvURL string) (*config.Options, string) {
	t.Helper()
	outPath := filepath.Join(t.TempDir(), "out.json")
	return &config.Options{
		URL:          srvURL,
		WordlistPath: writeWordlist(t, "admin\npanel\n"),
		Threads:      4,
		Timeout:      5 * time.Second,
		MaxDepth:     3,
		OutputFile:   outPath,
		OutputFormat: "json",
		Quiet:        true,
		NoState:      true,
	}, outPath
}

func readResults(t *testing.T, path string) map[string]int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening results: %v", err)
	}
	defer f.Close()

	got := make(map[string]int)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r scanner.Response
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("bad result line: %v", err)
		}
		got[r.URL] = r.StatusCode
	}
	return got
}

func TestRun_DiscoversAndRecurses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin":
			http.Redirect(w, r, "/admin/", http.StatusMovedPermanently)
		case "/admin/panel":
			fmt.Fprint(w, "<html>panel</html>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	opts, outPath := testOptions(t, srv.URL)
	cfg, err := config.Validate(opts)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := readResults(t, outPath)
	if got[srv.URL+"/admin"] != 301 {
		t.Errorf("missing 301 for /admin, results: %v", got)
	}
	// /panel exists only under the recursed /admin/ directory
	if got[srv.URL+"/admin/panel"] != 200 {
		t.Errorf("recursion did not reach /admin/panel, results: %v", got)
	}
	if _, ok := got[srv.URL+"/panel"]; ok {
		t.Error("404 responses must be filtered by the default allow list")
	}
}

func TestRun_WildcardSuppression(t *testing.T) {
	// every path returns the same 200 page
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>soft not-found</html>")
	}))
	defer srv.Close()

	opts, outPath := testOptions(t, srv.URL)
	cfg, err := config.Validate(opts)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := readResults(t, outPath); len(got) != 0 {
		t.Errorf("wildcard responses leaked through: %v", got)
	}
}

func TestRun_TimeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	opts, _ := testOptions(t, srv.URL)
	opts.TimeLimit = 100 * time.Millisecond
	cfg, err := config.Validate(opts)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	err = Run(context.Background(), cfg)
	if !errors.Is(err, ErrTimeLimit) {
		t.Errorf("err = %v, want ErrTimeLimit", err)
	}
}

func TestRun_MissingWordlistIsFatal(t *testing.T) {
	opts, _ := testOptions(t, "http://t")
	opts.WordlistPath = filepath.Join(t.TempDir(), "absent.txt")
	cfg, err := config.Validate(opts)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if err := Run(context.Background(), cfg); err == nil {
		t.Error("expected an error for a missing wordlist")
	}
}

func TestMenuSelectionResumesScanning(t *testing.T) {
	opts, _ := testOptions(t, "http://t")
	cfg, err := config.Validate(opts)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	r := testRunner(t, cfg)
	root, err := r.reg.Register("http://t", scans.TypeInitial, "", 0, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	child, err := r.reg.Register("http://t/a", scans.TypeDirectory, root.ID, 1, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	r.governor = scans.NewGovernor(r.reg, 0, func(context.Context, *scans.Scan) {})

	r.pauser.Pause()
	var out bytes.Buffer
	r.runMenu(strings.NewReader("1 -f\n"), &out)

	if r.pauser.IsPaused() {
		t.Error("processing the menu selection must resume the run")
	}
	if child.Status() != scans.StatusCancelled {
		t.Errorf("child = %s, want cancelled", child.Status())
	}
	if root.Status() == scans.StatusCancelled {
		t.Error("roots must never be cancelled from the menu")
	}
}

func TestProbeFileHonorsPause(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		http.NotFound(w, req)
	}))
	defer srv.Close()

	opts, _ := testOptions(t, srv.URL)
	cfg, err := config.Validate(opts)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	r := testRunner(t, cfg)
	s, err := r.reg.Register(srv.URL+"/app.css", scans.TypeFile, "", 0, 1, 0)
	if err != nil {
		t.Fatal(err)
	}

	r.pauser.Pause()
	done := make(chan struct{})
	go func() {
		r.probeFile(context.Background(), s)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if hits.Load() != 0 {
		t.Fatal("file probe was issued while the run was paused")
	}

	r.pauser.Resume()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("probe did not finish after resume")
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestCalibrationHonorsPause(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		http.NotFound(w, req)
	}))
	defer srv.Close()

	opts, _ := testOptions(t, srv.URL)
	cfg, err := config.Validate(opts)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	r := testRunner(t, cfg)
	r.words = []string{"admin"}
	s, err := r.reg.Register(srv.URL, scans.TypeInitial, "", 0, 2, 0)
	if err != nil {
		t.Fatal(err)
	}

	r.pauser.Pause()
	done := make(chan struct{})
	go func() {
		r.executeScan(context.Background(), s)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if hits.Load() != 0 {
		t.Fatal("calibration probe was issued while the run was paused")
	}

	r.pauser.Resume()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("scan did not finish after resume")
	}
	// one calibration probe (404 ends calibration) plus one wordlist entry
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestAutoBailCancelsFailingScan(t *testing.T) {
	// nothing listens on port 1, so every request is a transport error
	opts, _ := testOptions(t, "http://127.0.0.1:1")
	opts.AutoBail = true
	opts.ErrorWindow = 10
	opts.Threads = 2
	opts.Timeout = 500 * time.Millisecond
	opts.DontFilter = true
	cfg, err := config.Validate(opts)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	r := testRunner(t, cfg)
	words := make([]string, 40)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	r.words = words

	s, err := r.reg.Register(cfg.URL, scans.TypeInitial, "", 0, cfg.Threads, 0)
	if err != nil {
		t.Fatal(err)
	}
	r.governor = scans.NewGovernor(r.reg, 0, r.executeScan)

	done := make(chan error, 1)
	go func() { done <- r.governor.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("governor: %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("governor did not finish")
	}

	if s.Status() != scans.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", s.Status())
	}
	if !strings.Contains(s.CancelReason(), "bail") {
		t.Errorf("cancel reason = %q", s.CancelReason())
	}
	// 100% failure must trip the bail within one rolling window
	if got := r.requests.Load(); got > int64(cfg.ErrorWindow) {
		t.Errorf("issued %d requests before bailing, window is %d", got, cfg.ErrorWindow)
	}
}

func TestResolveStatePath(t *testing.T) {
	explicit := &config.RunConfig{StateFile: "here.state"}
	if got := resolveStatePath(explicit); got != "here.state" {
		t.Errorf("explicit state file ignored: %q", got)
	}

	resumed := &config.RunConfig{ResumeFrom: "old.state"}
	if got := resolveStatePath(resumed); got != "old.state" {
		t.Errorf("resume should reuse the loaded file: %q", got)
	}

	derived := &config.RunConfig{URL: "https://example.com/app"}
	got := resolveStatePath(derived)
	if got == "" || got == derived.URL {
		t.Errorf("derived state path = %q", got)
	}
}
