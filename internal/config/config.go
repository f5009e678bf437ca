package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Options collects every flag as parsed from the command line. It is mutated
// only during flag parsing; Validate turns it into an immutable RunConfig.
type Options struct {
	// Target
	URL          string
	WordlistPath string
	Extensions   []string

	// Performance
	Threads     int
	Timeout     time.Duration
	ScanLimit   int // max concurrent scans, 0 = unlimited
	RateLimit   int // requests/second per scan, 0 = unlimited
	TimeLimit   time.Duration
	AutoTune    bool
	AutoBail    bool
	ErrorWindow int

	// Recursion
	MaxDepth       int // 0 = unlimited
	NoRecursion    bool
	ForceRecursion bool
	DontScan       []string // URLs or regex patterns never scanned

	// Discovery
	ExtractLinks bool
	ScanRobots   bool

	// Filtering
	AllowStatus   []int
	DenyStatus    []int
	FilterSize    []int
	FilterWords   []int
	FilterLines   []int
	FilterRegex   []string
	SimilarTo     []string
	DontFilter    bool // disable wildcard auto-filtering
	SimilarCutoff int  // max hamming distance treated as similar

	// State
	ResumeFrom string
	StateFile  string
	NoState    bool

	// HTTP
	Headers         map[string]string
	UserAgent       string
	Proxy           string
	FollowRedirects bool

	// Output
	OutputFile   string
	OutputFormat string // "text" or "json"
	Quiet        bool
	NoColor      bool
}

// RunConfig is the validated, immutable snapshot of a run's tunables. It is
// created once at startup and shared by reference with every component;
// nothing mutates it afterwards.
type RunConfig struct {
	// Target
	URL          string
	WordlistPath string
	Extensions   []string

	// Performance
	Threads     int
	Timeout     time.Duration
	ScanLimit   int
	RateLimit   int
	TimeLimit   time.Duration
	AutoTune    bool
	AutoBail    bool
	ErrorWindow int

	// Recursion
	MaxDepth       int
	NoRecursion    bool
	ForceRecursion bool
	DontScanURLs   []string
	DontScanRegex  []*regexp.Regexp

	// Discovery
	ExtractLinks bool
	ScanRobots   bool

	// Filtering
	AllowStatus   []int
	DenyStatus    []int
	FilterSize    []int
	FilterWords   []int
	FilterLines   []int
	FilterRegex   []*regexp.Regexp
	SimilarTo     []string
	DontFilter    bool
	SimilarCutoff int

	// State
	ResumeFrom string
	StateFile  string
	NoState    bool

	// HTTP
	Headers         map[string]string
	UserAgent       string
	Proxy           string
	FollowRedirects bool

	// Output
	OutputFile   string
	OutputFormat string
	Quiet        bool
	NoColor      bool
}

// DefaultAllowStatus is used when no --allow-status value is given. It covers
// the success, redirect, and auth-related codes worth reporting.
var DefaultAllowStatus = []int{
	200, 204, 301, 302, 307, 308, 401, 403, 405, 500,
}

// Validate checks the options and freezes them into a RunConfig. A bad filter
// regex, a conflicting allow/deny pair, or an unparsable exclusion pattern is
// fatal here rather than silently corrupting results mid-run.
func Validate(opts *Options) (*RunConfig, error) {
	if opts.URL == "" && opts.ResumeFrom == "" {
		return nil, fmt.Errorf("target required: use -u or --resume-from")
	}

	if opts.URL != "" {
		if !strings.HasPrefix(opts.URL, "http://") && !strings.HasPrefix(opts.URL, "https://") {
			opts.URL = "http://" + opts.URL
		}
		if _, err := url.Parse(opts.URL); err != nil {
			return nil, fmt.Errorf("invalid target URL %q: %w", opts.URL, err)
		}
	}

	if opts.Threads < 1 {
		return nil, fmt.Errorf("--threads must be at least 1")
	}

	for _, code := range opts.AllowStatus {
		for _, denied := range opts.DenyStatus {
			if code == denied {
				return nil, fmt.Errorf("status %d appears in both --allow-status and --deny-status", code)
			}
		}
	}

	allow := opts.AllowStatus
	if len(allow) == 0 {
		allow = DefaultAllowStatus
	}

	cfg := &RunConfig{
		URL:             strings.TrimRight(opts.URL, "/"),
		WordlistPath:    opts.WordlistPath,
		Extensions:      opts.Extensions,
		Threads:         opts.Threads,
		Timeout:         opts.Timeout,
		ScanLimit:       opts.ScanLimit,
		RateLimit:       opts.RateLimit,
		TimeLimit:       opts.TimeLimit,
		AutoTune:        opts.AutoTune,
		AutoBail:        opts.AutoBail,
		ErrorWindow:     opts.ErrorWindow,
		MaxDepth:        opts.MaxDepth,
		NoRecursion:     opts.NoRecursion,
		ForceRecursion:  opts.ForceRecursion,
		ExtractLinks:    opts.ExtractLinks,
		ScanRobots:      opts.ScanRobots,
		AllowStatus:     allow,
		DenyStatus:      opts.DenyStatus,
		FilterSize:      opts.FilterSize,
		FilterWords:     opts.FilterWords,
		FilterLines:     opts.FilterLines,
		SimilarTo:       opts.SimilarTo,
		DontFilter:      opts.DontFilter,
		SimilarCutoff:   opts.SimilarCutoff,
		ResumeFrom:      opts.ResumeFrom,
		StateFile:       opts.StateFile,
		NoState:         opts.NoState,
		Headers:         opts.Headers,
		UserAgent:       opts.UserAgent,
		Proxy:           opts.Proxy,
		FollowRedirects: opts.FollowRedirects,
		OutputFile:      opts.OutputFile,
		OutputFormat:    opts.OutputFormat,
		Quiet:           opts.Quiet,
		NoColor:         opts.NoColor,
	}

	if cfg.ErrorWindow <= 0 {
		cfg.ErrorWindow = 50
	}
	if cfg.SimilarCutoff <= 0 {
		cfg.SimilarCutoff = 3 // 64-bit simhash: distance <= 3 is ~95% similar
	}

	for _, pattern := range opts.FilterRegex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid --filter-regex %q: %w", pattern, err)
		}
		cfg.FilterRegex = append(cfg.FilterRegex, re)
	}

	// --dont-scan entries are either literal URLs or regex patterns; entries
	// without metacharacters are kept as literal prefixes.
	for _, entry := range opts.DontScan {
		if looksLikeRegex(entry) {
			re, err := regexp.Compile(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid --dont-scan pattern %q: %w", entry, err)
			}
			cfg.DontScanRegex = append(cfg.DontScanRegex, re)
		} else {
			cfg.DontScanURLs = append(cfg.DontScanURLs, strings.TrimRight(entry, "/"))
		}
	}

	return cfg, nil
}

// looksLikeRegex reports whether the entry contains metacharacters that make
// it worth treating as a pattern instead of a literal URL prefix.
func looksLikeRegex(entry string) bool {
	return strings.ContainsAny(entry, "*+?[](){}|^$\\")
}
