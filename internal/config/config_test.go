package config

import (
	"strings"
	"testing"
)

func baseOptions() *Options {
	return &Options{
		URL:          "http://t",
		WordlistPath: "words.txt",
		Threads:      50,
	}
}

func TestValidate_Defaults(t *testing.T) {
	cfg, err := Validate(baseOptions())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if len(cfg.AllowStatus) != len(DefaultAllowStatus) {
		t.Errorf("allow status = %v, want defaults", cfg.AllowStatus)
	}
	if cfg.ErrorWindow != 50 {
		t.Errorf("error window = %d, want 50", cfg.ErrorWindow)
	}
	if cfg.SimilarCutoff != 3 {
		t.Errorf("similar cutoff = %d, want 3", cfg.SimilarCutoff)
	}
}

func TestValidate_RequiresTarget(t *testing.T) {
	if _, err := Validate(&Options{Threads: 50}); err == nil {
		t.Error("expected an error without -u or --resume-from")
	}

	// resuming is a valid way to supply the target
	opts := &Options{ResumeFrom: "scan.state", Threads: 50}
	if _, err := Validate(opts); err != nil {
		t.Errorf("resume-only invocation rejected: %v", err)
	}
}

func TestValidate_NormalizesURL(t *testing.T) {
	opts := baseOptions()
	opts.URL = "example.com/app/"
	cfg, err := Validate(opts)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.URL != "http://example.com/app" {
		t.Errorf("url = %q", cfg.URL)
	}
}

func TestValidate_StatusConflictIsFatal(t *testing.T) {
	opts := baseOptions()
	opts.AllowStatus = []int{200, 403}
	opts.DenyStatus = []int{403}
	if _, err := Validate(opts); err == nil {
		t.Error("expected allow/deny overlap to be fatal")
	}
}

func TestValidate_BadRegexIsFatal(t *testing.T) {
	opts := baseOptions()
	opts.FilterRegex = []string{"("}
	if _, err := Validate(opts); err == nil {
		t.Error("expected an unparsable filter regex to be fatal")
	}

	opts = baseOptions()
	opts.DontScan = []string{"(unclosed"}
	if _, err := Validate(opts); err == nil {
		t.Error("expected an unparsable dont-scan pattern to be fatal")
	}
}

func TestValidate_SplitsDontScanEntries(t *testing.T) {
	opts := baseOptions()
	opts.DontScan = []string{"http://t/logout/", `.*\.bak$`}

	cfg, err := Validate(opts)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if len(cfg.DontScanURLs) != 1 || cfg.DontScanURLs[0] != "http://t/logout" {
		t.Errorf("literal exclusions = %v", cfg.DontScanURLs)
	}
	if len(cfg.DontScanRegex) != 1 || !cfg.DontScanRegex[0].MatchString("http://t/db.bak") {
		t.Errorf("regex exclusions = %v", cfg.DontScanRegex)
	}
}

func TestValidate_ThreadFloor(t *testing.T) {
	opts := baseOptions()
	opts.Threads = 0
	if _, err := Validate(opts); err == nil {
		t.Error("expected zero threads to be rejected")
	}
}

func TestValidate_InvalidURL(t *testing.T) {
	opts := baseOptions()
	opts.URL = "http://bad url with spaces"
	_, err := Validate(opts)
	if err == nil || !strings.Contains(err.Error(), "invalid target URL") {
		t.Errorf("expected invalid URL error, got %v", err)
	}
}
