package recursion

import (
	"net/url"
	"path"
	"strings"

	"github.com/burrowscan/burrow/internal/config"
	"github.com/burrowscan/burrow/internal/scanner"
	"github.com/burrowscan/burrow/internal/scans"
)

// Policy decides whether accepted responses and extracted links become new
// directory scans. It owns scope and exclusion checks; the depth cap is
// enforced both here and by the registry.
type Policy struct {
	cfg *config.RunConfig
	reg *scans.Registry
}

// NewPolicy creates a recursion policy over the given registry.
func NewPolicy(cfg *config.RunConfig, reg *scans.Registry) *Policy {
	return &Policy{cfg: cfg, reg: reg}
}

// Consider inspects an accepted response and registers a child directory
// scan when it denotes a new target. Returns the registered scan, or nil.
func (p *Policy) Consider(resp *scanner.Response, parent *scans.Scan) *scans.Scan {
	if p.cfg.NoRecursion {
		return nil
	}

	if !p.cfg.ForceRecursion && !looksRecursable(resp) {
		return nil
	}

	target := strings.TrimRight(resp.URL, "/")
	return p.register(target, parent)
}

// ConsiderURL applies scope, exclusion, and depth rules to an extracted
// directory link and registers it when it qualifies.
func (p *Policy) ConsiderURL(rawURL string, parent *scans.Scan) *scans.Scan {
	if p.cfg.NoRecursion {
		return nil
	}
	return p.register(strings.TrimRight(rawURL, "/"), parent)
}

// looksRecursable implements the directory heuristic: trailing-slash
// responses, redirects to the slash form, or extension-less 2xx paths.
func looksRecursable(resp *scanner.Response) bool {
	if resp.IsDirectoryLike() {
		return true
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return path.Ext(path.Base(resp.Path)) == ""
	}
	return false
}

func (p *Policy) register(target string, parent *scans.Scan) *scans.Scan {
	if !p.inScope(target, parent.URL) {
		return nil
	}
	if p.excluded(target) {
		return nil
	}
	if p.cfg.MaxDepth > 0 && parent.Depth+1 > p.cfg.MaxDepth {
		return nil
	}
	if p.reg.Contains(target) {
		return nil
	}

	child, err := p.reg.Register(
		target,
		scans.TypeDirectory,
		parent.ID,
		parent.Depth+1,
		parent.Threads,
		parent.RateLimit,
	)
	if err != nil {
		return nil
	}
	return child
}

// inScope restricts recursion to the host of the scan that produced the
// candidate; other hosts are never scanned unless supplied as roots.
func (p *Policy) inScope(target, parentURL string) bool {
	tu, err := url.Parse(target)
	if err != nil {
		return false
	}
	pu, err := url.Parse(parentURL)
	if err != nil {
		return false
	}
	return tu.Host == pu.Host
}

// excluded applies the --dont-scan URL prefixes and regex patterns.
func (p *Policy) excluded(target string) bool {
	for _, prefix := range p.cfg.DontScanURLs {
		if strings.HasPrefix(target, prefix) {
			return true
		}
	}
	for _, re := range p.cfg.DontScanRegex {
		if re.MatchString(target) {
			return true
		}
	}
	return false
}
