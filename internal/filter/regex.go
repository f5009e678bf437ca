package filter

import (
	"regexp"

	"github.com/burrowscan/burrow/internal/scanner"
)

// RegexFilter drops responses whose body or retained headers match a
// configured pattern. Patterns are compiled (and validated) at startup.
type RegexFilter struct {
	re *regexp.Regexp
}

// NewRegexFilter wraps a compiled pattern as a pipeline filter.
func NewRegexFilter(re *regexp.Regexp) *RegexFilter {
	return &RegexFilter{re: re}
}

func (f *RegexFilter) Name() string { return "regex" }

func (f *RegexFilter) ShouldFilter(resp *scanner.Response) bool {
	if len(resp.Body) > 0 && f.re.Match(resp.Body) {
		return true
	}
	for _, v := range resp.Headers {
		if f.re.MatchString(v) {
			return true
		}
	}
	return false
}
