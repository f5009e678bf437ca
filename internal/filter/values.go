package filter

import "github.com/burrowscan/burrow/internal/scanner"

// SizeFilter drops responses whose body length equals an excluded value.
type SizeFilter struct {
	sizes map[int64]struct{}
}

// NewSizeFilter creates a filter excluding the given exact body sizes.
func NewSizeFilter(sizes []int) *SizeFilter {
	f := &SizeFilter{sizes: make(map[int64]struct{}, len(sizes))}
	for _, s := range sizes {
		f.sizes[int64(s)] = struct{}{}
	}
	return f
}

func (f *SizeFilter) Name() string { return "size" }

func (f *SizeFilter) ShouldFilter(resp *scanner.Response) bool {
	_, ok := f.sizes[resp.ContentLength]
	return ok
}

// WordsFilter drops responses whose word count equals an excluded value.
type WordsFilter struct {
	words map[int]struct{}
}

// NewWordsFilter creates a filter excluding the given exact word counts.
func NewWordsFilter(words []int) *WordsFilter {
	f := &WordsFilter{words: make(map[int]struct{}, len(words))}
	for _, w := range words {
		f.words[w] = struct{}{}
	}
	return f
}

func (f *WordsFilter) Name() string { return "words" }

func (f *WordsFilter) ShouldFilter(resp *scanner.Response) bool {
	_, ok := f.words[resp.WordCount]
	return ok
}

// LinesFilter drops responses whose line count equals an excluded value.
type LinesFilter struct {
	lines map[int]struct{}
}

// NewLinesFilter creates a filter excluding the given exact line counts.
func NewLinesFilter(lines []int) *LinesFilter {
	f := &LinesFilter{lines: make(map[int]struct{}, len(lines))}
	for _, l := range lines {
		f.lines[l] = struct{}{}
	}
	return f
}

func (f *LinesFilter) Name() string { return "lines" }

func (f *LinesFilter) ShouldFilter(resp *scanner.Response) bool {
	_, ok := f.lines[resp.LineCount]
	return ok
}
