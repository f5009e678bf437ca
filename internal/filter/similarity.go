package filter

import (
	"math/bits"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/burrowscan/burrow/internal/scanner"
)

// SimilarityFilter drops responses whose body is nearly identical to a page
// the operator declared uninteresting (--filter-similar-to). Closeness is
// measured as the hamming distance between 64-bit simhash fingerprints; the
// default cutoff of 3 bits corresponds to roughly 95% similarity.
type SimilarityFilter struct {
	Hash        uint64 `json:"hash"`
	OriginalURL string `json:"original_url"`
	Cutoff      int    `json:"cutoff"`
}

// NewSimilarityFilter creates a filter around a reference fingerprint.
func NewSimilarityFilter(hash uint64, originalURL string, cutoff int) *SimilarityFilter {
	return &SimilarityFilter{Hash: hash, OriginalURL: originalURL, Cutoff: cutoff}
}

func (f *SimilarityFilter) Name() string { return "similarity" }

func (f *SimilarityFilter) ShouldFilter(resp *scanner.Response) bool {
	if len(resp.Body) == 0 {
		return false
	}
	other := Fingerprint(resp.Body)
	return HammingDistance(f.Hash, other) <= f.Cutoff
}

// Fingerprint computes a 64-bit simhash of the body: each lowercased word is
// hashed with murmur3 and votes on every bit position; the sign of each
// position's tally becomes that bit of the fingerprint. Small content edits
// flip few bits, so near-duplicate pages land within a short hamming
// distance of each other.
func Fingerprint(body []byte) uint64 {
	words := strings.Fields(strings.ToLower(string(body)))
	if len(words) == 0 {
		return 0
	}

	var tally [64]int
	for _, w := range words {
		h := murmur3.Sum64([]byte(w))
		for bit := 0; bit < 64; bit++ {
			if h&(1<<uint(bit)) != 0 {
				tally[bit]++
			} else {
				tally[bit]--
			}
		}
	}

	var hash uint64
	for bit := 0; bit < 64; bit++ {
		if tally[bit] > 0 {
			hash |= 1 << uint(bit)
		}
	}
	return hash
}

// HammingDistance counts differing bits between two fingerprints.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
