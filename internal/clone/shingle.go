package clone

import (
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// kgramHashes builds the k-shingle hash set for one token stream. The
// list is not trimmed of boilerplate: corpus-wide document frequency
// (see corpusShingleStats) is consulted only by the stop-motif gate,
// and MinHash signatures are computed over the full list.
func kgramHashes(tokens []Token, k int) []uint64 {
	if len(tokens) < k {
		return nil
	}
	out := make([]uint64, 0, len(tokens)-k+1)
	for i := 0; i+k <= len(tokens); i++ {
		h := xxhash.New()
		for j := i; j < i+k; j++ {
			_, _ = h.WriteString(tokens[j].Canon)
			_, _ = h.WriteString("\x00")
		}
		out = append(out, h.Sum64())
	}
	return out
}

// corpusShingleStats tracks how many entities contain each shingle
// hash, the basis for IDF weighting and boilerplate trimming.
type corpusShingleStats struct {
	docFreq   map[uint64]int
	numDocs   int
}

func newCorpusShingleStats() *corpusShingleStats {
	return &corpusShingleStats{docFreq: make(map[uint64]int)}
}

func (s *corpusShingleStats) observe(hashes []uint64) {
	s.numDocs++
	seen := make(map[uint64]bool, len(hashes))
	for _, h := range hashes {
		if seen[h] {
			continue
		}
		seen[h] = true
		s.docFreq[h]++
	}
}

// idf returns the inverse document frequency weight for a shingle
// hash: log2(N/df + 1), with N/df floored at 1 (so the weight is never
// below 1) and an unseen hash treated as df = 1 so it doesn't divide by
// zero.
func (s *corpusShingleStats) idf(hash uint64) float64 {
	df := s.docFreq[hash]
	if df == 0 {
		df = 1
	}
	ratio := float64(s.numDocs) / float64(df)
	if ratio < 1 {
		ratio = 1
	}
	return math.Log2(ratio + 1)
}

// boilerplateThreshold returns the document-frequency count above
// which a shingle is considered boilerplate, given a quantile
// (default 0.99 means only the most common 1% of shingles are cut).
func (s *corpusShingleStats) boilerplateThreshold(quantile float64) int {
	if len(s.docFreq) == 0 {
		return s.numDocs + 1
	}
	freqs := make([]int, 0, len(s.docFreq))
	for _, f := range s.docFreq {
		freqs = append(freqs, f)
	}
	sort.Ints(freqs)
	idx := int(quantile * float64(len(freqs)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(freqs) {
		idx = len(freqs) - 1
	}
	return freqs[idx]
}

func (s *corpusShingleStats) isBoilerplate(hash uint64, threshold int) bool {
	return s.docFreq[hash] > threshold && threshold <= s.numDocs
}
