package clone

// StopMotifCache tracks shingle hashes that recur across so much of
// the corpus they carry no discriminating signal (boilerplate getters,
// license headers, generated scaffolding). A pair whose shared
// shingles are mostly stop motifs is rejected even if its MinHash and
// structural scores pass, grounded on lci's duplicate_detector
// normalizeIdentifiers step that strips common noise before hashing,
// generalized here into an explicit ratio gate instead of a fixed
// strip-list.
type StopMotifCache struct {
	stats     *corpusShingleStats
	threshold int
}

// NewStopMotifCache derives a cache from shingle document-frequency
// statistics already observed across the corpus.
func NewStopMotifCache(stats *corpusShingleStats, quantile float64) *StopMotifCache {
	return &StopMotifCache{
		stats:     stats,
		threshold: stats.boilerplateThreshold(quantile),
	}
}

// stopMotifRatio returns the fraction of the given shingle hashes that
// the cache considers boilerplate.
func (c *StopMotifCache) stopMotifRatio(hashes []uint64) float64 {
	if len(hashes) == 0 {
		return 0
	}
	stop := 0
	for _, h := range hashes {
		if c.stats.isBoilerplate(h, c.threshold) {
			stop++
		}
	}
	return float64(stop) / float64(len(hashes))
}

// passesStopMotifGate rejects a pair whose shared shingles are mostly
// boilerplate noise rather than genuine structural overlap.
func (c *StopMotifCache) passesStopMotifGate(shared []uint64, maxRatio float64) bool {
	return c.stopMotifRatio(shared) < maxRatio
}

// sharedHashes returns the set intersection of two shingle hash lists.
func sharedHashes(a, b []uint64) []uint64 {
	set := make(map[uint64]bool, len(a))
	for _, h := range a {
		set[h] = true
	}
	var out []uint64
	seen := make(map[uint64]bool)
	for _, h := range b {
		if set[h] && !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}
