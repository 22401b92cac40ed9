package clone

import (
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// bandCandidates groups entity indices by (band index, band hash),
// returning every pair that shares at least one band. Iteration order
// over bands and over the resulting pair set is deterministic (sorted
// by band key), matching the banding-order guarantee.
func bandCandidates(signatures []Signature, bands, rows int) [][2]int {
	type bucketKey struct {
		band int
		hash uint64
	}
	buckets := make(map[bucketKey][]int)

	for idx, sig := range signatures {
		for b := 0; b < bands; b++ {
			start := b * rows
			end := start + rows
			if end > len(sig) {
				end = len(sig)
			}
			if start >= end {
				continue
			}
			h := xxhash.New()
			for _, v := range sig[start:end] {
				_ = writeUint64(h, v)
			}
			key := bucketKey{band: b, hash: h.Sum64()}
			buckets[key] = append(buckets[key], idx)
		}
	}

	seen := make(map[[2]int]bool)
	var pairs [][2]int
	keys := make([]bucketKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].band != keys[j].band {
			return keys[i].band < keys[j].band
		}
		return keys[i].hash < keys[j].hash
	})

	for _, k := range keys {
		members := buckets[k]
		sort.Ints(members)
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := members[i], members[j]
				if a > b {
					a, b = b, a
				}
				pair := [2]int{a, b}
				if seen[pair] {
					continue
				}
				seen[pair] = true
				pairs = append(pairs, pair)
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}

func writeUint64(h *xxhash.Digest, v uint64) error {
	b := make([]byte, 8)
	putUint64(b, v)
	_, err := h.Write(b)
	return err
}

// ResolveBanding picks (bands, rows) honoring bands*rows == numHashes
// and targeting the expected detection threshold (1/b)^(1/r) ~= s*.
// Caller-supplied config values are used verbatim when they already
// multiply out correctly; otherwise every divisor pair of numHashes is
// scored against similarityTarget and the closest match wins.
func ResolveBanding(numHashes, bands, rows int, similarityTarget float64) (int, int) {
	if bands > 0 && rows > 0 && bands*rows == numHashes {
		return bands, rows
	}
	if numHashes <= 0 {
		return 1, 1
	}
	if similarityTarget <= 0 || similarityTarget >= 1 {
		similarityTarget = 0.72
	}

	bestB, bestR := numHashes, 1
	bestDiff := math.MaxFloat64
	for b := 1; b <= numHashes; b++ {
		if numHashes%b != 0 {
			continue
		}
		r := numHashes / b
		threshold := math.Pow(1.0/float64(b), 1.0/float64(r))
		if diff := math.Abs(threshold - similarityTarget); diff < bestDiff {
			bestDiff = diff
			bestB, bestR = b, r
		}
	}
	return bestB, bestR
}
