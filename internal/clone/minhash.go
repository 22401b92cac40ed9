package clone

import "github.com/cespare/xxhash/v2"

// Signature is a fixed-length MinHash signature. Equal config (same
// num_hashes, same fixed seeds) always produces the same signature for
// the same shingle set, satisfying the determinism invariant.
type Signature []uint64

// computeSignature produces a numHashes-length MinHash signature over
// a shingle set. Each hash function is
// a fixed-seed xxhash of the shingle hash, so results are reproducible
// across runs for the same input and config.
func computeSignature(shingles []uint64, numHashes int) Signature {
	sig := make(Signature, numHashes)
	for i := range sig {
		sig[i] = ^uint64(0)
	}
	if len(shingles) == 0 {
		return sig
	}
	for i := 0; i < numHashes; i++ {
		seed := uint64(i)*0x9E3779B97F4A7C15 + 0xA24BAED4963EE407
		var min uint64 = ^uint64(0)
		for _, h := range shingles {
			v := xxhash.Sum64(seedBytes(h, seed))
			if v < min {
				min = v
			}
		}
		sig[i] = min
	}
	return sig
}

func seedBytes(h, seed uint64) []byte {
	b := make([]byte, 16)
	putUint64(b[0:8], h)
	putUint64(b[8:16], seed)
	return b
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// EstimatedJaccard returns the fraction of matching positions between
// two signatures, MinHash's unbiased estimator of set Jaccard
// similarity.
func EstimatedJaccard(a, b Signature) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}
