// Package clone implements the LSH-driven near-duplicate detector
// (C5): weighted k-shingling, MinHash signatures, LSH banding for
// candidate generation, a structural gate and stop-motif cache to
// suppress boilerplate-only matches, optional auto-calibration of the
// gate thresholds, and payoff-ranked ClonePair output. Grounded on the
// teacher's internal/analysis/duplicate_detector.go, generalized from
// its exact/near-duplicate MD5 hashing into a similarity-threshold LSH
// pipeline since lci has no banding step of its own.
package clone

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/valknut/internal/cache"
	"github.com/standardbeagle/valknut/internal/config"
	"github.com/standardbeagle/valknut/internal/types"
)

// candidateEntity bundles one entity with the derived structures the
// pipeline needs at every stage, computed once up front.
type candidateEntity struct {
	entity     types.CodeEntity
	tokens     []Token
	structural []string
	shingles   []uint64
	signature  Signature
}

// Detector runs the full clone pipeline over a batch of entities
// collected within one analysis run.
type Detector struct {
	cfg    config.CloneConfig
	store  *cache.Store
	maxAge time.Duration
}

func NewDetector(cfg config.CloneConfig) *Detector {
	return &Detector{cfg: cfg}
}

// WithCache enables stop-motif persistence against store: Detect loads
// a prior run's document-frequency table when it was saved for the
// same corpus fingerprint and isn't older than maxAge, skipping a full
// corpus rescan, and saves the freshly computed table back otherwise
// so the next run over this corpus can reuse it.
func (d *Detector) WithCache(store *cache.Store, maxAge time.Duration) *Detector {
	d.store = store
	d.maxAge = maxAge
	return d
}

// Detect returns deduplicated, payoff-ranked clone pairs for the given
// entities. Only function/method-kind entities participate; file and
// class-level entities are too coarse for shingle comparison.
func (d *Detector) Detect(entities []types.CodeEntity) []types.ClonePair {
	if !d.cfg.Enabled {
		return nil
	}

	cands := d.prepare(entities)
	if len(cands) < 2 {
		return nil
	}

	stats, fromCache := d.loadOrBuildStats(cands)
	if !fromCache {
		d.saveStats(cands, stats)
	}
	boilerThreshold := stats.boilerplateThreshold(0.99)
	motifCache := &StopMotifCache{stats: stats, threshold: boilerThreshold}

	signatures := make([]Signature, len(cands))
	for i, c := range cands {
		signatures[i] = c.signature
	}

	bands, rows := ResolveBanding(d.cfg.NumHashes, d.cfg.Bands, d.cfg.Rows, d.cfg.SimilarityTarget)
	pairs := bandCandidates(signatures, bands, rows)

	structThreshold := d.cfg.StructuralThreshold
	stopMotifMax := d.cfg.StopMotifRatio
	if d.cfg.AutoCalibrate {
		scored, controls := d.scoreForCalibration(cands, pairs, motifCache)
		result := calibrate(scored, controls, d.cfg.StructuralThreshold, d.cfg.StopMotifRatio, d.cfg.MaxFPR, 50)
		if !result.Skipped {
			structThreshold = result.StructuralThreshold
			stopMotifMax = result.StopMotifRatio
		}
	}

	var out []types.ClonePair
	for _, p := range pairs {
		a, b := cands[p[0]], cands[p[1]]
		sim := EstimatedJaccard(a.signature, b.signature)
		if sim < d.cfg.SimilarityTarget {
			continue
		}
		structScore := structuralSimilarity(a.structural, b.structural)
		if structScore < structThreshold {
			continue
		}
		shared := sharedHashes(a.shingles, b.shingles)
		if !motifCache.passesStopMotifGate(shared, stopMotifMax) {
			continue
		}

		pair := buildPair(a, b, sim, structScore)
		out = append(out, pair)
	}

	sort.Slice(out, func(i, j int) bool {
		pi, pj := payoff(out[i]), payoff(out[j])
		if pi != pj {
			return pi > pj
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return dedupePairs(out)
}

// loadOrBuildStats returns the document-frequency table to use for
// this run's stop-motif gate, reusing a cached one (fromCache true)
// when the cache is wired and still fresh for this exact corpus,
// otherwise recomputing it from the candidate entities' shingles.
func (d *Detector) loadOrBuildStats(cands []candidateEntity) (stats *corpusShingleStats, fromCache bool) {
	if d.store != nil {
		fp := corpusFingerprint(cands)
		if persisted, err := d.store.LoadStopMotifs(d.maxAge, fp); err == nil && len(persisted) > 0 {
			s := newCorpusShingleStats()
			s.docFreq = persisted
			s.numDocs = len(cands)
			return s, true
		}
	}
	s := newCorpusShingleStats()
	for _, c := range cands {
		s.observe(c.shingles)
	}
	return s, false
}

// saveStats persists a freshly computed document-frequency table so a
// later run over the same corpus can skip the rescan. Best effort: a
// write failure degrades to always-recompute, never aborts the run.
func (d *Detector) saveStats(cands []candidateEntity, stats *corpusShingleStats) {
	if d.store == nil {
		return
	}
	_ = d.store.SaveStopMotifs(stats.docFreq, corpusFingerprint(cands))
}

// corpusFingerprint content-addresses the entity batch being analyzed
// so a persisted stop-motif table is only reused for the exact corpus
// it was computed from; any entity added, removed, or resized changes
// the fingerprint and forces a rebuild.
func corpusFingerprint(cands []candidateEntity) string {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = fmt.Sprintf("%s:%d", c.entity.ID, len(c.shingles))
	}
	sort.Strings(ids)

	h := xxhash.New()
	for _, id := range ids {
		_, _ = h.WriteString(id)
		_, _ = h.WriteString("\x00")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func (d *Detector) prepare(entities []types.CodeEntity) []candidateEntity {
	var out []candidateEntity
	for _, e := range entities {
		if e.Generated {
			continue
		}
		if e.Kind != types.KindFunction && e.Kind != types.KindMethod {
			continue
		}
		tokens := Tokenize(e.SourceText)
		if len(tokens) < d.cfg.ShingleK {
			continue
		}
		shingles := kgramHashes(tokens, d.cfg.ShingleK)
		out = append(out, candidateEntity{
			entity:     e,
			tokens:     tokens,
			structural: StructuralTokens(tokens),
			shingles:   shingles,
			signature:  computeSignature(shingles, d.cfg.NumHashes),
		})
	}
	return out
}

// scoreForCalibration scores the LSH candidate pairs plus a
// deterministic held-out control set built from non-candidate pairs
// (entities that share no band, i.e. ones LSH itself considers
// dissimilar), which stand in for known negatives when fitting gate
// thresholds.
func (d *Detector) scoreForCalibration(cands []candidateEntity, pairs [][2]int, motifCache *StopMotifCache) ([]scoredPair, []scoredPair) {
	sampleLimit := d.cfg.CalibrationSample
	if sampleLimit <= 0 {
		sampleLimit = 500
	}

	isCandidate := make(map[[2]int]bool, len(pairs))
	for _, p := range pairs {
		isCandidate[p] = true
	}

	scored := make([]scoredPair, 0, len(pairs))
	for i, p := range pairs {
		if i >= sampleLimit {
			break
		}
		a, b := cands[p[0]], cands[p[1]]
		scored = append(scored, scoredPair{
			a: p[0], b: p[1],
			similarity:     EstimatedJaccard(a.signature, b.signature),
			structural:     structuralSimilarity(a.structural, b.structural),
			stopMotifRatio: motifCache.stopMotifRatio(sharedHashes(a.shingles, b.shingles)),
		})
	}

	var controls []scoredPair
	limit := len(cands)
	if limit > 64 {
		limit = 64
	}
	for i := 0; i < limit && len(controls) < 200; i++ {
		j := (i + limit/2 + 1) % len(cands)
		if i == j {
			continue
		}
		key := [2]int{i, j}
		if key[0] > key[1] {
			key = [2]int{j, i}
		}
		if isCandidate[key] {
			continue
		}
		a, b := cands[key[0]], cands[key[1]]
		controls = append(controls, scoredPair{
			a: key[0], b: key[1],
			similarity:     EstimatedJaccard(a.signature, b.signature),
			structural:     structuralSimilarity(a.structural, b.structural),
			stopMotifRatio: motifCache.stopMotifRatio(sharedHashes(a.shingles, b.shingles)),
		})
	}
	return scored, controls
}

func buildPair(a, b candidateEntity, similarity, structural float64) types.ClonePair {
	src, tgt := a, b
	if tgt.entity.ID < src.entity.ID {
		src, tgt = tgt, src
	}
	kind := classifyKind(similarity, structural, src.tokens, tgt.tokens)
	confidence := (similarity + structural) / 2
	return types.ClonePair{
		Source:          src.entity.ID,
		Target:          tgt.entity.ID,
		Similarity:      similarity,
		SpanSource:      src.entity.LineRange,
		SpanTarget:      tgt.entity.LineRange,
		Kind:            kind,
		StructuralScore: structural,
		Confidence:      confidence,
	}
}

// classifyKind distinguishes Type1 (near-identical source, possibly
// differing only in whitespace) from Type2 (same shape with
// renamed identifiers/literals) using the raw token streams, since
// canonicalization makes a renamed-identifier clone look exactly like
// a literal copy once reduced to $id/$lit — similarity and structural
// score alone can't tell them apart.
func classifyKind(similarity, structural float64, aTokens, bTokens []Token) types.CloneKind {
	switch {
	case CanonicalEqual(aTokens, bTokens) && RawEqual(aTokens, bTokens):
		return types.CloneType1
	case CanonicalEqual(aTokens, bTokens):
		return types.CloneType2
	case similarity > 0.97 && structural > 0.97:
		return types.CloneType2
	case structural > 0.85:
		return types.CloneType2
	default:
		return types.CloneType3
	}
}

// payoff ranks pairs by expected refactoring value: similarity times
// log(1 + combined line span), so more similar and larger pairs rank
// higher. No redundancy penalty is applied for spans already covered
// by a higher-ranked pair.
func payoff(p types.ClonePair) float64 {
	sizeSrc := int(p.SpanSource.End) - int(p.SpanSource.Start) + 1
	sizeTgt := int(p.SpanTarget.End) - int(p.SpanTarget.Start) + 1
	combined := sizeSrc + sizeTgt
	if combined < 1 {
		combined = 1
	}
	return p.Similarity * math.Log(1+float64(combined))
}

// dedupePairs drops any pair whose (source, target) entities match an
// already-kept pair, keeping the higher-payoff one (the list is already
// payoff-sorted descending). Pairs between different entities are
// kept even when their spans overlap.
func dedupePairs(pairs []types.ClonePair) []types.ClonePair {
	seen := make(map[[2]types.EntityId]bool, len(pairs))
	var out []types.ClonePair
	for _, p := range pairs {
		key := [2]types.EntityId{p.Source, p.Target}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
