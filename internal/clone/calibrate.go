package clone

import "sort"

// scoredPair is one candidate pair carrying the three gate scores
// needed for calibration and final ranking.
type scoredPair struct {
	a, b            int
	similarity      float64
	structural      float64
	stopMotifRatio  float64
}

// calibrationResult is the fitted threshold pair plus the sample sizes
// that informed it.
type calibrationResult struct {
	StructuralThreshold float64
	StopMotifRatio      float64
	Informative         int
	Skipped             bool
}

// calibrate fits structural/stop-motif thresholds against a held-out
// control set of random (non-candidate) pairs standing in for known
// negatives, tightening thresholds only as far as needed to keep the
// empirical false-positive rate on that control set under maxFPR.
// Skips calibration (falling back to the configured defaults) when
// fewer than minInformative pairs are available, since a handful of
// samples can't support a stable fit.
func calibrate(candidates, controls []scoredPair, defaultStructural, defaultStopMotif, maxFPR float64, minInformative int) calibrationResult {
	if len(candidates) < minInformative {
		return calibrationResult{
			StructuralThreshold: defaultStructural,
			StopMotifRatio:      defaultStopMotif,
			Informative:         len(candidates),
			Skipped:             true,
		}
	}

	structThreshold := defaultStructural
	if len(controls) > 0 {
		scores := make([]float64, len(controls))
		for i, c := range controls {
			scores[i] = c.structural
		}
		sort.Float64s(scores)
		// Pick the score below which at most maxFPR fraction of
		// controls survive the gate (i.e. appear to be clones).
		keepIdx := int((1 - maxFPR) * float64(len(scores)-1))
		if keepIdx < 0 {
			keepIdx = 0
		}
		if keepIdx >= len(scores) {
			keepIdx = len(scores) - 1
		}
		candidate := scores[keepIdx]
		if candidate > structThreshold {
			structThreshold = candidate
		}
	}

	stopMotif := defaultStopMotif
	if len(controls) > 0 {
		ratios := make([]float64, len(controls))
		for i, c := range controls {
			ratios[i] = c.stopMotifRatio
		}
		sort.Float64s(ratios)
		idx := int(maxFPR * float64(len(ratios)-1))
		if idx < 0 {
			idx = 0
		}
		candidate := ratios[idx]
		if candidate < stopMotif {
			stopMotif = candidate
		}
	}

	return calibrationResult{
		StructuralThreshold: structThreshold,
		StopMotifRatio:      stopMotif,
		Informative:         len(candidates),
	}
}
