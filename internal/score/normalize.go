// Package score implements the normalizer + scorer (C7): per-feature
// distribution normalization, category aggregation, priority
// weighting, and issue/suggestion synthesis. Grounded on the
// weighted-composite-score orchestration shape of
// other_examples/12d58047_panbanda-omen__pkg-analyzer-score-score.go.go
// (functional Option config, per-component Normalize* functions feeding
// a ComputeComposite step) and on
// yenhunghuang-repo-onboarding-copilot/internal/analysis/metrics/quality_reporter.go's
// rule-table shape for issue/suggestion synthesis.
package score

import (
	"math"
	"sort"

	"github.com/standardbeagle/valknut/internal/types"
)

const zscoreClamp = 3.0

// distribution holds the raw values observed for one feature across
// every entity in the run, the minimum state normalize() needs.
type distribution struct {
	values    []float64
	mean      float64
	stddev    float64
	min       float64
	max       float64
	sorted    []float64
}

func buildDistribution(values []float64) distribution {
	d := distribution{values: values}
	if len(values) == 0 {
		return d
	}
	sum := 0.0
	d.min, d.max = values[0], values[0]
	for _, v := range values {
		sum += v
		if v < d.min {
			d.min = v
		}
		if v > d.max {
			d.max = v
		}
	}
	d.mean = sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - d.mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	d.stddev = math.Sqrt(variance)

	d.sorted = append([]float64(nil), values...)
	sort.Float64s(d.sorted)
	return d
}

// normalizeValue maps one raw value into [0,1] per the feature's
// declared policy, then inverts it if higher_is_worse is false (a
// higher-is-better raw value contributes less risk the higher it is).
func normalizeValue(raw float64, d distribution, def types.FeatureDef) float64 {
	var n float64
	switch def.Normalize {
	case types.NormZScore:
		n = zscoreNormalize(raw, d)
	case types.NormPercentile:
		n = percentileNormalize(raw, d)
	case types.NormMinMax:
		n = minMaxNormalize(raw, d)
	case types.NormIdentity:
		n = clamp01(raw)
	default:
		n = clamp01(raw)
	}

	if def.Direction == types.HigherIsBetter {
		n = 1 - n
	}
	return clamp01(n)
}

func zscoreNormalize(raw float64, d distribution) float64 {
	if d.stddev == 0 {
		return 0.5
	}
	z := (raw - d.mean) / d.stddev
	if z > zscoreClamp {
		z = zscoreClamp
	}
	if z < -zscoreClamp {
		z = -zscoreClamp
	}
	return (z + zscoreClamp) / (2 * zscoreClamp)
}

func percentileNormalize(raw float64, d distribution) float64 {
	if len(d.sorted) == 0 {
		return 0.5
	}
	idx := sort.SearchFloat64s(d.sorted, raw)
	return float64(idx) / float64(len(d.sorted))
}

func minMaxNormalize(raw float64, d distribution) float64 {
	if d.max == d.min {
		return 0.5
	}
	return (raw - d.min) / (d.max - d.min)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
