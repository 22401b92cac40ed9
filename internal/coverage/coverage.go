// Package coverage correlates optional external line-hit data with
// extracted entities, partitioning each file's uncovered lines into
// maximal gaps and scoring them for testing payoff (C6). Grounded on
// lci's gap-free architecture (lci has no coverage
// concept of its own) enriched from
// yenhunghuang-repo-onboarding-copilot/internal/analysis/metrics/coverage_analyzer.go's
// testability/mock-estimation heuristics, adapted from that file's
// sprawling CoverageMetrics report into the CoveragePack/Gap shape.
package coverage

import (
	"math"
	"regexp"
	"sort"

	"github.com/standardbeagle/valknut/internal/config"
	"github.com/standardbeagle/valknut/internal/graph"
	"github.com/standardbeagle/valknut/internal/types"
)

// DefaultThreshold is the minimum gap score a file must contain at
// least one of before a CoveragePack is emitted for it.
const DefaultThreshold = 0.30

var decisionKeyword = regexp.MustCompile(`\b(if|else if|for|while|case|catch|except|&&|\|\|)\b`)

// Analyzer builds CoveragePacks from entities and external coverage
// data.
type Analyzer struct {
	threshold float64
	graph     *graph.Graph
}

func NewAnalyzer(threshold float64, g *graph.Graph) *Analyzer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Analyzer{threshold: threshold, graph: g}
}

// Build computes one CoveragePack per file with at least one
// sufficiently-costly gap. totalRepoLOC is used only to estimate each
// pack's repo-wide coverage contribution.
func (a *Analyzer) Build(entities []types.CodeEntity, input *config.CoverageInput, totalRepoLOC int) []types.CoveragePack {
	if input == nil || len(input.Files) == 0 {
		return nil
	}

	byFile := groupByFile(entities)

	var packs []types.CoveragePack
	paths := make([]string, 0, len(input.Files))
	for path := range input.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		fc := input.Files[path]
		fileEntities := byFile[path]
		loc := fileLOC(fileEntities)
		if loc == 0 {
			continue
		}

		regions := maximalUncoveredRegions(fc.LineHits, loc)
		if len(regions) == 0 {
			continue
		}

		gaps := make([]types.Gap, 0, len(regions))
		maxScore := 0.0
		filledLines := 0
		for _, r := range regions {
			gap := a.scoreGap(r, fileEntities)
			gaps = append(gaps, gap)
			if gap.Score > maxScore {
				maxScore = gap.Score
			}
			filledLines += int(r.End-r.Start) + 1
		}
		if maxScore < a.threshold {
			continue
		}

		covBefore := coverageRatio(fc.LineHits)
		covAfter := math.Min(1.0, covBefore+float64(filledLines)/float64(loc))
		fileCovGain := covAfter - covBefore
		repoCovGain := 0.0
		if totalRepoLOC > 0 {
			repoCovGain = fileCovGain * float64(loc) / float64(totalRepoLOC)
		}

		packs = append(packs, types.CoveragePack{
			Path: path,
			FileInfo: types.CoverageFileInfo{
				LOC:                   loc,
				CoverageBefore:        covBefore,
				CoverageAfterIfFilled: covAfter,
			},
			Gaps: gaps,
			Value: types.CoverageValue{
				FileCovGain:    fileCovGain,
				RepoCovGainEst: repoCovGain,
			},
			Effort: estimateEffort(gaps, fileEntities),
		})
	}
	return packs
}

func groupByFile(entities []types.CodeEntity) map[string][]types.CodeEntity {
	out := make(map[string][]types.CodeEntity)
	for _, e := range entities {
		out[e.FilePath] = append(out[e.FilePath], e)
	}
	return out
}

func fileLOC(entities []types.CodeEntity) int {
	loc := 0
	for _, e := range entities {
		if e.Kind == types.KindFile && int(e.LineRange.End) > loc {
			loc = int(e.LineRange.End)
		}
	}
	if loc == 0 {
		for _, e := range entities {
			if int(e.LineRange.End) > loc {
				loc = int(e.LineRange.End)
			}
		}
	}
	return loc
}

// maximalUncoveredRegions groups consecutive tracked, zero-hit lines
// into gaps. Lines absent from the hit map are treated as untracked
// (non-executable): they never start or extend a region, and they
// break contiguity, since only *consecutive* line numbers present with
// zero hits count as one region.
func maximalUncoveredRegions(hits map[int]uint32, loc int) []types.LineRange {
	if len(hits) == 0 {
		return nil
	}
	zeroLines := make([]int, 0)
	for line, count := range hits {
		if count == 0 && line >= 1 && line <= loc {
			zeroLines = append(zeroLines, line)
		}
	}
	if len(zeroLines) == 0 {
		return nil
	}
	sort.Ints(zeroLines)

	var regions []types.LineRange
	start := zeroLines[0]
	prev := zeroLines[0]
	for _, line := range zeroLines[1:] {
		if line == prev+1 {
			prev = line
			continue
		}
		regions = append(regions, types.LineRange{Start: uint32(start), End: uint32(prev)})
		start = line
		prev = line
	}
	regions = append(regions, types.LineRange{Start: uint32(start), End: uint32(prev)})
	return regions
}

func coverageRatio(hits map[int]uint32) float64 {
	if len(hits) == 0 {
		return 0
	}
	covered := 0
	for _, c := range hits {
		if c > 0 {
			covered++
		}
	}
	return float64(covered) / float64(len(hits))
}

// scoreGap computes a gap's score from its length, the decision-keyword
// count of the symbols that enclose or overlap it, and the fan-in of
// those symbols. The keyword count covers each symbol's whole source
// text, not only the gap's own lines. Longer, more complex, more
// depended-upon gaps score higher.
func (a *Analyzer) scoreGap(span types.LineRange, fileEntities []types.CodeEntity) types.Gap {
	enclosing := enclosingSymbols(span, fileEntities)

	complexity := 0.0
	fanIn := 0.0
	for _, e := range enclosing {
		complexity += float64(len(decisionKeyword.FindAllString(e.SourceText, -1)))
		if a.graph != nil {
			fanIn += float64(a.graph.InDegree(e.ID))
		}
	}

	length := float64(span.End-span.Start) + 1
	lengthScore := math.Min(1.0, length/40.0)
	complexityScore := math.Min(1.0, complexity/10.0)
	fanInScore := math.Min(1.0, fanIn/5.0)

	score := 0.5*lengthScore + 0.3*complexityScore + 0.2*fanInScore

	ids := make([]types.EntityId, 0, len(enclosing))
	for _, e := range enclosing {
		ids = append(ids, e.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return types.Gap{
		Span:  span,
		Score: score,
		Features: types.FeatureVector{
			"gap_length":     length,
			"gap_complexity": complexity,
			"gap_fan_in":     fanIn,
		},
		EnclosingSymbols: ids,
	}
}

func enclosingSymbols(span types.LineRange, fileEntities []types.CodeEntity) []types.CodeEntity {
	var out []types.CodeEntity
	for _, e := range fileEntities {
		if e.Kind == types.KindFile {
			continue
		}
		if e.LineRange.Contains(span) || rangesOverlap(e.LineRange, span) {
			out = append(out, e)
		}
	}
	return out
}

func rangesOverlap(a, b types.LineRange) bool {
	return a.Start <= b.End && b.Start <= a.End
}

// estimateEffort approximates the human work needed to fill every gap
// in the pack: one test per gap (at least one), plus one mock per three
// distinct enclosing symbols across all gaps (rounded down).
func estimateEffort(gaps []types.Gap, fileEntities []types.CodeEntity) types.CoverageEffort {
	tests := len(gaps)
	if tests == 0 {
		tests = 1
	}
	mocks := 0
	seen := make(map[types.EntityId]bool)
	for _, g := range gaps {
		for _, id := range g.EnclosingSymbols {
			if seen[id] {
				continue
			}
			seen[id] = true
			mocks++
		}
	}
	mocks /= 3
	return types.CoverageEffort{TestsToWriteEst: tests, MocksEst: mocks}
}
