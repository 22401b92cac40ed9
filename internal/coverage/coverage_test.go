package coverage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/valknut/internal/config"
	"github.com/standardbeagle/valknut/internal/coverage"
	"github.com/standardbeagle/valknut/internal/types"
)

func TestBuildEmitsPackForLargeUncoveredBlock(t *testing.T) {
	hits := make(map[int]uint32)
	for i := 1; i <= 60; i++ {
		hits[i] = 1
	}
	for i := 61; i <= 100; i++ {
		hits[i] = 0
	}

	entities := []types.CodeEntity{
		{ID: "f.go:file:f.go", Kind: types.KindFile, FilePath: "f.go", LineRange: types.LineRange{Start: 1, End: 200}},
		{ID: "f.go:function:big", Kind: types.KindFunction, FilePath: "f.go", Name: "big",
			LineRange: types.LineRange{Start: 50, End: 100}, SourceText: "if x { } else if y { } for {}"},
	}

	input := &config.CoverageInput{Files: map[string]config.FileCoverage{
		"f.go": {LineHits: hits},
	}}

	a := coverage.NewAnalyzer(coverage.DefaultThreshold, nil)
	packs := a.Build(entities, input, 200)
	require.Len(t, packs, 1)
	pack := packs[0]
	assert.Equal(t, "f.go", pack.Path)
	assert.InDelta(t, 0.6, pack.FileInfo.CoverageBefore, 0.01)
	assert.InDelta(t, 0.80, pack.FileInfo.CoverageAfterIfFilled, 0.01)
	require.Len(t, pack.Gaps, 1)
	assert.Equal(t, uint32(61), pack.Gaps[0].Span.Start)
	assert.Equal(t, uint32(100), pack.Gaps[0].Span.End)
}

func TestBuildSkipsFileWithNoCoverageData(t *testing.T) {
	a := coverage.NewAnalyzer(coverage.DefaultThreshold, nil)
	packs := a.Build(nil, &config.CoverageInput{}, 0)
	assert.Nil(t, packs)
}

func TestBuildSkipsLowScoringGaps(t *testing.T) {
	hits := map[int]uint32{1: 1, 2: 0}
	entities := []types.CodeEntity{
		{ID: "f.go:file:f.go", Kind: types.KindFile, FilePath: "f.go", LineRange: types.LineRange{Start: 1, End: 2}},
	}
	input := &config.CoverageInput{Files: map[string]config.FileCoverage{"f.go": {LineHits: hits}}}
	a := coverage.NewAnalyzer(coverage.DefaultThreshold, nil)
	assert.Empty(t, a.Build(entities, input, 2))
}
