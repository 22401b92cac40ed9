package score_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/valknut/internal/score"
	"github.com/standardbeagle/valknut/internal/types"
)

func testRegistry() *types.FeatureRegistry {
	return types.NewFeatureRegistry([]types.FeatureDef{
		{Name: "cyclomatic_complexity", Direction: types.HigherIsWorse, Category: types.CategoryComplexity, Weight: 1, Normalize: types.NormZScore, DictCode: "high_cyclomatic_complexity"},
		{Name: "function_size", Direction: types.HigherIsWorse, Category: types.CategoryStructure, Weight: 1, Normalize: types.NormZScore, DictCode: "large_function"},
		{Name: "doc_coverage_ratio", Direction: types.HigherIsBetter, Category: types.CategoryDocs, Weight: 1, Normalize: types.NormIdentity, DictCode: "undocumented"},
	})
}

func TestScoreAllRanksWorstEntityHighest(t *testing.T) {
	registry := testRegistry()
	weights := map[types.FeatureCategory]float64{
		types.CategoryComplexity:      0.5,
		types.CategoryStructure:       0.3,
		types.CategoryDocs:            0.2,
	}
	s := score.NewScorer(registry, weights, nil)

	entities := []types.CodeEntity{
		{ID: "a.go:function:simple"},
		{ID: "a.go:function:complex"},
	}
	vectors := map[types.EntityId]types.FeatureVector{
		"a.go:function:simple":  {"cyclomatic_complexity": 1, "function_size": 5, "doc_coverage_ratio": 1.0},
		"a.go:function:complex": {"cyclomatic_complexity": 40, "function_size": 300, "doc_coverage_ratio": 0.0},
	}

	priorities, issues, _ := s.ScoreAll(entities, vectors)
	require.Len(t, priorities, 2)

	simple := priorities["a.go:function:simple"]
	complex := priorities["a.go:function:complex"]
	assert.Greater(t, complex.Normalized, simple.Normalized)
	assert.Equal(t, types.SeverityLow, simple.SeverityBucket)

	assert.NotEmpty(t, issues["a.go:function:complex"])
}

func TestSynthesizeSuggestionsExtractMethod(t *testing.T) {
	registry := types.NewFeatureRegistry([]types.FeatureDef{
		{Name: "cognitive_complexity", Direction: types.HigherIsWorse, Category: types.CategoryCognitive, Weight: 1, Normalize: types.NormZScore},
		{Name: "function_size", Direction: types.HigherIsWorse, Category: types.CategoryStructure, Weight: 1, Normalize: types.NormZScore},
	})
	s := score.NewScorer(registry, nil, nil)
	entities := []types.CodeEntity{{ID: "a"}, {ID: "b"}}
	vectors := map[types.EntityId]types.FeatureVector{
		"a": {"cognitive_complexity": 1, "function_size": 5},
		"b": {"cognitive_complexity": 50, "function_size": 500},
	}
	_, _, suggestions := s.ScoreAll(entities, vectors)
	codes := make([]string, 0)
	for _, sg := range suggestions["b"] {
		codes = append(codes, sg.Code)
	}
	assert.Contains(t, codes, "extract_method")
}

func TestValidateVectorsRejectsUnregisteredFeature(t *testing.T) {
	registry := testRegistry()
	vectors := map[types.EntityId]types.FeatureVector{
		"a": {"not_a_real_feature": 1},
	}
	err := score.ValidateVectors(registry, vectors)
	assert.Error(t, err)
}

func TestDefaultCategoryWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for _, w := range score.DefaultCategoryWeights() {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}
