package features

import "github.com/standardbeagle/valknut/internal/types"

// DefaultRegistry registers every feature Extract can produce, with the
// category/direction/weight C7 needs to normalize and aggregate them.
// Weights are intra-category (they need not sum to 1; C7 renormalizes).
func DefaultRegistry() *types.FeatureRegistry {
	return types.NewFeatureRegistry([]types.FeatureDef{
		{Name: "cyclomatic_complexity", Direction: types.HigherIsWorse, Category: types.CategoryComplexity, Weight: 0.4, Normalize: types.NormZScore, DictCode: "high_cyclomatic_complexity"},
		{Name: "nesting_depth", Direction: types.HigherIsWorse, Category: types.CategoryComplexity, Weight: 0.2, Normalize: types.NormZScore, DictCode: "deep_nesting"},
		{Name: "branch_count", Direction: types.HigherIsWorse, Category: types.CategoryComplexity, Weight: 0.2, Normalize: types.NormZScore},
		{Name: "loop_count", Direction: types.HigherIsWorse, Category: types.CategoryComplexity, Weight: 0.2, Normalize: types.NormZScore},

		{Name: "cognitive_complexity", Direction: types.HigherIsWorse, Category: types.CategoryCognitive, Weight: 0.5, Normalize: types.NormZScore, DictCode: "high_cognitive_complexity"},
		{Name: "halstead_volume", Direction: types.HigherIsWorse, Category: types.CategoryCognitive, Weight: 0.3, Normalize: types.NormZScore},
		{Name: "unique_identifier_density", Direction: types.HigherIsWorse, Category: types.CategoryCognitive, Weight: 0.2, Normalize: types.NormZScore},

		{Name: "function_size", Direction: types.HigherIsWorse, Category: types.CategoryStructure, Weight: 0.3, Normalize: types.NormZScore, DictCode: "large_function"},
		{Name: "file_size", Direction: types.HigherIsWorse, Category: types.CategoryStructure, Weight: 0.2, Normalize: types.NormZScore},
		{Name: "parameter_count", Direction: types.HigherIsWorse, Category: types.CategoryStructure, Weight: 0.2, Normalize: types.NormZScore, DictCode: "too_many_parameters"},
		{Name: "method_count", Direction: types.HigherIsWorse, Category: types.CategoryStructure, Weight: 0.15, Normalize: types.NormZScore},
		{Name: "class_cohesion", Direction: types.HigherIsBetter, Category: types.CategoryStructure, Weight: 0.15, Normalize: types.NormIdentity, DictCode: "low_cohesion"},

		{Name: "todo_density", Direction: types.HigherIsWorse, Category: types.CategoryDebt, Weight: 0.5, Normalize: types.NormMinMax, DictCode: "todo_debt"},
		{Name: "deprecated_api_usage", Direction: types.HigherIsWorse, Category: types.CategoryDebt, Weight: 0.5, Normalize: types.NormZScore, DictCode: "deprecated_api_usage"},

		{Name: "doc_coverage_ratio", Direction: types.HigherIsBetter, Category: types.CategoryDocs, Weight: 0.5, Normalize: types.NormIdentity, DictCode: "undocumented"},
		{Name: "public_api_doc_ratio", Direction: types.HigherIsBetter, Category: types.CategoryDocs, Weight: 0.5, Normalize: types.NormIdentity, DictCode: "undocumented_public_api"},

		{Name: "naming_mismatch", Direction: types.HigherIsWorse, Category: types.CategoryMaintainability, Weight: 1.0, Normalize: types.NormIdentity, DictCode: "naming_mismatch"},

		{Name: "uncovered_line_ratio", Direction: types.HigherIsWorse, Category: types.CategoryCoverage, Weight: 0.5, Normalize: types.NormIdentity, DictCode: "low_coverage"},
		{Name: "uncovered_branch_ratio", Direction: types.HigherIsWorse, Category: types.CategoryCoverage, Weight: 0.5, Normalize: types.NormIdentity},
	})
}
