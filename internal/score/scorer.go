package score

import (
	"fmt"
	"sort"

	"github.com/standardbeagle/valknut/internal/types"
)

// DefaultCategoryWeights mirrors the documented defaults: complexity
// 0.25, cognitive 0.20, structure 0.15, debt 0.15, maintainability
// 0.15, docs 0.10. Coverage has no default global weight since it only
// applies when coverage data was supplied; callers that enable
// coverage should add an explicit entry.
func DefaultCategoryWeights() map[types.FeatureCategory]float64 {
	return map[types.FeatureCategory]float64{
		types.CategoryComplexity:      0.25,
		types.CategoryCognitive:       0.20,
		types.CategoryStructure:       0.15,
		types.CategoryDebt:            0.15,
		types.CategoryMaintainability: 0.15,
		types.CategoryDocs:            0.10,
	}
}

// CategoryThresholds gates issue synthesis: a category must itself
// exceed its threshold in addition to the feature's own contribution
// exceeding 0.5 before an issue is emitted for one of its features.
var CategoryThresholds = map[types.FeatureCategory]float64{
	types.CategoryComplexity:      0.5,
	types.CategoryCognitive:       0.5,
	types.CategoryStructure:       0.5,
	types.CategoryDebt:            0.4,
	types.CategoryMaintainability: 0.5,
	types.CategoryDocs:            0.4,
	types.CategoryCoverage:        0.4,
}

// contributionThreshold is the default per-feature cutoff above which
// a feature's normalized contribution drives issue synthesis.
const contributionThreshold = 0.5

// Scorer normalizes feature vectors across a run and scores each
// entity's priority, issues, and suggestions.
type Scorer struct {
	registry        *types.FeatureRegistry
	categoryWeights map[types.FeatureCategory]float64
	dictionary      *types.CodeDictionary
}

func NewScorer(registry *types.FeatureRegistry, categoryWeights map[types.FeatureCategory]float64, dictionary *types.CodeDictionary) *Scorer {
	if categoryWeights == nil {
		categoryWeights = DefaultCategoryWeights()
	}
	return &Scorer{registry: registry, categoryWeights: categoryWeights, dictionary: dictionary}
}

// ScoreAll normalizes every registered feature across the given
// entities' vectors, then scores each entity's priority, issues, and
// suggestions. Iteration and tie-breaking is by EntityId throughout so
// the result is reproducible for a fixed input.
func (s *Scorer) ScoreAll(entities []types.CodeEntity, vectors map[types.EntityId]types.FeatureVector) (map[types.EntityId]types.PriorityScore, map[types.EntityId][]types.Issue, map[types.EntityId][]types.Suggestion) {
	ids := make([]types.EntityId, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	defs := s.registry.All()
	distributions := make(map[types.FeatureName]distribution, len(defs))
	for _, def := range defs {
		values := make([]float64, 0, len(ids))
		for _, id := range ids {
			if v, ok := vectors[id][def.Name]; ok {
				values = append(values, v)
			}
		}
		distributions[def.Name] = buildDistribution(values)
	}

	priorities := make(map[types.EntityId]types.PriorityScore, len(ids))
	issues := make(map[types.EntityId][]types.Issue, len(ids))
	suggestions := make(map[types.EntityId][]types.Suggestion, len(ids))

	for _, id := range ids {
		vec := vectors[id]
		contributions := make(map[types.FeatureName]float64, len(vec))
		categoryValues := make(map[types.FeatureCategory][]weightedValue)

		for _, def := range defs {
			raw, ok := vec[def.Name]
			if !ok {
				continue
			}
			n := normalizeValue(raw, distributions[def.Name], def)
			contributions[def.Name] = n
			categoryValues[def.Category] = append(categoryValues[def.Category], weightedValue{value: n, weight: def.Weight})
		}

		categoryScores := make(map[types.FeatureCategory]float64, len(categoryValues))
		for cat, vals := range categoryValues {
			categoryScores[cat] = weightedMean(vals)
		}

		raw := weightedSum(categoryScores, s.categoryWeights)
		normalized := clamp01(raw)

		priorities[id] = types.PriorityScore{
			Raw:                  raw,
			Normalized:           normalized,
			SeverityBucket:       types.DefaultSeverityThresholds().Bucket(normalized),
			CategoryScores:       categoryScores,
			ContributingFeatures: sortedContributions(contributions),
		}

		issues[id] = s.synthesizeIssues(defs, contributions, categoryScores)
		suggestions[id] = synthesizeSuggestions(contributions)
	}

	return priorities, issues, suggestions
}

type weightedValue struct {
	value  float64
	weight float64
}

func weightedMean(vals []weightedValue) float64 {
	sumW, sumWV := 0.0, 0.0
	for _, v := range vals {
		w := v.weight
		if w == 0 {
			w = 1
		}
		sumW += w
		sumWV += w * v.value
	}
	if sumW == 0 {
		return 0
	}
	return sumWV / sumW
}

func weightedSum(categoryScores map[types.FeatureCategory]float64, weights map[types.FeatureCategory]float64) float64 {
	sumW, sumWV := 0.0, 0.0
	for cat, score := range categoryScores {
		w, ok := weights[cat]
		if !ok {
			continue
		}
		sumW += w
		sumWV += w * score
	}
	if sumW == 0 {
		return 0
	}
	return sumWV / sumW
}

func sortedContributions(contributions map[types.FeatureName]float64) []types.FeatureContribution {
	out := make([]types.FeatureContribution, 0, len(contributions))
	for name, c := range contributions {
		out = append(out, types.FeatureContribution{Feature: name, Contribution: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Contribution != out[j].Contribution {
			return out[i].Contribution > out[j].Contribution
		}
		return out[i].Feature < out[j].Feature
	})
	return out
}

// synthesizeIssues emits one issue per feature whose normalized
// contribution exceeds contributionThreshold (or the feature's own
// override) and whose category exceeds its category threshold.
func (s *Scorer) synthesizeIssues(defs []types.FeatureDef, contributions map[types.FeatureName]float64, categoryScores map[types.FeatureCategory]float64) []types.Issue {
	var out []types.Issue
	for _, def := range defs {
		if def.DictCode == "" {
			continue
		}
		c, ok := contributions[def.Name]
		if !ok {
			continue
		}
		threshold := def.Threshold
		if threshold == 0 {
			threshold = contributionThreshold
		}
		if c <= threshold {
			continue
		}
		catThreshold, ok := CategoryThresholds[def.Category]
		if !ok {
			catThreshold = contributionThreshold
		}
		if categoryScores[def.Category] <= catThreshold {
			continue
		}

		out = append(out, types.Issue{
			Code:        def.DictCode,
			Category:    types.IssueCategory(def.Category),
			Severity:    c,
			Description: s.describe(def.DictCode),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func (s *Scorer) describe(code string) string {
	if s.dictionary == nil {
		return ""
	}
	if meta, ok := s.dictionary.Issues[code]; ok {
		return meta.Summary
	}
	return ""
}

// suggestionRule is one row of the pattern-keyed suggestion table.
type suggestionRule struct {
	code        string
	category    types.IssueCategory
	description string
	trigger     func(contributions map[types.FeatureName]float64) bool
}

var suggestionRules = []suggestionRule{
	{
		code:     "extract_method",
		category: types.IssueCognitive,
		description: "Extract a well-named helper to shrink cognitive load and function size.",
		trigger: func(c map[types.FeatureName]float64) bool {
			return exceeds(c, "cognitive_complexity", 0.5) && exceeds(c, "function_size", 0.5)
		},
	},
	{
		code:     "reduce_parameters",
		category: types.IssueStructure,
		description: "Group related parameters into a struct or options type.",
		trigger: func(c map[types.FeatureName]float64) bool {
			return exceeds(c, "parameter_count", 0.6)
		},
	},
	{
		code:     "flatten_conditionals",
		category: types.IssueComplexity,
		description: "Flatten nested conditionals with early returns or guard clauses.",
		trigger: func(c map[types.FeatureName]float64) bool {
			return exceeds(c, "nesting_depth", 0.6) && exceeds(c, "cyclomatic_complexity", 0.5)
		},
	},
	{
		code:     "improve_cohesion",
		category: types.IssueStructure,
		description: "Split the class along its method/field usage clusters to raise cohesion.",
		trigger: func(c map[types.FeatureName]float64) bool {
			return exceeds(c, "class_cohesion", 0.5) && exceeds(c, "method_count", 0.5)
		},
	},
	{
		code:     "rename_for_intent",
		category: types.IssueNaming,
		description: "Rename to reflect side effects, return cardinality, or async behavior.",
		trigger: func(c map[types.FeatureName]float64) bool {
			return exceeds(c, "naming_mismatch", 0.5)
		},
	},
	{
		code:     "add_tests",
		category: types.IssueCoverage,
		description: "Add tests covering the uncovered branches identified in this region.",
		trigger: func(c map[types.FeatureName]float64) bool {
			return exceeds(c, "uncovered_line_ratio", 0.5) || exceeds(c, "uncovered_branch_ratio", 0.5)
		},
	},
	{
		code:     "document_public_api",
		category: types.IssueDocs,
		description: "Add a doc comment describing behavior, parameters, and error conditions.",
		trigger: func(c map[types.FeatureName]float64) bool {
			return exceeds(c, "public_api_doc_ratio", 0.5)
		},
	},
	{
		code:     "resolve_debt_marker",
		category: types.IssueDebt,
		description: "Resolve or file a tracked issue for the outstanding TODO/FIXME markers.",
		trigger: func(c map[types.FeatureName]float64) bool {
			return exceeds(c, "todo_density", 0.5)
		},
	},
}

func exceeds(contributions map[types.FeatureName]float64, name types.FeatureName, threshold float64) bool {
	v, ok := contributions[name]
	return ok && v > threshold
}

func synthesizeSuggestions(contributions map[types.FeatureName]float64) []types.Suggestion {
	var out []types.Suggestion
	for _, rule := range suggestionRules {
		if !rule.trigger(contributions) {
			continue
		}
		out = append(out, types.Suggestion{Code: rule.code, Category: rule.category, Description: rule.description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ValidateVectors checks that every key present in a FeatureVector is
// registered, matching the invariant that unregistered keys are an
// error.
func ValidateVectors(registry *types.FeatureRegistry, vectors map[types.EntityId]types.FeatureVector) error {
	for id, vec := range vectors {
		for name := range vec {
			if _, ok := registry.Lookup(name); !ok {
				return fmt.Errorf("score: entity %s has unregistered feature %q", id, name)
			}
		}
	}
	return nil
}
