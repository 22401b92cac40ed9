package dictionary_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/standardbeagle/valknut/internal/dictionary"
)

func TestDefaultCoversEveryRegisteredFeatureDictCode(t *testing.T) {
	dict := dictionary.Default()
	for _, code := range []string{
		"high_cyclomatic_complexity",
		"deep_nesting",
		"high_cognitive_complexity",
		"large_function",
		"too_many_parameters",
		"low_cohesion",
		"todo_debt",
		"deprecated_api_usage",
		"undocumented",
		"undocumented_public_api",
		"naming_mismatch",
		"low_coverage",
	} {
		meta, ok := dict.Issues[code]
		assert.True(t, ok, "missing issue dictionary entry for %s", code)
		assert.NotEmpty(t, meta.Summary)
	}
}

func TestDefaultCoversEverySuggestionRule(t *testing.T) {
	dict := dictionary.Default()
	for _, code := range []string{
		"extract_method",
		"reduce_parameters",
		"flatten_conditionals",
		"improve_cohesion",
		"rename_for_intent",
		"add_tests",
		"document_public_api",
		"resolve_debt_marker",
	} {
		meta, ok := dict.Suggestions[code]
		assert.True(t, ok, "missing suggestion dictionary entry for %s", code)
		assert.NotEmpty(t, meta.Summary)
	}
}
