package features_test

import (
	"testing"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/valknut/internal/entity"
	"github.com/standardbeagle/valknut/internal/features"
	"github.com/standardbeagle/valknut/internal/parser"
	"github.com/standardbeagle/valknut/internal/types"
)

func findFirstByKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	if node.Kind() == kind {
		return node
	}
	n := node.ChildCount()
	for i := uint(0); i < n; i++ {
		if found := findFirstByKind(node.Child(i), kind); found != nil {
			return found
		}
	}
	return nil
}

func TestExtractComplexityFeatures(t *testing.T) {
	svc := parser.NewService(parser.ServiceConfig{Languages: []types.LanguageTag{types.LangGo}})
	defer svc.Close()

	src := []byte(`package sample

func Branchy(x int) int {
	if x > 0 {
		for i := 0; i < x; i++ {
			if i%2 == 0 {
				x++
			}
		}
	}
	return x
}
`)
	handle, tree, aerr := svc.Parse(types.LangGo, src, "sample.go")
	require.Nil(t, aerr)

	entities := entity.Extract(types.LangGo, "sample.go", src, tree.RootNode(), handle)
	require.True(t, len(entities) >= 2)

	var fn types.CodeEntity
	for _, e := range entities {
		if e.Name == "Branchy" {
			fn = e
		}
	}
	require.NotEmpty(t, fn.ID)

	fnNode := findFirstByKind(tree.RootNode(), "function_declaration")
	require.NotNil(t, fnNode)

	fv := features.Extract(fn, fnNode, features.Context{Root: tree.RootNode(), Source: src, Siblings: entities})

	assert.Greater(t, fv["cyclomatic_complexity"], 1.0)
	assert.Greater(t, fv["cognitive_complexity"], 0.0)
}

func TestDefaultRegistryCoversAllExtractedFeatures(t *testing.T) {
	reg := features.DefaultRegistry()
	for _, name := range []types.FeatureName{
		"cyclomatic_complexity", "nesting_depth", "branch_count", "loop_count",
		"cognitive_complexity", "halstead_volume", "unique_identifier_density",
		"function_size", "file_size", "parameter_count", "method_count", "class_cohesion",
		"todo_density", "deprecated_api_usage", "doc_coverage_ratio", "public_api_doc_ratio",
	} {
		_, ok := reg.Lookup(name)
		assert.True(t, ok, "feature %s must be registered", name)
	}
}
