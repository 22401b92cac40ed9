package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/valknut/internal/entity"
	"github.com/standardbeagle/valknut/internal/parser"
	"github.com/standardbeagle/valknut/internal/types"
)

func TestExtractGoFunctionsAndMethods(t *testing.T) {
	svc := parser.NewService(parser.ServiceConfig{Languages: []types.LanguageTag{types.LangGo}})
	defer svc.Close()

	src := []byte(`package sample

type Widget struct{}

func (w *Widget) Render() string {
	return "ok"
}

func Helper() int {
	return 1
}
`)
	handle, tree, aerr := svc.Parse(types.LangGo, src, "sample.go")
	require.Nil(t, aerr)

	entities := entity.Extract(types.LangGo, "sample.go", src, tree.RootNode(), handle)
	require.NotEmpty(t, entities)

	assert.Equal(t, types.KindFile, entities[0].Kind)

	var names []string
	for _, e := range entities[1:] {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "Render")
	assert.Contains(t, names, "Helper")
}

func TestFindNodeLocatesEntitySpan(t *testing.T) {
	svc := parser.NewService(parser.ServiceConfig{Languages: []types.LanguageTag{types.LangGo}})
	defer svc.Close()

	src := []byte(`package sample

func Helper() int {
	return 1
}
`)
	_, tree, aerr := svc.Parse(types.LangGo, src, "sample.go")
	require.Nil(t, aerr)

	entities := entity.Extract(types.LangGo, "sample.go", src, tree.RootNode(), nil)
	var helper types.CodeEntity
	for _, e := range entities {
		if e.Name == "Helper" {
			helper = e
		}
	}
	require.NotEmpty(t, helper.Name)

	node := entity.FindNode(tree.RootNode(), helper.LineRange)
	require.NotNil(t, node)
	assert.Equal(t, "function_declaration", node.Kind())
}

func TestExtractUnsupportedLanguageReturnsFileOnly(t *testing.T) {
	entities := entity.Extract(types.LanguageTag("cobol"), "x.cbl", []byte("IDENTIFICATION DIVISION."), nil, nil)
	require.Len(t, entities, 1)
	assert.Equal(t, types.KindFile, entities[0].Kind)
}
