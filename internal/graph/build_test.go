package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/standardbeagle/valknut/internal/graph"
	"github.com/standardbeagle/valknut/internal/types"
)

func TestBuildResolvesCallEdgesByName(t *testing.T) {
	caller := types.CodeEntity{
		ID:         "a.go:function:caller",
		Kind:       types.KindFunction,
		Name:       "caller",
		FilePath:   "a.go",
		SourceText: "func caller() { callee(1, 2) }",
	}
	callee := types.CodeEntity{
		ID:         "a.go:function:callee",
		Kind:       types.KindFunction,
		Name:       "callee",
		FilePath:   "a.go",
		SourceText: "func callee(a, b int) {}",
	}

	g := graph.Build([]types.CodeEntity{caller, callee})

	edges := g.Out(caller.ID)
	assert.Len(t, edges, 1)
	assert.Equal(t, callee.ID, edges[0].Target)
	assert.Equal(t, graph.EdgeCalls, edges[0].Kind)
}

func TestBuildResolvesInheritanceEdges(t *testing.T) {
	base := types.CodeEntity{
		ID: "a.go:class:Base", Kind: types.KindClass, Name: "Base", FilePath: "a.go",
		SourceText: "class Base {}",
	}
	derived := types.CodeEntity{
		ID: "a.go:class:Derived", Kind: types.KindClass, Name: "Derived", FilePath: "a.go",
		SourceText: "class Derived extends Base {}",
	}

	g := graph.Build([]types.CodeEntity{base, derived})

	edges := g.Out(derived.ID)
	assert.Len(t, edges, 1)
	assert.Equal(t, base.ID, edges[0].Target)
	assert.Equal(t, graph.EdgeExtends, edges[0].Kind)
}

func TestBuildResolvesImportEdgesByFileStem(t *testing.T) {
	util := types.CodeEntity{
		ID: "util.go:file:util.go", Kind: types.KindFile, Name: "util.go", FilePath: "util.go",
		SourceText: "package util",
	}
	main := types.CodeEntity{
		ID: "main.go:file:main.go", Kind: types.KindFile, Name: "main.go", FilePath: "main.go",
		SourceText: "import \"project/util\"\n",
	}

	g := graph.Build([]types.CodeEntity{util, main})

	edges := g.Out(main.ID)
	assert.Len(t, edges, 1)
	assert.Equal(t, util.ID, edges[0].Target)
	assert.Equal(t, graph.EdgeImports, edges[0].Kind)
}

func TestBuildIgnoresGeneratedEntities(t *testing.T) {
	callee := types.CodeEntity{
		ID: "a.go:function:callee", Kind: types.KindFunction, Name: "callee", FilePath: "a.go",
		SourceText: "func callee() {}",
	}
	generated := types.CodeEntity{
		ID: "a.go:function:wrapper", Kind: types.KindFunction, Name: "wrapper", FilePath: "a.go",
		SourceText: "func wrapper() { callee() }", Generated: true,
	}

	g := graph.Build([]types.CodeEntity{callee, generated})

	assert.Empty(t, g.Out(generated.ID))
}
