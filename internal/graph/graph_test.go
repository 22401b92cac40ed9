package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/standardbeagle/valknut/internal/graph"
	"github.com/standardbeagle/valknut/internal/types"
)

func TestPageRankSumsToOne(t *testing.T) {
	a, b, c := types.EntityId("a"), types.EntityId("b"), types.EntityId("c")
	g := graph.New([]types.EntityId{a, b, c})
	g.AddEdge(graph.Edge{Source: a, Target: b, Kind: graph.EdgeCalls})
	g.AddEdge(graph.Edge{Source: b, Target: c, Kind: graph.EdgeCalls})
	g.AddEdge(graph.Edge{Source: c, Target: a, Kind: graph.EdgeCalls})

	ranks := g.PageRank()
	sum := 0.0
	for _, r := range ranks {
		sum += r
	}
	assert.InDelta(t, 1.0, sum, 1e-3)
}

func TestPageRankRewardsFanIn(t *testing.T) {
	hub, leaf1, leaf2 := types.EntityId("hub"), types.EntityId("leaf1"), types.EntityId("leaf2")
	g := graph.New([]types.EntityId{hub, leaf1, leaf2})
	g.AddEdge(graph.Edge{Source: leaf1, Target: hub, Kind: graph.EdgeCalls})
	g.AddEdge(graph.Edge{Source: leaf2, Target: hub, Kind: graph.EdgeCalls})

	ranks := g.PageRank()
	assert.Greater(t, ranks[hub], ranks[leaf1])
	assert.Greater(t, ranks[hub], ranks[leaf2])
}

func TestCyclesDetectsSimpleCycle(t *testing.T) {
	a, b, c := types.EntityId("a"), types.EntityId("b"), types.EntityId("c")
	g := graph.New([]types.EntityId{a, b, c})
	g.AddEdge(graph.Edge{Source: a, Target: b, Kind: graph.EdgeCalls})
	g.AddEdge(graph.Edge{Source: b, Target: c, Kind: graph.EdgeCalls})
	g.AddEdge(graph.Edge{Source: c, Target: a, Kind: graph.EdgeCalls})

	cycles := g.Cycles(10)
	assert.Len(t, cycles, 1)
	assert.Len(t, cycles[0], 3)
}

func TestCyclesNoneInDAG(t *testing.T) {
	a, b := types.EntityId("a"), types.EntityId("b")
	g := graph.New([]types.EntityId{a, b})
	g.AddEdge(graph.Edge{Source: a, Target: b, Kind: graph.EdgeCalls})
	assert.Empty(t, g.Cycles(10))
}

func TestDegrees(t *testing.T) {
	a, b := types.EntityId("a"), types.EntityId("b")
	g := graph.New([]types.EntityId{a, b})
	g.AddEdge(graph.Edge{Source: a, Target: b, Kind: graph.EdgeImports})
	assert.Equal(t, 1, g.OutDegree(a))
	assert.Equal(t, 1, g.InDegree(b))
	assert.Equal(t, 0, g.InDegree(a))
}
