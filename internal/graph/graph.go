// Package graph is the dependency graph (C3): entities and the edges
// between them (calls, imports, contains, extends/implements),
// centrality scoring, and cycle detection. Grounded on lci's
// internal/analysis/relationship_analyzer.go (edge-kind taxonomy:
// extends/implements/contains/depends/calls/references/imports) and
// dependency_tracker.go's findCycles DFS (visited/stack/path sets).
// PageRank replaces lci's simpler fan-in/fan-out counts to
// give C7 a single continuous centrality signal.
package graph

import (
	"sort"

	"github.com/standardbeagle/valknut/internal/types"
)

// EdgeKind is the relationship a directed edge represents.
type EdgeKind string

const (
	EdgeCalls      EdgeKind = "calls"
	EdgeImports    EdgeKind = "imports"
	EdgeContains   EdgeKind = "contains"
	EdgeExtends    EdgeKind = "extends"
	EdgeImplements EdgeKind = "implements"
	EdgeReferences EdgeKind = "references"
)

// Edge is a directed relationship from Source to Target.
type Edge struct {
	Source types.EntityId
	Target types.EntityId
	Kind   EdgeKind
}

// Graph is an EntityId-indexed directed multigraph. The zero value is
// not usable; construct with New.
type Graph struct {
	nodes map[types.EntityId]bool
	out   map[types.EntityId][]Edge
	in    map[types.EntityId][]Edge
}

// New builds an empty graph seeded with nodes (entities with no edges
// still need to be addressable for centrality and cycle reports).
func New(nodes []types.EntityId) *Graph {
	g := &Graph{
		nodes: make(map[types.EntityId]bool, len(nodes)),
		out:   make(map[types.EntityId][]Edge),
		in:    make(map[types.EntityId][]Edge),
	}
	for _, n := range nodes {
		g.nodes[n] = true
	}
	return g
}

// AddEdge records a directed edge, adding any endpoint not already
// known as a node.
func (g *Graph) AddEdge(e Edge) {
	g.nodes[e.Source] = true
	g.nodes[e.Target] = true
	g.out[e.Source] = append(g.out[e.Source], e)
	g.in[e.Target] = append(g.in[e.Target], e)
}

// Nodes returns all known entity ids in stable sorted order.
func (g *Graph) Nodes() []types.EntityId {
	out := make([]types.EntityId, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OutDegree and InDegree report raw fan-out/fan-in, independent of edge
// kind.
func (g *Graph) OutDegree(id types.EntityId) int { return len(g.out[id]) }
func (g *Graph) InDegree(id types.EntityId) int  { return len(g.in[id]) }

// Out returns the edges leaving id.
func (g *Graph) Out(id types.EntityId) []Edge { return g.out[id] }

// In returns the edges arriving at id.
func (g *Graph) In(id types.EntityId) []Edge { return g.in[id] }

const (
	pageRankDamping   = 0.85
	pageRankEpsilon   = 1e-4
	pageRankMaxIters  = 100
)

// PageRank computes damped-random-surfer centrality over all edges,
// whatever their kind, iterating to a fixed point or pageRankMaxIters,
// whichever comes first. Dangling nodes (no outgoing edges) redistribute
// their mass uniformly, preventing rank from leaking out of the graph.
func (g *Graph) PageRank() map[types.EntityId]float64 {
	nodes := g.Nodes()
	n := len(nodes)
	rank := make(map[types.EntityId]float64, n)
	if n == 0 {
		return rank
	}
	for _, id := range nodes {
		rank[id] = 1.0 / float64(n)
	}

	base := (1 - pageRankDamping) / float64(n)

	for iter := 0; iter < pageRankMaxIters; iter++ {
		next := make(map[types.EntityId]float64, n)
		danglingMass := 0.0
		for _, id := range nodes {
			next[id] = base
			if len(g.out[id]) == 0 {
				danglingMass += rank[id]
			}
		}
		danglingShare := pageRankDamping * danglingMass / float64(n)
		for _, id := range nodes {
			next[id] += danglingShare
		}

		for _, id := range nodes {
			outs := g.out[id]
			if len(outs) == 0 {
				continue
			}
			share := pageRankDamping * rank[id] / float64(len(outs))
			seen := make(map[types.EntityId]bool, len(outs))
			for _, e := range outs {
				if seen[e.Target] {
					continue
				}
				seen[e.Target] = true
				next[e.Target] += share
			}
		}

		delta := 0.0
		for _, id := range nodes {
			d := next[id] - rank[id]
			if d < 0 {
				d = -d
			}
			delta += d
		}
		rank = next
		if delta < pageRankEpsilon {
			break
		}
	}
	return rank
}

// Cycles finds simple cycles reachable from every node via depth-first
// search, mirroring lci's findCycles (visited/on-stack/path
// bookkeeping). Each cycle is reported once, anchored at its
// lexicographically smallest member to give deterministic output
// across runs.
func (g *Graph) Cycles(maxDepth int) [][]types.EntityId {
	var cycles [][]types.EntityId
	visited := make(map[types.EntityId]bool)

	for _, start := range g.Nodes() {
		if visited[start] {
			continue
		}
		onStack := make(map[types.EntityId]bool)
		g.findCycles(start, visited, onStack, nil, &cycles, maxDepth)
	}
	return dedupeCycles(cycles)
}

func (g *Graph) findCycles(id types.EntityId, visited, onStack map[types.EntityId]bool, path []types.EntityId, cycles *[][]types.EntityId, maxDepth int) {
	if maxDepth > 0 && len(path) > maxDepth {
		return
	}
	visited[id] = true
	onStack[id] = true
	path = append(path, id)

	for _, e := range g.out[id] {
		target := e.Target
		if onStack[target] {
			for i, node := range path {
				if node == target {
					cycle := make([]types.EntityId, len(path)-i)
					copy(cycle, path[i:])
					*cycles = append(*cycles, cycle)
					break
				}
			}
			continue
		}
		if !visited[target] {
			g.findCycles(target, visited, onStack, path, cycles, maxDepth)
		}
	}
	onStack[id] = false
}

func dedupeCycles(cycles [][]types.EntityId) [][]types.EntityId {
	seen := make(map[string]bool, len(cycles))
	var out [][]types.EntityId
	for _, c := range cycles {
		rotated, key := cycleKey(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rotated)
	}
	return out
}

func cycleKey(cycle []types.EntityId) ([]types.EntityId, string) {
	minIdx := 0
	for i, id := range cycle {
		if id < cycle[minIdx] {
			minIdx = i
		}
	}
	rotated := make([]types.EntityId, 0, len(cycle))
	rotated = append(rotated, cycle[minIdx:]...)
	rotated = append(rotated, cycle[:minIdx]...)
	var key string
	for _, id := range rotated {
		key += string(id) + "|"
	}
	return rotated, key
}
