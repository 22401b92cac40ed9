package graph

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/standardbeagle/valknut/internal/types"
)

var (
	callRef    = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	extendsRef = regexp.MustCompile(`\bextends\s+([A-Za-z_][A-Za-z0-9_.]*)`)
	implRef    = regexp.MustCompile(`\bimplements\s+([A-Za-z_][A-Za-z0-9_.]*)`)
	importRef  = regexp.MustCompile(`(?m)^\s*(?:import|from)\s+["']?([A-Za-z0-9_./-]+)["']?`)
)

// reservedCallWords are control-flow keywords the call regex would
// otherwise mistake for an invocation.
var reservedCallWords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "func": true, "function": true, "def": true,
	"match": true, "select": true, "with": true, "except": true,
}

// Build resolves best-effort Calls/Inherits/Imports edges across one
// run's entities from their source text, matching plain identifiers
// against a name index built from the same batch. Resolution is
// intra-repo only and best-effort: unresolved symbols (library calls,
// dynamic dispatch, cross-repo imports) are silently dropped rather
// than reported. Grounded on lci's relationship_analyzer.go and
// dependency_tracker.go name-index matching, replacing their
// tree-sitter query-based extraction with a regex pass over the
// entity's retained source text, since Build works from the entity
// list alone and is not given the parsed trees.
func Build(entities []types.CodeEntity) *Graph {
	ids := make([]types.EntityId, 0, len(entities))
	byName := make(map[string][]types.CodeEntity)
	byFileStem := make(map[string][]types.CodeEntity)

	for _, e := range entities {
		ids = append(ids, e.ID)
		switch e.Kind {
		case types.KindFunction, types.KindMethod, types.KindClass:
			byName[e.Name] = append(byName[e.Name], e)
		case types.KindFile, types.KindModule:
			stem := strings.TrimSuffix(filepath.Base(e.FilePath), filepath.Ext(e.FilePath))
			byFileStem[stem] = append(byFileStem[stem], e)
		}
	}

	g := New(ids)
	for _, e := range entities {
		if e.Generated {
			continue
		}
		switch e.Kind {
		case types.KindFunction, types.KindMethod:
			addCallEdges(g, e, byName)
		case types.KindClass:
			addInheritanceEdges(g, e, byName)
		case types.KindFile, types.KindModule:
			addImportEdges(g, e, byFileStem)
		}
	}
	return g
}

func addCallEdges(g *Graph, e types.CodeEntity, byName map[string][]types.CodeEntity) {
	seen := make(map[types.EntityId]bool)
	for _, m := range callRef.FindAllStringSubmatch(e.SourceText, -1) {
		name := m[1]
		if reservedCallWords[name] || name == e.Name {
			continue
		}
		for _, target := range byName[name] {
			if target.Kind != types.KindFunction && target.Kind != types.KindMethod {
				continue
			}
			if target.ID == e.ID || seen[target.ID] {
				continue
			}
			seen[target.ID] = true
			g.AddEdge(Edge{Source: e.ID, Target: target.ID, Kind: EdgeCalls})
		}
	}
}

func addInheritanceEdges(g *Graph, e types.CodeEntity, byName map[string][]types.CodeEntity) {
	for _, m := range extendsRef.FindAllStringSubmatch(e.SourceText, -1) {
		linkClass(g, e, lastSegment(m[1]), byName, EdgeExtends)
	}
	for _, m := range implRef.FindAllStringSubmatch(e.SourceText, -1) {
		linkClass(g, e, lastSegment(m[1]), byName, EdgeImplements)
	}
}

func linkClass(g *Graph, e types.CodeEntity, name string, byName map[string][]types.CodeEntity, kind EdgeKind) {
	for _, target := range byName[name] {
		if target.Kind != types.KindClass || target.ID == e.ID {
			continue
		}
		g.AddEdge(Edge{Source: e.ID, Target: target.ID, Kind: kind})
	}
}

func addImportEdges(g *Graph, e types.CodeEntity, byFileStem map[string][]types.CodeEntity) {
	seen := make(map[types.EntityId]bool)
	for _, m := range importRef.FindAllStringSubmatch(e.SourceText, -1) {
		stem := lastSegment(strings.TrimSuffix(m[1], filepath.Ext(m[1])))
		for _, target := range byFileStem[stem] {
			if target.ID == e.ID || seen[target.ID] {
				continue
			}
			seen[target.ID] = true
			g.AddEdge(Edge{Source: e.ID, Target: target.ID, Kind: EdgeImports})
		}
	}
}

func lastSegment(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}
