// Package aggregate implements the result aggregator (C9): it folds the
// per-entity scores and per-file clone/coverage outputs of the earlier
// stages into the single AnalysisResults value a run returns, building
// the unified directory/file/entity hierarchy and the directory health
// rollup along the way. Grounded loosely on the tree-assembly shape of
// internal/indexing/master_index.go (heterogeneous node kinds folded
// into one structure) and the health-rollup presentation of
// internal/mcp/codebase_intelligence_health.go, adapted from an
// MCP-tool response shape to types.DirectoryHealthTree.
package aggregate

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/standardbeagle/valknut/internal/types"
)

// Input bundles everything the earlier stages produced for one run.
type Input struct {
	Entities       []types.CodeEntity
	Priorities     map[types.EntityId]types.PriorityScore
	Issues         map[types.EntityId][]types.Issue
	Suggestions    map[types.EntityId][]types.Suggestion
	ClonePairs     []types.ClonePair
	CoveragePacks  []types.CoveragePack
	Dictionary     types.CodeDictionary
	CategoryWeights map[types.FeatureCategory]float64
	Warnings       []types.Warning
	Status         types.RunStatus
}

// Build assembles the final AnalysisResults from one run's stage
// outputs.
func Build(in Input) *types.AnalysisResults {
	candidates := buildCandidates(in)
	byFile := groupByFile(candidates)

	results := &types.AnalysisResults{
		RefactoringCandidates:       candidates,
		RefactoringCandidatesByFile: byFile,
		UnifiedHierarchy:            buildHierarchy(in.Entities, in.Priorities, in.Issues, in.Suggestions),
		DirectoryHealthTree:         buildDirectoryHealth(in.Entities, in.Priorities, in.Issues),
		CloneAnalysis:               summarizeClones(in.ClonePairs),
		ClonePairs:                  in.ClonePairs,
		CoveragePacks:               in.CoveragePacks,
		CodeDictionary:              in.Dictionary,
		HealthMetrics:               healthMetrics(in.Entities, in.Priorities),
	}
	results.Summary = buildSummary(in, candidates, results.HealthMetrics)
	return results
}

// buildCandidates flattens every entity with at least one issue into
// the refactoring_candidates list, sorted worst-first.
func buildCandidates(in Input) []types.Candidate {
	out := make([]types.Candidate, 0, len(in.Entities))
	for _, e := range in.Entities {
		issues := in.Issues[e.ID]
		if len(issues) == 0 {
			continue
		}
		out = append(out, types.Candidate{
			Entity:      e.ID,
			FilePath:    types.NormalizePath(e.FilePath),
			Name:        e.Name,
			Kind:        e.Kind,
			Priority:    in.Priorities[e.ID],
			Issues:      issues,
			Suggestions: in.Suggestions[e.ID],
		})
	}
	sortCandidates(out)
	return out
}

func sortCandidates(cands []types.Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		pi, pj := cands[i].Priority.Normalized, cands[j].Priority.Normalized
		if pi != pj {
			return pi > pj
		}
		if cands[i].FilePath != cands[j].FilePath {
			return cands[i].FilePath < cands[j].FilePath
		}
		return cands[i].Name < cands[j].Name
	})
}

// groupByFile buckets already-sorted candidates under their file,
// preserving worst-first order within each file and ordering files by
// their own worst candidate.
func groupByFile(candidates []types.Candidate) []types.FileGroup {
	index := make(map[string]int)
	var groups []types.FileGroup
	for _, c := range candidates {
		if i, ok := index[c.FilePath]; ok {
			groups[i].Candidates = append(groups[i].Candidates, c)
			continue
		}
		index[c.FilePath] = len(groups)
		groups = append(groups, types.FileGroup{FilePath: c.FilePath, Candidates: []types.Candidate{c}})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return worstPriority(groups[i]) > worstPriority(groups[j])
	})
	return groups
}

func worstPriority(g types.FileGroup) float64 {
	if len(g.Candidates) == 0 {
		return 0
	}
	return g.Candidates[0].Priority.Normalized
}

// dirNode is the mutable scratch form of a hierarchy node while it is
// being assembled; Build converts each one to a types.HierarchyNode
// once children are final.
type dirNode struct {
	path     string
	children map[string]*dirNode
	order    []string
	files    map[string]*fileNode
	fileOrder []string
}

type fileNode struct {
	path     string
	entities []types.EntityId
}

func newDirNode(path string) *dirNode {
	return &dirNode{path: path, children: make(map[string]*dirNode), files: make(map[string]*fileNode)}
}

func buildHierarchy(entities []types.CodeEntity, priorities map[types.EntityId]types.PriorityScore, issues map[types.EntityId][]types.Issue, suggestions map[types.EntityId][]types.Suggestion) *types.HierarchyNode {
	root := newDirNode(".")

	sorted := append([]types.CodeEntity(nil), entities...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, e := range sorted {
		path := types.NormalizePath(e.FilePath)
		dir := ensureDir(root, filepath.ToSlash(filepath.Dir(path)))
		fn, ok := dir.files[path]
		if !ok {
			fn = &fileNode{path: path}
			dir.files[path] = fn
			dir.fileOrder = append(dir.fileOrder, path)
		}
		if e.Kind != types.KindFile {
			fn.entities = append(fn.entities, e.ID)
		}
	}

	return toHierarchyNode(root, priorities, issues, suggestions)
}

func ensureDir(root *dirNode, dir string) *dirNode {
	if dir == "" || dir == "." {
		return root
	}
	parts := strings.Split(dir, "/")
	cur := root
	built := ""
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		if built == "" {
			built = p
		} else {
			built = built + "/" + p
		}
		child, ok := cur.children[built]
		if !ok {
			child = newDirNode(built)
			cur.children[built] = child
			cur.order = append(cur.order, built)
		}
		cur = child
	}
	return cur
}

func toHierarchyNode(d *dirNode, priorities map[types.EntityId]types.PriorityScore, issues map[types.EntityId][]types.Issue, suggestions map[types.EntityId][]types.Suggestion) *types.HierarchyNode {
	node := &types.HierarchyNode{Kind: types.NodeDirectory, Path: d.path}

	childDirs := append([]string(nil), d.order...)
	sort.Strings(childDirs)
	for _, name := range childDirs {
		node.Children = append(node.Children, toHierarchyNode(d.children[name], priorities, issues, suggestions))
	}

	fileNames := append([]string(nil), d.fileOrder...)
	sort.Strings(fileNames)
	for _, fp := range fileNames {
		fn := d.files[fp]
		fileHierNode := &types.HierarchyNode{Kind: types.NodeFile, Path: fp}
		entityIDs := append([]types.EntityId(nil), fn.entities...)
		sort.Slice(entityIDs, func(i, j int) bool { return entityIDs[i] < entityIDs[j] })
		for _, id := range entityIDs {
			fileHierNode.Children = append(fileHierNode.Children, entityHierarchyNode(id, priorities, issues, suggestions))
		}
		fileHierNode.Priority = worstChildPriority(fileHierNode.Children)
		node.Children = append(node.Children, fileHierNode)
	}

	sort.SliceStable(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if a.Kind != b.Kind {
			return a.Kind == types.NodeDirectory
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Path < b.Path
	})

	node.Priority = worstChildPriority(node.Children)
	return node
}

func entityHierarchyNode(id types.EntityId, priorities map[types.EntityId]types.PriorityScore, issues map[types.EntityId][]types.Issue, suggestions map[types.EntityId][]types.Suggestion) *types.HierarchyNode {
	p := priorities[id]
	node := &types.HierarchyNode{Kind: types.NodeEntity, Path: string(id), EntityID: id, Priority: p.Normalized}

	is := append([]types.Issue(nil), issues[id]...)
	sort.Slice(is, func(i, j int) bool { return is[i].Code < is[j].Code })
	for _, iss := range is {
		node.Children = append(node.Children, &types.HierarchyNode{Kind: types.NodeIssue, Path: iss.Code, EntityID: id, Priority: iss.Severity})
	}

	ss := append([]types.Suggestion(nil), suggestions[id]...)
	sort.Slice(ss, func(i, j int) bool { return ss[i].Code < ss[j].Code })
	for _, sg := range ss {
		node.Children = append(node.Children, &types.HierarchyNode{Kind: types.NodeSuggestion, Path: sg.Code, EntityID: id})
	}

	return node
}

func worstChildPriority(children []*types.HierarchyNode) float64 {
	worst := 0.0
	for _, c := range children {
		if c.Priority > worst {
			worst = c.Priority
		}
	}
	return worst
}

// buildDirectoryHealth rolls every entity up into the directory that
// directly contains its file. A directory's HealthScore is the
// unweighted mean of (1-normalized_priority)*100 over those entities
// (100 when it has none); file sizes are not weighted in, and entities,
// file counts and entity counts of subdirectories do not enter the
// parent's figures.
func buildDirectoryHealth(entities []types.CodeEntity, priorities map[types.EntityId]types.PriorityScore, issues map[types.EntityId][]types.Issue) types.DirectoryHealthTree {
	tree := make(types.DirectoryHealthTree)

	filesByDir := make(map[string]map[string]bool)
	entitiesByDir := make(map[string][]types.CodeEntity)
	parentOf := make(map[string]string)

	for _, e := range entities {
		path := types.NormalizePath(e.FilePath)
		dir := filepath.ToSlash(filepath.Dir(path))
		if dir == "" {
			dir = "."
		}
		registerDirChain(dir, parentOf)
		if filesByDir[dir] == nil {
			filesByDir[dir] = make(map[string]bool)
		}
		filesByDir[dir][path] = true
		if e.Kind != types.KindFile {
			entitiesByDir[dir] = append(entitiesByDir[dir], e)
		}
	}
	registerDirChain(".", parentOf)

	for dir := range parentOf {
		ensureHealthNode(tree, dir)
	}
	ensureHealthNode(tree, ".")

	for dir, node := range tree {
		node.FileCount = len(filesByDir[dir])
		ents := entitiesByDir[dir]
		node.EntityCount = len(ents)
		node.HealthScore = meanHealthScore(ents, priorities)
		node.IssueCategories = categoryAggregates(ents, issues)
		node.RefactoringNeeded = len(node.IssueCategories) > 0
	}

	for dir, parent := range parentOf {
		if dir == "." {
			continue
		}
		p := ensureHealthNode(tree, parent)
		p.Children = append(p.Children, dir)
	}
	for _, node := range tree {
		sort.Strings(node.Children)
	}

	return tree
}

func registerDirChain(dir string, parentOf map[string]string) {
	if dir == "" || dir == "." {
		parentOf["."] = ""
		return
	}
	parts := strings.Split(dir, "/")
	cur := ""
	parent := "."
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		if cur == "" {
			cur = p
		} else {
			cur = cur + "/" + p
		}
		if _, ok := parentOf[cur]; !ok {
			parentOf[cur] = parent
		}
		parent = cur
	}
}

func ensureHealthNode(tree types.DirectoryHealthTree, path string) *types.DirectoryHealth {
	if node, ok := tree[path]; ok {
		return node
	}
	node := &types.DirectoryHealth{Path: path}
	tree[path] = node
	return node
}

func meanHealthScore(ents []types.CodeEntity, priorities map[types.EntityId]types.PriorityScore) float64 {
	if len(ents) == 0 {
		return 100
	}
	sum := 0.0
	for _, e := range ents {
		sum += (1 - priorities[e.ID].Normalized) * 100
	}
	return sum / float64(len(ents))
}

func categoryAggregates(ents []types.CodeEntity, issues map[types.EntityId][]types.Issue) map[types.IssueCategory]types.CategoryAggregate {
	sums := make(map[types.IssueCategory]float64)
	counts := make(map[types.IssueCategory]int)
	for _, e := range ents {
		for _, iss := range issues[e.ID] {
			sums[iss.Category] += iss.Severity
			counts[iss.Category]++
		}
	}
	if len(counts) == 0 {
		return nil
	}
	out := make(map[types.IssueCategory]types.CategoryAggregate, len(counts))
	for cat, count := range counts {
		out[cat] = types.CategoryAggregate{Count: count, MeanSeverity: sums[cat] / float64(count)}
	}
	return out
}

func summarizeClones(pairs []types.ClonePair) types.CloneAnalysisSummary {
	if len(pairs) == 0 {
		return types.CloneAnalysisSummary{}
	}
	seen := make(map[types.EntityId]bool)
	sumSim := 0.0
	for _, p := range pairs {
		sumSim += p.Similarity
		seen[p.Source] = true
		seen[p.Target] = true
	}
	return types.CloneAnalysisSummary{
		TotalPairs:      len(pairs),
		EntitiesCovered: len(seen),
		MeanSimilarity:  sumSim / float64(len(pairs)),
	}
}

func healthMetrics(entities []types.CodeEntity, priorities map[types.EntityId]types.PriorityScore) types.HealthMetrics {
	sums := make(map[types.FeatureCategory]float64)
	counts := make(map[types.FeatureCategory]int)
	for _, e := range entities {
		p, ok := priorities[e.ID]
		if !ok {
			continue
		}
		for cat, score := range p.CategoryScores {
			sums[cat] += (1 - score) * 100
			counts[cat]++
		}
	}
	mean := func(cat types.FeatureCategory) float64 {
		if counts[cat] == 0 {
			return 100
		}
		return sums[cat] / float64(counts[cat])
	}
	return types.HealthMetrics{
		Maintainability: mean(types.CategoryMaintainability),
		Complexity:      mean(types.CategoryComplexity),
		Cognitive:       mean(types.CategoryCognitive),
		Structure:       mean(types.CategoryStructure),
		Debt:            mean(types.CategoryDebt),
		Docs:            mean(types.CategoryDocs),
	}
}

func buildSummary(in Input, candidates []types.Candidate, health types.HealthMetrics) types.Summary {
	perCategory := map[types.FeatureCategory]float64{
		types.CategoryMaintainability: health.Maintainability,
		types.CategoryComplexity:      health.Complexity,
		types.CategoryCognitive:       health.Cognitive,
		types.CategoryStructure:       health.Structure,
		types.CategoryDebt:            health.Debt,
		types.CategoryDocs:            health.Docs,
	}
	overall := (health.Maintainability + health.Complexity + health.Cognitive + health.Structure + health.Debt + health.Docs) / 6

	files := make(map[string]bool, len(in.Entities))
	for _, e := range in.Entities {
		files[types.NormalizePath(e.FilePath)] = true
	}

	status := in.Status
	if status == "" {
		status = types.StatusOK
	}

	return types.Summary{
		FilesProcessed:    len(files),
		EntitiesAnalyzed:  len(in.Entities),
		RefactoringNeeded: len(candidates),
		CodeHealthScore:   overall,
		PerCategoryHealth: perCategory,
		Warnings:          in.Warnings,
		Status:            status,
	}
}
