// Package features is the feature extractor (C4): a fixed set of
// per-entity metrics across the complexity, cognitive, structure,
// debt, and docs categories. Grounded on lci's
// internal/analysis/metrics_calculator.go (cyclomatic via
// duplicate_detector.go's walkForComplexity, cognitive complexity's
// nesting-weighted switch, Halstead operator/operand extraction,
// nesting depth) and generalized from its single-symbol
// CalculateSymbolMetrics into the registry-driven FeatureVector shape
// every downstream stage (C7 in particular) expects.
package features

import (
	"math"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/valknut/internal/features/naming"
	"github.com/standardbeagle/valknut/internal/graph"
	"github.com/standardbeagle/valknut/internal/types"
)

// Context gives an extractor read access to the AST, dependency graph,
// and sibling entities in the same file, matching every extractor's
// extract(entity, ctx) -> FeatureVector contract.
type Context struct {
	Root     *tree_sitter.Node
	Source   []byte
	Graph    *graph.Graph
	Siblings []types.CodeEntity
	Coverage *FileCoverage
}

// FileCoverage is the subset of coverage data a feature extractor
// needs: a line-hit map for the containing file.
type FileCoverage struct {
	LineHits map[int]uint32
}

var (
	decisionKinds = map[string]bool{
		"if_statement": true, "while_statement": true, "for_statement": true,
		"switch_statement": true, "catch_clause": true, "except_clause": true,
		"conditional_expression": true, "case_clause": true,
	}
	loopKinds = map[string]bool{
		"for_statement": true, "while_statement": true, "do_statement": true,
		"for_in_statement": true, "for_range_clause": true,
	}
	nestingKinds = map[string]bool{
		"if_statement": true, "for_statement": true, "while_statement": true,
		"switch_statement": true, "try_statement": true, "block": true,
		"compound_statement": true,
	}
)

// Extract computes the full registered FeatureVector for one entity.
// Missing inputs (nil AST, no coverage) never produce errors; without
// coverage data the uncovered_* features are left out of the vector.
// Extract returns no error value; a panic inside it is recovered by the
// pipeline executor and reported as an internal error.
func Extract(entity types.CodeEntity, node *tree_sitter.Node, ctx Context) types.FeatureVector {
	fv := make(types.FeatureVector)

	complexity := cyclomaticComplexity(node)
	fv[types.FeatureName("cyclomatic_complexity")] = float64(complexity)
	fv[types.FeatureName("nesting_depth")] = float64(nestingDepth(node))
	fv[types.FeatureName("branch_count")] = float64(countKinds(node, decisionKinds))
	fv[types.FeatureName("loop_count")] = float64(countKinds(node, loopKinds))

	cognitive := cognitiveComplexity(node)
	fv[types.FeatureName("cognitive_complexity")] = float64(cognitive)
	operators, operands := halsteadOperands(node, ctx.Source)
	volume := halsteadVolume(operators, operands)
	fv[types.FeatureName("halstead_volume")] = volume
	fv[types.FeatureName("unique_identifier_density")] = identifierDensity(operands, entity)

	loc := int(entity.LineRange.End) - int(entity.LineRange.Start) + 1
	if loc < 0 {
		loc = 0
	}
	fv[types.FeatureName("function_size")] = float64(loc)
	fv[types.FeatureName("file_size")] = float64(fileSize(ctx.Siblings))
	fv[types.FeatureName("parameter_count")] = float64(parameterCount(node))
	fv[types.FeatureName("method_count")] = float64(methodCount(ctx.Siblings, entity))
	fv[types.FeatureName("class_cohesion")] = classCohesion(ctx.Graph, ctx.Siblings, entity)

	fv[types.FeatureName("todo_density")] = todoDensity(entity.SourceText)
	fv[types.FeatureName("deprecated_api_usage")] = float64(deprecatedUsageCount(entity.SourceText))

	docRatio, publicDocRatio := docCoverage(entity, ctx.Siblings)
	fv[types.FeatureName("doc_coverage_ratio")] = docRatio
	fv[types.FeatureName("public_api_doc_ratio")] = publicDocRatio

	if entity.Kind == types.KindFunction || entity.Kind == types.KindMethod {
		sig := naming.DetectSignature(node, ctx.Source)
		fv[types.FeatureName("naming_mismatch")] = naming.MismatchScore(entity.Name, sig)
	}

	if ctx.Coverage != nil {
		lineCov, branchCov := coverageRatios(entity, ctx.Coverage)
		fv[types.FeatureName("uncovered_line_ratio")] = lineCov
		fv[types.FeatureName("uncovered_branch_ratio")] = branchCov
	}

	return fv
}

func cyclomaticComplexity(node *tree_sitter.Node) int {
	complexity := 1
	walkCount(node, decisionKinds, &complexity)
	return complexity
}

func walkCount(node *tree_sitter.Node, kinds map[string]bool, count *int) {
	if node == nil {
		return
	}
	if kinds[node.Kind()] {
		*count++
	}
	n := node.ChildCount()
	for i := uint(0); i < n; i++ {
		walkCount(node.Child(i), kinds, count)
	}
}

func countKinds(node *tree_sitter.Node, kinds map[string]bool) int {
	count := 0
	walkCount(node, kinds, &count)
	return count
}

func nestingDepth(node *tree_sitter.Node) int {
	maxDepth, cur := 0, 0
	walkNesting(node, &maxDepth, &cur)
	return maxDepth
}

func walkNesting(node *tree_sitter.Node, maxDepth, cur *int) {
	if node == nil {
		return
	}
	isNesting := nestingKinds[node.Kind()]
	if isNesting {
		*cur++
		if *cur > *maxDepth {
			*maxDepth = *cur
		}
	}
	n := node.ChildCount()
	for i := uint(0); i < n; i++ {
		walkNesting(node.Child(i), maxDepth, cur)
	}
	if isNesting {
		*cur--
	}
}

// cognitiveComplexity weights decision points by nesting level, unlike
// plain cyclomatic complexity; lambdas add complexity without
// increasing nesting.
func cognitiveComplexity(node *tree_sitter.Node) int {
	complexity, nesting := 0, 0
	walkCognitive(node, &complexity, &nesting)
	return complexity
}

func walkCognitive(node *tree_sitter.Node, complexity, nesting *int) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "if_statement":
		*complexity += 1 + *nesting
	case "else_clause":
		*complexity++
	case "switch_statement", "match_statement":
		*complexity += 1 + *nesting
	case "for_statement", "while_statement", "do_statement":
		*complexity += 1 + *nesting
		*nesting++
		defer func() { *nesting-- }()
	case "catch_clause", "except_clause":
		*complexity += 1 + *nesting
	case "conditional_expression":
		*complexity++
	case "goto_statement":
		*complexity += 1 + *nesting
	case "lambda_expression", "arrow_function":
		*complexity++
	}
	childNesting := *nesting
	n := node.ChildCount()
	for i := uint(0); i < n; i++ {
		walkCognitive(node.Child(i), complexity, &childNesting)
	}
}

func halsteadOperands(node *tree_sitter.Node, source []byte) (operators, operands map[string]int) {
	operators = make(map[string]int)
	operands = make(map[string]int)
	walkHalstead(node, source, operators, operands)
	return
}

func walkHalstead(node *tree_sitter.Node, source []byte, operators, operands map[string]int) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "binary_expression", "unary_expression", "assignment_expression":
		if int(node.EndByte()) <= len(source) {
			operators[string(source[node.StartByte():node.EndByte()])]++
		}
	case "identifier", "number", "string", "boolean", "int_literal", "string_literal":
		if int(node.EndByte()) <= len(source) {
			operands[string(source[node.StartByte():node.EndByte()])]++
		}
	case "if", "else", "for", "while", "switch", "case", "return", "break", "continue":
		operators[node.Kind()]++
	}
	n := node.ChildCount()
	for i := uint(0); i < n; i++ {
		walkHalstead(node.Child(i), source, operators, operands)
	}
}

func halsteadVolume(operators, operands map[string]int) float64 {
	n1, n2, N1, N2 := len(operators), len(operands), 0, 0
	for _, c := range operators {
		N1 += c
	}
	for _, c := range operands {
		N2 += c
	}
	vocabulary := n1 + n2
	length := N1 + N2
	if vocabulary == 0 {
		return 0
	}
	return float64(length) * math.Log2(float64(vocabulary))
}

func identifierDensity(operands map[string]int, entity types.CodeEntity) float64 {
	loc := int(entity.LineRange.End) - int(entity.LineRange.Start) + 1
	if loc <= 0 {
		return 0
	}
	return float64(len(operands)) / float64(loc)
}

func parameterCount(node *tree_sitter.Node) int {
	pl := findChildByKind(node, "parameter_list")
	if pl == nil {
		pl = findChildByKind(node, "parameters")
	}
	if pl == nil {
		return 0
	}
	count := 0
	n := pl.ChildCount()
	for i := uint(0); i < n; i++ {
		k := pl.Child(i).Kind()
		if k == "parameter_declaration" || k == "identifier" || k == "required_parameter" || k == "optional_parameter" {
			count++
		}
	}
	return count
}

func findChildByKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	n := node.ChildCount()
	for i := uint(0); i < n; i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

func fileSize(siblings []types.CodeEntity) int {
	for _, s := range siblings {
		if s.Kind == types.KindFile {
			return int(s.LineRange.End) - int(s.LineRange.Start) + 1
		}
	}
	return 0
}

func methodCount(siblings []types.CodeEntity, entity types.CodeEntity) int {
	if entity.Kind != types.KindClass {
		return 0
	}
	count := 0
	for _, s := range siblings {
		if s.Kind == types.KindMethod && s.Parent != nil && *s.Parent == entity.ID {
			count++
		}
	}
	return count
}

// classCohesion approximates LCOM by the fraction of a class's methods
// that share at least one call-graph edge with a sibling method; a
// class whose methods never interact scores 0 (low cohesion), one
// where every method touches every other scores close to 1.
func classCohesion(g *graph.Graph, siblings []types.CodeEntity, entity types.CodeEntity) float64 {
	if entity.Kind != types.KindClass || g == nil {
		return 0
	}
	var methods []types.EntityId
	for _, s := range siblings {
		if s.Kind == types.KindMethod && s.Parent != nil && *s.Parent == entity.ID {
			methods = append(methods, s.ID)
		}
	}
	if len(methods) < 2 {
		return 1
	}
	memberSet := make(map[types.EntityId]bool, len(methods))
	for _, m := range methods {
		memberSet[m] = true
	}
	connected := 0
	for _, m := range methods {
		for _, e := range g.Out(m) {
			if memberSet[e.Target] {
				connected++
				break
			}
		}
	}
	return float64(connected) / float64(len(methods))
}

func todoDensity(source string) float64 {
	if source == "" {
		return 0
	}
	lines := strings.Split(source, "\n")
	hits := 0
	for _, l := range lines {
		u := strings.ToUpper(l)
		if strings.Contains(u, "TODO") || strings.Contains(u, "FIXME") || strings.Contains(u, "HACK") {
			hits++
		}
	}
	return float64(hits) / float64(len(lines))
}

var deprecatedMarkers = []string{"Deprecated:", "@deprecated", "@Deprecated"}

func deprecatedUsageCount(source string) int {
	count := 0
	for _, m := range deprecatedMarkers {
		count += strings.Count(source, m)
	}
	return count
}

func docCoverage(entity types.CodeEntity, siblings []types.CodeEntity) (docRatio, publicDocRatio float64) {
	documentable := 0
	documented := 0
	public := 0
	publicDocumented := 0
	for _, s := range siblings {
		if s.Kind != types.KindFunction && s.Kind != types.KindMethod && s.Kind != types.KindClass {
			continue
		}
		documentable++
		hasDoc := hasLeadingDocComment(s.SourceText)
		if hasDoc {
			documented++
		}
		if isPublicName(s.Name) {
			public++
			if hasDoc {
				publicDocumented++
			}
		}
	}
	if documentable > 0 {
		docRatio = float64(documented) / float64(documentable)
	}
	if public > 0 {
		publicDocRatio = float64(publicDocumented) / float64(public)
	}
	return
}

func hasLeadingDocComment(source string) bool {
	trimmed := strings.TrimSpace(source)
	return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "'''")
}

func isPublicName(name string) bool {
	if name == "" {
		return false
	}
	r := rune(name[0])
	return r >= 'A' && r <= 'Z'
}

func coverageRatios(entity types.CodeEntity, cov *FileCoverage) (lineRatio, branchRatio float64) {
	total, uncovered := 0, 0
	for line := int(entity.LineRange.Start); line <= int(entity.LineRange.End); line++ {
		total++
		if hits, ok := cov.LineHits[line]; !ok || hits == 0 {
			uncovered++
		}
	}
	if total > 0 {
		lineRatio = float64(uncovered) / float64(total)
	}
	// branch-level coverage isn't derivable from a plain line-hit map;
	// approximate it with the line ratio until a richer coverage format
	// is wired in.
	branchRatio = lineRatio
	return
}
