// Package valknut is the library's single entry point. Analyze walks a
// set of root paths, parses and extracts entities, builds the
// dependency graph, extracts features, detects clones, correlates
// coverage, scores and synthesizes issues/suggestions, and aggregates
// everything into one AnalysisResults value. The nine stages run under
// internal/pipeline's executor, which owns cancellation, per-stage
// concurrency, and warning/status collection; this file only wires the
// stage bodies together in the order internal/pipeline.TopoSort
// resolves. Grounded on lci's top-level phase sequencing
// (golang.org/x/sync/errgroup driving a fixed phase list) generalized
// from an MCP-server's startup phases into a fixed nine-stage analysis
// DAG.
package valknut

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/valknut/internal/aggregate"
	"github.com/standardbeagle/valknut/internal/cache"
	"github.com/standardbeagle/valknut/internal/clone"
	"github.com/standardbeagle/valknut/internal/config"
	"github.com/standardbeagle/valknut/internal/coverage"
	"github.com/standardbeagle/valknut/internal/dictionary"
	"github.com/standardbeagle/valknut/internal/discover"
	"github.com/standardbeagle/valknut/internal/entity"
	verrors "github.com/standardbeagle/valknut/internal/errors"
	"github.com/standardbeagle/valknut/internal/features"
	"github.com/standardbeagle/valknut/internal/graph"
	"github.com/standardbeagle/valknut/internal/obs"
	"github.com/standardbeagle/valknut/internal/parser"
	"github.com/standardbeagle/valknut/internal/pathutil"
	"github.com/standardbeagle/valknut/internal/pipeline"
	"github.com/standardbeagle/valknut/internal/score"
	"github.com/standardbeagle/valknut/internal/security"
	"github.com/standardbeagle/valknut/internal/types"
)

// validationThresholdKB bounds how large a file can get before its
// header is sniffed for a mismatched extension; most source files
// never approach it.
const validationThresholdKB = 512

const (
	stageDiscover  pipeline.StageID = "discover"
	stageParse     pipeline.StageID = "parse"
	stageEntity    pipeline.StageID = "entity"
	stageGraph     pipeline.StageID = "graph"
	stageFeatures  pipeline.StageID = "features"
	stageClone     pipeline.StageID = "clone"
	stageCoverage  pipeline.StageID = "coverage"
	stageScore     pipeline.StageID = "score"
	stageAggregate pipeline.StageID = "aggregate"
)

// stagePlan is the fixed C8 DAG: discover feeds parse, parse feeds
// entity extraction, and graph/features/clone/coverage fan out from
// there before scoring and the final aggregate.
var stagePlan = []pipeline.StageDef{
	{ID: stageDiscover},
	{ID: stageParse, DependsOn: []pipeline.StageID{stageDiscover}},
	{ID: stageEntity, DependsOn: []pipeline.StageID{stageParse}},
	{ID: stageGraph, DependsOn: []pipeline.StageID{stageEntity}},
	{ID: stageFeatures, DependsOn: []pipeline.StageID{stageGraph}},
	{ID: stageClone, DependsOn: []pipeline.StageID{stageFeatures}},
	{ID: stageCoverage, DependsOn: []pipeline.StageID{stageFeatures}},
	{ID: stageScore, DependsOn: []pipeline.StageID{stageClone, stageCoverage}},
	{ID: stageAggregate, DependsOn: []pipeline.StageID{stageScore}},
}

// Run is one in-flight analysis invocation.
type Run struct {
	exec   *pipeline.Executor
	result chan runOutcome
}

type runOutcome struct {
	results *types.AnalysisResults
	err     error
}

// Progress returns the live progress feed for this run's stages.
func (r *Run) Progress() <-chan pipeline.ProgressEvent { return r.exec.Progress() }

// Wait blocks until the run finishes and returns its result.
func (r *Run) Wait() (*types.AnalysisResults, error) {
	out := <-r.result
	return out.results, out.err
}

// Analyze runs one full analysis synchronously. Use Start instead to
// observe progress from a concurrently running analysis.
func Analyze(ctx context.Context, cfg config.ValknutConfig, roots []string) (*types.AnalysisResults, error) {
	run, err := Start(ctx, cfg, roots)
	if err != nil {
		return nil, err
	}
	return run.Wait()
}

// Start validates cfg, launches one analysis run in the background, and
// returns immediately with a handle for progress and the eventual
// result.
func Start(ctx context.Context, cfg config.ValknutConfig, roots []string) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("valknut: %w", err)
	}
	if _, err := pipeline.TopoSort(stagePlan); err != nil {
		return nil, fmt.Errorf("valknut: %w", err)
	}

	logicalCPUs := runtime.GOMAXPROCS(0)
	globalWorkers := cfg.Concurrency.ResolveWorkers("", logicalCPUs)
	perStage := make(map[pipeline.StageID]int, len(cfg.Concurrency.PerStageOverrides))
	for stage, n := range cfg.Concurrency.PerStageOverrides {
		if n > 0 {
			perStage[pipeline.StageID(stage)] = n
		}
	}
	exec := pipeline.NewExecutor(globalWorkers, perStage)

	store, err := cache.Open(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("valknut: %w", err)
	}

	run := &Run{exec: exec, result: make(chan runOutcome, 1)}
	go func() {
		defer store.Close()
		results, runErr := runPipeline(ctx, exec, cfg, roots, store)
		run.result <- runOutcome{results: results, err: runErr}
	}()
	return run, nil
}

// parsedFile bundles one discovered file's decoded source with the
// cached tree C2-C4 re-walk from.
type parsedFile struct {
	path   string
	lang   types.LanguageTag
	source []byte
	handle *types.AstHandle
	tree   *tree_sitter.Tree
}

func runPipeline(ctx context.Context, exec *pipeline.Executor, cfg config.ValknutConfig, roots []string, store *cache.Store) (*types.AnalysisResults, error) {
	langSet := make(map[types.LanguageTag]bool, len(cfg.Languages))
	for _, l := range cfg.Languages {
		langSet[l] = true
	}
	filter, ferr := discover.NewFilter(cfg.IncludeGlobs, cfg.ExcludeGlobs)
	if ferr != nil {
		return nil, fmt.Errorf("valknut: %w", ferr)
	}

	// C1 discover: file walk under the configured roots/languages/filter.
	var files []string
	pipeline.RunAggregate(exec, stageDiscover, func() *verrors.AnalysisError {
		files = discover.Walk(roots, langSet, filter)
		return nil
	})

	parserSvc := parser.NewService(parser.ServiceConfig{
		Languages:   cfg.Languages,
		CacheSizeMB: cfg.Cache.ASTCacheSizeMB,
	})
	defer parserSvc.Close()

	// The in-memory LRU inside parserSvc starts empty every run; the
	// manifest in store is what actually persists across runs. Reconcile
	// it against the same byte budget before this run adds to it, so a
	// manifest nobody trimmed across several restarts doesn't grow
	// without bound.
	if store != nil {
		budgetBytes := int64(cfg.Cache.ASTCacheSizeMB) * 1024 * 1024
		if budgetBytes > 0 {
			if total, err := store.TotalASTBytes(); err == nil && total > budgetBytes {
				if evicted, err := store.EvictASTOverBudget(budgetBytes); err == nil {
					obs.LogStage("evicted %d stale AST manifest entries reconciling to %d MB budget", len(evicted), cfg.Cache.ASTCacheSizeMB)
				}
			}
		}
	}

	// Files past validationThresholdKB get their header sniffed before
	// a full parse; guards against disguised binaries wasting a
	// tree-sitter pass (or worse, producing a misleading parse).
	validator := security.NewFileValidator(validationThresholdKB)

	// C1 parse: read and parse every discovered file, keeping the tree
	// alive for C2/C4's re-walks later in this run.
	var parsedMu sync.Mutex
	var parsed []parsedFile
	pipeline.RunFanOut(exec, ctx, stageParse, files, func(_ context.Context, path string) *verrors.AnalysisError {
		lang := discover.LanguageByExt(path)
		if lang == "" || !parserSvc.SupportsLanguage(lang) {
			return nil
		}
		if err := validator.ValidateLargeFile(path, lang); err != nil {
			return verrors.New(verrors.KindParse, string(stageParse), err).WithFile(path)
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return verrors.New(verrors.KindParse, string(stageParse), err).WithFile(path)
		}
		handle, tree, perr := parserSvc.Parse(lang, source, path)
		if perr != nil {
			return perr
		}
		if store != nil {
			_ = store.RecordASTEntry(handle.CacheKey, string(lang), int64(len(source)))
		}
		parsedMu.Lock()
		parsed = append(parsed, parsedFile{path: path, lang: lang, source: source, handle: handle, tree: tree})
		parsedMu.Unlock()
		return nil
	})

	// C2 entity: extract the flat, parent-linked entity list per file.
	var entitiesMu sync.Mutex
	var entities []types.CodeEntity
	pipeline.RunFanOut(exec, ctx, stageEntity, parsed, func(_ context.Context, pf parsedFile) *verrors.AnalysisError {
		fileEntities := entity.Extract(pf.lang, pf.path, pf.source, pf.tree.RootNode(), pf.handle)
		entitiesMu.Lock()
		entities = append(entities, fileEntities...)
		entitiesMu.Unlock()
		return nil
	})

	// C3 graph: best-effort call/inheritance/import resolution plus
	// PageRank centrality, built as one aggregate stage since every edge
	// needs the full entity batch's name index.
	var depGraph *graph.Graph
	pipeline.RunAggregate(exec, stageGraph, func() *verrors.AnalysisError {
		depGraph = graph.Build(entities)
		return nil
	})

	treeByFile := make(map[string]*tree_sitter.Tree, len(parsed))
	sourceByFile := make(map[string][]byte, len(parsed))
	for _, pf := range parsed {
		treeByFile[pf.path] = pf.tree
		sourceByFile[pf.path] = pf.source
	}
	siblingsByFile := groupEntitiesByFile(entities)
	fileCoverage := buildFeatureCoverage(cfg.CoverageData)

	// C4 features: one extraction per entity, re-locating the entity's
	// node in its file's retained tree.
	var vectorsMu sync.Mutex
	vectors := make(map[types.EntityId]types.FeatureVector, len(entities))
	pipeline.RunFanOut(exec, ctx, stageFeatures, entities, func(_ context.Context, e types.CodeEntity) *verrors.AnalysisError {
		tree := treeByFile[e.FilePath]
		if tree == nil {
			return nil
		}
		node := entity.FindNode(tree.RootNode(), e.LineRange)
		if node == nil {
			node = tree.RootNode()
		}
		fctx := features.Context{
			Root:     tree.RootNode(),
			Source:   sourceByFile[e.FilePath],
			Graph:    depGraph,
			Siblings: siblingsByFile[e.FilePath],
			Coverage: fileCoverage[e.FilePath],
		}
		vec := features.Extract(e, node, fctx)
		vectorsMu.Lock()
		vectors[e.ID] = vec
		vectorsMu.Unlock()
		return nil
	})

	// C5 clone: LSH near-duplicate detection over the whole entity batch.
	// The stop-motif document-frequency table persists across runs when
	// caching is enabled, refreshed once it's older than
	// StopMotifRefreshDays or the corpus fingerprint no longer matches.
	var clonePairs []types.ClonePair
	pipeline.RunAggregate(exec, stageClone, func() *verrors.AnalysisError {
		detector := clone.NewDetector(cfg.Clone)
		if store != nil {
			refreshDays := cfg.Cache.StopMotifRefreshDays
			if refreshDays <= 0 {
				refreshDays = 7
			}
			detector = detector.WithCache(store, time.Duration(refreshDays)*24*time.Hour)
		}
		clonePairs = detector.Detect(entities)
		return nil
	})

	// C6 coverage: uncovered-region packs, skipped entirely when no
	// external coverage data was supplied.
	var coveragePacks []types.CoveragePack
	pipeline.RunAggregate(exec, stageCoverage, func() *verrors.AnalysisError {
		if cfg.CoverageData == nil {
			return nil
		}
		coveragePacks = coverage.NewAnalyzer(coverage.DefaultThreshold, depGraph).Build(entities, cfg.CoverageData, totalLOC(entities))
		return nil
	})

	// C7 score: normalize every registered feature across the run and
	// score each entity's priority, issues, and suggestions.
	registry := features.DefaultRegistry()
	dict := dictionary.Default()
	weights := cfg.ScoringWeights
	if weights == nil {
		weights = score.DefaultCategoryWeights()
	}
	var priorities map[types.EntityId]types.PriorityScore
	var issues map[types.EntityId][]types.Issue
	var suggestions map[types.EntityId][]types.Suggestion
	pipeline.RunAggregate(exec, stageScore, func() *verrors.AnalysisError {
		if err := score.ValidateVectors(registry, vectors); err != nil {
			return verrors.New(verrors.KindFeature, string(stageScore), err)
		}
		priorities, issues, suggestions = score.NewScorer(registry, weights, &dict).ScoreAll(entities, vectors)
		return nil
	})

	if exec.Status() == types.StatusFailed {
		return nil, fmt.Errorf("valknut: run failed: %s", firstFailureMessage(exec))
	}

	// C9 aggregate: fold every stage's output into the run's single
	// AnalysisResults value. Paths are relativized to whichever scanned
	// root contains them here, at the report boundary, rather than
	// carrying two path forms through every earlier stage.
	displayEntities := relativizeEntities(entities, roots)
	displayCoverage := relativizeCoverage(coveragePacks, roots)
	var results *types.AnalysisResults
	pipeline.RunAggregate(exec, stageAggregate, func() *verrors.AnalysisError {
		results = aggregate.Build(aggregate.Input{
			Entities:        displayEntities,
			Priorities:      priorities,
			Issues:          issues,
			Suggestions:     suggestions,
			ClonePairs:      clonePairs,
			CoveragePacks:   displayCoverage,
			Dictionary:      dict,
			CategoryWeights: weights,
			Warnings:        exec.Warnings(),
			Status:          exec.Status(),
		})
		return nil
	})

	if exec.Status() == types.StatusFailed {
		return nil, fmt.Errorf("valknut: run failed: %s", firstFailureMessage(exec))
	}
	return results, nil
}

// relativizeEntities returns a copy of entities with FilePath rewritten
// relative to whichever scanned root contains it.
func relativizeEntities(entities []types.CodeEntity, roots []string) []types.CodeEntity {
	out := make([]types.CodeEntity, len(entities))
	for i, e := range entities {
		e.FilePath = pathutil.ToRelativeAny(e.FilePath, roots)
		out[i] = e
	}
	return out
}

// relativizeCoverage mirrors relativizeEntities for C6's coverage packs,
// which carry their own Path field rather than an entity reference.
func relativizeCoverage(packs []types.CoveragePack, roots []string) []types.CoveragePack {
	out := make([]types.CoveragePack, len(packs))
	for i, p := range packs {
		p.Path = pathutil.ToRelativeAny(p.Path, roots)
		out[i] = p
	}
	return out
}

func groupEntitiesByFile(entities []types.CodeEntity) map[string][]types.CodeEntity {
	out := make(map[string][]types.CodeEntity)
	for _, e := range entities {
		out[e.FilePath] = append(out[e.FilePath], e)
	}
	return out
}

func buildFeatureCoverage(input *config.CoverageInput) map[string]*features.FileCoverage {
	if input == nil {
		return nil
	}
	out := make(map[string]*features.FileCoverage, len(input.Files))
	for path, fc := range input.Files {
		out[path] = &features.FileCoverage{LineHits: fc.LineHits}
	}
	return out
}

func totalLOC(entities []types.CodeEntity) int {
	seen := make(map[string]bool)
	total := 0
	for _, e := range entities {
		if e.Kind != types.KindFile || seen[e.FilePath] {
			continue
		}
		seen[e.FilePath] = true
		total += int(e.LineRange.End)
	}
	return total
}

func firstFailureMessage(exec *pipeline.Executor) string {
	if fatal := exec.FatalError(); fatal != nil {
		return fatal.Error()
	}
	return "unspecified fatal error"
}
