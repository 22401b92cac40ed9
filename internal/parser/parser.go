// Package parser is the AST service (C1): it owns pooled tree-sitter
// parser instances and hands out cached syntax trees. Trees are not
// reference-counted: a tree evicted from the size-bounded cache is
// closed even if a caller still holds it. Grounded on lci's internal/parser/parser.go (per-
// language parser pools, lazy grammar registration) and
// parser_language_setup.go (the grammar/query wiring per language),
// generalized from lci's block/symbol extraction into a plain
// parse-and-cache service; entity extraction moves to internal/entity.
package parser

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/sync/singleflight"

	verrors "github.com/standardbeagle/valknut/internal/errors"
	"github.com/standardbeagle/valknut/internal/obs"
	"github.com/standardbeagle/valknut/internal/types"

	"github.com/cespare/xxhash/v2"
)

// DefaultParseTimeout is the default per-file parse timeout.
const DefaultParseTimeout = 30 * time.Second

// ServiceConfig configures the AST service.
type ServiceConfig struct {
	Languages     []types.LanguageTag
	CacheSizeMB   int // size-bounded LRU budget; 0 uses the default (512 MiB)
	PoolSize      int // per-language pool size; 0 uses logical CPUs
	ParseTimeout  time.Duration
}

type cacheEntry struct {
	tree *tree_sitter.Tree
	size int64
}

// Service is the shared, concurrency-safe AST cache and parser pool
// described below.
type Service struct {
	pools map[types.LanguageTag]*pool

	mu         sync.Mutex // guards totalBytes/eviction bookkeeping alongside cache
	cache      *lru.Cache[string, *cacheEntry]
	totalBytes int64
	maxBytes   int64

	sf      singleflight.Group
	timeout time.Duration
}

// NewService builds the AST service, registering a parser pool for
// every requested language. Unsupported languages are ignored; callers
// should validate languages via internal/config before reaching here.
func NewService(cfg ServiceConfig) *Service {
	sizeMB := cfg.CacheSizeMB
	if sizeMB <= 0 {
		sizeMB = 512
	}
	poolSize := cfg.PoolSize
	timeout := cfg.ParseTimeout
	if timeout <= 0 {
		timeout = DefaultParseTimeout
	}

	s := &Service{
		pools:    make(map[types.LanguageTag]*pool, len(cfg.Languages)),
		maxBytes: int64(sizeMB) * 1024 * 1024,
		timeout:  timeout,
	}

	cache, _ := lru.NewWithEvict[string, *cacheEntry](1<<20, func(_ string, ce *cacheEntry) {
		s.totalBytes -= ce.size
		ce.tree.Close()
	})
	s.cache = cache

	for _, lang := range cfg.Languages {
		if factory, ok := languageFactories[lang]; ok {
			s.pools[lang] = newPool(lang, poolSize, factory)
		}
	}
	return s
}

// Close releases every pooled parser and cached tree.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
	for _, p := range s.pools {
		p.closeAll()
	}
}

// SupportsLanguage reports whether a parser pool exists for lang.
func (s *Service) SupportsLanguage(lang types.LanguageTag) bool {
	_, ok := s.pools[lang]
	return ok
}

func cacheKey(lang types.LanguageTag, source []byte) string {
	// xxhash in place of blake3 — see SPEC_FULL.md §6.1.
	return fmt.Sprintf("%s:%016x", lang, xxhash.Sum64(source))
}

// Parse parses source for path in the given language, returning a
// cached tree if one already exists for this exact (language, bytes)
// pair. Concurrent calls with the same key coalesce into one parse
// A parse failure is a recoverable ParseError: callers
// should record it as a warning and treat the file as contributing no
// entities, not abort the run.
func (s *Service) Parse(lang types.LanguageTag, source []byte, path string) (*types.AstHandle, *tree_sitter.Tree, *verrors.AnalysisError) {
	p, ok := s.pools[lang]
	if !ok {
		return nil, nil, verrors.New(verrors.KindParse, "parser", fmt.Errorf("no parser registered for language %q", lang)).WithFile(path)
	}

	key := cacheKey(lang, source)

	v, err, _ := s.sf.Do(key, func() (any, error) {
		if ce, ok := s.cache.Get(key); ok {
			return ce, nil
		}
		tree, perr := s.parseOnce(p, source)
		if perr != nil {
			return nil, perr
		}
		ce := &cacheEntry{tree: tree, size: int64(len(source))}
		s.mu.Lock()
		s.cache.Add(key, ce)
		s.totalBytes += ce.size
		s.evictOverBudgetLocked()
		s.mu.Unlock()
		obs.LogParse("cached tree for %s (%s, %d bytes)", path, lang, len(source))
		return ce, nil
	})
	if err != nil {
		return nil, nil, verrors.New(verrors.KindParse, "parser", err).WithFile(path)
	}

	return &types.AstHandle{CacheKey: key, Language: lang}, v.(*cacheEntry).tree, nil
}

// evictOverBudgetLocked evicts the oldest cached trees until total
// cached bytes is within budget. Caller must hold s.mu.
func (s *Service) evictOverBudgetLocked() {
	for s.totalBytes > s.maxBytes {
		if _, _, ok := s.cache.RemoveOldest(); !ok {
			return
		}
	}
}

// parseOnce acquires a parser from the pool, parses with a best-effort
// timeout, and returns the parser to the pool. The underlying
// tree-sitter parse is not preemptible mid-call; on timeout the parse
// is abandoned (the goroutine finishes in the background and its
// result is discarded) and a ParseError is returned, so timed-out units
// become warnings rather than aborting the run.
func (s *Service) parseOnce(p *pool, source []byte) (*tree_sitter.Tree, error) {
	ts, err := p.acquire()
	if err != nil {
		return nil, err
	}

	type result struct {
		tree *tree_sitter.Tree
	}
	done := make(chan result, 1)
	go func() {
		tree := ts.Parse(source, nil)
		done <- result{tree: tree}
	}()

	select {
	case r := <-done:
		p.release(ts)
		if r.tree == nil {
			return nil, fmt.Errorf("parse failed: empty tree")
		}
		if r.tree.RootNode().HasError() {
			// Still usable: partial trees are returned so callers can
			// extract what parsed cleanly, per tree-sitter's error-
			// recovery design. We surface this via the root node, not
			// as a hard failure.
			obs.LogParse("tree has syntax errors, continuing with partial tree")
		}
		return r.tree, nil
	case <-time.After(s.timeout):
		// Parser stays checked out until the stray goroutine finishes,
		// then returns to the pool; no replacement parser is created, so
		// this pool slot is unavailable meanwhile but not lost.
		go func() {
			<-done
			p.release(ts)
		}()
		return nil, fmt.Errorf("parse timed out after %s", s.timeout)
	}
}
