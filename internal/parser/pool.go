package parser

import (
	"fmt"
	"runtime"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/valknut/internal/types"
)

// pool is a bounded, per-language pool of ready-to-use tree-sitter
// parsers. Acquiring from an empty pool blocks until a parser is
// released, one of the pipeline's suspension points.
type pool struct {
	lang    types.LanguageTag
	ch      chan *tree_sitter.Parser
	factory func() (*tree_sitter.Parser, error)

	mu      sync.Mutex
	created int
	size    int
}

func newPool(lang types.LanguageTag, size int, factory func() (*tree_sitter.Parser, error)) *pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &pool{
		lang:    lang,
		ch:      make(chan *tree_sitter.Parser, size),
		factory: factory,
		size:    size,
	}
}

// acquire returns a parser, creating one lazily up to the pool's size
// and blocking thereafter until a peer releases one.
func (p *pool) acquire() (*tree_sitter.Parser, error) {
	select {
	case ts := <-p.ch:
		return ts, nil
	default:
	}

	p.mu.Lock()
	if p.created < p.size {
		p.created++
		p.mu.Unlock()
		ts, err := p.factory()
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, fmt.Errorf("parser: create %s parser: %w", p.lang, err)
		}
		return ts, nil
	}
	p.mu.Unlock()

	return <-p.ch, nil
}

func (p *pool) release(ts *tree_sitter.Parser) {
	select {
	case p.ch <- ts:
	default:
		// Pool is somehow over-subscribed (shouldn't happen); drop it.
		ts.Close()
	}
}

func (p *pool) closeAll() {
	close(p.ch)
	for ts := range p.ch {
		ts.Close()
	}
}
