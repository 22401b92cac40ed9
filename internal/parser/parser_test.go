package parser

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/valknut/internal/types"
)

func TestServiceParseAndCache(t *testing.T) {
	s := NewService(ServiceConfig{Languages: []types.LanguageTag{types.LangGo}})
	defer s.Close()

	src := []byte("package main\n\nfunc main() {}\n")
	h1, tree1, aerr := s.Parse(types.LangGo, src, "main.go")
	require.Nil(t, aerr)
	require.NotNil(t, tree1)

	h2, tree2, aerr2 := s.Parse(types.LangGo, src, "main.go")
	require.Nil(t, aerr2)
	assert.Equal(t, h1.CacheKey, h2.CacheKey)
	assert.Same(t, tree1, tree2)
}

func TestServiceUnsupportedLanguage(t *testing.T) {
	s := NewService(ServiceConfig{Languages: []types.LanguageTag{types.LangGo}})
	defer s.Close()

	assert.False(t, s.SupportsLanguage(types.LangRust))
	_, _, aerr := s.Parse(types.LangRust, []byte("fn main() {}"), "main.rs")
	require.NotNil(t, aerr)
	assert.Equal(t, "main.rs", aerr.FilePath)
}

func TestServiceConcurrentParseCoalesces(t *testing.T) {
	s := NewService(ServiceConfig{Languages: []types.LanguageTag{types.LangGo}, PoolSize: 1})
	defer s.Close()

	src := []byte("package main\n\nfunc main() {}\n")
	var wg sync.WaitGroup
	keys := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			h, _, aerr := s.Parse(types.LangGo, src, "main.go")
			if aerr == nil {
				keys[idx] = h.CacheKey
			}
		}(i)
	}
	wg.Wait()
	for _, k := range keys {
		assert.Equal(t, keys[0], k)
	}
}

func TestSupportsLanguageMatchesConfigured(t *testing.T) {
	s := NewService(ServiceConfig{Languages: []types.LanguageTag{types.LangGo, types.LangPython}})
	defer s.Close()
	assert.True(t, s.SupportsLanguage(types.LangGo))
	assert.True(t, s.SupportsLanguage(types.LangPython))
	assert.False(t, s.SupportsLanguage(types.LangJava))
}
