package valknut_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/valknut/internal/config"
	"github.com/standardbeagle/valknut/internal/types"

	valknut "github.com/standardbeagle/valknut"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestAnalyzeProducesRankedCandidates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "messy.go", `package sample

func messy(a, b, c, d, e, f int) int {
	if a > 0 {
		if b > 0 {
			if c > 0 {
				if d > 0 {
					if e > 0 {
						for i := 0; i < f; i++ {
							if i%2 == 0 {
								a = a + i
							} else if i%3 == 0 {
								a = a - i
							} else {
								a = a * i
							}
						}
					}
				}
			}
		}
	}
	// TODO: this function desperately needs to be split up
	return a + b + c + d + e + f
}
`)
	writeFile(t, dir, "clean.go", `package sample

// Add returns the sum of a and b.
func Add(a, b int) int {
	return a + b
}
`)

	cfg := config.Default()
	cfg.Cache.Enabled = false
	cfg.Clone.Enabled = false

	results, err := valknut.Analyze(context.Background(), cfg, []string{dir})
	require.NoError(t, err)
	require.NotNil(t, results)

	assert.Equal(t, types.StatusOK, results.Summary.Status)
	assert.Greater(t, results.Summary.EntitiesAnalyzed, 0)
	require.NotEmpty(t, results.RefactoringCandidates)
	assert.Equal(t, "messy", results.RefactoringCandidates[0].Name)
	assert.NotNil(t, results.UnifiedHierarchy)
	assert.NotEmpty(t, results.CodeDictionary.Issues)
}

func TestAnalyzeRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Profile = config.Profile("nonsense")

	_, err := valknut.Analyze(context.Background(), cfg, []string{t.TempDir()})
	assert.Error(t, err)
}

func TestAnalyzeHandlesEmptyRoots(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Enabled = false

	results, err := valknut.Analyze(context.Background(), cfg, []string{t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, types.StatusOK, results.Summary.Status)
	assert.Equal(t, 0, results.Summary.EntitiesAnalyzed)
}

func TestStartReportsProgress(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package sample\n\nfunc A() int { return 1 }\n")

	cfg := config.Default()
	cfg.Cache.Enabled = false

	run, err := valknut.Start(context.Background(), cfg, []string{dir})
	require.NoError(t, err)

	results, err := run.Wait()
	require.NoError(t, err)
	require.NotNil(t, results)

	var sawProgress bool
	for {
		select {
		case <-run.Progress():
			sawProgress = true
		default:
			assert.True(t, sawProgress)
			return
		}
	}
}
