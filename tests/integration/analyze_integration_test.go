package integration

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

func writeFile(t *testing.T, dir, rel, contents string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

// TestAnalyzeMultiLanguageRepo exercises the pipeline across Go and
// Python files in the same run, including near-duplicate clones and
// externally supplied coverage data.
func TestAnalyzeMultiLanguageRepo(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "pkg/widget.go", `package pkg

// Widget renders a thing.
func Widget(name string, count int) string {
	result := ""
	for i := 0; i < count; i++ {
		result += name
	}
	return result
}
`)

	// A near-duplicate of Widget, renamed and lightly edited, so the
	// clone detector's LSH pass has a genuine pair to find.
	writeFile(t, dir, "pkg/gadget.go", `package pkg

// Gadget renders a thing, almost identically to Widget.
func Gadget(name string, count int) string {
	result := ""
	for i := 0; i < count; i++ {
		result += name
	}
	return result
}
`)

	writeFile(t, dir, "scripts/report.py", `def build_report(rows, threshold):
    total = 0
    for row in rows:
        if row.value > threshold:
            total += row.value
        else:
            total -= 1
    return total
`)

	cfg := config.Default()
	cfg.Cache.Enabled = false
	cfg.Clone.Enabled = true
	cfg.CoverageData = &config.CoverageInput{
		Files: map[string]config.FileCoverage{
			filepath.Join(dir, "scripts/report.py"): {
				LineHits: map[int]uint32{1: 5, 2: 0, 3: 0, 4: 0},
			},
		},
	}

	results, err := valknut.Analyze(context.Background(), cfg, []string{dir})
	require.NoError(t, err)
	require.NotNil(t, results)

	assert.Equal(t, types.StatusOK, results.Summary.Status)
	assert.Greater(t, results.Summary.EntitiesAnalyzed, 0)
	assert.NotEmpty(t, results.ClonePairs, "Widget/Gadget should surface as a clone pair")
	assert.Empty(t, results.CoveragePacks, "report.py's 3-line gap scores below the 0.30 coverage-pack threshold")

	for _, c := range results.RefactoringCandidates {
		assert.False(t, filepath.IsAbs(c.FilePath), "report paths should be root-relative, got %q", c.FilePath)
	}
}

// TestAnalyzeCancellation confirms a pre-cancelled context surfaces as
// a cancelled, non-error run rather than an aborted one.
func TestAnalyzeCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package pkg\n\nfunc A() int { return 1 }\n")

	cfg := config.Default()
	cfg.Cache.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := valknut.Analyze(ctx, cfg, []string{dir})
	require.NoError(t, err)
	require.NotNil(t, results)
	assert.Equal(t, types.StatusCancelled, results.Summary.Status)
}
