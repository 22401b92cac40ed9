package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/valknut/internal/types"
)

func TestAnalysisErrorRecoverability(t *testing.T) {
	fatal := New(KindInternal, "aggregate", errors.New("duplicate id"))
	assert.True(t, fatal.IsFatal())

	recoverable := New(KindParse, "parse", errors.New("unexpected token"))
	assert.False(t, recoverable.IsFatal())
}

func TestAnalysisErrorWithFileAndEntity(t *testing.T) {
	underlying := errors.New("boom")
	err := New(KindFeature, "features", underlying).
		WithFile("/src/app.go").
		WithEntity(types.EntityId("app.go:function:Run"))

	require.Equal(t, "/src/app.go", err.FilePath)
	require.Equal(t, types.EntityId("app.go:function:Run"), err.EntityID)
	assert.Contains(t, err.Error(), "/src/app.go")
	assert.Contains(t, err.Error(), "Run")
	assert.ErrorIs(t, err, underlying)
}

func TestAnalysisErrorToWarning(t *testing.T) {
	err := New(KindCoverageFormat, "coverage", errors.New("bad json")).WithFile("cov.json")
	w := err.ToWarning()
	assert.Equal(t, "coverage", w.Stage)
	assert.Equal(t, "cov.json", w.FilePath)
	assert.Equal(t, string(KindCoverageFormat), w.Code)
}
