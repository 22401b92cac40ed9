package pipeline_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/standardbeagle/valknut/internal/errors"
	"github.com/standardbeagle/valknut/internal/pipeline"
	"github.com/standardbeagle/valknut/internal/types"
)

func TestTopoSortOrdersDependenciesFirst(t *testing.T) {
	order, err := pipeline.TopoSort([]pipeline.StageDef{
		{ID: "score", DependsOn: []pipeline.StageID{"features"}},
		{ID: "features", DependsOn: []pipeline.StageID{"parse"}},
		{ID: "parse"},
	})
	require.NoError(t, err)
	require.Equal(t, []pipeline.StageID{"parse", "features", "score"}, order)
}

func TestTopoSortDetectsCycle(t *testing.T) {
	_, err := pipeline.TopoSort([]pipeline.StageDef{
		{ID: "a", DependsOn: []pipeline.StageID{"b"}},
		{ID: "b", DependsOn: []pipeline.StageID{"a"}},
	})
	assert.Error(t, err)
}

func TestTopoSortRejectsUnknownDependency(t *testing.T) {
	_, err := pipeline.TopoSort([]pipeline.StageDef{
		{ID: "a", DependsOn: []pipeline.StageID{"missing"}},
	})
	assert.Error(t, err)
}

func TestRunFanOutProcessesEveryItem(t *testing.T) {
	e := pipeline.NewExecutor(4, nil)
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	var processed int64
	pipeline.RunFanOut(e, context.Background(), "work", items, func(ctx context.Context, item int) *verrors.AnalysisError {
		atomic.AddInt64(&processed, 1)
		return nil
	})
	assert.EqualValues(t, len(items), processed)
	assert.Equal(t, types.StatusOK, e.Status())
}

func TestRunFanOutCollectsRecoverableErrorsAsWarnings(t *testing.T) {
	e := pipeline.NewExecutor(2, nil)
	items := []string{"a.go", "b.go"}
	pipeline.RunFanOut(e, context.Background(), "parse", items, func(ctx context.Context, item string) *verrors.AnalysisError {
		return verrors.New(verrors.KindParse, "parse", assertError("boom")).WithFile(item)
	})
	warnings := e.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, types.StatusOK, e.Status())
}

func TestRunFanOutFatalErrorMarksFailed(t *testing.T) {
	e := pipeline.NewExecutor(2, nil)
	pipeline.RunFanOut(e, context.Background(), "parse", []int{1}, func(ctx context.Context, item int) *verrors.AnalysisError {
		return verrors.New(verrors.KindInternal, "parse", assertError("kaboom"))
	})
	assert.Equal(t, types.StatusFailed, e.Status())
}

func TestRunFanOutHonorsCancellation(t *testing.T) {
	e := pipeline.NewExecutor(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var processed int64
	pipeline.RunFanOut(e, ctx, "work", []int{1, 2, 3}, func(ctx context.Context, item int) *verrors.AnalysisError {
		atomic.AddInt64(&processed, 1)
		return nil
	})
	assert.Equal(t, types.StatusCancelled, e.Status())
}

func TestRunAggregateRecoversPanic(t *testing.T) {
	e := pipeline.NewExecutor(1, nil)
	pipeline.RunAggregate(e, "aggregate", func() *verrors.AnalysisError {
		panic("synthesize failure")
	})
	assert.Equal(t, types.StatusFailed, e.Status())
}

func TestRunAggregateEmitsStartAndEndProgress(t *testing.T) {
	e := pipeline.NewExecutor(1, nil)
	pipeline.RunAggregate(e, "aggregate", func() *verrors.AnalysisError { return nil })

	var events []pipeline.ProgressEvent
	for {
		select {
		case ev := <-e.Progress():
			events = append(events, ev)
		case <-time.After(10 * time.Millisecond):
			require.Len(t, events, 2)
			assert.Equal(t, 0, events[0].Done)
			assert.Equal(t, 1, events[1].Done)
			return
		}
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }
