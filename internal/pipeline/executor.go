package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	verrors "github.com/standardbeagle/valknut/internal/errors"
	"github.com/standardbeagle/valknut/internal/obs"
	"github.com/standardbeagle/valknut/internal/types"
)

// progressInterval is the minimum spacing between the progress events a
// fan-out stage emits as items complete, so at most about 4 events per
// second, plus one when the last item completes. No event is emitted
// while no item completes, so the rate can fall below 4 per second.
const progressInterval = 250 * time.Millisecond

// ProgressEvent reports how far one stage has gotten.
type ProgressEvent struct {
	Stage StageID
	Done  int
	Total int
}

// Executor runs stages in the order TopoSort produced, fanning out
// per-item work with a bounded worker count and collecting recoverable
// errors as warnings. One Executor is used for a single run.
type Executor struct {
	workers           int
	perStageOverrides map[StageID]int

	progress chan ProgressEvent

	mu       sync.Mutex
	warnings []types.Warning
	status   types.RunStatus
	fatalErr *verrors.AnalysisError
}

// NewExecutor builds an Executor with a global worker ceiling and
// optional per-stage overrides. workers is clamped to at least 1.
func NewExecutor(workers int, perStageOverrides map[StageID]int) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{
		workers:           workers,
		perStageOverrides: perStageOverrides,
		progress:          make(chan ProgressEvent, 64),
		status:            types.StatusOK,
	}
}

// Progress returns the channel progress events are published to. The
// channel is never closed by Run; callers should stop reading once
// Run returns.
func (e *Executor) Progress() <-chan ProgressEvent {
	return e.progress
}

// Warnings returns the recoverable errors collected so far.
func (e *Executor) Warnings() []types.Warning {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.Warning(nil), e.warnings...)
}

// Status reports the run's terminal status as observed so far.
func (e *Executor) Status() types.RunStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// FatalError returns the error that flipped the run to StatusFailed,
// or nil if the run hasn't failed (or failed only via cancellation).
func (e *Executor) FatalError() *verrors.AnalysisError {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fatalErr
}

func (e *Executor) recordError(stage StageID, err *verrors.AnalysisError) {
	if err == nil {
		return
	}
	obs.LogStage("%s: error: %v", stage, err)
	if err.IsFatal() {
		e.mu.Lock()
		if err.Kind == verrors.KindCancelled {
			if e.status == types.StatusOK {
				e.status = types.StatusCancelled
			}
		} else {
			e.status = types.StatusFailed
			e.fatalErr = err
		}
		e.mu.Unlock()
		return
	}
	e.mu.Lock()
	e.warnings = append(e.warnings, err.ToWarning())
	e.mu.Unlock()
}

func (e *Executor) workersFor(stage StageID) int {
	if n, ok := e.perStageOverrides[stage]; ok && n > 0 {
		return n
	}
	return e.workers
}

func (e *Executor) emitProgress(stage StageID, done, total int) {
	select {
	case e.progress <- ProgressEvent{Stage: stage, Done: done, Total: total}:
	default:
		// drop: the channel is a best-effort observability feed, never a
		// dependency of correctness.
	}
}

// RunFanOut processes items concurrently under a bounded worker count
// (workersFor(stage)), queuing at most 4x that many items ahead of the
// workers so callers that enqueue faster than the pool drains block
// rather than growing memory unboundedly. Cancellation is honored
// between items; a panic inside fn is recovered and reported as a
// fatal internal error (the run's status becomes failed) rather than
// crashing the process.
func RunFanOut[T any](e *Executor, ctx context.Context, stage StageID, items []T, fn func(context.Context, T) *verrors.AnalysisError) {
	total := len(items)
	if total == 0 {
		return
	}
	workers := e.workersFor(stage)
	sem := make(chan struct{}, workers)
	queue := make(chan T, 4*workers)

	go func() {
		defer close(queue)
		for _, item := range items {
			if ctx.Err() != nil {
				return
			}
			select {
			case queue <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	var done int64
	var lastEmit int64
	wg := conc.NewWaitGroup()
	for item := range queue {
		if ctx.Err() != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break
		}
		item := item
		wg.Go(func() {
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					e.recordError(stage, verrors.New(verrors.KindInternal, string(stage), panicError{r}))
				}
			}()
			if ctx.Err() == nil {
				if err := fn(ctx, item); err != nil {
					e.recordError(stage, err)
				}
			}
			d := atomic.AddInt64(&done, 1)
			now := time.Now().UnixNano()
			if now-atomic.LoadInt64(&lastEmit) >= progressInterval.Nanoseconds() || int(d) == total {
				atomic.StoreInt64(&lastEmit, now)
				e.emitProgress(stage, int(d), total)
			}
		})
	}
	wg.Wait()

	if ctx.Err() != nil {
		e.mu.Lock()
		if e.status == types.StatusOK {
			e.status = types.StatusCancelled
		}
		e.mu.Unlock()
	}
}

// RunAggregate runs a single stage-level function, attributing a panic
// (if any) to the stage as a fatal internal error rather than letting
// it unwind past the executor.
func RunAggregate(e *Executor, stage StageID, fn func() *verrors.AnalysisError) {
	defer func() {
		if r := recover(); r != nil {
			e.recordError(stage, verrors.New(verrors.KindInternal, string(stage), panicError{r}))
		}
	}()
	e.emitProgress(stage, 0, 1)
	if err := fn(); err != nil {
		e.recordError(stage, err)
	}
	e.emitProgress(stage, 1, 1)
}

type panicError struct{ v any }

func (p panicError) Error() string {
	return "panic: " + formatPanic(p.v)
}

func formatPanic(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "unrecoverable stage panic"
}
