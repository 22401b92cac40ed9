// Package obs is a side-channel stage tracer, adapted from the
// teacher's internal/debug package: a single mutex-guarded writer with
// category-gated helpers. It never substitutes for the structured
// warnings the pipeline returns in AnalysisResults.summary.warnings —
// it exists only so a caller can watch what the pipeline is doing.
package obs

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	mu     sync.Mutex
	output io.Writer // nil means tracing is off
)

// SetOutput directs trace output to w, or disables tracing if w is nil.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func emit(category, format string, args ...any) {
	mu.Lock()
	w := output
	mu.Unlock()
	if w == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(w, "%s [%s] %s\n", time.Now().Format(time.RFC3339Nano), category, msg)
}

// LogStage traces pipeline stage lifecycle events (C8).
func LogStage(format string, args ...any) { emit("stage", format, args...) }

// LogParse traces AST service activity (C1).
func LogParse(format string, args ...any) { emit("parse", format, args...) }

// LogClone traces the LSH clone engine (C5).
func LogClone(format string, args ...any) { emit("clone", format, args...) }

// LogScore traces normalization/scoring (C7).
func LogScore(format string, args ...any) { emit("score", format, args...) }
