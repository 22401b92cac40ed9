// Package errors defines the analysis engine's error taxonomy: a
// small set of kinds, most of which are recoverable and collected into
// the run's warning list rather than aborting the pipeline.
package errors

import (
	"fmt"

	"github.com/standardbeagle/valknut/internal/types"
)

// Kind is one of the eight error kinds the engine distinguishes.
type Kind string

const (
	KindConfig             Kind = "config"
	KindParse              Kind = "parse"
	KindFeature            Kind = "feature"
	KindStructuralAnalysis Kind = "structural_analysis"
	KindCalibration        Kind = "calibration"
	KindCoverageFormat     Kind = "coverage_format"
	KindCancelled          Kind = "cancelled"
	KindInternal           Kind = "internal"
)

// recoverable reports whether a kind is collected as a warning (true)
// or aborts the pipeline (false).
var recoverable = map[Kind]bool{
	KindConfig:             false,
	KindParse:              true,
	KindFeature:            true,
	KindStructuralAnalysis: true,
	KindCalibration:        true,
	KindCoverageFormat:     true,
	KindCancelled:          false, // terminal, handled specially
	KindInternal:           false,
}

// AnalysisError is the single error type used across the pipeline.
// Stage identifies which component raised it so it can be attributed
// in the run's warning list.
type AnalysisError struct {
	Kind        Kind
	Stage       string
	FilePath    string
	EntityID    types.EntityId
	Underlying  error
	Recoverable bool
}

// New creates an AnalysisError of the given kind at the given stage.
func New(kind Kind, stage string, err error) *AnalysisError {
	return &AnalysisError{
		Kind:        kind,
		Stage:       stage,
		Underlying:  err,
		Recoverable: recoverable[kind],
	}
}

// WithFile attaches a file path to the error.
func (e *AnalysisError) WithFile(path string) *AnalysisError {
	e.FilePath = path
	return e
}

// WithEntity attaches an entity id to the error.
func (e *AnalysisError) WithEntity(id types.EntityId) *AnalysisError {
	e.EntityID = id
	return e
}

func (e *AnalysisError) Error() string {
	switch {
	case e.FilePath != "" && e.EntityID != "":
		return fmt.Sprintf("%s[%s] %s (entity=%s): %v", e.Kind, e.Stage, e.FilePath, e.EntityID, e.Underlying)
	case e.FilePath != "":
		return fmt.Sprintf("%s[%s] %s: %v", e.Kind, e.Stage, e.FilePath, e.Underlying)
	default:
		return fmt.Sprintf("%s[%s]: %v", e.Kind, e.Stage, e.Underlying)
	}
}

// Unwrap enables errors.Is/As against the underlying cause.
func (e *AnalysisError) Unwrap() error {
	return e.Underlying
}

// IsFatal reports whether this error should abort the run rather than
// be recorded as a warning.
func (e *AnalysisError) IsFatal() bool {
	return !e.Recoverable
}

// ToWarning converts a recoverable error into the summary's warning
// record.
func (e *AnalysisError) ToWarning() types.Warning {
	return types.Warning{
		FilePath: e.FilePath,
		EntityID: e.EntityID,
		Stage:    e.Stage,
		Message:  e.Error(),
		Code:     string(e.Kind),
	}
}
