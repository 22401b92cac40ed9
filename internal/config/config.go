// Package config defines ValknutConfig, the single value the core
// accepts alongside a path list. Loading it from a file and validating
// it against a schema are explicitly out of scope; this package only
// validates the in-memory value's invariants before a pipeline is
// constructed from it.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/standardbeagle/valknut/internal/types"
)

// Profile selects a preset bundle of weights/thresholds.
type Profile string

const (
	ProfileFast     Profile = "fast"
	ProfileBalanced Profile = "balanced"
	ProfileThorough Profile = "thorough"
)

// CloneConfig carries the tunables for the LSH clone
// engine (C5).
type CloneConfig struct {
	Enabled              bool
	NumHashes            int     `validate:"required_if=Enabled true,omitempty,min=16"`
	Bands                int     `validate:"required_if=Enabled true,omitempty,min=1"`
	Rows                 int     `validate:"required_if=Enabled true,omitempty,min=1"`
	ShingleK             int     `validate:"omitempty,min=2"`
	SimilarityTarget     float64 `validate:"omitempty,gt=0,lt=1"`
	StructuralThreshold  float64 `validate:"omitempty,gte=0,lte=1"`
	StopMotifRatio       float64 `validate:"omitempty,gte=0,lte=1"`
	AutoCalibrate        bool
	MaxFPR               float64 `validate:"omitempty,gte=0,lte=1"`
	CalibrationSample    int     `validate:"omitempty,min=0"`
}

// ConcurrencyConfig carries the global and per-stage worker ceilings.
type ConcurrencyConfig struct {
	Workers            int
	PerStageOverrides  map[string]int
}

// CacheConfig carries the persisted-state tunables.
type CacheConfig struct {
	Dir                   string
	ASTCacheSizeMB        int `validate:"omitempty,min=1"`
	StopMotifRefreshDays  int `validate:"omitempty,min=0"`
	Enabled               bool
}

// CoverageInput is the decoded external coverage data the caller hands
// in; format decoding is the caller's responsibility.
type CoverageInput struct {
	Files map[string]FileCoverage
}

// FileCoverage is the per-file line-hit map.
type FileCoverage struct {
	LineHits map[int]uint32
}

// ValknutConfig is the core's single configuration input.
type ValknutConfig struct {
	Languages          []types.LanguageTag `validate:"required,min=1"`
	IncludeGlobs       []string
	ExcludeGlobs       []string
	Profile            Profile `validate:"required,oneof=fast balanced thorough"`
	ScoringWeights     map[types.FeatureCategory]float64
	SeverityThresholds types.SeverityThresholds
	Clone              CloneConfig
	CoverageData       *CoverageInput
	Concurrency        ConcurrencyConfig
	Cache              CacheConfig
}

// Default returns the "balanced" profile preset.
func Default() ValknutConfig {
	return ValknutConfig{
		Languages: []types.LanguageTag{types.LangGo, types.LangPython, types.LangTypeScript, types.LangJavaScript},
		Profile:   ProfileBalanced,
		ScoringWeights: map[types.FeatureCategory]float64{
			types.CategoryComplexity:      0.25,
			types.CategoryCognitive:       0.20,
			types.CategoryStructure:       0.15,
			types.CategoryDebt:            0.15,
			types.CategoryMaintainability: 0.15,
			types.CategoryDocs:            0.10,
		},
		SeverityThresholds: types.DefaultSeverityThresholds(),
		Clone: CloneConfig{
			Enabled:             true,
			NumHashes:           128,
			Bands:               32,
			Rows:                4,
			ShingleK:            5,
			SimilarityTarget:    0.72,
			StructuralThreshold: 0.55,
			StopMotifRatio:      0.7,
			AutoCalibrate:       true,
			MaxFPR:              0.05,
			CalibrationSample:   500,
		},
		Concurrency: ConcurrencyConfig{Workers: 0}, // 0 = logical CPUs, resolved by the pipeline
		Cache: CacheConfig{
			Enabled:              true,
			ASTCacheSizeMB:       512,
			StopMotifRefreshDays: 7,
		},
	}
}

var validate = validator.New()

// Validate enforces the config-error invariants: valid profile,
// contradictory thresholds, unsupported language, and the clone
// engine's b*r == num_hashes identity. It is fatal before any work
// begins.
func (c *ValknutConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	th := c.SeverityThresholds
	if !(0 < th.Low && th.Low < th.Medium && th.Medium < th.High && th.High <= 1.0) {
		return fmt.Errorf("config: severity thresholds must be strictly increasing in (0,1], got %+v", th)
	}

	if c.Clone.Enabled {
		if c.Clone.Bands*c.Clone.Rows != c.Clone.NumHashes {
			return fmt.Errorf("config: clone.bands (%d) * clone.rows (%d) must equal clone.num_hashes (%d)",
				c.Clone.Bands, c.Clone.Rows, c.Clone.NumHashes)
		}
	}

	seen := make(map[types.LanguageTag]bool, len(c.Languages))
	for _, l := range c.Languages {
		if !supportedLanguages[l] {
			return fmt.Errorf("config: unsupported language %q", l)
		}
		if seen[l] {
			return fmt.Errorf("config: duplicate language %q", l)
		}
		seen[l] = true
	}

	return nil
}

var supportedLanguages = map[types.LanguageTag]bool{
	types.LangGo:         true,
	types.LangPython:     true,
	types.LangTypeScript: true,
	types.LangJavaScript: true,
	types.LangRust:       true,
	types.LangJava:       true,
	types.LangCSharp:     true,
	types.LangCpp:        true,
	types.LangPHP:        true,
	types.LangZig:        true,
}

// ResolveWorkers returns the effective global worker ceiling for a
// stage, applying the per-stage override if one exists.
func (c *ConcurrencyConfig) ResolveWorkers(stage string, logicalCPUs int) int {
	if n, ok := c.PerStageOverrides[stage]; ok && n > 0 {
		return n
	}
	if c.Workers > 0 {
		return c.Workers
	}
	return logicalCPUs
}
