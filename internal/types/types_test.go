package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEntityIdFormat(t *testing.T) {
	id := NewEntityId(`pkg\file.go`, KindFunction, "DoThing", 0)
	assert.Equal(t, EntityId("pkg/file.go:function:DoThing"), id)

	withDisc := NewEntityId("pkg/file.go", KindMethod, "Run", 2)
	assert.Equal(t, EntityId("pkg/file.go:method:Run@2"), withDisc)
}

func TestLineRangeContains(t *testing.T) {
	outer := LineRange{Start: 1, End: 100}
	inner := LineRange{Start: 10, End: 20}
	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))
}

func TestSeverityThresholdsBucket(t *testing.T) {
	th := DefaultSeverityThresholds()
	assert.Equal(t, SeverityLow, th.Bucket(0.1))
	assert.Equal(t, SeverityMedium, th.Bucket(0.5))
	assert.Equal(t, SeverityHigh, th.Bucket(0.7))
	assert.Equal(t, SeverityCritical, th.Bucket(0.95))
}

func TestFeatureRegistryLookup(t *testing.T) {
	reg := NewFeatureRegistry([]FeatureDef{
		{Name: "complexity.cyclomatic", Direction: HigherIsWorse, Category: CategoryComplexity, Weight: 1, Normalize: NormZScore},
	})
	def, ok := reg.Lookup("complexity.cyclomatic")
	assert.True(t, ok)
	assert.Equal(t, CategoryComplexity, def.Category)

	_, ok = reg.Lookup("unregistered.feature")
	assert.False(t, ok)
}

func TestFeatureRegistryAllSorted(t *testing.T) {
	reg := NewFeatureRegistry([]FeatureDef{
		{Name: "zzz"}, {Name: "aaa"}, {Name: "mmm"},
	})
	all := reg.All()
	assert.Equal(t, FeatureName("aaa"), all[0].Name)
	assert.Equal(t, FeatureName("mmm"), all[1].Name)
	assert.Equal(t, FeatureName("zzz"), all[2].Name)
}
