package clone_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/valknut/internal/cache"
	"github.com/standardbeagle/valknut/internal/clone"
	"github.com/standardbeagle/valknut/internal/config"
	"github.com/standardbeagle/valknut/internal/types"
)

func entity(id, src string, start, end uint32) types.CodeEntity {
	return types.CodeEntity{
		ID:         types.EntityId(id),
		Kind:       types.KindFunction,
		Name:       id,
		FilePath:   "a.go",
		LineRange:  types.LineRange{Start: start, End: end},
		SourceText: src,
		Language:   types.LangGo,
	}
}

func TestDetectFindsNearDuplicateFunctions(t *testing.T) {
	cfg := config.Default().Clone
	cfg.AutoCalibrate = false

	src1 := `func addAll(items []int) int {
		total := 0
		for _, item := range items {
			if item > 0 {
				total += item
			}
		}
		return total
	}`
	src2 := `func sumPositive(values []int) int {
		sum := 0
		for _, value := range values {
			if value > 0 {
				sum += value
			}
		}
		return sum
	}`
	src3 := `func greet(name string) string {
		return "hello " + name
	}`

	entities := []types.CodeEntity{
		entity("a:function:addAll", src1, 1, 9),
		entity("a:function:sumPositive", src2, 11, 19),
		entity("a:function:greet", src3, 21, 23),
	}

	d := clone.NewDetector(cfg)
	pairs := d.Detect(entities)
	require.NotEmpty(t, pairs)
	assert.True(t, pairs[0].Source < pairs[0].Target)
	assert.Greater(t, pairs[0].Similarity, 0.0)
	assert.Equal(t, types.CloneType2, pairs[0].Kind, "renamed-identifier clones must classify as Type2, not Type1")
}

func TestDetectClassifiesLiteralCopyAsType1(t *testing.T) {
	cfg := config.Default().Clone
	cfg.AutoCalibrate = false

	src := `func addAll(items []int) int {
		total := 0
		for _, item := range items {
			if item > 0 {
				total += item
			}
		}
		return total
	}`

	entities := []types.CodeEntity{
		entity("a:function:addAll", src, 1, 9),
		entity("a:function:addAllCopy", src, 11, 19),
	}

	d := clone.NewDetector(cfg)
	pairs := d.Detect(entities)
	require.NotEmpty(t, pairs)
	assert.Equal(t, types.CloneType1, pairs[0].Kind)
}

func TestDetectWithCacheReusesStopMotifStats(t *testing.T) {
	cfg := config.Default().Clone
	cfg.AutoCalibrate = false

	dir := t.TempDir()
	store, err := cache.Open(config.CacheConfig{Enabled: true, Dir: dir})
	require.NoError(t, err)
	defer store.Close()

	src1 := `func addAll(items []int) int {
		total := 0
		for _, item := range items {
			total += item
		}
		return total
	}`
	src2 := `func sumAll(values []int) int {
		sum := 0
		for _, value := range values {
			sum += value
		}
		return sum
	}`
	entities := []types.CodeEntity{
		entity("a:function:addAll", src1, 1, 7),
		entity("a:function:sumAll", src2, 9, 15),
	}

	first := clone.NewDetector(cfg).WithCache(store, 24*time.Hour).Detect(entities)
	require.NotEmpty(t, first)

	second := clone.NewDetector(cfg).WithCache(store, 24*time.Hour).Detect(entities)
	require.NotEmpty(t, second)
	assert.Equal(t, first[0].Kind, second[0].Kind)
}

func TestDetectDisabledReturnsNil(t *testing.T) {
	cfg := config.Default().Clone
	cfg.Enabled = false
	d := clone.NewDetector(cfg)
	assert.Nil(t, d.Detect([]types.CodeEntity{entity("a:function:f", "func f(){}", 1, 1)}))
}

func TestDetectTooFewEntitiesReturnsNil(t *testing.T) {
	cfg := config.Default().Clone
	d := clone.NewDetector(cfg)
	assert.Nil(t, d.Detect([]types.CodeEntity{entity("a:function:f", "func f(){}", 1, 1)}))
}

func TestStructuralSimilarityIdenticalShape(t *testing.T) {
	toks1 := clone.Tokenize(`if (x) { return 1 } else { return 2 }`)
	toks2 := clone.Tokenize(`if (y) { return 3 } else { return 4 }`)
	s1 := clone.StructuralTokens(toks1)
	s2 := clone.StructuralTokens(toks2)
	assert.Equal(t, s1, s2)
}

func TestEstimatedJaccardIdenticalSignaturesIsOne(t *testing.T) {
	sig := clone.Signature{1, 2, 3, 4}
	assert.Equal(t, 1.0, clone.EstimatedJaccard(sig, sig))
}

func TestResolveBandingHonorsConfiguredProduct(t *testing.T) {
	b, r := clone.ResolveBanding(128, 32, 4, 0.72)
	assert.Equal(t, 32, b)
	assert.Equal(t, 4, r)
}

func TestResolveBandingDerivesFromSimilarityTargetWhenConfigInvalid(t *testing.T) {
	bLow, rLow := clone.ResolveBanding(128, 0, 0, 0.5)
	bHigh, rHigh := clone.ResolveBanding(128, 0, 0, 0.95)

	assert.Equal(t, 128, bLow*rLow)
	assert.Equal(t, 128, bHigh*rHigh)
	assert.NotEqual(t, bLow, bHigh, "different similarity targets should derive different (bands, rows)")
}
