package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cassieroh/bulkcalc/internal/game/stats"
)

func smallConfig() Config {
	return Config{
		Axis1: Axis{Stat: stats.HP, Min: 0, Max: 8, Step: 4},
		Axis2: Axis{Stat: stats.Defense, Min: 0, Max: 8, Step: 4},
	}
}

func TestBuild_EnumeratesFullRange(t *testing.T) {
	points, err := Build(smallConfig())
	require.NoError(t, err)
	require.Len(t, points, 9)

	var sum float64
	for _, p := range points {
		assert.InDelta(t, 1.0/9.0, p.Weight, 1e-12)
		sum += p.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestBuild_HonorsCombinedCap(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxCombined = 8
	points, err := Build(cfg)
	require.NoError(t, err)

	// (0,0) (0,4) (0,8) (4,0) (4,4) (8,0)
	require.Len(t, points, 6)
	for _, p := range points {
		assert.LessOrEqual(t, p.Investment(), 8)
	}
}

func TestBuild_RejectsBadConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Axis1.Step = 0
	_, err := Build(cfg)
	assert.Error(t, err)

	cfg = smallConfig()
	cfg.Axis2.Min = 10
	cfg.Axis2.Max = 4
	_, err = Build(cfg)
	assert.Error(t, err)

	cfg = smallConfig()
	cfg.Axis1.Max = stats.MaxEV + 1
	_, err = Build(cfg)
	assert.Error(t, err)

	cfg = smallConfig()
	cfg.Prior = PriorSpec{Kind: PriorMeta, Profile: "no-such-profile"}
	_, err = Build(cfg)
	assert.Error(t, err)

	cfg = smallConfig()
	cfg.Prior = PriorSpec{Kind: PriorCustom}
	_, err = Build(cfg)
	assert.Error(t, err)
}

func TestBuild_MetaProfilePeaksAtMean(t *testing.T) {
	cfg := Config{
		Axis1: Axis{Stat: stats.HP, Min: 0, Max: 252, Step: 4},
		Axis2: Axis{Stat: stats.Defense, Min: 0, Max: 252, Step: 4},
		Prior: PriorSpec{Kind: PriorMeta, Profile: "balanced"},
	}
	points, err := Build(cfg)
	require.NoError(t, err)

	var peak *Point
	for _, p := range points {
		if peak == nil || p.Weight > peak.Weight {
			peak = p
		}
	}
	assert.Equal(t, 128, peak.V1)
	assert.Equal(t, 128, peak.V2)
}

func TestBuild_CustomPriorFloorsUnlistedPoints(t *testing.T) {
	cfg := smallConfig()
	cfg.Prior = PriorSpec{Kind: PriorCustom, Custom: []CustomWeight{{V1: 4, V2: 4, Weight: 10}}}
	points, err := Build(cfg)
	require.NoError(t, err)

	for _, p := range points {
		require.Greater(t, p.Weight, 0.0, "every point must keep positive weight")
		if p.V1 == 4 && p.V2 == 4 {
			assert.Greater(t, p.Weight, 0.9)
		}
	}
}

// TestNormalize_Idempotent holds over arbitrary non-negative weights.
func TestNormalize_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		points := make([]*Point, n)
		for i := range points {
			points[i] = &Point{Weight: rapid.Float64Range(0, 100).Draw(t, "w")}
		}

		Normalize(points)
		once := make([]float64, n)
		for i, p := range points {
			once[i] = p.Weight
		}
		Normalize(points)
		for i, p := range points {
			if diff := p.Weight - once[i]; diff > 1e-12 || diff < -1e-12 {
				t.Fatalf("weight %d changed on second normalize: %g vs %g", i, once[i], p.Weight)
			}
		}
	})
}

func TestNormalize_UniformFallbackOnZeroSum(t *testing.T) {
	points := []*Point{{}, {}, {}, {}}
	Normalize(points)
	for _, p := range points {
		assert.InDelta(t, 0.25, p.Weight, 1e-12)
	}
}

func TestApplyLikelihoods_BayesianUpdate(t *testing.T) {
	points := []*Point{
		{Weight: 0.25, Likelihood: 0},
		{Weight: 0.25, Likelihood: 0.5},
		{Weight: 0.25, Likelihood: 0.5},
		{Weight: 0.25, Likelihood: 0},
	}
	ApplyLikelihoods(points)
	assert.InDelta(t, 0.0, points[0].Weight, 1e-12)
	assert.InDelta(t, 0.5, points[1].Weight, 1e-12)
	assert.InDelta(t, 0.5, points[2].Weight, 1e-12)
}

func TestApplyLikelihoods_AllZeroFallsBackToUniform(t *testing.T) {
	points := []*Point{{Weight: 0.6}, {Weight: 0.4}}
	ApplyLikelihoods(points)
	assert.InDelta(t, 0.5, points[0].Weight, 1e-12)
	assert.InDelta(t, 0.5, points[1].Weight, 1e-12)
}

func TestWeightedMetric(t *testing.T) {
	points := []*Point{
		{Weight: 0.5, Metric: 1.0},
		{Weight: 0.5, Metric: 0.5},
	}
	assert.InDelta(t, 0.75, WeightedMetric(points), 1e-12)
}

func TestSurvivalPlans_TopThreeWithoutTarget(t *testing.T) {
	points := []*Point{
		{V1: 0, V2: 0, Metric: 0.1},
		{V1: 4, V2: 0, Metric: 0.9},
		{V1: 0, V2: 4, Metric: 0.8},
		{V1: 4, V2: 4, Metric: 0.95},
		{V1: 8, V2: 8, Metric: 0.5},
	}
	plans := SurvivalPlans(points, 0)
	require.Len(t, plans, 3)
	assert.Equal(t, 0.95, plans[0].Metric)
	assert.Equal(t, 0.9, plans[1].Metric)
	assert.Equal(t, 0.8, plans[2].Metric)
}

// TestSurvivalPlans_TargetReturnsAllMinimalTies verifies that every point
// tied at the lowest qualifying investment is returned, not merely one, and
// that nothing below target minus tolerance qualifies.
func TestSurvivalPlans_TargetReturnsAllMinimalTies(t *testing.T) {
	points := []*Point{
		{V1: 4, V2: 4, Metric: 0.91},
		{V1: 0, V2: 8, Metric: 0.93},
		{V1: 8, V2: 0, Metric: 0.90},
		{V1: 12, V2: 0, Metric: 0.99},
		{V1: 0, V2: 0, Metric: 0.50},
	}
	plans := SurvivalPlans(points, 0.9)
	require.Len(t, plans, 3, "all three 8-EV qualifiers are tied for minimal investment")
	for _, p := range plans {
		assert.Equal(t, 8, p.Investment())
		assert.GreaterOrEqual(t, p.Metric, 0.9-PlanTolerance)
	}
	assert.Equal(t, 0.93, plans[0].Metric, "ties sort by descending metric")
}

func TestSurvivalPlans_NoQualifier(t *testing.T) {
	points := []*Point{{Metric: 0.2}, {Metric: 0.3}}
	assert.Empty(t, SurvivalPlans(points, 0.9))
}

func TestKnockoutPlans_TiersKeepMinimalInvestment(t *testing.T) {
	points := []*Point{
		{V1: 252, V2: 0, Metric: 1.0},
		{V1: 200, V2: 0, Metric: 1.0},
		{V1: 248, V2: 4, Metric: 0.99995}, // same tier as the leaders
		{V1: 100, V2: 0, Metric: 0.75},
		{V1: 120, V2: 0, Metric: 0.75},
	}
	plans := KnockoutPlans(points, 0)
	require.Len(t, plans, 2)
	assert.Equal(t, 200, plans[0].Investment(), "first tier keeps only the minimal investment")
	assert.Equal(t, 100, plans[1].Investment())
}

func TestKnockoutPlans_TargetDropsLowerTiers(t *testing.T) {
	points := []*Point{
		{V1: 252, V2: 0, Metric: 1.0},
		{V1: 200, V2: 0, Metric: 1.0},
		{V1: 248, V2: 4, Metric: 0.99995}, // within tolerance of the target
		{V1: 100, V2: 0, Metric: 0.75},
		{V1: 120, V2: 0, Metric: 0.75},
	}
	plans := KnockoutPlans(points, 1.0)
	require.Len(t, plans, 1, "the 0.75 tier must not qualify")
	assert.Equal(t, 200, plans[0].Investment())

	assert.Empty(t, KnockoutPlans(points, 1.5), "an unreachable target yields no plans")
}

func TestSensitivity_NearestAndSlopes(t *testing.T) {
	points := []*Point{
		{V1: 0, V2: 0, Metric: 0.50},
		{V1: 4, V2: 0, Metric: 0.70},
		{V1: 0, V2: 4, Metric: 0.58},
		{V1: 4, V2: 4, Metric: 0.80},
	}
	res := Sensitivity(points, 1, 1, 4, 4)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Nearest.V1)
	assert.Equal(t, 0, res.Nearest.V2)
	assert.InDelta(t, 0.05, res.DV1, 1e-12)
	assert.InDelta(t, 0.02, res.DV2, 1e-12)
}

func TestSensitivity_MissingNeighborIsZero(t *testing.T) {
	points := []*Point{{V1: 252, V2: 252, Metric: 0.9}}
	res := Sensitivity(points, 252, 252, 4, 4)
	require.NotNil(t, res)
	assert.Zero(t, res.DV1)
	assert.Zero(t, res.DV2)
}
