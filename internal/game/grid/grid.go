// Package grid implements the investment grid and weighting engine: it
// enumerates candidate effort-value allocations on a two-axis grid, assigns
// prior weights, applies Bayesian observation reweighting, and extracts
// ranked plans, heatmaps, and local sensitivity from evaluated points.
package grid

import (
	"fmt"
	"math"

	"github.com/cassieroh/bulkcalc/internal/game/stats"
)

// priorEpsilon is the floor weight for points not listed by a custom prior.
// Never zero so renormalization stays well-defined.
const priorEpsilon = 1e-6

// Axis describes one grid dimension: the stat it invests in and the
// inclusive range walked at Step increments.
type Axis struct {
	Stat stats.Stat
	Min  int
	Max  int
	Step int
}

// Validate checks the axis bounds against the legal effort-value range.
func (a Axis) Validate() error {
	if a.Step <= 0 {
		return fmt.Errorf("axis %s: step must be positive, got %d", a.Stat, a.Step)
	}
	if a.Min < 0 || a.Max > stats.MaxEV {
		return fmt.Errorf("axis %s: range [%d, %d] outside [0, %d]", a.Stat, a.Min, a.Max, stats.MaxEV)
	}
	if a.Min > a.Max {
		return fmt.Errorf("axis %s: min %d exceeds max %d", a.Stat, a.Min, a.Max)
	}
	return nil
}

// PriorKind selects how Build assigns initial weights.
type PriorKind string

const (
	PriorUniform PriorKind = "uniform"
	PriorMeta    PriorKind = "meta"
	PriorCustom  PriorKind = "custom"
)

// CustomWeight pins an explicit prior weight to one grid point.
type CustomWeight struct {
	V1, V2 int
	Weight float64
}

// PriorSpec configures the prior distribution over grid points.
type PriorSpec struct {
	Kind PriorKind
	// Profile names a built-in meta profile (Kind == PriorMeta).
	Profile string
	// Custom lists explicit point weights (Kind == PriorCustom); points
	// not listed receive priorEpsilon.
	Custom []CustomWeight
}

// Config describes one grid to build.
type Config struct {
	Axis1, Axis2 Axis
	// MaxCombined caps V1+V2 when > 0.
	MaxCombined int
	Prior       PriorSpec
}

// Point is one candidate investment hypothesis. Coordinates are fixed at
// build time; Weight, Likelihood, and Metric are filled in during evaluation.
type Point struct {
	// V1, V2 are the effort values on Axis1 and Axis2.
	V1, V2 int
	// Prior is the unnormalized initial weight.
	Prior float64
	// Weight is the current normalized weight (posterior after reweighting).
	Weight float64
	// Likelihood is the observation likelihood recorded during evaluation.
	Likelihood float64
	// Metric is the evaluated survival or knockout probability.
	Metric float64
}

// Investment is the point's total effort spend.
func (p *Point) Investment() int { return p.V1 + p.V2 }

// MetaProfile is a bivariate Gaussian over the two axes.
type MetaProfile struct {
	Mean1, Sigma1 float64
	Mean2, Sigma2 float64
	// Rho is the correlation between the axes, in (-1, 1).
	Rho float64
}

// metaProfiles are the named prior shapes selectable via PriorSpec.Profile.
var metaProfiles = map[string]MetaProfile{
	// Heavy investment on both axes, loosely coupled.
	"max-invest": {Mean1: 252, Sigma1: 80, Mean2: 252, Sigma2: 80, Rho: 0.2},
	// Centered spread over the whole range.
	"balanced": {Mean1: 128, Sigma1: 96, Mean2: 128, Sigma2: 96},
	// Full HP with a flexible secondary axis.
	"hp-heavy": {Mean1: 252, Sigma1: 48, Mean2: 96, Sigma2: 112, Rho: -0.3},
}

// density evaluates the unnormalized bivariate Gaussian at (v1, v2).
// The normalization constant is dropped; weights are renormalized anyway.
func (m MetaProfile) density(v1, v2 int) float64 {
	z1 := (float64(v1) - m.Mean1) / m.Sigma1
	z2 := (float64(v2) - m.Mean2) / m.Sigma2
	q := (z1*z1 - 2*m.Rho*z1*z2 + z2*z2) / (1 - m.Rho*m.Rho)
	return math.Exp(-q / 2)
}

// Build enumerates every (v1, v2) pair on the configured axes, honoring the
// combined-investment cap, and assigns prior weights. Returned weights are
// normalized to sum to 1.
//
// Postcondition: at least one point, all priors strictly positive.
func Build(cfg Config) ([]*Point, error) {
	if err := cfg.Axis1.Validate(); err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	if err := cfg.Axis2.Validate(); err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}

	var profile MetaProfile
	switch cfg.Prior.Kind {
	case PriorUniform, "":
	case PriorMeta:
		p, ok := metaProfiles[cfg.Prior.Profile]
		if !ok {
			return nil, fmt.Errorf("grid: unknown meta profile %q", cfg.Prior.Profile)
		}
		profile = p
	case PriorCustom:
		if len(cfg.Prior.Custom) == 0 {
			return nil, fmt.Errorf("grid: custom prior with no weights")
		}
	default:
		return nil, fmt.Errorf("grid: unknown prior kind %q", cfg.Prior.Kind)
	}

	custom := make(map[[2]int]float64, len(cfg.Prior.Custom))
	for _, cw := range cfg.Prior.Custom {
		custom[[2]int{cw.V1, cw.V2}] = cw.Weight
	}

	var points []*Point
	for v1 := cfg.Axis1.Min; v1 <= cfg.Axis1.Max; v1 += cfg.Axis1.Step {
		for v2 := cfg.Axis2.Min; v2 <= cfg.Axis2.Max; v2 += cfg.Axis2.Step {
			if cfg.MaxCombined > 0 && v1+v2 > cfg.MaxCombined {
				continue
			}
			prior := 1.0
			switch cfg.Prior.Kind {
			case PriorMeta:
				prior = profile.density(v1, v2)
				if prior < priorEpsilon {
					prior = priorEpsilon
				}
			case PriorCustom:
				w, ok := custom[[2]int{v1, v2}]
				if !ok || w <= 0 {
					w = priorEpsilon
				}
				prior = w
			}
			points = append(points, &Point{V1: v1, V2: v2, Prior: prior, Weight: prior})
		}
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("grid: configuration yields no points")
	}
	Normalize(points)
	return points, nil
}

// Normalize rescales weights to sum to 1. A non-positive sum falls back to a
// uniform distribution.
//
// Postcondition: idempotent; Σ Weight == 1 within floating-point error.
func Normalize(points []*Point) {
	var sum float64
	for _, p := range points {
		sum += p.Weight
	}
	if sum <= 0 {
		u := 1.0 / float64(len(points))
		for _, p := range points {
			p.Weight = u
		}
		return
	}
	for _, p := range points {
		p.Weight /= sum
	}
}

// ApplyLikelihoods performs the Bayesian update: each point's weight is
// multiplied by its recorded observation likelihood, then the population is
// renormalized. All-zero likelihoods degrade to uniform via Normalize's
// fallback.
func ApplyLikelihoods(points []*Point) {
	for _, p := range points {
		p.Weight *= p.Likelihood
	}
	Normalize(points)
}

// WeightedMetric is the weight-averaged metric over the population.
func WeightedMetric(points []*Point) float64 {
	var sum float64
	for _, p := range points {
		sum += p.Weight * p.Metric
	}
	return sum
}

// HeatCell is one heatmap entry.
type HeatCell struct {
	V1, V2 int
	Metric float64
	Weight float64
}

// Heatmap flattens the population into per-point cells in build order.
func Heatmap(points []*Point) []HeatCell {
	cells := make([]HeatCell, len(points))
	for i, p := range points {
		cells[i] = HeatCell{V1: p.V1, V2: p.V2, Metric: p.Metric, Weight: p.Weight}
	}
	return cells
}
