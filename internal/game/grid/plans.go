package grid

import (
	"sort"
)

// PlanTolerance absorbs floating-point noise when comparing metrics against
// targets and when grouping near-equal knockout chances into tiers.
const PlanTolerance = 1e-4

// maxPlans caps the number of ranked plans returned.
const maxPlans = 3

// SurvivalPlans ranks candidate investments for a survival target.
//
// Without a target (<= 0) it returns the top points by descending metric.
// With a target it filters to points meeting target-PlanTolerance, sorts by
// ascending total investment then descending metric, and returns every point
// tied at the minimal qualifying investment, never just one.
func SurvivalPlans(points []*Point, target float64) []*Point {
	if target <= 0 {
		ranked := append([]*Point(nil), points...)
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].Metric != ranked[j].Metric {
				return ranked[i].Metric > ranked[j].Metric
			}
			return ranked[i].Investment() < ranked[j].Investment()
		})
		if len(ranked) > maxPlans {
			ranked = ranked[:maxPlans]
		}
		return ranked
	}

	var qualifying []*Point
	for _, p := range points {
		if p.Metric >= target-PlanTolerance {
			qualifying = append(qualifying, p)
		}
	}
	if len(qualifying) == 0 {
		return nil
	}
	sort.SliceStable(qualifying, func(i, j int) bool {
		if qualifying[i].Investment() != qualifying[j].Investment() {
			return qualifying[i].Investment() < qualifying[j].Investment()
		}
		return qualifying[i].Metric > qualifying[j].Metric
	})

	minInvest := qualifying[0].Investment()
	tied := qualifying[:0:0]
	for _, p := range qualifying {
		if p.Investment() != minInvest {
			break
		}
		tied = append(tied, p)
	}
	return tied
}

// KnockoutPlans ranks offensive investments: points are grouped into tiers
// of near-equal knockout chance (within PlanTolerance of the tier leader),
// each tier keeps only its minimal-investment members, and up to maxPlans
// results accumulate across tiers in descending chance order. A positive
// target drops points below target-PlanTolerance before tiering; nil when
// nothing qualifies.
func KnockoutPlans(points []*Point, target float64) []*Point {
	if target > 0 {
		qualifying := make([]*Point, 0, len(points))
		for _, p := range points {
			if p.Metric >= target-PlanTolerance {
				qualifying = append(qualifying, p)
			}
		}
		if len(qualifying) == 0 {
			return nil
		}
		points = qualifying
	}

	ranked := append([]*Point(nil), points...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Metric != ranked[j].Metric {
			return ranked[i].Metric > ranked[j].Metric
		}
		return ranked[i].Investment() < ranked[j].Investment()
	})

	var out []*Point
	for i := 0; i < len(ranked) && len(out) < maxPlans; {
		leader := ranked[i].Metric
		j := i
		minInvest := ranked[i].Investment()
		for ; j < len(ranked) && leader-ranked[j].Metric <= PlanTolerance; j++ {
			if inv := ranked[j].Investment(); inv < minInvest {
				minInvest = inv
			}
		}
		for k := i; k < j && len(out) < maxPlans; k++ {
			if ranked[k].Investment() == minInvest {
				out = append(out, ranked[k])
			}
		}
		i = j
	}
	return out
}

// SensitivityResult carries the finite-difference slope of the metric per
// axis around the point nearest the current investment.
type SensitivityResult struct {
	// Nearest is the grid point closest to the current investment by
	// Manhattan distance.
	Nearest *Point
	// DV1, DV2 are the metric deltas per unit step on each axis; 0 when no
	// neighbor exists one step higher.
	DV1, DV2 float64
}

// Sensitivity locates the grid point nearest (cur1, cur2) by Manhattan
// distance and finite-differences the metric against the point one step
// higher on each axis independently.
func Sensitivity(points []*Point, cur1, cur2, step1, step2 int) *SensitivityResult {
	if len(points) == 0 {
		return nil
	}

	index := make(map[[2]int]*Point, len(points))
	nearest := points[0]
	best := manhattan(nearest, cur1, cur2)
	for _, p := range points {
		index[[2]int{p.V1, p.V2}] = p
		if d := manhattan(p, cur1, cur2); d < best {
			best = d
			nearest = p
		}
	}

	res := &SensitivityResult{Nearest: nearest}
	if up, ok := index[[2]int{nearest.V1 + step1, nearest.V2}]; ok && step1 > 0 {
		res.DV1 = (up.Metric - nearest.Metric) / float64(step1)
	}
	if up, ok := index[[2]int{nearest.V1, nearest.V2 + step2}]; ok && step2 > 0 {
		res.DV2 = (up.Metric - nearest.Metric) / float64(step2)
	}
	return res
}

func manhattan(p *Point, v1, v2 int) int {
	d1 := p.V1 - v1
	if d1 < 0 {
		d1 = -d1
	}
	d2 := p.V2 - v2
	if d2 < 0 {
		d2 = -d2
	}
	return d1 + d2
}
