package worker

import (
	"github.com/cassieroh/bulkcalc/internal/game/battle"
	"github.com/cassieroh/bulkcalc/internal/game/grid"
	"github.com/cassieroh/bulkcalc/internal/game/timeline"
)

func encodeHPDist(dist map[battle.Side]map[int]float64) map[string]map[int]float64 {
	out := make(map[string]map[int]float64, len(dist))
	for side, d := range dist {
		cp := make(map[int]float64, len(d))
		for hp, p := range d {
			cp[hp] = p
		}
		out[string(side)] = cp
	}
	return out
}

func encodeSnapshots(snaps []timeline.Snapshot) []SnapshotWire {
	out := make([]SnapshotWire, len(snaps))
	for i, s := range snaps {
		w := SnapshotWire{
			ID:    s.ID,
			Turn:  s.Turn,
			Kind:  s.Kind,
			Sides: make(map[string]SideSnapshotWire, len(s.Sides)),
			Rolls: s.Rolls,
		}
		for side, ss := range s.Sides {
			w.Sides[string(side)] = SideSnapshotWire{AvgHP: ss.AvgHP, MaxHP: ss.MaxHP, Dist: ss.Dist}
		}
		out[i] = w
	}
	return out
}

func encodeHeatmap(cells []grid.HeatCell) []HeatCellWire {
	out := make([]HeatCellWire, len(cells))
	for i, c := range cells {
		out[i] = HeatCellWire(c)
	}
	return out
}

func encodePlans(points []*grid.Point) []PlanWire {
	out := make([]PlanWire, len(points))
	for i, p := range points {
		out[i] = PlanWire{V1: p.V1, V2: p.V2, Metric: p.Metric, Weight: p.Weight}
	}
	return out
}

func encodeSensitivity(s *grid.SensitivityResult) *SensitivityWire {
	if s == nil || s.Nearest == nil {
		return nil
	}
	return &SensitivityWire{
		NearestV1: s.Nearest.V1,
		NearestV2: s.Nearest.V2,
		DV1:       s.DV1,
		DV2:       s.DV2,
	}
}
