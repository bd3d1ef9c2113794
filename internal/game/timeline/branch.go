package timeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cassieroh/bulkcalc/internal/game/battle"
	"github.com/cassieroh/bulkcalc/internal/game/stats"
)

// Branch is a single hypothesized world-state with an associated probability
// mass. Branches own their combatants and field outright; nothing is aliased
// across branches.
type Branch struct {
	// Combatants holds each side's active combatant snapshot.
	Combatants map[battle.Side]*battle.Combatant
	// Field is this branch's field state.
	Field battle.Field
	// FirstUse tracks once-per-battle boosted-transformation markers:
	// per side, the set of move types already granted the bonus.
	FirstUse map[battle.Side]map[string]bool
	// LastDamage is the last damage dealt to each side.
	LastDamage map[battle.Side]int
	// Prob is this branch's probability mass in [0, 1].
	Prob float64
	// Terminated marks an absorbing state: either side's HP reached 0.
	// Terminated branches carry forward unmodified.
	Terminated bool
}

// NewBranch creates the initial branch from the starting combatants and
// field, with full probability mass.
//
// Precondition: both sides present in start, each with positive MaxHP.
func NewBranch(start map[battle.Side]*battle.Combatant, field battle.Field) *Branch {
	b := &Branch{
		Combatants: make(map[battle.Side]*battle.Combatant, 2),
		Field:      field.Clone(),
		FirstUse:   make(map[battle.Side]map[string]bool, 2),
		LastDamage: make(map[battle.Side]int, 2),
		Prob:       1.0,
	}
	for side, c := range start {
		b.Combatants[side] = c.Clone()
		b.FirstUse[side] = make(map[string]bool)
	}
	return b
}

// Clone returns a deep copy of the branch with the same probability mass.
//
// Postcondition: mutations of the clone never affect the receiver.
func (b *Branch) Clone() *Branch {
	out := &Branch{
		Combatants: make(map[battle.Side]*battle.Combatant, len(b.Combatants)),
		Field:      b.Field.Clone(),
		FirstUse:   make(map[battle.Side]map[string]bool, len(b.FirstUse)),
		LastDamage: make(map[battle.Side]int, len(b.LastDamage)),
		Prob:       b.Prob,
		Terminated: b.Terminated,
	}
	for side, c := range b.Combatants {
		out.Combatants[side] = c.Clone()
	}
	for side, set := range b.FirstUse {
		cp := make(map[string]bool, len(set))
		for k, v := range set {
			cp[k] = v
		}
		out.FirstUse[side] = cp
	}
	for side, v := range b.LastDamage {
		out.LastDamage[side] = v
	}
	return out
}

// Key returns the canonical state key deciding merge eligibility. Two
// branches with equal keys are the same observable state and may be merged
// by summing probability mass. The key covers HP, transformation mode/type,
// first-use markers, ability/item/status, non-zero boosts, species, last
// damage per side, the field's weather/terrain/trick-room and side
// conditions, and the terminated flag.
func (b *Branch) Key() string {
	var sb strings.Builder
	sb.Grow(192)

	fmt.Fprintf(&sb, "t=%t", b.Terminated)
	for _, side := range battle.Sides {
		c := b.Combatants[side]
		fmt.Fprintf(&sb, "|%s:%s,hp=%d,tm=%t,tt=%s,a=%s,i=%s,s=%s,ld=%d",
			side, c.Species, c.CurHP, c.TeraActive, c.TeraType,
			c.Ability, c.Item, c.Status, b.LastDamage[side],
		)
		writeStages(&sb, c.Boosts)
		writeMarkers(&sb, b.FirstUse[side])
	}
	cond1 := b.Field.SideConditionsFor(battle.SideP1)
	cond2 := b.Field.SideConditionsFor(battle.SideP2)
	fmt.Fprintf(&sb, "|f=%s,%s,%t,%v,%v", b.Field.Weather, b.Field.Terrain, b.Field.TrickRoom, cond1, cond2)
	return sb.String()
}

// writeStages serializes non-zero stages in canonical order so that a stage
// returned to 0 keys identically to one never set.
func writeStages(sb *strings.Builder, boosts stats.Table) {
	sb.WriteString(",b=")
	for _, st := range stats.All {
		if v := boosts[st]; v != 0 {
			fmt.Fprintf(sb, "%s%+d", st, v)
		}
	}
}

func writeMarkers(sb *strings.Builder, set map[string]bool) {
	sb.WriteString(",fu=")
	if len(set) == 0 {
		return
	}
	keys := make([]string, 0, len(set))
	for k, used := range set {
		if used {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	sb.WriteString(strings.Join(keys, ","))
}

// Merge collapses branches with identical canonical keys by summing their
// probability mass. Input order does not affect the aggregate masses; the
// output preserves first-seen order.
//
// Postcondition: all returned branches have distinct keys; total mass is
// preserved exactly (summation only).
func Merge(branches []*Branch) []*Branch {
	if len(branches) < 2 {
		return branches
	}
	index := make(map[string]int, len(branches))
	out := branches[:0]
	for _, br := range branches {
		key := br.Key()
		if at, ok := index[key]; ok {
			out[at].Prob += br.Prob
			continue
		}
		index[key] = len(out)
		out = append(out, br)
	}
	return out
}

// TotalMass returns the summed probability mass of the branches.
// Outside of intermediate splitting it must equal 1 within MassTolerance.
func TotalMass(branches []*Branch) float64 {
	var sum float64
	for _, b := range branches {
		sum += b.Prob
	}
	return sum
}

// MassTolerance is the floating-point tolerance for the unit-mass invariant.
const MassTolerance = 1e-6

// AllTerminated reports whether every branch is in the absorbing state.
func AllTerminated(branches []*Branch) bool {
	for _, b := range branches {
		if !b.Terminated {
			return false
		}
	}
	return true
}
