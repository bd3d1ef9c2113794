package timeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/cassieroh/bulkcalc/internal/game/battle"
	"github.com/cassieroh/bulkcalc/internal/game/calc"
	"github.com/cassieroh/bulkcalc/internal/game/dex"
	"github.com/cassieroh/bulkcalc/internal/game/stats"
)

// DefaultMaxTurns caps the scripted turns processed per simulation; turns
// beyond the cap are ignored.
const DefaultMaxTurns = 5

// Options controls one simulation run.
type Options struct {
	// MaxTurns caps processed turns; <= 0 uses DefaultMaxTurns.
	MaxTurns int
	// Doubles executes actions in declared order instead of honoring the
	// turn's FirstSide declaration.
	Doubles bool
	// StellarUnlimited grants the boosted-transformation bonus on every
	// use instead of once per move type.
	StellarUnlimited bool
}

// Observation designates one scenario action as the Bayesian observation:
// the fraction of probability mass whose inflicted-damage percentage of the
// target's max HP falls inside [MinPct, MaxPct] becomes the likelihood.
type Observation struct {
	ActionID       string
	MinPct, MaxPct float64
}

// Deps carries the collaborators a simulation resolves against.
type Deps struct {
	// Cache is the per-job damage computation cache.
	Cache *calc.Cache
	// Dex resolves move metadata for first-use tracking.
	Dex dex.Source
}

// SideSnapshot is one side's aggregate state at a snapshot point.
type SideSnapshot struct {
	// AvgHP is the probability-weighted mean current HP.
	AvgHP float64
	// MaxHP is the side's maximum HP.
	MaxHP int
	// Dist groups probability mass by current HP value.
	Dist map[int]float64
}

// Snapshot is a probability-weighted aggregate of all branches after one
// action or auxiliary event.
type Snapshot struct {
	// ID is the action identifier, or a phase label for auxiliary events.
	ID string
	// Turn is the 1-based turn number.
	Turn int
	// Kind describes what produced the snapshot ("move", "switch", ...).
	Kind string
	// Sides holds the per-side aggregates.
	Sides map[battle.Side]SideSnapshot
	// Rolls is the set of distinct damage values observed (attacks only),
	// ascending.
	Rolls []int
}

// Outcome is the result of one simulation run.
type Outcome struct {
	// Survival is the summed mass of branches where the side ended with
	// HP > 0.
	Survival map[battle.Side]float64
	// HPDist groups final probability mass by current HP per side.
	HPDist map[battle.Side]map[int]float64
	// Snapshots is the ordered sequence of per-action aggregates.
	Snapshots []Snapshot
	// ObservationLikelihood is the accumulated mass inside the observed
	// damage range; 0 when no observation was configured.
	ObservationLikelihood float64
}

// run carries the mutable state of one simulation.
type run struct {
	deps    Deps
	opts    Options
	obs     *Observation
	obsMass float64

	snapshots []Snapshot
}

// Simulate expands the scenario over the starting state and returns the
// aggregated outcome.
//
// Precondition: both sides present in start with CurHP/MaxHP set; deps.Cache
// and deps.Dex non-nil; scenario structurally valid.
// Postcondition: Returns an Outcome whose branch mass summed to 1 within
// MassTolerance at every step, or a non-nil error (calculator failures
// propagate unmodified).
func Simulate(sc Scenario, start map[battle.Side]*battle.Combatant, field battle.Field, deps Deps, opts Options, obs *Observation) (*Outcome, error) {
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	for _, side := range battle.Sides {
		c, ok := start[side]
		if !ok {
			return nil, fmt.Errorf("timeline: missing combatant for side %s", side)
		}
		if c.MaxHP <= 0 || c.CurHP <= 0 {
			return nil, fmt.Errorf("timeline: side %s must start with positive HP", side)
		}
	}

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	r := &run{deps: deps, opts: opts, obs: obs}
	branches := []*Branch{NewBranch(start, field)}

	for ti, turn := range sc.Turns {
		if ti >= maxTurns {
			break
		}
		turnNo := ti + 1

		var err error
		branches, err = r.applyEvents(branches, turn.Events, PhaseTurnStart, "", turnNo)
		if err != nil {
			return nil, err
		}

		for _, action := range orderActions(turn, opts.Doubles) {
			branches, err = r.processAction(branches, action, turnNo)
			if err != nil {
				return nil, err
			}
			branches, err = r.applyEvents(branches, turn.Events, PhaseAction, action.ID, turnNo)
			if err != nil {
				return nil, err
			}
			if AllTerminated(branches) {
				break
			}
		}
		if AllTerminated(branches) {
			break
		}

		branches = Merge(endOfTurnRecovery(branches))

		branches, err = r.applyEvents(branches, turn.Events, PhaseTurnEnd, "", turnNo)
		if err != nil {
			return nil, err
		}
		if AllTerminated(branches) {
			break
		}
	}

	return r.finish(branches), nil
}

// orderActions returns the turn's actions in execution order: declared order
// in doubles, FirstSide's actions before the other side's in singles (ties
// broken by declaration order).
func orderActions(turn Turn, doubles bool) []Action {
	if doubles || turn.FirstSide == "" {
		return turn.Actions
	}
	ordered := make([]Action, 0, len(turn.Actions))
	for _, a := range turn.Actions {
		if a.Side == turn.FirstSide {
			ordered = append(ordered, a)
		}
	}
	for _, a := range turn.Actions {
		if a.Side != turn.FirstSide {
			ordered = append(ordered, a)
		}
	}
	return ordered
}

// processAction applies one scripted action to every live branch, merges the
// results, and records a snapshot keyed by the action's identifier.
func (r *run) processAction(branches []*Branch, a Action, turnNo int) ([]*Branch, error) {
	var rolls []int
	out := make([]*Branch, 0, len(branches))

	for _, br := range branches {
		if br.Terminated {
			out = append(out, br)
			continue
		}
		switch a.Kind {
		case ActionNoop:
			out = append(out, br)
		case ActionSwitch:
			switchIn(br, *a.Switch)
			out = append(out, br)
		case ActionMove:
			children, seen, err := r.attack(br, a)
			if err != nil {
				return nil, err
			}
			rolls = append(rolls, seen...)
			out = append(out, children...)
		default:
			return nil, fmt.Errorf("timeline: unknown action kind %q", a.Kind)
		}
	}

	out = Merge(out)
	r.record(out, a.ID, string(a.Kind), turnNo, rolls)
	return out, nil
}

// attack splits one branch on the move's damage rolls. Equal roll values are
// grouped up front so the child count matches the number of distinct
// outcomes; each roll carries an equal share of the parent's mass.
func (r *run) attack(br *Branch, a Action) ([]*Branch, []int, error) {
	actorSide := a.Side
	targetSide := battle.Opponent(actorSide)
	actor := br.Combatants[actorSide]

	if a.Tera {
		actor.TeraActive = true
		actor.TeraType = a.TeraType
	}

	mv := a.Move
	moveType := mv.TypeOverride
	if moveType == "" {
		md, err := r.deps.Dex.Move(mv.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("timeline: %w", err)
		}
		moveType = md.Type
	}

	// Boosted-transformation bonus: once per move type, or every use when
	// unlimited. The marker is only written in the once-per-battle mode so
	// the canonical key stays stable in unlimited mode.
	if actor.TeraActive && actor.TeraType == "stellar" {
		if r.opts.StellarUnlimited {
			mv.StellarBoost = true
		} else if !br.FirstUse[actorSide][moveType] {
			mv.StellarBoost = true
			br.FirstUse[actorSide][moveType] = true
		}
	}

	res, err := r.deps.Cache.Compute(calc.Request{
		Attacker:     actor,
		Defender:     br.Combatants[targetSide],
		AttackerSide: actorSide,
		Move:         mv,
		Field:        br.Field,
	})
	if err != nil {
		return nil, nil, err
	}

	groups, order := groupRolls(res.Rolls)
	total := len(res.Rolls)

	children := make([]*Branch, 0, len(order))
	for _, roll := range order {
		child := br.Clone()
		child.Prob = br.Prob * float64(groups[roll]) / float64(total)

		tgt := child.Combatants[targetSide]
		act := child.Combatants[actorSide]

		dmg := roll
		if dmg > tgt.CurHP {
			dmg = tgt.CurHP
		}
		tgt.CurHP -= dmg
		child.LastDamage[targetSide] = dmg

		if res.DrainPct > 0 && dmg > 0 {
			act.CurHP += dmg * res.DrainPct / 100
			if act.CurHP > act.MaxHP {
				act.CurHP = act.MaxHP
			}
		}
		if res.RecoilPct > 0 && dmg > 0 {
			act.CurHP -= dmg * res.RecoilPct / 100
			if act.CurHP < 0 {
				act.CurHP = 0
			}
		}

		if tgt.CurHP == 0 || act.CurHP == 0 {
			child.Terminated = true
		}

		if r.obs != nil && a.ID == r.obs.ActionID {
			pct := 100 * float64(dmg) / float64(tgt.MaxHP)
			if pct >= r.obs.MinPct && pct <= r.obs.MaxPct {
				r.obsMass += child.Prob
			}
		}

		children = append(children, child)
	}
	return children, order, nil
}

// groupRolls counts occurrences of each distinct roll value.
// Returns the counts and the distinct values in ascending order.
func groupRolls(rolls []int) (map[int]int, []int) {
	groups := make(map[int]int, len(rolls))
	for _, v := range rolls {
		groups[v]++
	}
	order := make([]int, 0, len(groups))
	for v := range groups {
		order = append(order, v)
	}
	sort.Ints(order)
	return groups, order
}

// applyEvents runs every auxiliary event matching the phase (and action ID
// for PhaseAction) against all live branches, merging and snapshotting after
// each event.
func (r *run) applyEvents(branches []*Branch, events []TimedEvent, phase Phase, actionID string, turnNo int) ([]*Branch, error) {
	for _, te := range events {
		if te.Phase != phase {
			continue
		}
		if phase == PhaseAction && te.ActionID != actionID {
			continue
		}
		for _, br := range branches {
			if br.Terminated {
				continue
			}
			if err := applyEvent(br, te.Event); err != nil {
				return nil, err
			}
		}
		branches = Merge(branches)
		r.record(branches, fmt.Sprintf("turn%d:%s", turnNo, phase), eventKind(te.Event), turnNo, nil)
	}
	return branches, nil
}

// applyEvent mutates one live branch according to the event variant.
func applyEvent(br *Branch, ev Event) error {
	switch e := ev.(type) {
	case StatChangeEvent:
		c := br.Combatants[e.Side]
		for st, delta := range e.Deltas {
			v := c.Boosts[st] + delta
			if v > 6 {
				v = 6
			}
			if v < -6 {
				v = -6
			}
			if v == 0 {
				delete(c.Boosts, st)
			} else {
				if c.Boosts == nil {
					c.Boosts = stats.Table{}
				}
				c.Boosts[st] = v
			}
		}
	case AdjustHPEvent:
		c := br.Combatants[e.Side]
		amount, err := resolveAdjust(e, c.MaxHP, br.LastDamage[e.Side])
		if err != nil {
			return err
		}
		if e.Heal {
			c.CurHP += amount
			if c.CurHP > c.MaxHP {
				c.CurHP = c.MaxHP
			}
		} else {
			if amount > c.CurHP {
				amount = c.CurHP
			}
			c.CurHP -= amount
			if c.CurHP == 0 {
				br.Terminated = true
			}
		}
	case HealEvent:
		c := br.Combatants[e.Side]
		amount := e.Amount
		if e.Numerator > 0 {
			if e.Denominator <= 0 {
				return fmt.Errorf("timeline: heal fraction with denominator %d", e.Denominator)
			}
			amount = c.MaxHP * e.Numerator / e.Denominator
			if amount < 1 {
				amount = 1
			}
		}
		if amount < e.Min {
			amount = e.Min
		}
		c.CurHP += amount
		if c.CurHP > c.MaxHP {
			c.CurHP = c.MaxHP
		}
	case StatusEvent:
		br.Combatants[e.Side].Status = e.Status
	case SwitchEvent:
		switchIn(br, e)
	case FieldEvent:
		if e.Weather != nil {
			br.Field.Weather = *e.Weather
		}
		if e.Terrain != nil {
			br.Field.Terrain = *e.Terrain
		}
		if e.TrickRoom != nil {
			br.Field.TrickRoom = *e.TrickRoom
		}
		for side, cond := range e.Conditions {
			if cond == nil {
				continue
			}
			if br.Field.Conditions == nil {
				br.Field.Conditions = make(map[battle.Side]battle.SideConditions, 2)
			}
			br.Field.Conditions[side] = *cond
		}
	default:
		return fmt.Errorf("timeline: unknown event type %T", ev)
	}
	return nil
}

// resolveAdjust resolves an HP adjustment against its basis.
func resolveAdjust(e AdjustHPEvent, maxHP, lastDamage int) (int, error) {
	basisValue := 0
	switch e.Basis {
	case BasisAbsolute:
		return e.Amount, nil
	case BasisMaxHP:
		basisValue = maxHP
	case BasisLastDamage:
		basisValue = lastDamage
	default:
		return 0, fmt.Errorf("timeline: unknown HP basis %q", e.Basis)
	}
	if e.Numerator > 0 {
		if e.Denominator <= 0 {
			return 0, fmt.Errorf("timeline: HP fraction with denominator %d", e.Denominator)
		}
		return basisValue * e.Numerator / e.Denominator, nil
	}
	return int(math.Floor(float64(basisValue) * e.Percent / 100.0)), nil
}

// switchIn replaces the side's active combatant, resetting transformation,
// boosts, and status, and setting HP to the requested percentage of max
// (full when unset).
func switchIn(br *Branch, e SwitchEvent) {
	incoming := e.Combatant.Clone()
	incoming.Boosts = nil
	incoming.Status = ""
	incoming.TeraActive = false
	incoming.TeraType = ""
	if e.HPPercent > 0 && e.HPPercent < 100 {
		incoming.CurHP = int(math.Floor(float64(incoming.MaxHP) * e.HPPercent / 100))
		if incoming.CurHP < 1 {
			incoming.CurHP = 1
		}
	} else {
		incoming.CurHP = incoming.MaxHP
	}
	br.Combatants[e.Side] = incoming
	br.FirstUse[e.Side] = make(map[string]bool)
}

// endOfTurnRecovery applies passive item healing (leftovers: 1/16 of max HP)
// to every live branch.
func endOfTurnRecovery(branches []*Branch) []*Branch {
	for _, br := range branches {
		if br.Terminated {
			continue
		}
		for _, side := range battle.Sides {
			c := br.Combatants[side]
			if c.Item != "leftovers" || c.CurHP <= 0 || c.CurHP >= c.MaxHP {
				continue
			}
			c.CurHP += c.MaxHP / 16
			if c.CurHP > c.MaxHP {
				c.CurHP = c.MaxHP
			}
		}
	}
	return branches
}

// record appends a probability-weighted snapshot of the branch population.
func (r *run) record(branches []*Branch, id, kind string, turnNo int, rolls []int) {
	snap := Snapshot{
		ID:    id,
		Turn:  turnNo,
		Kind:  kind,
		Sides: make(map[battle.Side]SideSnapshot, 2),
	}
	for _, side := range battle.Sides {
		ss := SideSnapshot{Dist: make(map[int]float64)}
		for _, br := range branches {
			c := br.Combatants[side]
			ss.AvgHP += br.Prob * float64(c.CurHP)
			ss.Dist[c.CurHP] += br.Prob
			if c.MaxHP > ss.MaxHP {
				ss.MaxHP = c.MaxHP
			}
		}
		snap.Sides[side] = ss
	}
	if len(rolls) > 0 {
		_, distinct := groupRolls(rolls)
		snap.Rolls = distinct
	}
	r.snapshots = append(r.snapshots, snap)
}

// finish aggregates the terminal branch population into the Outcome.
func (r *run) finish(branches []*Branch) *Outcome {
	out := &Outcome{
		Survival:              make(map[battle.Side]float64, 2),
		HPDist:                make(map[battle.Side]map[int]float64, 2),
		Snapshots:             r.snapshots,
		ObservationLikelihood: r.obsMass,
	}
	for _, side := range battle.Sides {
		out.HPDist[side] = make(map[int]float64)
	}
	for _, br := range branches {
		for _, side := range battle.Sides {
			c := br.Combatants[side]
			if c.CurHP > 0 {
				out.Survival[side] += br.Prob
			}
			out.HPDist[side][c.CurHP] += br.Prob
		}
	}
	return out
}

// eventKind names an event variant for snapshot labeling.
func eventKind(ev Event) string {
	switch ev.(type) {
	case StatChangeEvent:
		return "stat_change"
	case AdjustHPEvent:
		return "hp_adjust"
	case HealEvent:
		return "heal"
	case StatusEvent:
		return "status"
	case SwitchEvent:
		return "switch"
	case FieldEvent:
		return "field"
	default:
		return "event"
	}
}
