package worker

import (
	"math"

	"github.com/cassieroh/bulkcalc/internal/game/battle"
	"github.com/cassieroh/bulkcalc/internal/game/dex"
	"github.com/cassieroh/bulkcalc/internal/game/grid"
	"github.com/cassieroh/bulkcalc/internal/game/stats"
	"github.com/cassieroh/bulkcalc/internal/game/timeline"
)

// decodeSide validates a wire side identifier.
func decodeSide(s string) (battle.Side, error) {
	switch battle.Side(s) {
	case battle.SideP1, battle.SideP2:
		return battle.Side(s), nil
	}
	return "", NewConfigError("invalid side %q", s)
}

// decodeTable converts a wire stat map, validating stat names.
func decodeTable(m map[string]int) (stats.Table, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(stats.Table, len(m))
	for name, v := range m {
		st, err := stats.Parse(name)
		if err != nil {
			return nil, NewConfigError("%v", err)
		}
		out[st] = v
	}
	return out, nil
}

// decodeCombatant resolves a wire combatant against the catalog, computing
// max HP from its investment and setting current HP from the requested
// percentage (full when unset).
func decodeCombatant(spec CombatantSpec, src dex.Source) (*battle.Combatant, error) {
	sp, err := src.Species(spec.Species)
	if err != nil {
		return nil, NewConfigError("%v", err)
	}
	if spec.Nature == "" {
		spec.Nature = "serious"
	}
	if !stats.ValidNature(spec.Nature) {
		return nil, NewConfigError("unknown nature %q", spec.Nature)
	}
	if spec.Level < 1 || spec.Level > 100 {
		return nil, NewConfigError("level %d outside 1-100", spec.Level)
	}

	ivs, err := decodeTable(spec.IVs)
	if err != nil {
		return nil, err
	}
	evs, err := decodeTable(spec.EVs)
	if err != nil {
		return nil, err
	}
	boosts, err := decodeTable(spec.Boosts)
	if err != nil {
		return nil, err
	}
	overrides, err := decodeTable(spec.Overrides)
	if err != nil {
		return nil, err
	}

	c := &battle.Combatant{
		Species:    sp.Name,
		Level:      spec.Level,
		Nature:     spec.Nature,
		Ability:    spec.Ability,
		Item:       spec.Item,
		IVs:        ivs,
		EVs:        evs,
		Boosts:     boosts,
		Status:     spec.Status,
		TeraActive: spec.TeraNow,
		TeraType:   spec.TeraType,
		Overrides:  overrides,
	}
	if err := recomputeHP(c, src, spec.HPPercent); err != nil {
		return nil, err
	}
	return c, nil
}

// recomputeHP derives MaxHP from the combatant's current investment and sets
// CurHP to hpPercent of it (full when hpPercent is unset or out of range).
func recomputeHP(c *battle.Combatant, src dex.Source, hpPercent float64) error {
	if v, ok := c.Overrides[stats.HP]; ok && v > 0 {
		c.MaxHP = v
	} else {
		sp, err := src.Species(c.Species)
		if err != nil {
			return NewConfigError("%v", err)
		}
		max, err := stats.Calc(stats.HP, sp.BaseStats[stats.HP], c.IVs[stats.HP], c.EVs[stats.HP], c.Level, c.Nature)
		if err != nil {
			return NewConfigError("%v", err)
		}
		c.MaxHP = max
	}
	if hpPercent > 0 && hpPercent < 100 {
		c.CurHP = int(math.Floor(float64(c.MaxHP) * hpPercent / 100))
		if c.CurHP < 1 {
			c.CurHP = 1
		}
	} else {
		c.CurHP = c.MaxHP
	}
	return nil
}

func decodeField(spec FieldSpec) (battle.Field, error) {
	f := battle.Field{
		Weather:   spec.Weather,
		Terrain:   spec.Terrain,
		TrickRoom: spec.TrickRoom,
	}
	if len(spec.Conditions) > 0 {
		f.Conditions = make(map[battle.Side]battle.SideConditions, len(spec.Conditions))
		for s, cond := range spec.Conditions {
			side, err := decodeSide(s)
			if err != nil {
				return battle.Field{}, err
			}
			f.Conditions[side] = battle.SideConditions(cond)
		}
	}
	return f, nil
}

func decodeMove(spec *MoveSpec) (battle.MoveUse, error) {
	if spec == nil || spec.Name == "" {
		return battle.MoveUse{}, NewConfigError("move action without a move name")
	}
	return battle.MoveUse{
		Name:              spec.Name,
		Crit:              spec.Crit,
		Hits:              spec.Hits,
		PowerOverride:     spec.Power,
		TypeOverride:      spec.Type,
		CategoryOverride:  spec.Category,
		DrainPctOverride:  spec.DrainPct,
		RecoilPctOverride: spec.RecoilPct,
	}, nil
}

func decodeSwitch(spec *SwitchSpec, src dex.Source) (*timeline.SwitchEvent, error) {
	if spec == nil {
		return nil, NewConfigError("switch without a replacement combatant")
	}
	side, err := decodeSide(spec.Side)
	if err != nil {
		return nil, err
	}
	c, err := decodeCombatant(spec.Combatant, src)
	if err != nil {
		return nil, err
	}
	return &timeline.SwitchEvent{Side: side, Combatant: c, HPPercent: spec.HPPercent}, nil
}

func decodeEvent(spec EventSpec, src dex.Source) (timeline.TimedEvent, error) {
	var phase timeline.Phase
	switch timeline.Phase(spec.Phase) {
	case timeline.PhaseTurnStart, timeline.PhaseAction, timeline.PhaseTurnEnd:
		phase = timeline.Phase(spec.Phase)
	default:
		return timeline.TimedEvent{}, NewConfigError("invalid event phase %q", spec.Phase)
	}

	var (
		ev  timeline.Event
		err error
	)
	switch spec.Type {
	case "stat_change":
		var side battle.Side
		if side, err = decodeSide(spec.Side); err != nil {
			return timeline.TimedEvent{}, err
		}
		deltas, derr := decodeTable(spec.Deltas)
		if derr != nil {
			return timeline.TimedEvent{}, derr
		}
		ev = timeline.StatChangeEvent{Side: side, Deltas: deltas}
	case "hp_adjust":
		var side battle.Side
		if side, err = decodeSide(spec.Side); err != nil {
			return timeline.TimedEvent{}, err
		}
		basis := timeline.HPBasis(spec.Basis)
		switch basis {
		case timeline.BasisAbsolute, timeline.BasisMaxHP, timeline.BasisLastDamage:
		case "":
			basis = timeline.BasisAbsolute
		default:
			return timeline.TimedEvent{}, NewConfigError("invalid HP basis %q", spec.Basis)
		}
		ev = timeline.AdjustHPEvent{
			Side: side, Basis: basis, Amount: spec.Amount, Percent: spec.Percent,
			Numerator: spec.Numerator, Denominator: spec.Denominator, Heal: spec.Heal,
		}
	case "heal":
		var side battle.Side
		if side, err = decodeSide(spec.Side); err != nil {
			return timeline.TimedEvent{}, err
		}
		ev = timeline.HealEvent{
			Side: side, Amount: spec.Amount,
			Numerator: spec.Numerator, Denominator: spec.Denominator, Min: spec.Min,
		}
	case "status":
		var side battle.Side
		if side, err = decodeSide(spec.Side); err != nil {
			return timeline.TimedEvent{}, err
		}
		ev = timeline.StatusEvent{Side: side, Status: spec.Status}
	case "switch":
		sw, serr := decodeSwitch(spec.Switch, src)
		if serr != nil {
			return timeline.TimedEvent{}, serr
		}
		ev = *sw
	case "field":
		fe := timeline.FieldEvent{Weather: spec.Weather, Terrain: spec.Terrain, TrickRoom: spec.TrickRoom}
		if len(spec.Conditions) > 0 {
			fe.Conditions = make(map[battle.Side]*battle.SideConditions, len(spec.Conditions))
			for s, cond := range spec.Conditions {
				side, serr := decodeSide(s)
				if serr != nil {
					return timeline.TimedEvent{}, serr
				}
				c := battle.SideConditions(cond)
				fe.Conditions[side] = &c
			}
		}
		ev = fe
	default:
		return timeline.TimedEvent{}, NewConfigError("unknown event type %q", spec.Type)
	}

	return timeline.TimedEvent{Phase: phase, ActionID: spec.ActionID, Event: ev}, nil
}

func decodeScenario(spec ScenarioSpec, src dex.Source) (timeline.Scenario, error) {
	sc := timeline.Scenario{Turns: make([]timeline.Turn, 0, len(spec.Turns))}
	for _, ts := range spec.Turns {
		turn := timeline.Turn{}
		if ts.FirstSide != "" {
			side, err := decodeSide(ts.FirstSide)
			if err != nil {
				return timeline.Scenario{}, err
			}
			turn.FirstSide = side
		}
		for _, as := range ts.Actions {
			side, err := decodeSide(as.Side)
			if err != nil {
				return timeline.Scenario{}, err
			}
			action := timeline.Action{ID: as.ID, Side: side, Tera: as.Tera, TeraType: as.TeraType}
			switch timeline.ActionKind(as.Kind) {
			case timeline.ActionMove:
				action.Kind = timeline.ActionMove
				mv, merr := decodeMove(as.Move)
				if merr != nil {
					return timeline.Scenario{}, merr
				}
				action.Move = mv
			case timeline.ActionSwitch:
				action.Kind = timeline.ActionSwitch
				sw, serr := decodeSwitch(as.Switch, src)
				if serr != nil {
					return timeline.Scenario{}, serr
				}
				action.Switch = sw
			case timeline.ActionNoop:
				action.Kind = timeline.ActionNoop
			default:
				return timeline.Scenario{}, NewConfigError("unknown action kind %q", as.Kind)
			}
			turn.Actions = append(turn.Actions, action)
		}
		for _, es := range ts.Events {
			te, err := decodeEvent(es, src)
			if err != nil {
				return timeline.Scenario{}, err
			}
			turn.Events = append(turn.Events, te)
		}
		sc.Turns = append(sc.Turns, turn)
	}
	if err := sc.Validate(); err != nil {
		return timeline.Scenario{}, NewConfigError("%v", err)
	}
	return sc, nil
}

// decodeAxes converts one wire grid into the engine's configuration.
func decodeAxes(spec *GridAxesSpec, prior *PriorSpecWire) (grid.Config, error) {
	st1, err := stats.Parse(spec.Stat1)
	if err != nil {
		return grid.Config{}, NewConfigError("%v", err)
	}
	st2, err := stats.Parse(spec.Stat2)
	if err != nil {
		return grid.Config{}, NewConfigError("%v", err)
	}
	cfg := grid.Config{
		Axis1:       grid.Axis{Stat: st1, Min: spec.Min1, Max: spec.Max1, Step: spec.Step},
		Axis2:       grid.Axis{Stat: st2, Min: spec.Min2, Max: spec.Max2, Step: spec.Step},
		MaxCombined: spec.MaxCombined,
	}
	if prior != nil {
		cfg.Prior = grid.PriorSpec{Kind: grid.PriorKind(prior.Kind), Profile: prior.Profile}
		for _, cw := range prior.Custom {
			cfg.Prior.Custom = append(cfg.Prior.Custom, grid.CustomWeight(cw))
		}
	}
	return cfg, nil
}
