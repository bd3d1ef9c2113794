// Package timeline implements the branch state machine: it expands a
// scripted sequence of turns over a population of weighted branches
// (hypothesized world-states), splitting on multi-valued damage rolls and
// merging branches that converge to identical observable state.
package timeline

import (
	"fmt"

	"github.com/cassieroh/bulkcalc/internal/game/battle"
	"github.com/cassieroh/bulkcalc/internal/game/stats"
)

// ActionKind discriminates the scripted per-side actions of a turn.
type ActionKind string

const (
	ActionMove   ActionKind = "move"
	ActionSwitch ActionKind = "switch"
	ActionNoop   ActionKind = "noop"
)

// Action is one scripted action within a turn.
type Action struct {
	// ID identifies the action for snapshots, event linkage, and
	// observation matching. Unique within the scenario.
	ID string
	// Side is the acting side.
	Side battle.Side
	// Kind selects the action variant.
	Kind ActionKind
	// Move carries the attack parameters (Kind == ActionMove).
	Move battle.MoveUse
	// Tera activates the acting side's transformation before the move
	// resolves (Kind == ActionMove).
	Tera bool
	// TeraType is the transformation type activated by Tera.
	TeraType string
	// Switch carries the replacement combatant (Kind == ActionSwitch).
	Switch *SwitchEvent
}

// Phase tags when an auxiliary event runs relative to a turn's actions.
type Phase string

const (
	PhaseTurnStart Phase = "start"
	PhaseAction    Phase = "action"
	PhaseTurnEnd   Phase = "end"
)

// TimedEvent attaches a Phase (and, for PhaseAction, an action ID) to an
// auxiliary event.
type TimedEvent struct {
	Phase    Phase
	ActionID string
	Event    Event
}

// Turn is one scripted turn: its actions plus auxiliary events.
type Turn struct {
	// FirstSide declares which side acts first this turn (singles mode).
	FirstSide battle.Side
	// Actions in declared order.
	Actions []Action
	// Events carries the turn's auxiliary events.
	Events []TimedEvent
}

// Scenario is the ordered sequence of scripted turns.
type Scenario struct {
	Turns []Turn
}

// Validate checks structural invariants: action IDs unique, events with
// PhaseAction reference a declared action, sides valid.
//
// Postcondition: Returns nil iff the scenario is structurally sound.
func (s Scenario) Validate() error {
	ids := make(map[string]bool)
	for ti, turn := range s.Turns {
		for _, a := range turn.Actions {
			if a.Side != battle.SideP1 && a.Side != battle.SideP2 {
				return fmt.Errorf("turn %d action %q: invalid side %q", ti+1, a.ID, a.Side)
			}
			if a.ID != "" {
				if ids[a.ID] {
					return fmt.Errorf("turn %d: duplicate action id %q", ti+1, a.ID)
				}
				ids[a.ID] = true
			}
			if a.Kind == ActionSwitch && a.Switch == nil {
				return fmt.Errorf("turn %d action %q: switch action without switch payload", ti+1, a.ID)
			}
		}
	}
	for ti, turn := range s.Turns {
		for _, ev := range turn.Events {
			if ev.Phase == PhaseAction && !ids[ev.ActionID] {
				return fmt.Errorf("turn %d: event references unknown action id %q", ti+1, ev.ActionID)
			}
			if ev.Event == nil {
				return fmt.Errorf("turn %d: nil auxiliary event", ti+1)
			}
		}
	}
	return nil
}

// Event is the closed set of auxiliary event variants. Each variant is
// dispatched by exhaustive type switch in the simulator.
type Event interface {
	isEvent()
}

// StatChangeEvent adds signed stage deltas to the side's boosts, clamped to
// [-6, 6]. Stages returning to 0 are removed from the boost table.
type StatChangeEvent struct {
	Side   battle.Side
	Deltas stats.Table
}

func (StatChangeEvent) isEvent() {}

// HPBasis selects what an HP adjustment is measured against.
type HPBasis string

const (
	BasisAbsolute   HPBasis = "absolute"
	BasisMaxHP      HPBasis = "max_hp"
	BasisLastDamage HPBasis = "last_damage"
)

// AdjustHPEvent applies a direct HP change to the side. Damage variants
// clamp to current HP and may terminate the branch; heal variants clamp to
// max HP.
type AdjustHPEvent struct {
	Side battle.Side
	// Basis selects absolute amount, percentage of max HP, or percentage
	// of the last damage dealt to this side.
	Basis HPBasis
	// Amount is the absolute value (Basis == BasisAbsolute).
	Amount int
	// Percent of the basis, when Numerator is zero.
	Percent float64
	// Numerator/Denominator express a fraction of the basis instead of a
	// percentage when Numerator > 0.
	Numerator, Denominator int
	// Heal applies the amount as healing instead of damage.
	Heal bool
}

func (AdjustHPEvent) isEvent() {}

// HealEvent restores HP: an absolute amount, a fraction of max HP (minimum
// 1), or the caller-specified minimum of a range. Always clamped to max HP.
type HealEvent struct {
	Side battle.Side
	// Amount is the absolute heal when > 0.
	Amount int
	// Numerator/Denominator express a fraction of max HP when Numerator > 0.
	Numerator, Denominator int
	// Min is a floor applied to the resolved amount.
	Min int
}

func (HealEvent) isEvent() {}

// StatusEvent replaces the side's status condition.
type StatusEvent struct {
	Side   battle.Side
	Status string
}

func (StatusEvent) isEvent() {}

// SwitchEvent replaces the side's active combatant, resetting its
// transformation, boosts, and status. HPPercent sets the incoming HP as a
// percentage of its max; 0 means full.
type SwitchEvent struct {
	Side      battle.Side
	Combatant *battle.Combatant
	HPPercent float64
}

func (SwitchEvent) isEvent() {}

// FieldEvent merges updated weather/terrain/trick-room flags and per-side
// conditions into the field. Nil pointers leave the current value untouched.
type FieldEvent struct {
	Weather    *string
	Terrain    *string
	TrickRoom  *bool
	Conditions map[battle.Side]*battle.SideConditions
}

func (FieldEvent) isEvent() {}
