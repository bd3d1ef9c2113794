// Package battle defines the value types shared by the damage calculator and
// the branch simulator: combatant snapshots, field state, and per-use move
// parameters. All types are plain values cloned between hypothetical world
// states; nothing here is aliased across branches.
package battle

import (
	"github.com/cassieroh/bulkcalc/internal/game/stats"
)

// Side identifies one of the two combatant sides.
type Side string

const (
	SideP1 Side = "p1"
	SideP2 Side = "p2"
)

// Sides lists both sides in canonical order.
var Sides = []Side{SideP1, SideP2}

// Opponent returns the other side.
func Opponent(s Side) Side {
	if s == SideP1 {
		return SideP2
	}
	return SideP1
}

// Combatant is a full snapshot of one side's active creature.
// It is owned by a single branch once cloned in; never aliased.
type Combatant struct {
	// Species is the dex identifier of the creature.
	Species string
	// Level is the creature's level (1-100).
	Level int
	// Nature is the nature identifier (see stats package).
	Nature string
	// Ability is the creature's ability identifier.
	Ability string
	// Item is the held item identifier; empty for none.
	Item string
	// IVs holds the individual values per stat.
	IVs stats.Table
	// EVs holds the effort values per stat.
	EVs stats.Table
	// Boosts holds the stat stage boosts; zero stages are absent.
	Boosts stats.Table
	// Status is the status condition identifier; empty for none.
	Status string
	// TeraActive reports whether the transformation is currently active.
	TeraActive bool
	// TeraType is the transformation type; meaningful once TeraActive.
	TeraType string
	// CurHP and MaxHP are the current and maximum hit points.
	CurHP, MaxHP int
	// Overrides optionally replaces computed final stats per stat.
	Overrides stats.Table
}

// Clone returns a deep copy of the combatant.
//
// Postcondition: mutations of the returned combatant never affect the receiver.
func (c *Combatant) Clone() *Combatant {
	out := *c
	out.IVs = c.IVs.Clone()
	out.EVs = c.EVs.Clone()
	out.Boosts = c.Boosts.Clone()
	out.Overrides = c.Overrides.Clone()
	return &out
}

// SideConditions holds the per-side field toggles.
type SideConditions struct {
	// Reflect halves incoming physical damage.
	Reflect bool
	// LightScreen halves incoming special damage.
	LightScreen bool
	// StealthRock marks the entry hazard as set on this side.
	StealthRock bool
	// Spikes is the number of spike layers (0-3).
	Spikes int
}

// Field is the global battle state outside the two combatants.
// Immutable except through explicit field-toggle events; cloned per branch.
type Field struct {
	// Weather is the active weather identifier; empty for none.
	Weather string
	// Terrain is the active terrain identifier; empty for none.
	Terrain string
	// TrickRoom reports whether the turn-order inversion is active.
	TrickRoom bool
	// Conditions holds the per-side toggles.
	Conditions map[Side]SideConditions
}

// Clone returns a deep copy of the field.
func (f Field) Clone() Field {
	out := f
	out.Conditions = make(map[Side]SideConditions, len(f.Conditions))
	for k, v := range f.Conditions {
		out.Conditions[k] = v
	}
	return out
}

// SideConditionsFor returns the conditions for side, zero value if unset.
func (f Field) SideConditionsFor(side Side) SideConditions {
	if f.Conditions == nil {
		return SideConditions{}
	}
	return f.Conditions[side]
}

// MoveUse carries the per-use parameters of a single attack: the move
// identifier plus the caller-controlled knobs that affect the damage
// calculator's output.
type MoveUse struct {
	// Name is the dex move identifier.
	Name string
	// Crit forces a critical hit.
	Crit bool
	// Hits overrides the hit count for multi-hit moves; 0 keeps the dex value.
	Hits int
	// PowerOverride replaces the dex base power when > 0.
	PowerOverride int
	// TypeOverride replaces the dex move type when non-empty.
	TypeOverride string
	// CategoryOverride replaces the dex category when non-empty.
	CategoryOverride string
	// DrainPctOverride replaces the dex drain percentage when non-nil.
	DrainPctOverride *int
	// RecoilPctOverride replaces the dex recoil percentage when non-nil.
	RecoilPctOverride *int
	// StellarBoost grants the once-per-battle boosted-transformation bonus
	// for this use. Decided by the simulator from its first-use markers.
	StellarBoost bool
}
