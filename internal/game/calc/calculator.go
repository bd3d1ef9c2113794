// Package calc provides the damage calculator consumed by the branch
// simulator: a contract, a builtin reference implementation of the game's
// damage rules, and an LRU result cache.
package calc

import (
	"github.com/cassieroh/bulkcalc/internal/game/battle"
	"github.com/cassieroh/bulkcalc/internal/game/dex"
)

// Request describes one attack for the calculator: attacker, defender, move
// parameters, and field conditions. The attacking side is part of the request
// because side-scoped field conditions (screens) are not symmetric.
type Request struct {
	Attacker     *battle.Combatant
	Defender     *battle.Combatant
	AttackerSide battle.Side
	Move         battle.MoveUse
	Field        battle.Field
}

// Result is the set of possible outcomes of one attack: the damage roll
// values (equally likely) and the secondary-effect percentages.
type Result struct {
	// Rolls holds every possible raw damage value, in ascending order.
	// Each roll is equally likely.
	Rolls []int
	// DrainPct is the percentage of inflicted damage returned as healing.
	DrainPct int
	// RecoilPct is the percentage of inflicted damage taken as recoil.
	RecoilPct int
	// MoveType is the effective elemental type after overrides.
	MoveType string
	// Category is the effective damage category after overrides.
	Category dex.Category
}

// Calculator computes the possible damage values for one attack.
// Implementations must be pure with respect to the Request: identical
// requests yield identical results. This is what makes the cache sound.
type Calculator interface {
	Compute(req Request) (*Result, error)
}
