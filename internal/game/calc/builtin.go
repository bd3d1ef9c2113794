package calc

import (
	"fmt"
	"math"
	"sort"

	"github.com/cassieroh/bulkcalc/internal/game/battle"
	"github.com/cassieroh/bulkcalc/internal/game/dex"
	"github.com/cassieroh/bulkcalc/internal/game/stats"
)

// rollCount is the number of uniform damage rolls the game produces per
// attack: 85% through 100% of the computed damage.
const rollCount = 16

// Builtin is the reference Calculator implementing the standard damage
// rules: final-stat formula, stage boosts, STAB and transformation bonuses,
// type effectiveness, weather, screens, burn, and critical hits.
type Builtin struct {
	dex dex.Source
}

// NewBuiltin creates a Builtin calculator resolving identifiers against src.
//
// Precondition: src must be non-nil.
func NewBuiltin(src dex.Source) *Builtin {
	return &Builtin{dex: src}
}

// Compute returns the possible damage values for the requested attack.
//
// Precondition: req.Attacker and req.Defender must be non-nil with valid
// levels and natures; the species and move must resolve in the dex.
// Postcondition: Returns a Result with rollCount ascending rolls (all zero
// for status moves or immune targets), or a non-nil error.
func (b *Builtin) Compute(req Request) (*Result, error) {
	atkSpecies, err := b.dex.Species(req.Attacker.Species)
	if err != nil {
		return nil, fmt.Errorf("calc: attacker: %w", err)
	}
	defSpecies, err := b.dex.Species(req.Defender.Species)
	if err != nil {
		return nil, fmt.Errorf("calc: defender: %w", err)
	}
	move, err := b.dex.Move(req.Move.Name)
	if err != nil {
		return nil, fmt.Errorf("calc: move: %w", err)
	}

	category := move.Category
	if req.Move.CategoryOverride != "" {
		category = dex.Category(req.Move.CategoryOverride)
	}
	moveType := move.Type
	if req.Move.TypeOverride != "" {
		moveType = req.Move.TypeOverride
	}
	power := move.Power
	if req.Move.PowerOverride > 0 {
		power = req.Move.PowerOverride
	}
	drain := move.DrainPct
	if req.Move.DrainPctOverride != nil {
		drain = *req.Move.DrainPctOverride
	}
	recoil := move.RecoilPct
	if req.Move.RecoilPctOverride != nil {
		recoil = *req.Move.RecoilPctOverride
	}

	out := &Result{
		DrainPct:  drain,
		RecoilPct: recoil,
		MoveType:  moveType,
		Category:  category,
	}

	if category == dex.Status || power <= 0 {
		out.Rolls = make([]int, rollCount)
		return out, nil
	}

	atkStatName, defStatName := stats.Attack, stats.Defense
	if category == dex.Special {
		atkStatName, defStatName = stats.SpecialAttack, stats.SpecialDefense
	}

	atkStat, err := finalStat(req.Attacker, atkSpecies, atkStatName)
	if err != nil {
		return nil, fmt.Errorf("calc: attacker stat: %w", err)
	}
	defStat, err := finalStat(req.Defender, defSpecies, defStatName)
	if err != nil {
		return nil, fmt.Errorf("calc: defender stat: %w", err)
	}

	// Stage boosts. A critical hit ignores the attacker's negative stages
	// and the defender's positive stages.
	atkStage := req.Attacker.Boosts[atkStatName]
	if req.Move.Crit && atkStage < 0 {
		atkStage = 0
	}
	defStage := req.Defender.Boosts[defStatName]
	if req.Move.Crit && defStage > 0 {
		defStage = 0
	}
	atk := int(float64(atkStat) * stats.BoostMultiplier(atkStage))
	def := int(float64(defStat) * stats.BoostMultiplier(defStage))

	// Burn halves physical damage; guts instead boosts attack under any status.
	if req.Attacker.Ability == "guts" && req.Attacker.Status != "" {
		atk = atk * 3 / 2
	} else if req.Attacker.Status == "burn" && category == dex.Physical {
		atk /= 2
	}

	if def < 1 {
		def = 1
	}

	base := (2*req.Attacker.Level/5+2)*power*atk/def/50 + 2

	eff := Effectiveness(moveType, defenderTypes(req.Defender, defSpecies))
	if eff == 0 {
		out.Rolls = make([]int, rollCount)
		return out, nil
	}

	mod := eff
	mod *= stabMultiplier(req.Attacker, atkSpecies, moveType)
	if req.Move.StellarBoost {
		mod *= 1.2
	}
	mod *= weatherMultiplier(req.Field.Weather, moveType)
	if req.Move.Crit {
		mod *= 1.5
	} else {
		// Screens do not apply to critical hits.
		cond := req.Field.SideConditionsFor(battle.Opponent(req.AttackerSide))
		if (category == dex.Physical && cond.Reflect) ||
			(category == dex.Special && cond.LightScreen) {
			mod *= 0.5
		}
	}

	hits := move.Hits
	if req.Move.Hits > 0 {
		hits = req.Move.Hits
	}
	if hits < 1 {
		hits = 1
	}

	rolls := make([]int, 0, rollCount)
	for n := 85; n <= 100; n++ {
		dmg := int(math.Floor(float64(base*n) / 100.0 * mod))
		if dmg < 1 {
			dmg = 1
		}
		rolls = append(rolls, dmg*hits)
	}
	sort.Ints(rolls)
	out.Rolls = rolls
	return out, nil
}

// finalStat resolves one final stat: the snapshot's override if present,
// otherwise the standard formula over base/IV/EV/level/nature.
func finalStat(c *battle.Combatant, sp *dex.Species, stat stats.Stat) (int, error) {
	if v, ok := c.Overrides[stat]; ok && v > 0 {
		return v, nil
	}
	return stats.Calc(stat, sp.BaseStats[stat], c.IVs[stat], c.EVs[stat], c.Level, c.Nature)
}

// defenderTypes returns the defensive typing, honoring an active
// transformation (the transformed type replaces the species typing, except
// the stellar mode which keeps it).
func defenderTypes(c *battle.Combatant, sp *dex.Species) []string {
	if c.TeraActive && c.TeraType != "" && c.TeraType != "stellar" {
		return []string{c.TeraType}
	}
	return sp.Types
}

// stabMultiplier returns the same-type attack bonus: 1.5 for a move matching
// the attacker's typing, escalated to 2.0 when the active transformation
// type matches a base type, and 2.0 base for the adaptability ability.
func stabMultiplier(c *battle.Combatant, sp *dex.Species, moveType string) float64 {
	baseMatch := false
	for _, t := range sp.Types {
		if t == moveType {
			baseMatch = true
			break
		}
	}

	stab := 1.5
	if c.Ability == "adaptability" {
		stab = 2.0
	}

	if c.TeraActive && c.TeraType == moveType && c.TeraType != "stellar" {
		if baseMatch {
			return 2.0
		}
		return stab
	}
	if baseMatch {
		return stab
	}
	return 1.0
}

// weatherMultiplier returns the weather modifier for the move type.
func weatherMultiplier(weather, moveType string) float64 {
	switch weather {
	case "sun":
		if moveType == "fire" {
			return 1.5
		}
		if moveType == "water" {
			return 0.5
		}
	case "rain":
		if moveType == "water" {
			return 1.5
		}
		if moveType == "fire" {
			return 0.5
		}
	}
	return 1.0
}
