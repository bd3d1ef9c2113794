// Package stats implements the final-stat arithmetic for combatants:
// base stat + individual value + effort value + level + nature.
package stats

import "fmt"

// Stat identifies one of the six battle statistics.
type Stat string

const (
	HP             Stat = "hp"
	Attack         Stat = "atk"
	Defense        Stat = "def"
	SpecialAttack  Stat = "spa"
	SpecialDefense Stat = "spd"
	Speed          Stat = "spe"
)

// All lists the six stats in canonical order.
var All = []Stat{HP, Attack, Defense, SpecialAttack, SpecialDefense, Speed}

// Parse resolves a stat identifier as used in configuration and wire
// payloads.
func Parse(name string) (Stat, error) {
	for _, s := range All {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("stats: unknown stat %q", name)
}

// Table maps stats to values; absent entries read as zero.
type Table map[Stat]int

// Clone returns an independent copy of the table.
//
// Postcondition: mutations of the returned table never affect the receiver.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// MaxEV is the per-stat effort value cap.
const MaxEV = 252

// MaxIV is the per-stat individual value cap.
const MaxIV = 31

// nature holds the boosted and hindered stat for a named nature.
// Neutral natures have empty plus/minus.
type nature struct {
	plus  Stat
	minus Stat
}

var natures = map[string]nature{
	"hardy":   {},
	"lonely":  {Attack, Defense},
	"brave":   {Attack, Speed},
	"adamant": {Attack, SpecialAttack},
	"naughty": {Attack, SpecialDefense},
	"bold":    {Defense, Attack},
	"docile":  {},
	"relaxed": {Defense, Speed},
	"impish":  {Defense, SpecialAttack},
	"lax":     {Defense, SpecialDefense},
	"timid":   {Speed, Attack},
	"hasty":   {Speed, Defense},
	"serious": {},
	"jolly":   {Speed, SpecialAttack},
	"naive":   {Speed, SpecialDefense},
	"modest":  {SpecialAttack, Attack},
	"mild":    {SpecialAttack, Defense},
	"quiet":   {SpecialAttack, Speed},
	"bashful": {},
	"rash":    {SpecialAttack, SpecialDefense},
	"calm":    {SpecialDefense, Attack},
	"gentle":  {SpecialDefense, Defense},
	"sassy":   {SpecialDefense, Speed},
	"careful": {SpecialDefense, SpecialAttack},
	"quirky":  {},
}

// ValidNature reports whether name is a recognised nature.
func ValidNature(name string) bool {
	_, ok := natures[name]
	return ok
}

// NatureModifier returns the nature multiplier for stat: 1.1, 0.9, or 1.0.
//
// Precondition: name must be a recognised nature (ValidNature).
func NatureModifier(name string, stat Stat) float64 {
	n := natures[name]
	switch stat {
	case n.plus:
		if n.plus != "" {
			return 1.1
		}
	case n.minus:
		if n.minus != "" {
			return 0.9
		}
	}
	return 1.0
}

// Calc computes the final value of one stat from its components.
// HP uses the hit-point formula; all other stats apply the nature modifier.
//
// Precondition: base > 0, 0 <= iv <= MaxIV, 0 <= ev <= MaxEV, 1 <= level <= 100,
// natureName must be recognised.
// Postcondition: Returns a positive stat value, or an error on invalid input.
func Calc(stat Stat, base, iv, ev, level int, natureName string) (int, error) {
	if base <= 0 {
		return 0, fmt.Errorf("stats: base for %s must be positive, got %d", stat, base)
	}
	if iv < 0 || iv > MaxIV {
		return 0, fmt.Errorf("stats: iv for %s must be 0-%d, got %d", stat, MaxIV, iv)
	}
	if ev < 0 || ev > MaxEV {
		return 0, fmt.Errorf("stats: ev for %s must be 0-%d, got %d", stat, MaxEV, ev)
	}
	if level < 1 || level > 100 {
		return 0, fmt.Errorf("stats: level must be 1-100, got %d", level)
	}
	if !ValidNature(natureName) {
		return 0, fmt.Errorf("stats: unknown nature %q", natureName)
	}

	core := (2*base + iv + ev/4) * level / 100
	if stat == HP {
		return core + level + 10, nil
	}
	return int(float64(core+5) * NatureModifier(natureName, stat)), nil
}

// BoostMultiplier returns the stage multiplier for a boost in [-6, 6].
// Stages follow the standard (2+n)/2 and 2/(2+n) progression.
//
// Precondition: stage is clamped to [-6, 6] by the caller.
func BoostMultiplier(stage int) float64 {
	if stage > 6 {
		stage = 6
	}
	if stage < -6 {
		stage = -6
	}
	if stage >= 0 {
		return float64(2+stage) / 2.0
	}
	return 2.0 / float64(2-stage)
}
