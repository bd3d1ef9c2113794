// Package dex provides the species and move catalog: static game data the
// simulator resolves combatant and move identifiers against.
package dex

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cassieroh/bulkcalc/internal/game/stats"
)

// ErrSpeciesNotFound is returned when a species lookup yields no result.
var ErrSpeciesNotFound = errors.New("species not found")

// ErrMoveNotFound is returned when a move lookup yields no result.
var ErrMoveNotFound = errors.New("move not found")

// Species holds the static data for one creature species.
type Species struct {
	// Name is the canonical species identifier (lowercase).
	Name string
	// Types holds one or two elemental types.
	Types []string
	// BaseStats holds the six base statistics.
	BaseStats stats.Table
}

// Validate checks the species invariants.
//
// Postcondition: Returns nil iff the species has a name, 1-2 types, and all
// six base stats positive.
func (s *Species) Validate() error {
	var errs []string
	if s.Name == "" {
		errs = append(errs, "name must not be empty")
	}
	if len(s.Types) < 1 || len(s.Types) > 2 {
		errs = append(errs, fmt.Sprintf("must have 1 or 2 types, got %d", len(s.Types)))
	}
	for _, st := range stats.All {
		if s.BaseStats[st] <= 0 {
			errs = append(errs, fmt.Sprintf("base stat %s must be positive, got %d", st, s.BaseStats[st]))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("species %q: %s", s.Name, strings.Join(errs, "; "))
	}
	return nil
}

// Category is a move's damage category.
type Category string

const (
	Physical Category = "physical"
	Special  Category = "special"
	Status   Category = "status"
)

// Move holds the static metadata for one move.
type Move struct {
	// Name is the canonical move identifier (lowercase).
	Name string
	// Type is the move's elemental type.
	Type string
	// Category is physical, special, or status.
	Category Category
	// Power is the base power; 0 for status moves.
	Power int
	// Priority is the move's priority bracket.
	Priority int
	// DrainPct is the percentage of inflicted damage returned as healing.
	DrainPct int
	// RecoilPct is the percentage of inflicted damage taken as recoil.
	RecoilPct int
	// Hits is the number of hits per use; 0 or 1 means single-hit.
	Hits int
}

// Validate checks the move invariants.
//
// Postcondition: Returns nil iff the move has a name, type, known category,
// and non-negative power/percentages.
func (m *Move) Validate() error {
	var errs []string
	if m.Name == "" {
		errs = append(errs, "name must not be empty")
	}
	if m.Type == "" {
		errs = append(errs, "type must not be empty")
	}
	switch m.Category {
	case Physical, Special, Status:
	default:
		errs = append(errs, fmt.Sprintf("category must be one of [physical, special, status], got %q", m.Category))
	}
	if m.Power < 0 {
		errs = append(errs, fmt.Sprintf("power must be >= 0, got %d", m.Power))
	}
	if m.DrainPct < 0 || m.DrainPct > 100 {
		errs = append(errs, fmt.Sprintf("drain_pct must be 0-100, got %d", m.DrainPct))
	}
	if m.RecoilPct < 0 || m.RecoilPct > 100 {
		errs = append(errs, fmt.Sprintf("recoil_pct must be 0-100, got %d", m.RecoilPct))
	}
	if m.Hits < 0 {
		errs = append(errs, fmt.Sprintf("hits must be >= 0, got %d", m.Hits))
	}
	if len(errs) > 0 {
		return fmt.Errorf("move %q: %s", m.Name, strings.Join(errs, "; "))
	}
	return nil
}

// Source resolves species and move identifiers to their static data.
// Implementations: the YAML-backed Registry and the Postgres repositories.
type Source interface {
	Species(name string) (*Species, error)
	Move(name string) (*Move, error)
}

// Normalize lowercases and trims an identifier for lookup.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
