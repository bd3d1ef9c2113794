package dex

import (
	"fmt"
	"sync"
)

// Registry is an in-memory Source populated from YAML content files.
// All methods are safe for concurrent use after loading completes.
type Registry struct {
	mu      sync.RWMutex
	species map[string]*Species
	moves   map[string]*Move
}

// NewRegistry creates an empty Registry.
//
// Postcondition: Returns a non-nil Registry ready for Register calls.
func NewRegistry() *Registry {
	return &Registry{
		species: make(map[string]*Species),
		moves:   make(map[string]*Move),
	}
}

// RegisterSpecies validates and adds a species.
//
// Postcondition: Returns an error on validation failure or duplicate name.
func (r *Registry) RegisterSpecies(s *Species) error {
	if err := s.Validate(); err != nil {
		return err
	}
	key := Normalize(s.Name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.species[key]; exists {
		return fmt.Errorf("species %q already registered", s.Name)
	}
	r.species[key] = s
	return nil
}

// RegisterMove validates and adds a move.
//
// Postcondition: Returns an error on validation failure or duplicate name.
func (r *Registry) RegisterMove(m *Move) error {
	if err := m.Validate(); err != nil {
		return err
	}
	key := Normalize(m.Name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.moves[key]; exists {
		return fmt.Errorf("move %q already registered", m.Name)
	}
	r.moves[key] = m
	return nil
}

// Species resolves a species by name.
//
// Postcondition: Returns the Species or ErrSpeciesNotFound.
func (r *Registry) Species(name string) (*Species, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.species[Normalize(name)]
	if !ok {
		return nil, fmt.Errorf("resolving %q: %w", name, ErrSpeciesNotFound)
	}
	return s, nil
}

// Move resolves a move by name.
//
// Postcondition: Returns the Move or ErrMoveNotFound.
func (r *Registry) Move(name string) (*Move, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.moves[Normalize(name)]
	if !ok {
		return nil, fmt.Errorf("resolving %q: %w", name, ErrMoveNotFound)
	}
	return m, nil
}

// SpeciesCount returns the number of registered species.
func (r *Registry) SpeciesCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.species)
}

// MoveCount returns the number of registered moves.
func (r *Registry) MoveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.moves)
}

// AllSpecies returns every registered species in unspecified order.
func (r *Registry) AllSpecies() []*Species {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Species, 0, len(r.species))
	for _, s := range r.species {
		out = append(out, s)
	}
	return out
}

// AllMoves returns every registered move in unspecified order.
func (r *Registry) AllMoves() []*Move {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Move, 0, len(r.moves))
	for _, m := range r.moves {
		out = append(out, m)
	}
	return out
}
