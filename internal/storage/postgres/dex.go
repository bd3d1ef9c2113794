package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cassieroh/bulkcalc/internal/game/dex"
	"github.com/cassieroh/bulkcalc/internal/game/stats"
)

// DexRepository persists and resolves the species/move catalog.
type DexRepository struct {
	db *pgxpool.Pool
}

// NewDexRepository creates a DexRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewDexRepository(db *pgxpool.Pool) *DexRepository {
	return &DexRepository{db: db}
}

// UpsertSpecies validates and writes a species, replacing any existing row
// with the same canonical name.
//
// Postcondition: The species is persisted, or a validation/database error is
// returned.
func (r *DexRepository) UpsertSpecies(ctx context.Context, s *dex.Species) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO species (name, types, hp, atk, def, spa, spd, spe)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (name) DO UPDATE SET
		   types = EXCLUDED.types,
		   hp = EXCLUDED.hp, atk = EXCLUDED.atk, def = EXCLUDED.def,
		   spa = EXCLUDED.spa, spd = EXCLUDED.spd, spe = EXCLUDED.spe`,
		dex.Normalize(s.Name), s.Types,
		s.BaseStats[stats.HP], s.BaseStats[stats.Attack], s.BaseStats[stats.Defense],
		s.BaseStats[stats.SpecialAttack], s.BaseStats[stats.SpecialDefense], s.BaseStats[stats.Speed],
	)
	if err != nil {
		return fmt.Errorf("upserting species %q: %w", s.Name, err)
	}
	return nil
}

// UpsertMove validates and writes a move, replacing any existing row with
// the same canonical name.
func (r *DexRepository) UpsertMove(ctx context.Context, m *dex.Move) error {
	if err := m.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO moves (name, type, category, power, priority, drain_pct, recoil_pct, hits)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (name) DO UPDATE SET
		   type = EXCLUDED.type, category = EXCLUDED.category,
		   power = EXCLUDED.power, priority = EXCLUDED.priority,
		   drain_pct = EXCLUDED.drain_pct, recoil_pct = EXCLUDED.recoil_pct,
		   hits = EXCLUDED.hits`,
		dex.Normalize(m.Name), m.Type, string(m.Category),
		m.Power, m.Priority, m.DrainPct, m.RecoilPct, m.Hits,
	)
	if err != nil {
		return fmt.Errorf("upserting move %q: %w", m.Name, err)
	}
	return nil
}

// SpeciesByName resolves one species.
//
// Postcondition: Returns the Species or dex.ErrSpeciesNotFound.
func (r *DexRepository) SpeciesByName(ctx context.Context, name string) (*dex.Species, error) {
	row := r.db.QueryRow(ctx,
		`SELECT name, types, hp, atk, def, spa, spd, spe
		 FROM species WHERE name = $1`,
		dex.Normalize(name),
	)
	s, err := scanSpecies(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("resolving %q: %w", name, dex.ErrSpeciesNotFound)
		}
		return nil, fmt.Errorf("querying species %q: %w", name, err)
	}
	return s, nil
}

// MoveByName resolves one move.
//
// Postcondition: Returns the Move or dex.ErrMoveNotFound.
func (r *DexRepository) MoveByName(ctx context.Context, name string) (*dex.Move, error) {
	row := r.db.QueryRow(ctx,
		`SELECT name, type, category, power, priority, drain_pct, recoil_pct, hits
		 FROM moves WHERE name = $1`,
		dex.Normalize(name),
	)
	m, err := scanMove(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("resolving %q: %w", name, dex.ErrMoveNotFound)
		}
		return nil, fmt.Errorf("querying move %q: %w", name, err)
	}
	return m, nil
}

// LoadRegistry reads the full catalog into an in-memory Registry. The
// service loads once at startup; per-lookup round trips would dominate a
// grid search otherwise.
//
// Postcondition: Returns a Registry holding every persisted species and move.
func (r *DexRepository) LoadRegistry(ctx context.Context) (*dex.Registry, error) {
	reg := dex.NewRegistry()

	rows, err := r.db.Query(ctx,
		`SELECT name, types, hp, atk, def, spa, spd, spe FROM species ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying species: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanSpecies(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning species: %w", err)
		}
		if err := reg.RegisterSpecies(s); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating species: %w", err)
	}

	moveRows, err := r.db.Query(ctx,
		`SELECT name, type, category, power, priority, drain_pct, recoil_pct, hits FROM moves ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying moves: %w", err)
	}
	defer moveRows.Close()
	for moveRows.Next() {
		m, err := scanMove(moveRows)
		if err != nil {
			return nil, fmt.Errorf("scanning move: %w", err)
		}
		if err := reg.RegisterMove(m); err != nil {
			return nil, err
		}
	}
	if err := moveRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating moves: %w", err)
	}

	return reg, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpecies(row rowScanner) (*dex.Species, error) {
	var (
		s                            dex.Species
		hp, atk, def, spa, spd, spe int
	)
	if err := row.Scan(&s.Name, &s.Types, &hp, &atk, &def, &spa, &spd, &spe); err != nil {
		return nil, err
	}
	s.BaseStats = stats.Table{
		stats.HP: hp, stats.Attack: atk, stats.Defense: def,
		stats.SpecialAttack: spa, stats.SpecialDefense: spd, stats.Speed: spe,
	}
	return &s, nil
}

func scanMove(row rowScanner) (*dex.Move, error) {
	var (
		m        dex.Move
		category string
	)
	if err := row.Scan(&m.Name, &m.Type, &category, &m.Power, &m.Priority, &m.DrainPct, &m.RecoilPct, &m.Hits); err != nil {
		return nil, err
	}
	m.Category = dex.Category(category)
	return &m, nil
}
