package dex

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cassieroh/bulkcalc/internal/game/stats"
)

// yamlDexFile is the top-level YAML structure for dex content files.
// A file may carry species, moves, or both.
type yamlDexFile struct {
	Species []yamlSpecies `yaml:"species"`
	Moves   []yamlMove    `yaml:"moves"`
}

// yamlSpecies is the YAML representation of a species.
type yamlSpecies struct {
	Name      string    `yaml:"name"`
	Types     []string  `yaml:"types"`
	BaseStats yamlStats `yaml:"base_stats"`
}

// yamlStats is the YAML representation of the six base statistics.
type yamlStats struct {
	HP  int `yaml:"hp"`
	Atk int `yaml:"atk"`
	Def int `yaml:"def"`
	SpA int `yaml:"spa"`
	SpD int `yaml:"spd"`
	Spe int `yaml:"spe"`
}

// yamlMove is the YAML representation of a move.
type yamlMove struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Category  string `yaml:"category"`
	Power     int    `yaml:"power"`
	Priority  int    `yaml:"priority"`
	DrainPct  int    `yaml:"drain_pct"`
	RecoilPct int    `yaml:"recoil_pct"`
	Hits      int    `yaml:"hits"`
}

// LoadFile parses a single dex YAML file into the registry.
//
// Precondition: path must point to a valid YAML dex file; reg must be non-nil.
// Postcondition: All entries in the file are registered, or an error names
// the first offending entry.
func LoadFile(path string, reg *Registry) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading dex file %s: %w", path, err)
	}
	return LoadBytes(data, reg)
}

// LoadBytes parses dex YAML bytes into the registry.
//
// Precondition: data must be valid YAML conforming to the dex schema.
func LoadBytes(data []byte, reg *Registry) error {
	var file yamlDexFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing dex YAML: %w", err)
	}

	for _, ys := range file.Species {
		s := convertYAMLSpecies(ys)
		if err := reg.RegisterSpecies(s); err != nil {
			return fmt.Errorf("registering species: %w", err)
		}
	}
	for _, ym := range file.Moves {
		m := convertYAMLMove(ym)
		if err := reg.RegisterMove(m); err != nil {
			return fmt.Errorf("registering move: %w", err)
		}
	}
	return nil
}

// LoadDir loads every *.yaml file in dir into a fresh Registry, in
// lexicographic order.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a populated Registry or the first error encountered.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading dex dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	reg := NewRegistry()
	for _, path := range files {
		if err := LoadFile(path, reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func convertYAMLSpecies(ys yamlSpecies) *Species {
	types := make([]string, 0, len(ys.Types))
	for _, t := range ys.Types {
		types = append(types, strings.ToLower(t))
	}
	return &Species{
		Name:  Normalize(ys.Name),
		Types: types,
		BaseStats: stats.Table{
			stats.HP:             ys.BaseStats.HP,
			stats.Attack:         ys.BaseStats.Atk,
			stats.Defense:        ys.BaseStats.Def,
			stats.SpecialAttack:  ys.BaseStats.SpA,
			stats.SpecialDefense: ys.BaseStats.SpD,
			stats.Speed:          ys.BaseStats.Spe,
		},
	}
}

func convertYAMLMove(ym yamlMove) *Move {
	return &Move{
		Name:      Normalize(ym.Name),
		Type:      strings.ToLower(ym.Type),
		Category:  Category(strings.ToLower(ym.Category)),
		Power:     ym.Power,
		Priority:  ym.Priority,
		DrainPct:  ym.DrainPct,
		RecoilPct: ym.RecoilPct,
		Hits:      ym.Hits,
	}
}
