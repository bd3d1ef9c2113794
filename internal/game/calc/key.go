package calc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cassieroh/bulkcalc/internal/game/battle"
	"github.com/cassieroh/bulkcalc/internal/game/stats"
)

// Key returns the canonical cache key for a request. It serializes only the
// fields that affect the calculator's output: combatant identity and stat
// inputs for both sides, the per-use move parameters, and the field's
// weather/terrain/trick-room state. The attacking side is included because
// side-scoped screens are not symmetric. Current HP is deliberately absent;
// damage does not depend on it. Move priority is likewise absent: it orders
// actions within a turn, it never changes the roll values, and per-use
// requests carry no priority override.
func Key(req Request) string {
	var b strings.Builder
	b.Grow(256)

	b.WriteString(string(req.AttackerSide))
	b.WriteByte('|')
	writeCombatant(&b, req.Attacker)
	b.WriteByte('|')
	writeCombatant(&b, req.Defender)
	b.WriteByte('|')
	writeMove(&b, req.Move)
	b.WriteByte('|')
	fmt.Fprintf(&b, "w=%s;t=%s;tr=%t", req.Field.Weather, req.Field.Terrain, req.Field.TrickRoom)
	for _, side := range battle.Sides {
		c := req.Field.SideConditionsFor(side)
		fmt.Fprintf(&b, ";%s=%t,%t", side, c.Reflect, c.LightScreen)
	}
	return b.String()
}

func writeCombatant(b *strings.Builder, c *battle.Combatant) {
	fmt.Fprintf(b, "%s;l=%d;n=%s;a=%s;i=%s;s=%s;tm=%t;tt=%s",
		c.Species, c.Level, c.Nature, c.Ability, c.Item, c.Status,
		c.TeraActive, c.TeraType,
	)
	writeTable(b, "iv", c.IVs)
	writeTable(b, "ev", c.EVs)
	writeTable(b, "b", c.Boosts)
	writeTable(b, "o", c.Overrides)
}

func writeMove(b *strings.Builder, m battle.MoveUse) {
	fmt.Fprintf(b, "m=%s;c=%t;h=%d;p=%d;ty=%s;ca=%s;sb=%t",
		m.Name, m.Crit, m.Hits, m.PowerOverride, m.TypeOverride,
		m.CategoryOverride, m.StellarBoost,
	)
	if m.DrainPctOverride != nil {
		fmt.Fprintf(b, ";dr=%d", *m.DrainPctOverride)
	}
	if m.RecoilPctOverride != nil {
		fmt.Fprintf(b, ";rc=%d", *m.RecoilPctOverride)
	}
}

// writeTable serializes non-zero table entries in canonical stat order so
// that "0" and "absent" produce identical keys.
func writeTable(b *strings.Builder, label string, t stats.Table) {
	b.WriteByte(';')
	b.WriteString(label)
	b.WriteByte('=')
	keys := make([]string, 0, len(t))
	for k, v := range t {
		if v != 0 {
			keys = append(keys, string(k))
		}
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%s:%d", k, t[stats.Stat(k)])
	}
}
