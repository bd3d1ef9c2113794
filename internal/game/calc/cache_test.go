package calc

import (
	"testing"

	"github.com/cassieroh/bulkcalc/internal/game/battle"
	"github.com/cassieroh/bulkcalc/internal/game/dex"
	"github.com/cassieroh/bulkcalc/internal/game/stats"
)

// countingCalc is a Calculator stub that counts Compute invocations.
type countingCalc struct {
	calls int
}

func (c *countingCalc) Compute(req Request) (*Result, error) {
	c.calls++
	return &Result{Rolls: []int{c.calls}, Category: dex.Physical}, nil
}

func reqFor(species string) Request {
	return Request{
		Attacker:     &battle.Combatant{Species: species, Level: 50, Nature: "serious"},
		Defender:     &battle.Combatant{Species: "target", Level: 50, Nature: "serious"},
		AttackerSide: battle.SideP1,
		Move:         battle.MoveUse{Name: "tackle"},
	}
}

func TestCache_HitAvoidsRecompute(t *testing.T) {
	inner := &countingCalc{}
	cache := NewCache(inner, 4)

	first, err := cache.Compute(reqFor("a"))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	second, err := cache.Compute(reqFor("a"))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if first != second {
		t.Error("cache hit returned a different result instance")
	}
	hits, misses := cache.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = (%d, %d), want (1, 1)", hits, misses)
	}
}

// TestCache_EvictsLeastRecentlyUsed verifies strict single-entry LRU
// eviction on overflow, with get refreshing recency.
func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := &countingCalc{}
	cache := NewCache(inner, 2)

	_, _ = cache.Compute(reqFor("a")) // miss: {a}
	_, _ = cache.Compute(reqFor("b")) // miss: {a b}
	_, _ = cache.Compute(reqFor("a")) // hit, refreshes a: {b a}
	_, _ = cache.Compute(reqFor("c")) // miss, evicts b: {a c}

	if inner.calls != 3 {
		t.Fatalf("inner calls = %d, want 3", inner.calls)
	}

	_, _ = cache.Compute(reqFor("a")) // still cached
	if inner.calls != 3 {
		t.Errorf("a was evicted; inner calls = %d, want 3", inner.calls)
	}
	_, _ = cache.Compute(reqFor("b")) // evicted, recomputes
	if inner.calls != 4 {
		t.Errorf("b should have been evicted; inner calls = %d, want 4", inner.calls)
	}
	if cache.Len() != 2 {
		t.Errorf("Len = %d, want 2", cache.Len())
	}
}

func TestCache_DefaultCapacity(t *testing.T) {
	cache := NewCache(&countingCalc{}, 0)
	if cache.capacity != DefaultCacheCapacity {
		t.Errorf("capacity = %d, want %d", cache.capacity, DefaultCacheCapacity)
	}
}

// TestKey_ZeroStageEqualsAbsent verifies the canonical key treats a boost
// stage explicitly set to 0 the same as no entry at all.
func TestKey_ZeroStageEqualsAbsent(t *testing.T) {
	a := reqFor("a")
	b := reqFor("a")
	b.Attacker.Boosts = stats.Table{stats.Attack: 0}

	if Key(a) != Key(b) {
		t.Error("zero stage and absent stage should produce identical keys")
	}
}

func TestKey_IgnoresCurrentHP(t *testing.T) {
	a := reqFor("a")
	b := reqFor("a")
	b.Attacker.CurHP = 1
	b.Defender.CurHP = 99

	if Key(a) != Key(b) {
		t.Error("current HP must not affect the cache key")
	}
}

func TestKey_SideIsSignificant(t *testing.T) {
	a := reqFor("a")
	b := reqFor("a")
	b.AttackerSide = battle.SideP2

	if Key(a) == Key(b) {
		t.Error("attacker side must be part of the cache key")
	}
}

func TestKey_MoveParamsSignificant(t *testing.T) {
	a := reqFor("a")
	b := reqFor("a")
	b.Move.Crit = true
	if Key(a) == Key(b) {
		t.Error("crit flag must be part of the cache key")
	}

	c := reqFor("a")
	drain := 50
	c.Move.DrainPctOverride = &drain
	if Key(a) == Key(c) {
		t.Error("drain override must be part of the cache key")
	}
}
