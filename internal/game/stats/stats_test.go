package stats

import (
	"testing"

	"pgregory.net/rapid"
)

// TestCalc_HPKnownValue verifies the HP formula against a hand-computed value:
// base 108, IV 31, EV 252, level 100 -> 404.
func TestCalc_HPKnownValue(t *testing.T) {
	got, err := Calc(HP, 108, 31, 252, 100, "adamant")
	if err != nil {
		t.Fatalf("Calc: %v", err)
	}
	if got != 404 {
		t.Errorf("HP = %d, want 404", got)
	}
}

// TestCalc_NatureBoost verifies the +10%/-10% nature multipliers:
// base 130, IV 31, EV 252, level 100 -> 426 neutral, 468 boosted, 383 hindered.
func TestCalc_NatureBoost(t *testing.T) {
	cases := []struct {
		nature string
		want   int
	}{
		{"serious", 426},
		{"adamant", 468},
		{"modest", 383},
	}
	for _, tc := range cases {
		got, err := Calc(Attack, 130, 31, 252, 100, tc.nature)
		if err != nil {
			t.Fatalf("Calc(%s): %v", tc.nature, err)
		}
		if got != tc.want {
			t.Errorf("Attack with %s = %d, want %d", tc.nature, got, tc.want)
		}
	}
}

func TestCalc_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name                string
		base, iv, ev, level int
		nature              string
	}{
		{"zero base", 0, 31, 0, 50, "serious"},
		{"iv too high", 100, 32, 0, 50, "serious"},
		{"ev too high", 100, 31, 253, 50, "serious"},
		{"level zero", 100, 31, 0, 0, "serious"},
		{"level too high", 100, 31, 0, 101, "serious"},
		{"unknown nature", 100, 31, 0, 50, "grumpy"},
	}
	for _, tc := range cases {
		if _, err := Calc(Attack, tc.base, tc.iv, tc.ev, tc.level, tc.nature); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestNatureModifier_NeutralIsOne(t *testing.T) {
	for _, s := range All {
		if m := NatureModifier("quirky", s); m != 1.0 {
			t.Errorf("quirky modifier for %s = %v, want 1.0", s, m)
		}
	}
}

// TestCalc_EVMonotonic verifies that adding effort values never lowers a stat.
func TestCalc_EVMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := rapid.IntRange(20, 200).Draw(rt, "base")
		level := rapid.IntRange(1, 100).Draw(rt, "level")
		evLo := rapid.IntRange(0, MaxEV-4).Draw(rt, "evLo")
		evHi := rapid.IntRange(evLo, MaxEV).Draw(rt, "evHi")

		lo, err := Calc(Defense, base, 31, evLo, level, "serious")
		if err != nil {
			rt.Fatalf("Calc low: %v", err)
		}
		hi, err := Calc(Defense, base, 31, evHi, level, "serious")
		if err != nil {
			rt.Fatalf("Calc high: %v", err)
		}
		if hi < lo {
			rt.Fatalf("stat decreased with more EVs: %d EVs -> %d, %d EVs -> %d", evLo, lo, evHi, hi)
		}
	})
}

func TestBoostMultiplier(t *testing.T) {
	cases := []struct {
		stage int
		want  float64
	}{
		{0, 1.0},
		{1, 1.5},
		{2, 2.0},
		{6, 4.0},
		{-1, 2.0 / 3.0},
		{-2, 0.5},
		{-6, 0.25},
		{9, 4.0},   // clamped
		{-9, 0.25}, // clamped
	}
	for _, tc := range cases {
		if got := BoostMultiplier(tc.stage); got != tc.want {
			t.Errorf("BoostMultiplier(%d) = %v, want %v", tc.stage, got, tc.want)
		}
	}
}

func TestTableClone_Independent(t *testing.T) {
	orig := Table{HP: 252, Defense: 4}
	cp := orig.Clone()
	cp[HP] = 0
	if orig[HP] != 252 {
		t.Error("Clone aliases the original table")
	}
}
