package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassieroh/bulkcalc/internal/game/timeline"
)

func TestDecodeCombatant_ComputesHP(t *testing.T) {
	src := testDex(t)
	c, err := decodeCombatant(CombatantSpec{
		Species: "drakon", Level: 100, Nature: "adamant",
		IVs: map[string]int{"hp": 31}, EVs: map[string]int{"hp": 252},
	}, src)
	require.NoError(t, err)
	assert.Equal(t, 404, c.MaxHP)
	assert.Equal(t, 404, c.CurHP)

	half, err := decodeCombatant(CombatantSpec{
		Species: "drakon", Level: 100, Nature: "adamant",
		IVs: map[string]int{"hp": 31}, EVs: map[string]int{"hp": 252},
		HPPercent: 50,
	}, src)
	require.NoError(t, err)
	assert.Equal(t, 202, half.CurHP)
}

func TestDecodeCombatant_Errors(t *testing.T) {
	src := testDex(t)

	_, err := decodeCombatant(CombatantSpec{Species: "missingno", Level: 50, Nature: "serious"}, src)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	_, err = decodeCombatant(CombatantSpec{Species: "drakon", Level: 0, Nature: "serious"}, src)
	assert.Error(t, err)

	_, err = decodeCombatant(CombatantSpec{Species: "drakon", Level: 50, Nature: "zesty"}, src)
	assert.Error(t, err)

	_, err = decodeCombatant(CombatantSpec{
		Species: "drakon", Level: 50, Nature: "serious",
		EVs: map[string]int{"strength": 10},
	}, src)
	assert.Error(t, err, "unknown stat names must be rejected")
}

func TestDecodeEvent_Variants(t *testing.T) {
	src := testDex(t)

	te, err := decodeEvent(EventSpec{
		Phase: "start", Type: "stat_change", Side: "p1",
		Deltas: map[string]int{"atk": 2},
	}, src)
	require.NoError(t, err)
	sc, ok := te.Event.(timeline.StatChangeEvent)
	require.True(t, ok)
	assert.Equal(t, 2, sc.Deltas["atk"])

	te, err = decodeEvent(EventSpec{
		Phase: "action", ActionID: "hit", Type: "hp_adjust", Side: "p2",
		Basis: "last_damage", Numerator: 1, Denominator: 2,
	}, src)
	require.NoError(t, err)
	adj, ok := te.Event.(timeline.AdjustHPEvent)
	require.True(t, ok)
	assert.Equal(t, timeline.BasisLastDamage, adj.Basis)
	assert.Equal(t, "hit", te.ActionID)

	rain := "rain"
	te, err = decodeEvent(EventSpec{Phase: "end", Type: "field", Weather: &rain}, src)
	require.NoError(t, err)
	fe, ok := te.Event.(timeline.FieldEvent)
	require.True(t, ok)
	require.NotNil(t, fe.Weather)
	assert.Equal(t, "rain", *fe.Weather)
}

func TestDecodeEvent_Rejections(t *testing.T) {
	src := testDex(t)

	_, err := decodeEvent(EventSpec{Phase: "sometime", Type: "heal", Side: "p1"}, src)
	assert.Error(t, err)

	_, err = decodeEvent(EventSpec{Phase: "start", Type: "explode", Side: "p1"}, src)
	assert.Error(t, err)

	_, err = decodeEvent(EventSpec{Phase: "start", Type: "hp_adjust", Side: "p1", Basis: "vibes"}, src)
	assert.Error(t, err)
}

func TestDecodeScenario_ValidatesStructure(t *testing.T) {
	src := testDex(t)
	_, err := decodeScenario(ScenarioSpec{Turns: []TurnSpec{{
		Actions: []ActionSpec{
			{ID: "dup", Side: "p1", Kind: "move", Move: &MoveSpec{Name: "outrage"}},
			{ID: "dup", Side: "p2", Kind: "move", Move: &MoveSpec{Name: "outrage"}},
		},
	}}}, src)
	assert.Error(t, err, "duplicate action ids must be rejected")

	_, err = decodeScenario(ScenarioSpec{Turns: []TurnSpec{{
		Actions: []ActionSpec{{Side: "p1", Kind: "dance"}},
	}}}, src)
	assert.Error(t, err)
}
