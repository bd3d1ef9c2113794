package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cassieroh/bulkcalc/internal/game/battle"
	"github.com/cassieroh/bulkcalc/internal/game/calc"
	"github.com/cassieroh/bulkcalc/internal/game/dex"
)

type fixedCalc struct{ rolls []int }

func (f *fixedCalc) Compute(calc.Request) (*calc.Result, error) {
	return &calc.Result{
		Rolls:    append([]int(nil), f.rolls...),
		MoveType: "dragon",
		Category: dex.Physical,
		DrainPct: 50,
	}, nil
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "override.lua"), []byte(body), 0o644))
	return dir
}

func engineFor(t *testing.T, body string, limit int) *Engine {
	t.Helper()
	e, err := NewEngine(writeScript(t, body), limit, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func sampleRequest() calc.Request {
	return calc.Request{
		Attacker:     &battle.Combatant{Species: "drakon", Level: 100, Nature: "adamant"},
		Defender:     &battle.Combatant{Species: "ironbird", Level: 100, Nature: "serious"},
		AttackerSide: battle.SideP1,
		Move:         battle.MoveUse{Name: "outrage"},
	}
}

func TestOverride_PassthroughWithoutHook(t *testing.T) {
	e := engineFor(t, `-- no hooks defined`, 0)
	assert.False(t, e.HasHook())

	res, err := NewOverride(&fixedCalc{rolls: []int{10, 20}}, e).Compute(sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20}, res.Rolls)
	assert.Equal(t, 50, res.DrainPct)
}

func TestOverride_AdjustsRolls(t *testing.T) {
	e := engineFor(t, `
function adjust_rolls(attack)
  local out = {}
  for i, r in ipairs(attack.rolls) do
    out[i] = r * 2
  end
  return out
end
`, 0)
	require.True(t, e.HasHook())

	res, err := NewOverride(&fixedCalc{rolls: []int{10, 20}}, e).Compute(sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, []int{20, 40}, res.Rolls)
	assert.Equal(t, 50, res.DrainPct, "secondary effects pass through untouched")
}

func TestOverride_NilReturnKeepsBuiltinRolls(t *testing.T) {
	e := engineFor(t, `
function adjust_rolls(attack)
  if attack.move == "outrage" then
    return nil
  end
  return {1}
end
`, 0)
	res, err := NewOverride(&fixedCalc{rolls: []int{7}}, e).Compute(sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, []int{7}, res.Rolls)
}

func TestOverride_SeesAttackContext(t *testing.T) {
	e := engineFor(t, `
function adjust_rolls(attack)
  if attack.attacker.species == "drakon" and attack.move_type == "dragon" then
    return {attack.attacker.level}
  end
  return {0}
end
`, 0)
	res, err := NewOverride(&fixedCalc{rolls: []int{1}}, e).Compute(sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, []int{100}, res.Rolls)
}

func TestOverride_RejectsBadReturns(t *testing.T) {
	e := engineFor(t, `function adjust_rolls(attack) return "oops" end`, 0)
	_, err := NewOverride(&fixedCalc{rolls: []int{1}}, e).Compute(sampleRequest())
	assert.Error(t, err)

	e2 := engineFor(t, `function adjust_rolls(attack) return {} end`, 0)
	_, err = NewOverride(&fixedCalc{rolls: []int{1}}, e2).Compute(sampleRequest())
	assert.Error(t, err)

	e3 := engineFor(t, `function adjust_rolls(attack) return {-5} end`, 0)
	_, err = NewOverride(&fixedCalc{rolls: []int{1}}, e3).Compute(sampleRequest())
	assert.Error(t, err)
}

func TestOverride_RuntimeErrorPropagates(t *testing.T) {
	e := engineFor(t, `function adjust_rolls(attack) error("boom") end`, 0)
	_, err := NewOverride(&fixedCalc{rolls: []int{1}}, e).Compute(sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestEngine_InstructionLimitTerminatesRunaway(t *testing.T) {
	e := engineFor(t, `
function adjust_rolls(attack)
  while true do end
end
`, 1000)
	_, err := NewOverride(&fixedCalc{rolls: []int{1}}, e).Compute(sampleRequest())
	assert.Error(t, err, "runaway script must be cut off by the opcode budget")
}

func TestEngine_InstructionBudgetRenewsPerCall(t *testing.T) {
	// A small budget with a cheap hook: any single call fits easily, but the
	// calls together cost far more than one budget. Every call must succeed.
	e := engineFor(t, `
function adjust_rolls(attack)
  local out = {}
  for i, r in ipairs(attack.rolls) do
    out[i] = r + 1
  end
  return out
end
`, 5000)
	o := NewOverride(&fixedCalc{rolls: []int{10}}, e)

	for i := 0; i < 2000; i++ {
		res, err := o.Compute(sampleRequest())
		require.NoErrorf(t, err, "call %d ran out of opcode budget", i)
		require.Equal(t, []int{11}, res.Rolls)
	}
}

func TestModules_ExposeGameArithmetic(t *testing.T) {
	e := engineFor(t, `
function adjust_rolls(attack)
  -- dragon into flying/steel is 0.5x; +2 stages are 2x.
  local eff = engine.effectiveness("dragon", "flying", "steel")
  local boost = engine.boost(2)
  return {math.floor(eff * boost * 100)}
end
`, 0)
	res, err := NewOverride(&fixedCalc{rolls: []int{1}}, e).Compute(sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, []int{100}, res.Rolls)
}

func TestNewEngine_Errors(t *testing.T) {
	_, err := NewEngine(filepath.Join(t.TempDir(), "absent"), 0, zap.NewNop())
	assert.Error(t, err)

	_, err = NewEngine(writeScript(t, `this is not lua`), 0, zap.NewNop())
	assert.Error(t, err)
}
