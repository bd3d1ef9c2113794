package worker

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cassieroh/bulkcalc/internal/config"
	"github.com/cassieroh/bulkcalc/internal/game/calc"
	"github.com/cassieroh/bulkcalc/internal/game/dex"
	"github.com/cassieroh/bulkcalc/internal/game/stats"
)

func testDex(t *testing.T) *dex.Registry {
	t.Helper()
	reg := dex.NewRegistry()
	require.NoError(t, reg.RegisterSpecies(&dex.Species{
		Name: "drakon", Types: []string{"dragon", "ground"},
		BaseStats: stats.Table{
			stats.HP: 108, stats.Attack: 130, stats.Defense: 95,
			stats.SpecialAttack: 80, stats.SpecialDefense: 85, stats.Speed: 102,
		},
	}))
	require.NoError(t, reg.RegisterSpecies(&dex.Species{
		Name: "ironbird", Types: []string{"flying", "steel"},
		BaseStats: stats.Table{
			stats.HP: 98, stats.Attack: 87, stats.Defense: 105,
			stats.SpecialAttack: 53, stats.SpecialDefense: 85, stats.Speed: 67,
		},
	}))
	require.NoError(t, reg.RegisterMove(&dex.Move{Name: "outrage", Type: "dragon", Category: dex.Physical, Power: 120}))
	return reg
}

// calcFunc adapts a function to the Calculator interface.
type calcFunc func(calc.Request) (*calc.Result, error)

func (f calcFunc) Compute(req calc.Request) (*calc.Result, error) { return f(req) }

func fixedRolls(rolls ...int) calcFunc {
	return func(calc.Request) (*calc.Result, error) {
		return &calc.Result{Rolls: append([]int(nil), rolls...), Category: dex.Physical}, nil
	}
}

func testConfig() config.SimulationConfig {
	return config.SimulationConfig{
		MaxTurns:       5,
		CacheCapacity:  64,
		BatchSize:      10,
		DefaultTimeout: 5 * time.Second,
	}
}

func newManager(t *testing.T, c calc.Calculator) *Manager {
	t.Helper()
	return NewManager(Deps{
		Dex:    testDex(t),
		Calc:   c,
		Logger: zap.NewNop(),
		Config: testConfig(),
	})
}

// collector gathers emitted responses; safe for the single emitting
// goroutine plus later inspection after Start returns.
type collector struct {
	mu        sync.Mutex
	responses []Response
}

func (c *collector) emit(r Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, r)
}

func (c *collector) terminal(t *testing.T) Response {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.responses)
	last := c.responses[len(c.responses)-1]
	for _, r := range c.responses[:len(c.responses)-1] {
		require.Equal(t, TypeProgress, r.Type, "only the final response may be terminal")
	}
	return last
}

func baseRequest(id string) Request {
	return Request{
		RequestID: id,
		Combatants: map[string]CombatantSpec{
			"p1": {Species: "drakon", Level: 100, Nature: "adamant",
				IVs: map[string]int{"atk": 31}, EVs: map[string]int{"atk": 252}},
			"p2": {Species: "ironbird", Level: 100, Nature: "serious",
				IVs: map[string]int{"hp": 31, "def": 31}},
		},
		Scenario: ScenarioSpec{Turns: []TurnSpec{{
			FirstSide: "p1",
			Actions:   []ActionSpec{{ID: "hit", Side: "p1", Kind: "move", Move: &MoveSpec{Name: "outrage"}}},
		}}},
	}
}

// TestStart_DeterministicOneHitKO pins the degenerate-grid path against a
// hand-computed outcome: every roll exceeds the defender's HP, so the
// defender never survives and the attacker always does.
func TestStart_DeterministicOneHitKO(t *testing.T) {
	col := &collector{}
	m := newManager(t, fixedRolls(9999))
	m.Start(baseRequest("job-1"), col.emit)

	term := col.terminal(t)
	require.Equal(t, TypeComplete, term.Type)
	require.NotNil(t, term.Summary)
	assert.InDelta(t, 1.0, term.Summary.Survival, 1e-9, "p1 is the default target side")
	assert.InDelta(t, 1.0, term.Summary.HPDist["p2"][0], 1e-9)
	assert.Empty(t, term.Summary.Heatmap)
	require.Len(t, term.Summary.Snapshots, 1)
	assert.Equal(t, "hit", term.Summary.Snapshots[0].ID)
}

func TestStart_UnknownSpeciesIsConfigError(t *testing.T) {
	col := &collector{}
	req := baseRequest("job-2")
	req.Combatants["p1"] = CombatantSpec{Species: "missingno", Level: 50, Nature: "serious"}

	newManager(t, fixedRolls(1)).Start(req, col.emit)

	term := col.terminal(t)
	require.Equal(t, TypeError, term.Type)
	assert.Contains(t, term.Message, "configuration error")
}

func defensiveGrid() *GridSpec {
	return &GridSpec{
		Enabled:    true,
		TargetSide: "p2",
		Defense: &GridAxesSpec{
			Stat1: "hp", Min1: 0, Max1: 16,
			Stat2: "def", Min2: 0, Max2: 16,
			Step: 8,
		},
		Analyses: AnalysesSpec{Survival: true},
	}
}

func TestStart_GridProducesHeatmapPlansSensitivity(t *testing.T) {
	col := &collector{}
	req := baseRequest("job-3")
	req.Grid = defensiveGrid()

	// A single 200 never knocks ironbird out at any investment on this
	// grid, so survival is 1 everywhere and the assertions focus on the
	// shape of the outputs.
	newManager(t, fixedRolls(200)).Start(req, col.emit)

	term := col.terminal(t)
	require.Equal(t, TypeComplete, term.Type)
	sum := term.Summary
	require.NotNil(t, sum)

	assert.Len(t, sum.Heatmap, 9)
	assert.InDelta(t, 1.0, sum.Survival, 1e-9)
	require.NotEmpty(t, sum.SurvivalPlans)
	require.NotNil(t, sum.Sensitivity)
	assert.Equal(t, 0, sum.Sensitivity.NearestV1, "current investment is uninvested")
	assert.Equal(t, 0, sum.Sensitivity.NearestV2)
}

func TestStart_CancelledEmitsCancelledAndNoComplete(t *testing.T) {
	col := &collector{}
	m := newManager(t, nil)

	// The calculator cancels its own job on first use: the per-point check
	// observes the flag before the next point starts.
	m.deps.Calc = calcFunc(func(calc.Request) (*calc.Result, error) {
		m.Cancel("job-4")
		return &calc.Result{Rolls: []int{1}, Category: dex.Physical}, nil
	})

	req := baseRequest("job-4")
	req.Grid = defensiveGrid()
	m.Start(req, col.emit)

	term := col.terminal(t)
	assert.Equal(t, TypeCancelled, term.Type)
	for _, r := range col.responses {
		assert.NotEqual(t, TypeComplete, r.Type)
	}
}

func TestStart_TimeoutCitesProcessedAndTotal(t *testing.T) {
	col := &collector{}
	slow := calcFunc(func(calc.Request) (*calc.Result, error) {
		time.Sleep(5 * time.Millisecond)
		return &calc.Result{Rolls: []int{1}, Category: dex.Physical}, nil
	})

	req := baseRequest("job-5")
	req.Grid = defensiveGrid()
	req.Options.TimeoutMS = 1
	newManager(t, slow).Start(req, col.emit)

	term := col.terminal(t)
	require.Equal(t, TypeError, term.Type)
	assert.Contains(t, term.Message, "timeout")
	assert.Contains(t, term.Message, "of 9 grid points")
}

func TestStart_RejectsConcurrentJob(t *testing.T) {
	first := &collector{}
	second := &collector{}
	m := newManager(t, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	m.deps.Calc = calcFunc(func(calc.Request) (*calc.Result, error) {
		close(started)
		<-release
		return &calc.Result{Rolls: []int{1}, Category: dex.Physical}, nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Start(baseRequest("job-6"), first.emit)
	}()
	<-started

	m.Start(baseRequest("job-7"), second.emit)
	term := second.terminal(t)
	require.Equal(t, TypeError, term.Type)
	assert.Contains(t, term.Message, "already active")

	close(release)
	<-done
	assert.Equal(t, TypeComplete, first.terminal(t).Type)
}

func TestCancel_UnknownJobIsNoOp(t *testing.T) {
	m := newManager(t, fixedRolls(1))
	m.Cancel("never-started")

	col := &collector{}
	m.Start(baseRequest("job-8"), col.emit)
	assert.Equal(t, TypeComplete, col.terminal(t).Type)
}

func TestStart_ObservationReweighting(t *testing.T) {
	col := &collector{}
	req := baseRequest("job-9")
	req.Grid = defensiveGrid()
	req.Grid.Analyses.DamageRange = true
	req.Grid.Observation = &ObservationSpec{ActionID: "hit", MinPct: 0, MaxPct: 100}

	newManager(t, fixedRolls(50, 60)).Start(req, col.emit)

	term := col.terminal(t)
	require.Equal(t, TypeComplete, term.Type)

	var weight float64
	for _, cell := range term.Summary.Heatmap {
		weight += cell.Weight
	}
	assert.InDelta(t, 1.0, weight, 1e-6, "posterior weights must renormalize to 1")
}

func TestStart_GridWithoutAxesIsConfigError(t *testing.T) {
	col := &collector{}
	req := baseRequest("job-10")
	req.Grid = &GridSpec{Enabled: true, TargetSide: "p2"}

	newManager(t, fixedRolls(1)).Start(req, col.emit)
	term := col.terminal(t)
	require.Equal(t, TypeError, term.Type)
	assert.True(t, strings.Contains(term.Message, "no axes"))
}
