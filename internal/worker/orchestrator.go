package worker

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cassieroh/bulkcalc/internal/config"
	"github.com/cassieroh/bulkcalc/internal/game/battle"
	"github.com/cassieroh/bulkcalc/internal/game/calc"
	"github.com/cassieroh/bulkcalc/internal/game/dex"
	"github.com/cassieroh/bulkcalc/internal/game/grid"
	"github.com/cassieroh/bulkcalc/internal/game/stats"
	"github.com/cassieroh/bulkcalc/internal/game/timeline"
)

// Deps carries the orchestrator's collaborators.
type Deps struct {
	Dex    dex.Source
	Calc   calc.Calculator
	Logger *zap.Logger
	Config config.SimulationConfig
}

// Manager runs at most one job at a time. Start claims the slot and drives
// the job to exactly one terminal response; Cancel flags the active job.
type Manager struct {
	deps Deps

	mu     sync.Mutex
	active *job
}

type job struct {
	id     string
	cancel chan struct{}
	once   sync.Once
}

func (j *job) cancelled() bool {
	select {
	case <-j.cancel:
		return true
	default:
		return false
	}
}

// NewManager creates an orchestrator over the given collaborators.
//
// Precondition: deps.Dex, deps.Calc, and deps.Logger must be non-nil.
func NewManager(deps Deps) *Manager {
	return &Manager{deps: deps}
}

// Cancel flags the active job matching requestID for cooperative
// cancellation. A cancel naming a different or absent job is a no-op.
func (m *Manager) Cancel(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.id == requestID {
		m.active.once.Do(func() { close(m.active.cancel) })
	}
}

// Start runs the job on the calling goroutine, emitting zero or more
// progress responses and exactly one terminal response. While a job is
// active, further Start calls terminate immediately with an error response.
//
// Postcondition: the job slot is released on every path, including panics in
// decode or evaluation surfaced as errors.
func (m *Manager) Start(req Request, emit func(Response)) {
	j := &job{id: req.RequestID, cancel: make(chan struct{})}

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		emit(Response{Type: TypeError, RequestID: req.RequestID, Message: ErrBusy.Error()})
		return
	}
	m.active = j
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.active == j {
			m.active = nil
		}
		m.mu.Unlock()
	}()

	started := time.Now()
	summary, err := m.run(j, req, started, emit)
	elapsed := time.Since(started)

	switch {
	case errors.Is(err, ErrCancelled):
		m.deps.Logger.Info("job cancelled", zap.String("request_id", req.RequestID), zap.Duration("elapsed", elapsed))
		emit(Response{Type: TypeCancelled, RequestID: req.RequestID})
	case err != nil:
		m.deps.Logger.Error("job failed", zap.String("request_id", req.RequestID), zap.Duration("elapsed", elapsed), zap.Error(err))
		emit(Response{Type: TypeError, RequestID: req.RequestID, Message: err.Error()})
	default:
		m.deps.Logger.Info("job complete", zap.String("request_id", req.RequestID), zap.Duration("elapsed", elapsed))
		emit(Response{Type: TypeComplete, RequestID: req.RequestID, Summary: summary})
	}
}

// runState threads the shared evaluation bookkeeping through both grids.
type runState struct {
	j         *job
	req       Request
	emit      func(Response)
	started   time.Time
	deadline  time.Time
	batch     int
	processed int
	total     int

	scenario timeline.Scenario
	base     map[battle.Side]*battle.Combatant
	field    battle.Field
	simDeps  timeline.Deps
	simOpts  timeline.Options
	obs      *timeline.Observation
}

func (m *Manager) run(j *job, req Request, started time.Time, emit func(Response)) (*Summary, error) {
	cfg := m.deps.Config

	batch := req.Options.BatchSize
	if batch <= 0 {
		batch = cfg.BatchSize
	}
	timeout := cfg.DefaultTimeout
	if req.Options.TimeoutMS > 0 {
		timeout = time.Duration(req.Options.TimeoutMS) * time.Millisecond
	}
	maxTurns := req.Options.MaxTurns
	if maxTurns <= 0 {
		maxTurns = cfg.MaxTurns
	}

	st := &runState{
		j: j, req: req, emit: emit,
		started:  started,
		deadline: started.Add(timeout),
		batch:    batch,
		simOpts: timeline.Options{
			MaxTurns:         maxTurns,
			Doubles:          req.Options.Doubles,
			StellarUnlimited: req.Options.StellarUnlimited,
		},
	}
	st.progress(PhaseInitializing)

	var err error
	st.scenario, err = decodeScenario(req.Scenario, m.deps.Dex)
	if err != nil {
		return nil, err
	}
	st.base = make(map[battle.Side]*battle.Combatant, 2)
	for _, side := range battle.Sides {
		spec, ok := req.Combatants[string(side)]
		if !ok {
			return nil, NewConfigError("missing combatant for side %s", side)
		}
		st.base[side], err = decodeCombatant(spec, m.deps.Dex)
		if err != nil {
			return nil, err
		}
	}
	st.field, err = decodeField(req.Field)
	if err != nil {
		return nil, err
	}

	// One cache per job; never shared across runs.
	st.simDeps = timeline.Deps{
		Cache: calc.NewCache(m.deps.Calc, cfg.CacheCapacity),
		Dex:   m.deps.Dex,
	}

	g := req.Grid
	target := battle.SideP1
	if g != nil && g.Enabled {
		target, err = decodeSide(g.TargetSide)
		if err != nil {
			return nil, err
		}
		if g.Observation != nil {
			st.obs = &timeline.Observation{
				ActionID: g.Observation.ActionID,
				MinPct:   g.Observation.MinPct,
				MaxPct:   g.Observation.MaxPct,
			}
		}
	}

	// The current-investment run supplies the summary's HP distribution and
	// snapshot sequence, and the headline survival in deterministic mode.
	st.progress(PhaseProcessing)
	baseOut, err := timeline.Simulate(st.scenario, cloneSides(st.base), st.field, st.simDeps, st.simOpts, nil)
	if err != nil {
		return nil, wrapRunError("current investment", err)
	}

	summary := &Summary{
		Survival:  baseOut.Survival[target],
		HPDist:    encodeHPDist(baseOut.HPDist),
		Snapshots: encodeSnapshots(baseOut.Snapshots),
	}

	// Degenerate grid: exactly one deterministic run, no grid expansion.
	if g == nil || !g.Enabled {
		st.progress(PhaseFinalizing)
		return summary, nil
	}
	if g.Defense == nil && g.Offense == nil {
		return nil, NewConfigError("grid enabled with no axes configured")
	}

	var (
		defCfg, offCfg grid.Config
		defPts, offPts []*grid.Point
	)
	if g.Defense != nil {
		if defCfg, err = decodeAxes(g.Defense, g.Prior); err != nil {
			return nil, err
		}
		if defPts, err = grid.Build(defCfg); err != nil {
			return nil, NewConfigError("%v", err)
		}
	}
	if g.Offense != nil {
		if offCfg, err = decodeAxes(g.Offense, g.Prior); err != nil {
			return nil, err
		}
		if offPts, err = grid.Build(offCfg); err != nil {
			return nil, NewConfigError("%v", err)
		}
	}
	st.total = len(defPts) + len(offPts)

	if defPts != nil {
		if err := m.evaluate(st, defPts, defCfg, target, false); err != nil {
			return nil, err
		}
		if st.obs != nil && g.Analyses.DamageRange {
			grid.ApplyLikelihoods(defPts)
		}
	}
	if offPts != nil {
		if err := m.evaluate(st, offPts, offCfg, target, true); err != nil {
			return nil, err
		}
		if st.obs != nil && g.Analyses.DamageRange {
			grid.ApplyLikelihoods(offPts)
		}
	}

	st.progress(PhaseFinalizing)

	if defPts != nil {
		if g.Analyses.Survival {
			summary.Survival = grid.WeightedMetric(defPts)
			summary.SurvivalPlans = encodePlans(grid.SurvivalPlans(defPts, g.TargetSurvival))
		}
		summary.Heatmap = encodeHeatmap(grid.Heatmap(defPts))
		cur := st.base[target]
		sens := grid.Sensitivity(defPts,
			cur.EVs[defCfg.Axis1.Stat], cur.EVs[defCfg.Axis2.Stat],
			defCfg.Axis1.Step, defCfg.Axis2.Step)
		summary.Sensitivity = encodeSensitivity(sens)
	}
	if offPts != nil && g.Analyses.Knockout {
		summary.Knockout = grid.WeightedMetric(offPts)
		summary.KnockoutPlans = encodePlans(grid.KnockoutPlans(offPts, g.TargetKnockout))
	}
	return summary, nil
}

// evaluate runs the simulation once per grid point, recording the survival
// or knockout metric and the observation likelihood. Cancellation and the
// deadline are checked before every point; progress is emitted and the
// scheduler yielded at batch boundaries.
func (m *Manager) evaluate(st *runState, points []*grid.Point, cfg grid.Config, target battle.Side, offensive bool) error {
	for i, p := range points {
		if st.j.cancelled() {
			return ErrCancelled
		}
		if time.Now().After(st.deadline) {
			return &TimeoutError{Processed: st.processed, Total: st.total, Elapsed: time.Since(st.started)}
		}

		sides := cloneSides(st.base)
		if err := applyInvestment(sides[target], m.deps.Dex, cfg, p); err != nil {
			return err
		}

		out, err := timeline.Simulate(st.scenario, sides, st.field, st.simDeps, st.simOpts, st.obs)
		if err != nil {
			return &ComputationError{Point: pointLabel(cfg, p), Err: err}
		}

		if offensive {
			p.Metric = 1 - out.Survival[battle.Opponent(target)]
		} else {
			p.Metric = out.Survival[target]
		}
		p.Likelihood = out.ObservationLikelihood

		st.processed++
		if st.processed%st.batch == 0 || i == len(points)-1 {
			st.progress(PhaseEvaluating)
			runtime.Gosched()
		}
	}
	return nil
}

// applyInvestment writes the point's effort values onto the combatant and
// rederives max HP when an axis invests in HP, preserving the current HP
// fraction.
func applyInvestment(c *battle.Combatant, src dex.Source, cfg grid.Config, p *grid.Point) error {
	if c.EVs == nil {
		c.EVs = stats.Table{}
	}
	c.EVs[cfg.Axis1.Stat] = p.V1
	c.EVs[cfg.Axis2.Stat] = p.V2

	if cfg.Axis1.Stat != stats.HP && cfg.Axis2.Stat != stats.HP {
		return nil
	}
	wasFull := c.CurHP == c.MaxHP
	frac := float64(c.CurHP) / float64(c.MaxHP)

	sp, err := src.Species(c.Species)
	if err != nil {
		return NewConfigError("%v", err)
	}
	max, err := stats.Calc(stats.HP, sp.BaseStats[stats.HP], c.IVs[stats.HP], c.EVs[stats.HP], c.Level, c.Nature)
	if err != nil {
		return NewConfigError("%v", err)
	}
	c.MaxHP = max
	if wasFull {
		c.CurHP = max
	} else {
		c.CurHP = int(math.Round(frac * float64(max)))
		if c.CurHP < 1 {
			c.CurHP = 1
		}
	}
	return nil
}

func cloneSides(base map[battle.Side]*battle.Combatant) map[battle.Side]*battle.Combatant {
	out := make(map[battle.Side]*battle.Combatant, len(base))
	for side, c := range base {
		out[side] = c.Clone()
	}
	return out
}

func pointLabel(cfg grid.Config, p *grid.Point) string {
	return fmt.Sprintf("grid point (%s=%d, %s=%d)", cfg.Axis1.Stat, p.V1, cfg.Axis2.Stat, p.V2)
}

// wrapRunError keeps configuration failures distinguishable from calculator
// failures surfaced mid-simulation.
func wrapRunError(label string, err error) error {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}
	return &ComputationError{Point: label, Err: err}
}

// progress emits a progress response stamped with elapsed wall-clock time.
func (st *runState) progress(phase Phase) {
	st.emit(Response{
		Type:      TypeProgress,
		RequestID: st.req.RequestID,
		Progress: &Progress{
			Processed: st.processed,
			Total:     st.total,
			ElapsedMS: time.Since(st.started).Milliseconds(),
			Phase:     phase,
		},
	})
}
