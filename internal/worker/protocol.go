package worker

// Wire types for the job protocol: newline-delimited JSON envelopes, one
// request per line in, one response envelope per line out. Exactly one
// terminal response (complete, error, or cancelled) is emitted per request,
// preceded by zero or more progress responses.

// Request is the job submission envelope.
type Request struct {
	// RequestID identifies the job in responses and cancel requests.
	// The server assigns one when omitted.
	RequestID  string                  `json:"request_id"`
	Scenario   ScenarioSpec            `json:"scenario"`
	Combatants map[string]CombatantSpec `json:"combatants"`
	Field      FieldSpec               `json:"field"`
	Options    ExecOptions             `json:"options"`
	Grid       *GridSpec               `json:"grid,omitempty"`
}

// CancelRequest asks the orchestrator to stop the named job. Cancelling an
// unknown or finished job is a no-op.
type CancelRequest struct {
	RequestID string `json:"request_id"`
}

// ExecOptions carries per-job execution knobs.
type ExecOptions struct {
	// BatchSize is the number of grid points between yields; 0 uses the
	// configured default.
	BatchSize int `json:"batch_size,omitempty"`
	// TimeoutMS is the wall-clock budget; 0 uses the configured default.
	TimeoutMS int `json:"timeout_ms,omitempty"`
	// Doubles selects declared-order action execution.
	Doubles bool `json:"doubles,omitempty"`
	// StellarUnlimited grants the boosted-transformation bonus on every use.
	StellarUnlimited bool `json:"stellar_unlimited,omitempty"`
	// MaxTurns caps processed scenario turns; 0 uses the configured default.
	MaxTurns int `json:"max_turns,omitempty"`
}

// CombatantSpec describes one side's creature on the wire.
type CombatantSpec struct {
	Species   string         `json:"species"`
	Level     int            `json:"level"`
	Nature    string         `json:"nature"`
	Ability   string         `json:"ability,omitempty"`
	Item      string         `json:"item,omitempty"`
	IVs       map[string]int `json:"ivs,omitempty"`
	EVs       map[string]int `json:"evs,omitempty"`
	Boosts    map[string]int `json:"boosts,omitempty"`
	Status    string         `json:"status,omitempty"`
	TeraType  string         `json:"tera_type,omitempty"`
	TeraNow   bool           `json:"tera_active,omitempty"`
	HPPercent float64        `json:"hp_percent,omitempty"`
	Overrides map[string]int `json:"stat_overrides,omitempty"`
}

// FieldSpec describes the starting field on the wire.
type FieldSpec struct {
	Weather    string                        `json:"weather,omitempty"`
	Terrain    string                        `json:"terrain,omitempty"`
	TrickRoom  bool                          `json:"trick_room,omitempty"`
	Conditions map[string]SideConditionsSpec `json:"conditions,omitempty"`
}

// SideConditionsSpec mirrors the per-side field toggles.
type SideConditionsSpec struct {
	Reflect     bool `json:"reflect,omitempty"`
	LightScreen bool `json:"light_screen,omitempty"`
	StealthRock bool `json:"stealth_rock,omitempty"`
	Spikes      int  `json:"spikes,omitempty"`
}

// ScenarioSpec is the scripted exchange on the wire.
type ScenarioSpec struct {
	Turns []TurnSpec `json:"turns"`
}

// TurnSpec is one scripted turn.
type TurnSpec struct {
	FirstSide string       `json:"first_side,omitempty"`
	Actions   []ActionSpec `json:"actions"`
	Events    []EventSpec  `json:"events,omitempty"`
}

// ActionSpec is one scripted action.
type ActionSpec struct {
	ID       string      `json:"id,omitempty"`
	Side     string      `json:"side"`
	Kind     string      `json:"kind"`
	Move     *MoveSpec   `json:"move,omitempty"`
	Tera     bool        `json:"tera,omitempty"`
	TeraType string      `json:"tera_type,omitempty"`
	Switch   *SwitchSpec `json:"switch,omitempty"`
}

// MoveSpec carries per-use move parameters.
type MoveSpec struct {
	Name      string `json:"name"`
	Crit      bool   `json:"crit,omitempty"`
	Hits      int    `json:"hits,omitempty"`
	Power     int    `json:"power,omitempty"`
	Type      string `json:"type,omitempty"`
	Category  string `json:"category,omitempty"`
	DrainPct  *int   `json:"drain_pct,omitempty"`
	RecoilPct *int   `json:"recoil_pct,omitempty"`
}

// SwitchSpec carries the replacement combatant for a switch.
type SwitchSpec struct {
	Side      string        `json:"side"`
	Combatant CombatantSpec `json:"combatant"`
	HPPercent float64       `json:"hp_percent,omitempty"`
}

// EventSpec is the tagged wire form of one auxiliary event.
type EventSpec struct {
	// Phase is start, action, or end.
	Phase string `json:"phase"`
	// ActionID links the event to an action (phase == action).
	ActionID string `json:"action_id,omitempty"`
	// Type selects the variant: stat_change, hp_adjust, heal, status,
	// switch, or field.
	Type string `json:"type"`
	Side string `json:"side,omitempty"`

	// stat_change
	Deltas map[string]int `json:"deltas,omitempty"`

	// hp_adjust
	Basis       string  `json:"basis,omitempty"`
	Amount      int     `json:"amount,omitempty"`
	Percent     float64 `json:"percent,omitempty"`
	Numerator   int     `json:"numerator,omitempty"`
	Denominator int     `json:"denominator,omitempty"`
	Heal        bool    `json:"heal,omitempty"`

	// heal
	Min int `json:"min,omitempty"`

	// status
	Status string `json:"status,omitempty"`

	// switch
	Switch *SwitchSpec `json:"switch,omitempty"`

	// field
	Weather    *string                       `json:"weather,omitempty"`
	Terrain    *string                       `json:"terrain,omitempty"`
	TrickRoom  *bool                         `json:"trick_room,omitempty"`
	Conditions map[string]SideConditionsSpec `json:"conditions,omitempty"`
}

// GridSpec configures the investment grid search.
type GridSpec struct {
	Enabled bool `json:"enabled"`
	// TargetSide is the side whose investment is searched ("p1" or "p2").
	TargetSide string `json:"target_side"`

	// Defense axes (HP x Defense by convention, stats configurable).
	Defense *GridAxesSpec `json:"defense,omitempty"`
	// Offense axes (Attack x Special-Attack by convention).
	Offense *GridAxesSpec `json:"offense,omitempty"`

	Prior *PriorSpecWire `json:"prior,omitempty"`

	// Observation selects a scenario action for Bayesian reweighting.
	Observation *ObservationSpec `json:"observation,omitempty"`

	// TargetSurvival filters survival plans when > 0.
	TargetSurvival float64 `json:"target_survival,omitempty"`
	// TargetKnockout filters knockout plans when > 0.
	TargetKnockout float64 `json:"target_knockout,omitempty"`

	Analyses AnalysesSpec `json:"analyses"`
}

// GridAxesSpec is one two-axis grid on the wire.
type GridAxesSpec struct {
	Stat1       string `json:"stat1"`
	Min1        int    `json:"min1"`
	Max1        int    `json:"max1"`
	Stat2       string `json:"stat2"`
	Min2        int    `json:"min2"`
	Max2        int    `json:"max2"`
	Step        int    `json:"step"`
	MaxCombined int    `json:"max_combined,omitempty"`
}

// PriorSpecWire selects the prior distribution.
type PriorSpecWire struct {
	Kind    string             `json:"kind"`
	Profile string             `json:"profile,omitempty"`
	Custom  []CustomWeightWire `json:"custom,omitempty"`
}

// CustomWeightWire pins one grid point's prior weight.
type CustomWeightWire struct {
	V1     int     `json:"v1"`
	V2     int     `json:"v2"`
	Weight float64 `json:"weight"`
}

// ObservationSpec names the observed action and the damage range.
type ObservationSpec struct {
	ActionID string  `json:"action_id"`
	MinPct   float64 `json:"min_pct"`
	MaxPct   float64 `json:"max_pct"`
}

// AnalysesSpec toggles which summaries are produced.
type AnalysesSpec struct {
	Survival    bool `json:"survival"`
	Knockout    bool `json:"knockout"`
	DamageRange bool `json:"damage_range"`
}

// Phase names the orchestrator's reporting phases.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseProcessing   Phase = "processing"
	PhaseEvaluating   Phase = "evaluating"
	PhaseFinalizing   Phase = "finalizing"
)

// Response is the envelope written back per protocol message. Exactly one of
// the payload pointers is set, matching Type.
type Response struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`

	Progress *Progress `json:"progress,omitempty"`
	Summary  *Summary  `json:"summary,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Response type tags.
const (
	TypeProgress  = "progress"
	TypeComplete  = "complete"
	TypeError     = "error"
	TypeCancelled = "cancelled"
)

// Progress reports evaluation advancement.
type Progress struct {
	Processed int   `json:"processed"`
	Total     int   `json:"total"`
	ElapsedMS int64 `json:"elapsed_ms"`
	Phase     Phase `json:"phase"`
}

// Summary is the terminal result of a completed job.
type Summary struct {
	// Survival is the target side's survival probability: deterministic
	// value in single-run mode, weight-averaged over the grid otherwise.
	Survival float64 `json:"survival"`
	// HPDist groups final probability mass by HP, per side, from the run
	// with the combatants' current investment.
	HPDist map[string]map[int]float64 `json:"hp_dist"`
	// Snapshots is the ordered per-action aggregate sequence of that run.
	Snapshots []SnapshotWire `json:"snapshots"`

	Heatmap       []HeatCellWire  `json:"heatmap,omitempty"`
	SurvivalPlans []PlanWire      `json:"survival_plans,omitempty"`
	Knockout      float64         `json:"knockout,omitempty"`
	KnockoutPlans []PlanWire      `json:"knockout_plans,omitempty"`
	Sensitivity   *SensitivityWire `json:"sensitivity,omitempty"`
}

// SnapshotWire is one probability-weighted state aggregate.
type SnapshotWire struct {
	ID    string                      `json:"id"`
	Turn  int                         `json:"turn"`
	Kind  string                      `json:"kind"`
	Sides map[string]SideSnapshotWire `json:"sides"`
	Rolls []int                       `json:"rolls,omitempty"`
}

// SideSnapshotWire is one side's aggregate at a snapshot point.
type SideSnapshotWire struct {
	AvgHP float64         `json:"avg_hp"`
	MaxHP int             `json:"max_hp"`
	Dist  map[int]float64 `json:"dist"`
}

// HeatCellWire is one heatmap cell.
type HeatCellWire struct {
	V1     int     `json:"v1"`
	V2     int     `json:"v2"`
	Metric float64 `json:"metric"`
	Weight float64 `json:"weight"`
}

// PlanWire is one ranked investment plan.
type PlanWire struct {
	V1     int     `json:"v1"`
	V2     int     `json:"v2"`
	Metric float64 `json:"metric"`
	Weight float64 `json:"weight"`
}

// SensitivityWire reports the local metric slope around the current
// investment.
type SensitivityWire struct {
	NearestV1 int     `json:"nearest_v1"`
	NearestV2 int     `json:"nearest_v2"`
	DV1       float64 `json:"dv1"`
	DV2       float64 `json:"dv2"`
}
