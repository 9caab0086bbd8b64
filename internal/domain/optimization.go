package domain

// ParamRange describes one axis of a parameter grid.
// Values are Start, Start+Step, ... strictly below Stop.
type ParamRange struct {
	Start float64 `json:"start" yaml:"start"`
	Stop  float64 `json:"stop" yaml:"stop" validate:"gtfield=Start"`
	Step  float64 `json:"step" yaml:"step" validate:"gt=0"`
}

// OptimizationRun is the persisted outcome of one grid search.
// Corresponds to optimization_runs table in Postgres and SQLite.
type OptimizationRun struct {
	RunID        string             `json:"run_id"`         // uuid
	GridID       string             `json:"grid_id"`        // idhash.ComputeGridID of the searched space
	Symbol       string             `json:"symbol"`         // instrument the series belongs to
	StrategyType string             `json:"strategy_type"`  // strategy variant searched
	CostPct      float64            `json:"cost_pct"`       // trading cost in percent
	Ranges       []ParamRange       `json:"ranges"`         // searched grid
	BestParams   []float64          `json:"best_params"`    // winning combination
	Summary      PerformanceSummary `json:"summary"`        // from the reported replay
	Combinations int                `json:"combinations"`   // grid size evaluated
	Trades       float64            `json:"trades"`         // trade count at the best combination
	StartedAtMs  int64              `json:"started_at_ms"`  // Unix ms
	FinishedAtMs int64              `json:"finished_at_ms"` // Unix ms
}

// GridEvaluation is the outcome of one grid combination.
// Corresponds to grid_evaluations table in ClickHouse.
type GridEvaluation struct {
	RunID       string    `json:"run_id"`       // owning optimization run
	Index       int       `json:"index"`        // enumeration order within the grid
	ParamSetID  string    `json:"param_set_id"` // idhash.ComputeParamSetID of Params
	Params      []float64 `json:"params"`       // combination
	Performance float64   `json:"performance"`
	OutPerf     float64   `json:"out_performance"`
	Trades      float64   `json:"trades"`
	Skipped     bool      `json:"skipped"` // rejected as an invalid combination
}
