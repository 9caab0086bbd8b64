package domain

// StrategyConfig selects a strategy variant and its parameters.
type StrategyConfig struct {
	StrategyType string    // one of the StrategyType* constants
	Params       []float64 // variant-specific, positional
}

// Strategy type constants
const (
	StrategyTypeSMACrossover  = "sma_crossover"
	StrategyTypeEMACrossover  = "ema_crossover"
	StrategyTypeMomentum      = "momentum"
	StrategyTypeMeanReversion = "mean_reversion"
	StrategyTypeBuyAndHold    = "buy_and_hold"
)

// StrategyTypes lists all supported strategy types.
var StrategyTypes = []string{
	StrategyTypeSMACrossover,
	StrategyTypeEMACrossover,
	StrategyTypeMomentum,
	StrategyTypeMeanReversion,
	StrategyTypeBuyAndHold,
}
