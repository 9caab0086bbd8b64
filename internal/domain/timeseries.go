package domain

// PricePoint is a single price observation.
// Corresponds to price_series table in Postgres and ClickHouse.
type PricePoint struct {
	Symbol      string  `json:"symbol"`       // instrument identifier
	TimestampMs int64   `json:"timestamp_ms"` // Unix timestamp in milliseconds
	Price       float64 `json:"price"`        // observed price (close)
}

// PerformanceSummary is the scalar outcome of one evaluation.
// Both values are rounded to 6 decimal places, half away from zero on the
// shortest decimal representation of the float.
type PerformanceSummary struct {
	Performance    float64 `json:"performance"`     // final net-strategy cumulative value
	OutPerformance float64 `json:"out_performance"` // performance minus final buy-and-hold value
}
