// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Evaluation metrics
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram

	// Optimizer metrics
	OptimizationRunsTotal *prometheus.CounterVec
	OptimizationDuration  prometheus.Histogram
	GridCombinations      prometheus.Gauge
	GridCompleted         prometheus.Gauge
	GridSkipped           prometheus.Counter
	BestPerformance       prometheus.Gauge

	// Reporting metrics
	ReportsGenerated *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulOptimization prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a new Metrics instance registered on reg.
func NewMetricsWith(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "backtest_lab"
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Evaluation metrics
		EvaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "runs_total",
			Help:      "Total number of pipeline evaluations by status",
		}, []string{"status"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "duration_seconds",
			Help:      "Duration of a single pipeline evaluation",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),

		// Optimizer metrics
		OptimizationRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "runs_total",
			Help:      "Total number of grid searches by status",
		}, []string{"status"}),
		OptimizationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "duration_seconds",
			Help:      "Duration of a full grid search",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		GridCombinations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "grid_combinations",
			Help:      "Number of combinations in the current grid",
		}),
		GridCompleted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "grid_completed",
			Help:      "Number of combinations evaluated in the current grid",
		}),
		GridSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "combinations_skipped_total",
			Help:      "Total number of combinations skipped as invalid",
		}),
		BestPerformance: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "best_performance",
			Help:      "Performance of the best combination of the last grid search",
		}),

		// Reporting metrics
		ReportsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "reports_generated_total",
			Help:      "Total number of reports rendered by format",
		}, []string{"format"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulOptimization: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_optimization_timestamp",
			Help:      "Unix timestamp of last successful grid search",
		}),
	}
}

// HandlerFor returns an HTTP handler exposing the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEvaluation records one pipeline evaluation.
func (m *Metrics) RecordEvaluation(status string, seconds float64) {
	m.EvaluationsTotal.WithLabelValues(status).Inc()
	m.EvaluationDuration.Observe(seconds)
}

// StartGrid resets grid gauges for a new search.
func (m *Metrics) StartGrid(combinations int) {
	m.GridCombinations.Set(float64(combinations))
	m.GridCompleted.Set(0)
}

// RecordCombination marks one grid combination as done.
func (m *Metrics) RecordCombination(skipped bool) {
	m.GridCompleted.Inc()
	if skipped {
		m.GridSkipped.Inc()
	}
}

// RecordOptimization records a finished grid search.
func (m *Metrics) RecordOptimization(status string, durationSeconds, best float64, finishedUnix int64) {
	m.OptimizationRunsTotal.WithLabelValues(status).Inc()
	m.OptimizationDuration.Observe(durationSeconds)
	if status == "ok" {
		m.BestPerformance.Set(best)
		m.LastSuccessfulOptimization.Set(float64(finishedUnix))
	}
}

// RecordReport increments the reports counter for a format.
func (m *Metrics) RecordReport(format string) {
	m.ReportsGenerated.WithLabelValues(format).Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
