package reporting

import (
	"fmt"
	"strings"
	"time"

	"backtest-lab/internal/backtest"
	"backtest-lab/internal/metrics"
)

// RenderMarkdown renders one evaluated table as Markdown string.
func RenderMarkdown(table *backtest.ResultTable, title string, stats *metrics.Stats) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", title))

	if len(table.Rows) > 0 {
		first, last := table.Rows[0], table.Final()
		sb.WriteString(fmt.Sprintf("Period: %s to %s (%d rows)\n\n",
			formatMs(first.TimestampMs), formatMs(last.TimestampMs), len(table.Rows)))
	}

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Buy and hold (%s) | %.6f |\n", table.PriceColumn, stats.BuyAndHold))
	sb.WriteString(fmt.Sprintf("| Strategy | %.6f |\n", stats.Strategy))
	if table.HasCost() {
		sb.WriteString(fmt.Sprintf("| Strategy net of costs | %.6f |\n", stats.StrategyNet))
	}
	sb.WriteString(fmt.Sprintf("| Out-performance | %.6f |\n", stats.StrategyNet-stats.BuyAndHold))
	sb.WriteString(fmt.Sprintf("| Trades | %g |\n", stats.Trades))
	sb.WriteString(fmt.Sprintf("| Cost rate | %g |\n", table.CostRate))
	sb.WriteString("\n")

	// Statistics
	sb.WriteString("## Statistics\n\n")
	sb.WriteString("| Mean | Median | P10 | P90 | AnnReturn | AnnVol | Sharpe | MaxDD | MaxLoss | Exposure | HitRate |\n")
	sb.WriteString("|------|--------|-----|-----|-----------|--------|--------|-------|---------|----------|---------|\n")
	sb.WriteString(fmt.Sprintf("| %.6f | %.6f | %.6f | %.6f | %.4f | %.4f | %.4f | %.4f | %d | %.4f | %.4f |\n",
		stats.MeanReturn, stats.MedianReturn, stats.P10Return, stats.P90Return,
		stats.AnnualReturn, stats.AnnualVolatility, stats.Sharpe,
		stats.MaxDrawdown, stats.MaxConsecutiveLosses, stats.Exposure, stats.HitRate))
	sb.WriteString("\n")

	// Chart
	sb.WriteString("## Chart\n\n")
	sb.WriteString("```text\n")
	sb.WriteString(RenderChart(table, chartWidth, chartHeight))
	sb.WriteString("```\n\n")
	sb.WriteString("B = creturns, S = cstrategy")
	if table.HasCost() {
		sb.WriteString(", N = cstrategy_tc")
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderRunMarkdown renders a stored optimization run as Markdown string.
func RenderRunMarkdown(r *RunReport) string {
	var sb strings.Builder
	run := r.Run

	sb.WriteString(fmt.Sprintf("# Optimization Run %s\n\n", run.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("## Run\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Symbol | %s |\n", run.Symbol))
	sb.WriteString(fmt.Sprintf("| Strategy | %s |\n", run.StrategyType))
	sb.WriteString(fmt.Sprintf("| Grid | %s |\n", run.GridID))
	sb.WriteString(fmt.Sprintf("| Cost (%%) | %g |\n", run.CostPct))
	for i, rg := range run.Ranges {
		sb.WriteString(fmt.Sprintf("| Range %d | [%g, %g) step %g |\n", i, rg.Start, rg.Stop, rg.Step))
	}
	sb.WriteString(fmt.Sprintf("| Combinations | %d |\n", run.Combinations))
	sb.WriteString(fmt.Sprintf("| Best params | %s |\n", formatParams(run.BestParams)))
	sb.WriteString(fmt.Sprintf("| Performance | %.6f |\n", run.Summary.Performance))
	sb.WriteString(fmt.Sprintf("| Out-performance | %.6f |\n", run.Summary.OutPerformance))
	sb.WriteString(fmt.Sprintf("| Trades | %g |\n", run.Trades))
	sb.WriteString(fmt.Sprintf("| Started | %s |\n", formatMs(run.StartedAtMs)))
	sb.WriteString(fmt.Sprintf("| Duration | %s |\n", time.Duration(run.FinishedAtMs-run.StartedAtMs)*time.Millisecond))
	sb.WriteString("\n")

	// Top combinations
	sb.WriteString("## Top Combinations\n\n")
	if len(r.Top) > 0 {
		sb.WriteString(fmt.Sprintf("Evaluated: %d | Skipped: %d\n\n", r.Evaluated, r.Skipped))
		sb.WriteString("| Rank | Index | Params | Performance | Out-performance | Trades |\n")
		sb.WriteString("|------|-------|--------|-------------|-----------------|--------|\n")
		for i, e := range r.Top {
			sb.WriteString(fmt.Sprintf("| %d | %d | %s | %.6f | %.6f | %g |\n",
				i+1, e.Index, formatParams(e.Params), e.Performance, e.OutPerf, e.Trades))
		}
	} else {
		sb.WriteString("No grid evaluations available.\n")
	}
	sb.WriteString("\n")

	// Sensitivity
	sb.WriteString("## Parameter Sensitivity\n\n")
	if len(r.Sensitivity) > 0 {
		sb.WriteString("| Axis | Value | Count | Mean | Best |\n")
		sb.WriteString("|------|-------|-------|------|------|\n")
		for _, s := range r.Sensitivity {
			sb.WriteString(fmt.Sprintf("| %d | %g | %d | %.6f | %.6f |\n",
				s.Axis, s.Value, s.Count, s.MeanPerformance, s.BestPerformance))
		}
	} else {
		sb.WriteString("No sensitivity data available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func formatParams(params []float64) string {
	if len(params) == 0 {
		return "-"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("%g", p)
	}
	return strings.Join(parts, ", ")
}

func formatMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
