package reporting

import (
	"fmt"
	"strconv"
	"strings"

	"backtest-lab/internal/backtest"
	"backtest-lab/internal/domain"
)

// PlotColumns returns the plotted columns of a table. The net curve is only
// included when trading costs apply.
func PlotColumns(table *backtest.ResultTable) []string {
	if table.HasCost() {
		return []string{"creturns", "cstrategy", "cstrategy_tc", "position"}
	}
	return []string{"creturns", "cstrategy", "position"}
}

// RenderCSV renders the plotted columns of a table as CSV string.
func RenderCSV(table *backtest.ResultTable) string {
	var sb strings.Builder

	cols := PlotColumns(table)
	sb.WriteString("timestamp_ms,")
	sb.WriteString(strings.Join(cols, ","))
	sb.WriteString("\n")

	for _, row := range table.Rows {
		sb.WriteString(strconv.FormatInt(row.TimestampMs, 10))
		sb.WriteString(fmt.Sprintf(",%.6f,%.6f", row.CReturns, row.CStrategy))
		if table.HasCost() {
			sb.WriteString(fmt.Sprintf(",%.6f", row.CStrategyNet))
		}
		sb.WriteString("," + strconv.FormatFloat(row.Position, 'g', -1, 64))
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderGridCSV renders grid evaluations as CSV string, one row per combination.
func RenderGridCSV(evals []*domain.GridEvaluation) string {
	var sb strings.Builder

	sb.WriteString("index,param_set_id,params,performance,out_performance,trades,skipped\n")
	for _, e := range evals {
		params := make([]string, len(e.Params))
		for i, p := range e.Params {
			params[i] = strconv.FormatFloat(p, 'g', -1, 64)
		}
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%.6f,%.6f,%g,%t\n",
			e.Index,
			e.ParamSetID,
			strings.Join(params, ";"),
			e.Performance,
			e.OutPerf,
			e.Trades,
			e.Skipped,
		))
	}

	return sb.String()
}
