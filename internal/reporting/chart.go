package reporting

import (
	"fmt"
	"math"
	"strings"

	"backtest-lab/internal/backtest"
)

// Chart dimensions in characters.
const (
	chartWidth  = 72
	chartHeight = 16
)

type curve struct {
	mark   byte
	values func(backtest.Row) float64
}

// RenderChart draws the cumulative curves of a table as text, followed by the
// position trace (+ long, - short, . flat). Later curves overwrite earlier ones.
func RenderChart(table *backtest.ResultTable, width, height int) string {
	if table == nil || len(table.Rows) == 0 {
		return ""
	}
	if width < 2 {
		width = 2
	}
	if height < 2 {
		height = 2
	}
	if width > len(table.Rows) {
		width = len(table.Rows)
	}

	curves := []curve{
		{'B', func(r backtest.Row) float64 { return r.CReturns }},
		{'S', func(r backtest.Row) float64 { return r.CStrategy }},
	}
	if table.HasCost() {
		curves = append(curves, curve{'N', func(r backtest.Row) float64 { return r.CStrategyNet }})
	}

	samples := sampleRows(table.Rows, width)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range samples {
		for _, c := range curves {
			v := c.values(row)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	grid := make([][]byte, height)
	for i := range grid {
		grid[i] = []byte(strings.Repeat(" ", len(samples)))
	}
	for x, row := range samples {
		for _, c := range curves {
			grid[scaleRow(c.values(row), lo, hi, height)][x] = c.mark
		}
	}

	var sb strings.Builder
	for i, line := range grid {
		label := strings.Repeat(" ", 10)
		switch i {
		case 0:
			label = fmt.Sprintf("%10.4f", hi)
		case height - 1:
			label = fmt.Sprintf("%10.4f", lo)
		}
		sb.WriteString(label)
		sb.WriteString(" |")
		sb.WriteString(strings.TrimRight(string(line), " "))
		sb.WriteString("\n")
	}

	trace := make([]byte, len(samples))
	for x, row := range samples {
		switch {
		case row.Position > 0:
			trace[x] = '+'
		case row.Position < 0:
			trace[x] = '-'
		default:
			trace[x] = '.'
		}
	}
	sb.WriteString(fmt.Sprintf("%10s |%s\n", "position", trace))
	return sb.String()
}

// sampleRows picks width rows spread evenly, always keeping the first and last.
func sampleRows(rows []backtest.Row, width int) []backtest.Row {
	if width >= len(rows) {
		return rows
	}
	out := make([]backtest.Row, width)
	for x := range out {
		out[x] = rows[x*(len(rows)-1)/(width-1)]
	}
	return out
}

// scaleRow maps v to a grid line, 0 being the top.
func scaleRow(v, lo, hi float64, height int) int {
	if hi <= lo {
		return height / 2
	}
	pos := (v - lo) / (hi - lo)
	return height - 1 - int(math.Round(pos*float64(height-1)))
}
