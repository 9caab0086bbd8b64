package reporting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"backtest-lab/internal/backtest"
	"backtest-lab/internal/metrics"
	"backtest-lab/internal/observability"
)

// Output formats
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatParquet  = "parquet"
)

// Formats lists the supported output formats.
var Formats = []string{FormatCSV, FormatMarkdown, FormatParquet}

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown report format")

// Compile-time interface checks.
var (
	_ backtest.Presenter = (*CSVPresenter)(nil)
	_ backtest.Presenter = (*MarkdownPresenter)(nil)
	_ backtest.Presenter = (*ParquetPresenter)(nil)
	_ backtest.Presenter = (MultiPresenter)(nil)
)

// CSVPresenter writes the plotted columns to <Dir>/<slug>.csv.
type CSVPresenter struct {
	Dir     string
	Metrics *observability.Metrics
}

// Present implements backtest.Presenter.
func (p *CSVPresenter) Present(table *backtest.ResultTable, title string) error {
	path := filepath.Join(p.Dir, Slug(title)+".csv")
	if err := writeFile(path, []byte(RenderCSV(table))); err != nil {
		return err
	}
	recordReport(p.Metrics, FormatCSV)
	return nil
}

// MarkdownPresenter writes a summary with a text chart to <Dir>/<slug>.md.
type MarkdownPresenter struct {
	Dir            string
	PeriodsPerYear int // annualization factor, 0 uses metrics.TradingDaysPerYear
	Metrics        *observability.Metrics
}

// Present implements backtest.Presenter.
func (p *MarkdownPresenter) Present(table *backtest.ResultTable, title string) error {
	stats := metrics.Compute(table, p.PeriodsPerYear)
	path := filepath.Join(p.Dir, Slug(title)+".md")
	if err := writeFile(path, []byte(RenderMarkdown(table, title, stats))); err != nil {
		return err
	}
	recordReport(p.Metrics, FormatMarkdown)
	return nil
}

// ResultRecord is the Parquet schema of one evaluated row.
type ResultRecord struct {
	Timestamp    int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Price        float64 `parquet:"price"`
	Return       float64 `parquet:"return"`
	Position     float64 `parquet:"position"`
	Trade        float64 `parquet:"trade"`
	Strategy     float64 `parquet:"strategy"`
	StrategyNet  float64 `parquet:"strategy_tc"`
	CReturns     float64 `parquet:"creturns"`
	CStrategy    float64 `parquet:"cstrategy"`
	CStrategyNet float64 `parquet:"cstrategy_tc"`
}

// ParquetPresenter writes the full table to <Dir>/<slug>.parquet.
type ParquetPresenter struct {
	Dir     string
	Metrics *observability.Metrics
}

// Present implements backtest.Presenter.
func (p *ParquetPresenter) Present(table *backtest.ResultTable, title string) error {
	records := make([]ResultRecord, len(table.Rows))
	for i, r := range table.Rows {
		records[i] = ResultRecord{
			Timestamp:    r.TimestampMs,
			Price:        r.Price,
			Return:       r.Return,
			Position:     r.Position,
			Trade:        r.Trade,
			Strategy:     r.Strategy,
			StrategyNet:  r.StrategyNet,
			CReturns:     r.CReturns,
			CStrategy:    r.CStrategy,
			CStrategyNet: r.CStrategyNet,
		}
	}

	path := filepath.Join(p.Dir, Slug(title)+".parquet")
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	recordReport(p.Metrics, FormatParquet)
	return nil
}

// MultiPresenter fans out to several presenters. Every presenter runs;
// failures are joined.
type MultiPresenter []backtest.Presenter

// Present implements backtest.Presenter.
func (m MultiPresenter) Present(table *backtest.ResultTable, title string) error {
	var errs []error
	for _, p := range m {
		if err := p.Present(table, title); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPresenter logs the final curve values instead of writing files.
type LogPresenter struct {
	Logger *zap.Logger
}

// Present implements backtest.Presenter.
func (p *LogPresenter) Present(table *backtest.ResultTable, title string) error {
	final := table.Final()
	fields := []zap.Field{
		zap.String("title", title),
		zap.Int("rows", len(table.Rows)),
		zap.Float64("creturns", final.CReturns),
		zap.Float64("cstrategy", final.CStrategy),
		zap.Float64("trades", table.Trades),
	}
	if table.HasCost() {
		fields = append(fields, zap.Float64("cstrategy_tc", final.CStrategyNet))
	}
	p.Logger.Info("report", fields...)
	return nil
}

// NewPresenter builds a presenter writing every listed format to dir.
// No formats yields a LogPresenter.
func NewPresenter(dir string, formats []string, m *observability.Metrics, logger *zap.Logger) (backtest.Presenter, error) {
	if len(formats) == 0 {
		if logger == nil {
			logger = zap.NewNop()
		}
		return &LogPresenter{Logger: logger}, nil
	}

	var multi MultiPresenter
	for _, f := range formats {
		switch strings.ToLower(f) {
		case FormatCSV:
			multi = append(multi, &CSVPresenter{Dir: dir, Metrics: m})
		case FormatMarkdown, "md":
			multi = append(multi, &MarkdownPresenter{Dir: dir, Metrics: m})
		case FormatParquet:
			multi = append(multi, &ParquetPresenter{Dir: dir, Metrics: m})
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
	}
	if len(multi) == 1 {
		return multi[0], nil
	}
	return multi, nil
}

// Slug turns a report title into a file name stem.
// "EURUSD | SMA_CROSSOVER_42_252 | TC = 0.001" becomes "eurusd_sma_crossover_42_252_tc_0_001".
func Slug(title string) string {
	var sb strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r)
			pendingSep = false
			continue
		}
		pendingSep = true
	}
	if sb.Len() == 0 {
		return "report"
	}
	return sb.String()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func recordReport(m *observability.Metrics, format string) {
	if m != nil {
		m.RecordReport(format)
	}
}
