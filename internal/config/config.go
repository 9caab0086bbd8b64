// Package config loads and validates the YAML run configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"backtest-lab/internal/domain"
)

// Environment overrides applied after the file is decoded.
const (
	EnvPostgresDSN   = "BACKTEST_POSTGRES_DSN"
	EnvClickhouseDSN = "BACKTEST_CLICKHOUSE_DSN"
	EnvSQLitePath    = "BACKTEST_SQLITE_PATH"
	EnvLogLevel      = "BACKTEST_LOG_LEVEL"
	EnvHTTPAddr      = "BACKTEST_HTTP_ADDR"
)

// Data sources
const (
	SourceCSV     = "csv"
	SourceParquet = "parquet"
	SourceStore   = "store"
)

// Storage backends
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
)

// ErrInvalidWindow is returned when data.start is not before data.end.
var ErrInvalidWindow = errors.New("data.start must be before data.end")

// Config is the root of the YAML configuration.
type Config struct {
	Data     DataConfig     `yaml:"data" json:"data" jsonschema:"title=Data,description=Price series source"`
	Trading  TradingConfig  `yaml:"trading" json:"trading" jsonschema:"title=Trading"`
	Strategy StrategyConfig `yaml:"strategy" json:"strategy" jsonschema:"title=Strategy"`
	Optimize OptimizeConfig `yaml:"optimize" json:"optimize" jsonschema:"title=Optimize,description=Grid search settings"`
	Storage  StorageConfig  `yaml:"storage" json:"storage" jsonschema:"title=Storage"`
	Output   OutputConfig   `yaml:"output" json:"output" jsonschema:"title=Output,description=Report files written on replay"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging" jsonschema:"title=Logging"`
	Server   ServerConfig   `yaml:"server" json:"server" jsonschema:"title=Server"`
}

// DataConfig selects the price series.
type DataConfig struct {
	Source          string                     `yaml:"source" json:"source" jsonschema:"title=Source,enum=csv,enum=parquet,enum=store" validate:"required,oneof=csv parquet store"`
	Path            string                     `yaml:"path" json:"path,omitempty" jsonschema:"title=Path,description=CSV or Parquet file" validate:"required_unless=Source store"`
	Symbol          string                     `yaml:"symbol" json:"symbol" jsonschema:"title=Symbol" validate:"required"`
	TimestampColumn string                     `yaml:"timestamp_column" json:"timestamp_column,omitempty" jsonschema:"title=Timestamp Column,default=date"`
	PriceColumn     string                     `yaml:"price_column" json:"price_column,omitempty" jsonschema:"title=Price Column,default=close"`
	ReturnsColumn   string                     `yaml:"returns_column" json:"returns_column,omitempty" jsonschema:"title=Returns Column,default=returns"`
	PeriodsPerYear  int                        `yaml:"periods_per_year" json:"periods_per_year,omitempty" jsonschema:"title=Periods Per Year,description=Used to annualize report statistics,minimum=0" validate:"gte=0"`
	Start           optional.Option[time.Time] `yaml:"start" json:"start" jsonschema:"title=Start,description=Optional inclusive window start"`
	End             optional.Option[time.Time] `yaml:"end" json:"end" jsonschema:"title=End,description=Optional inclusive window end"`
}

// UnmarshalYAML decodes the optional window bounds. Fields absent from the
// document keep their current values.
func (d *DataConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain struct {
		Source          string     `yaml:"source"`
		Path            string     `yaml:"path"`
		Symbol          string     `yaml:"symbol"`
		TimestampColumn string     `yaml:"timestamp_column"`
		PriceColumn     string     `yaml:"price_column"`
		ReturnsColumn   string     `yaml:"returns_column"`
		PeriodsPerYear  int        `yaml:"periods_per_year"`
		Start           *time.Time `yaml:"start"`
		End             *time.Time `yaml:"end"`
	}

	p := plain{
		Source:          d.Source,
		Path:            d.Path,
		Symbol:          d.Symbol,
		TimestampColumn: d.TimestampColumn,
		PriceColumn:     d.PriceColumn,
		ReturnsColumn:   d.ReturnsColumn,
		PeriodsPerYear:  d.PeriodsPerYear,
	}
	if err := value.Decode(&p); err != nil {
		return err
	}

	d.Source = p.Source
	d.Path = p.Path
	d.Symbol = p.Symbol
	d.TimestampColumn = p.TimestampColumn
	d.PriceColumn = p.PriceColumn
	d.ReturnsColumn = p.ReturnsColumn
	d.PeriodsPerYear = p.PeriodsPerYear
	if p.Start != nil {
		d.Start = optional.Some(p.Start.UTC())
	}
	if p.End != nil {
		d.End = optional.Some(p.End.UTC())
	}
	return nil
}

// Window returns the evaluation window in Unix ms and whether any bound is set.
// Missing bounds are open.
func (d DataConfig) Window() (startMs, endMs int64, bounded bool) {
	startMs, endMs = math.MinInt64, math.MaxInt64
	if d.Start.IsSome() {
		startMs = d.Start.Unwrap().UnixMilli()
		bounded = true
	}
	if d.End.IsSome() {
		endMs = d.End.Unwrap().UnixMilli()
		bounded = true
	}
	return startMs, endMs, bounded
}

// TradingConfig holds trading assumptions.
type TradingConfig struct {
	CostPct float64 `yaml:"cost_pct" json:"cost_pct" jsonschema:"title=Cost Percent,description=Proportional trading cost in percent of traded notional,minimum=0" validate:"gte=0"`
}

// StrategyConfig selects the strategy variant.
type StrategyConfig struct {
	Type   string    `yaml:"type" json:"type" jsonschema:"title=Type,enum=sma_crossover,enum=ema_crossover,enum=momentum,enum=mean_reversion,enum=buy_and_hold" validate:"required,oneof=sma_crossover ema_crossover momentum mean_reversion buy_and_hold"`
	Params []float64 `yaml:"params" json:"params,omitempty" jsonschema:"title=Params,description=Positional parameters for a single evaluation"`
}

// Domain converts to the domain strategy config.
func (s StrategyConfig) Domain() domain.StrategyConfig {
	return domain.StrategyConfig{StrategyType: s.Type, Params: s.Params}
}

// OptimizeConfig configures the grid search.
type OptimizeConfig struct {
	Ranges      []domain.ParamRange `yaml:"ranges" json:"ranges,omitempty" jsonschema:"title=Ranges,description=One exclusive-stop range per strategy parameter" validate:"dive"`
	Workers     int                 `yaml:"workers" json:"workers" jsonschema:"title=Workers,minimum=0" validate:"gte=0"`
	SkipInvalid bool                `yaml:"skip_invalid" json:"skip_invalid" jsonschema:"title=Skip Invalid,description=Skip combinations the strategy rejects"`
}

// StorageConfig selects persistence backends.
// Backend holds price series. Runs go to SQLite when SQLitePath is set,
// else Postgres when PostgresDSN is set. Grid evaluations go to ClickHouse
// when ClickhouseDSN is set. Everything else stays in memory.
type StorageConfig struct {
	Backend       string `yaml:"backend" json:"backend" jsonschema:"title=Backend,enum=memory,enum=postgres,enum=clickhouse" validate:"required,oneof=memory postgres clickhouse"`
	PostgresDSN   string `yaml:"postgres_dsn" json:"postgres_dsn,omitempty" jsonschema:"title=Postgres DSN" validate:"required_if=Backend postgres"`
	ClickhouseDSN string `yaml:"clickhouse_dsn" json:"clickhouse_dsn,omitempty" jsonschema:"title=ClickHouse DSN" validate:"required_if=Backend clickhouse"`
	SQLitePath    string `yaml:"sqlite_path" json:"sqlite_path,omitempty" jsonschema:"title=SQLite Path"`
}

// OutputConfig configures report presenters.
type OutputConfig struct {
	Dir     string   `yaml:"dir" json:"dir" jsonschema:"title=Directory" validate:"required_with=Formats"`
	Formats []string `yaml:"formats" json:"formats,omitempty" jsonschema:"title=Formats,enum=csv,enum=markdown,enum=parquet" validate:"dive,oneof=csv markdown parquet"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" jsonschema:"title=Level,enum=debug,enum=info,enum=warn,enum=error" validate:"required,oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" jsonschema:"title=Format,enum=json,enum=console" validate:"required,oneof=json console"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr" jsonschema:"title=Address" validate:"required"`
}

// Default returns a configuration with every optional field filled in.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Source:          SourceCSV,
			TimestampColumn: "date",
			PriceColumn:     "close",
			ReturnsColumn:   "returns",
			PeriodsPerYear:  252,
			Start:           optional.None[time.Time](),
			End:             optional.None[time.Time](),
		},
		Strategy: StrategyConfig{Type: domain.StrategyTypeBuyAndHold},
		Optimize: OptimizeConfig{Workers: 1},
		Storage:  StorageConfig{Backend: BackendMemory},
		Output:   OutputConfig{Dir: "reports"},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Server:   ServerConfig{Addr: ":8080"},
	}
}

// Load reads path, loads .env from the working directory, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes YAML on top of Default, applies environment overrides and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv(EnvClickhouseDSN); v != "" {
		c.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv(EnvSQLitePath); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.Server.Addr = v
	}
}

// Validate checks struct tags and cross-field constraints.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Data.Start.IsSome() && c.Data.End.IsSome() && !c.Data.Start.Unwrap().Before(c.Data.End.Unwrap()) {
		return fmt.Errorf("invalid config: %w", ErrInvalidWindow)
	}
	return nil
}

// LoadEnvFile sets variables from a KEY=VALUE file. Missing files are ignored
// and variables already present in the environment are not overridden.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read env file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

// Schema returns the JSON Schema of Config.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}
			return nil
		},
	}

	schema := reflector.Reflect(&Config{})
	schema.Title = "backtest-lab-config"
	schema.Description = "Configuration schema for backtest-lab binaries"
	schema.Version = "http://json-schema.org/draft-07/schema#"
	return schema
}

// SchemaJSON returns the indented JSON Schema of Config.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}
