// Package config defines the immutable run parameters for backtest and
// forward-test runs, with YAML parsing, validation, and JSON-schema
// generation for editor tooling.
package config

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/internal/simulation"
	"github.com/tradesim-lab/tradesim/internal/simulation/metrics"
	"github.com/tradesim-lab/tradesim/internal/types"
	"github.com/tradesim-lab/tradesim/pkg/errors"
	"gopkg.in/yaml.v3"
)

// RunConfig carries the execution parameters shared by backtest and
// forward-test runs. All rates are fractions; all money values are decimals.
type RunConfig struct {
	Symbols        []string        `yaml:"symbols" json:"symbols" jsonschema:"title=Symbols,description=Instrument symbols to trade,required" validate:"required,min=1,dive,required"`
	Exchange       string          `yaml:"exchange" json:"exchange" jsonschema:"title=Exchange,description=Exchange label for all symbols,required" validate:"required"`
	Interval       types.Interval  `yaml:"interval" json:"interval" jsonschema:"title=Interval,description=Bar aggregation interval" validate:"required"`
	InitialCapital decimal.Decimal `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting cash balance,minimum=0"`
	CommissionRate decimal.Decimal `yaml:"commission_rate" json:"commission_rate" jsonschema:"title=Commission Rate,description=Fee fraction charged per fill notional"`
	SlippageRate   decimal.Decimal `yaml:"slippage_rate" json:"slippage_rate" jsonschema:"title=Slippage Rate,description=Adverse price deviation fraction on market fills"`
	// OrderSizePct is the fraction of current equity committed per entry.
	OrderSizePct decimal.Decimal `yaml:"order_size_pct" json:"order_size_pct" jsonschema:"title=Order Size Pct,description=Fraction of equity committed per entry"`
	// DecimalPrecision is the number of decimal places for quantities and
	// fill prices.
	DecimalPrecision int32 `yaml:"decimal_precision" json:"decimal_precision" jsonschema:"title=Decimal Precision,description=Decimal places for quantities and prices"`
	// AnnualizationFactor scales the Sharpe ratio; 252 fits daily bars.
	AnnualizationFactor float64          `yaml:"annualization_factor" json:"annualization_factor" jsonschema:"title=Annualization Factor,description=Sharpe annualization constant"`
	Strategy            string           `yaml:"strategy" json:"strategy" jsonschema:"title=Strategy,description=Registered strategy name,required" validate:"required"`
	StrategyParams      map[string]string `yaml:"strategy_params" json:"strategy_params" jsonschema:"title=Strategy Params,description=Free-form strategy parameters"`
	Risk                types.RiskParams `yaml:"risk" json:"risk" jsonschema:"title=Risk,description=Risk manager limits"`
}

// BacktestConfig adds the historical window and data location to the shared
// run parameters.
type BacktestConfig struct {
	RunConfig `yaml:",inline"`

	// DataPath points at the parquet or CSV bar file.
	DataPath  string                     `yaml:"data_path" json:"data_path" jsonschema:"title=Data Path,description=Parquet or CSV file with historical bars,required" validate:"required"`
	StartTime optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional window start"`
	EndTime   optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional window end"`
}

// ForwardTestConfig holds the parameters of one paper-trading session. A
// session trades a single instrument against a live quote stream.
type ForwardTestConfig struct {
	RunConfig `yaml:",inline"`
}

// runConfigYAML is the wire shape of RunConfig: rates arrive as plain YAML
// numbers and are converted to decimals after parsing.
type runConfigYAML struct {
	Symbols             []string          `yaml:"symbols"`
	Exchange            string            `yaml:"exchange"`
	Interval            types.Interval    `yaml:"interval"`
	InitialCapital      float64           `yaml:"initial_capital"`
	CommissionRate      float64           `yaml:"commission_rate"`
	SlippageRate        float64           `yaml:"slippage_rate"`
	OrderSizePct        float64           `yaml:"order_size_pct"`
	DecimalPrecision    int32             `yaml:"decimal_precision"`
	AnnualizationFactor float64           `yaml:"annualization_factor"`
	Strategy            string            `yaml:"strategy"`
	StrategyParams      map[string]string `yaml:"strategy_params"`
	Risk                types.RiskParams  `yaml:"risk"`
}

func (y runConfigYAML) toRunConfig() RunConfig {
	return RunConfig{
		Symbols:             y.Symbols,
		Exchange:            y.Exchange,
		Interval:            y.Interval,
		InitialCapital:      decimal.NewFromFloat(y.InitialCapital),
		CommissionRate:      decimal.NewFromFloat(y.CommissionRate),
		SlippageRate:        decimal.NewFromFloat(y.SlippageRate),
		OrderSizePct:        decimal.NewFromFloat(y.OrderSizePct),
		DecimalPrecision:    y.DecimalPrecision,
		AnnualizationFactor: y.AnnualizationFactor,
		Strategy:            y.Strategy,
		StrategyParams:      y.StrategyParams,
		Risk:                y.Risk,
	}
}

// UnmarshalYAML implements custom unmarshaling for BacktestConfig: the
// optional window bounds arrive as plain timestamps and money fields as
// plain numbers.
func (c *BacktestConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain struct {
		runConfigYAML `yaml:",inline"`

		DataPath  string     `yaml:"data_path"`
		StartTime *time.Time `yaml:"start_time"`
		EndTime   *time.Time `yaml:"end_time"`
	}

	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}

	c.RunConfig = p.toRunConfig()
	c.DataPath = p.DataPath
	c.StartTime = optional.None[time.Time]()
	c.EndTime = optional.None[time.Time]()

	if p.StartTime != nil {
		c.StartTime = optional.Some(*p.StartTime)
	}

	if p.EndTime != nil {
		c.EndTime = optional.Some(*p.EndTime)
	}

	return nil
}

// UnmarshalYAML implements custom unmarshaling for ForwardTestConfig.
func (c *ForwardTestConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var p runConfigYAML
	if err := unmarshal(&p); err != nil {
		return err
	}

	c.RunConfig = p.toRunConfig()

	return nil
}

// applyDefaults fills the optional run parameters the way most runs want
// them: full equity per entry, 8 decimal places, daily Sharpe annualization,
// default risk limits.
func (c *RunConfig) applyDefaults() {
	if c.OrderSizePct.IsZero() {
		c.OrderSizePct = decimal.NewFromInt(1)
	}

	if c.DecimalPrecision == 0 {
		c.DecimalPrecision = 8
	}

	if c.AnnualizationFactor == 0 {
		c.AnnualizationFactor = metrics.DefaultAnnualizationFactor
	}

	if c.Interval == "" {
		c.Interval = types.Interval1d
	}

	// An entirely empty risk section gets the defaults; a partially
	// configured one is taken as-is.
	if c.Risk.StopLossPct.IsNone() && c.Risk.TakeProfitPct.IsNone() &&
		c.Risk.MaxPositionPct.IsNone() && c.Risk.DailyLossLimitPct.IsNone() &&
		c.Risk.MaxExposurePct.IsNone() && c.Risk.MaxOpenPositions == 0 {
		c.Risk = types.DefaultRiskParams()
	}
}

// Validate checks the shared run parameters.
func (c *RunConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid run config", err)
	}

	if !c.Interval.IsValid() {
		return errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval %q", c.Interval)
	}

	return c.Simulation().Validate()
}

// Simulation maps the run parameters onto the driver configuration.
func (c *RunConfig) Simulation() simulation.Config {
	return simulation.Config{
		InitialCapital:   c.InitialCapital,
		CommissionRate:   c.CommissionRate,
		SlippageRate:     c.SlippageRate,
		OrderSizePct:     c.OrderSizePct,
		DecimalPrecision: c.DecimalPrecision,
		Risk:             c.Risk,
	}
}

// Metrics maps the run parameters onto the metrics configuration.
func (c *RunConfig) Metrics() metrics.Config {
	return metrics.Config{
		InitialCapital:      c.InitialCapital,
		AnnualizationFactor: c.AnnualizationFactor,
	}
}

// Validate checks the backtest parameters, including window ordering.
func (c *BacktestConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid backtest config", err)
	}

	if err := c.RunConfig.Validate(); err != nil {
		return err
	}

	start, startErr := c.StartTime.Take()

	end, endErr := c.EndTime.Take()
	if startErr == nil && endErr == nil && !start.Before(end) {
		return errors.Newf(errors.ErrCodeInvalidTimeWindow,
			"start time %s is not before end time %s", start, end)
	}

	return nil
}

// Validate checks the forward-test parameters. Sessions trade exactly one
// instrument.
func (c *ForwardTestConfig) Validate() error {
	if err := c.RunConfig.Validate(); err != nil {
		return err
	}

	if len(c.Symbols) != 1 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"forward test trades exactly one symbol, got %d", len(c.Symbols))
	}

	return nil
}

// ParseBacktestConfig parses, defaults, and validates a YAML backtest
// configuration.
func ParseBacktestConfig(data []byte) (*BacktestConfig, error) {
	var cfg BacktestConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse backtest config", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParseForwardTestConfig parses, defaults, and validates a YAML forward-test
// configuration.
func ParseForwardTestConfig(data []byte) (*ForwardTestConfig, error) {
	var cfg ForwardTestConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse forward test config", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// GenerateSchema generates a JSON schema for the backtest configuration.
func (c *BacktestConfig) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			if strings.Contains(t.String(), "optional.Option[decimal.Decimal]") {
				return &jsonschema.Schema{Type: "number"}
			}

			if t.String() == "decimal.Decimal" {
				return &jsonschema.Schema{Type: "number"}
			}

			if t.String() == "types.Interval" {
				return &jsonschema.Schema{
					Type: "string",
					Enum: types.AllIntervals,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "backtest-config"
	schema.Description = "Configuration schema for backtest runs"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates the backtest configuration schema as an
// indented JSON string.
func (c *BacktestConfig) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
