package types

import (
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/pkg/errors"
)

// RiskParams configures the risk manager for one run or session. All
// percentage values are fractions in [0, 1]; a None value disables the
// corresponding rule.
type RiskParams struct {
	// StopLossPct closes a position once its unrealized loss reaches this
	// fraction of the entry price.
	StopLossPct optional.Option[decimal.Decimal] `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	// TakeProfitPct closes a position once its unrealized gain reaches
	// this fraction of the entry price.
	TakeProfitPct optional.Option[decimal.Decimal] `yaml:"take_profit_pct" json:"take_profit_pct"`
	// MaxPositionPct caps a single position's value at this fraction of
	// total equity.
	MaxPositionPct optional.Option[decimal.Decimal] `yaml:"max_position_pct" json:"max_position_pct"`
	// DailyLossLimitPct blocks new entries for the rest of the trading day
	// once the day's equity loss reaches this fraction.
	DailyLossLimitPct optional.Option[decimal.Decimal] `yaml:"daily_loss_limit_pct" json:"daily_loss_limit_pct"`
	// MaxExposurePct caps the sum of absolute position values at this
	// fraction of total equity.
	MaxExposurePct optional.Option[decimal.Decimal] `yaml:"max_exposure_pct" json:"max_exposure_pct"`
	// MaxOpenPositions caps the number of concurrently open positions.
	// Zero means unlimited.
	MaxOpenPositions int `yaml:"max_open_positions" json:"max_open_positions"`
}

// DefaultRiskParams returns the default risk configuration: a 100% exposure
// cap and otherwise disabled rules.
func DefaultRiskParams() RiskParams {
	return RiskParams{
		StopLossPct:       optional.None[decimal.Decimal](),
		TakeProfitPct:     optional.None[decimal.Decimal](),
		MaxPositionPct:    optional.None[decimal.Decimal](),
		DailyLossLimitPct: optional.None[decimal.Decimal](),
		MaxExposurePct:    optional.Some(decimal.NewFromInt(1)),
		MaxOpenPositions:  0,
	}
}

// UnmarshalYAML implements custom unmarshaling for RiskParams: absent keys
// become None, present keys arrive as plain numbers.
func (r *RiskParams) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type params struct {
		StopLossPct       *float64 `yaml:"stop_loss_pct"`
		TakeProfitPct     *float64 `yaml:"take_profit_pct"`
		MaxPositionPct    *float64 `yaml:"max_position_pct"`
		DailyLossLimitPct *float64 `yaml:"daily_loss_limit_pct"`
		MaxExposurePct    *float64 `yaml:"max_exposure_pct"`
		MaxOpenPositions  int      `yaml:"max_open_positions"`
	}

	var p params
	if err := unmarshal(&p); err != nil {
		return err
	}

	*r = RiskParams{
		StopLossPct:       fromFloatPtr(p.StopLossPct),
		TakeProfitPct:     fromFloatPtr(p.TakeProfitPct),
		MaxPositionPct:    fromFloatPtr(p.MaxPositionPct),
		DailyLossLimitPct: fromFloatPtr(p.DailyLossLimitPct),
		MaxExposurePct:    fromFloatPtr(p.MaxExposurePct),
		MaxOpenPositions:  p.MaxOpenPositions,
	}

	return nil
}

func fromFloatPtr(value *float64) optional.Option[decimal.Decimal] {
	if value == nil {
		return optional.None[decimal.Decimal]()
	}

	return optional.Some(decimal.NewFromFloat(*value))
}

// Validate checks that every configured fraction lies in [0, 1].
func (r RiskParams) Validate() error {
	fractions := map[string]optional.Option[decimal.Decimal]{
		"stop_loss_pct":        r.StopLossPct,
		"take_profit_pct":      r.TakeProfitPct,
		"max_position_pct":     r.MaxPositionPct,
		"daily_loss_limit_pct": r.DailyLossLimitPct,
		"max_exposure_pct":     r.MaxExposurePct,
	}

	one := decimal.NewFromInt(1)

	for name, opt := range fractions {
		if opt.IsNone() {
			continue
		}

		value := opt.Unwrap()
		if value.IsNegative() || value.GreaterThan(one) {
			return errors.Newf(errors.ErrCodeInvalidRiskParams,
				"%s must be a fraction in [0, 1], got %s", name, value)
		}
	}

	if r.MaxOpenPositions < 0 {
		return errors.Newf(errors.ErrCodeInvalidRiskParams,
			"max_open_positions must be non-negative, got %d", r.MaxOpenPositions)
	}

	return nil
}
