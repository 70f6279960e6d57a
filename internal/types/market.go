package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Interval is the bar aggregation interval.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

// intervalSeconds maps each interval to its duration in seconds.
var intervalSeconds = map[Interval]int64{
	Interval1m:  60,
	Interval5m:  300,
	Interval15m: 900,
	Interval30m: 1800,
	Interval1h:  3600,
	Interval4h:  14400,
	Interval1d:  86400,
	Interval1w:  604800,
	Interval1M:  2592000,
}

// Duration returns the nominal duration of one bar of this interval.
func (i Interval) Duration() time.Duration {
	return time.Duration(intervalSeconds[i]) * time.Second
}

// IsValid reports whether the interval is one of the supported values.
func (i Interval) IsValid() bool {
	_, ok := intervalSeconds[i]

	return ok
}

// AllIntervals lists the supported intervals, used for schema generation.
var AllIntervals = []any{
	Interval1m, Interval5m, Interval15m, Interval30m,
	Interval1h, Interval4h, Interval1d, Interval1w, Interval1M,
}

// InstrumentKey builds the canonical key identifying an instrument within a
// portfolio: "<exchange>:<symbol>".
func InstrumentKey(exchange, symbol string) string {
	return fmt.Sprintf("%s:%s", exchange, symbol)
}

// Bar is one OHLCV candle for a symbol/interval/timestamp. Bars are
// immutable once emitted by a data source.
type Bar struct {
	Symbol   string          `yaml:"symbol" json:"symbol" validate:"required"`
	Exchange string          `yaml:"exchange" json:"exchange" validate:"required"`
	Interval Interval        `yaml:"interval" json:"interval"`
	Time     time.Time       `yaml:"time" json:"time" validate:"required"`
	Open     decimal.Decimal `yaml:"open" json:"open"`
	High     decimal.Decimal `yaml:"high" json:"high"`
	Low      decimal.Decimal `yaml:"low" json:"low"`
	Close    decimal.Decimal `yaml:"close" json:"close"`
	Volume   decimal.Decimal `yaml:"volume" json:"volume"`
}

// InstrumentKey returns the portfolio key for the bar's instrument.
func (b Bar) InstrumentKey() string {
	return InstrumentKey(b.Exchange, b.Symbol)
}

// Crosses reports whether the bar's [low, high] range contains price.
func (b Bar) Crosses(price decimal.Decimal) bool {
	return b.Low.LessThanOrEqual(price) && b.High.GreaterThanOrEqual(price)
}

// Quote is a single live tick: the last traded price for an instrument at an
// instant. Forward-test sessions advance one quote at a time.
type Quote struct {
	Symbol   string          `yaml:"symbol" json:"symbol"`
	Exchange string          `yaml:"exchange" json:"exchange"`
	Time     time.Time       `yaml:"time" json:"time"`
	Price    decimal.Decimal `yaml:"price" json:"price"`
	Volume   decimal.Decimal `yaml:"volume" json:"volume"`
}

// Bar converts the quote into a degenerate single-price bar so that backtest
// and forward-test share one tick pipeline.
func (q Quote) Bar() Bar {
	return Bar{
		Symbol:   q.Symbol,
		Exchange: q.Exchange,
		Interval: "",
		Time:     q.Time,
		Open:     q.Price,
		High:     q.Price,
		Low:      q.Price,
		Close:    q.Price,
		Volume:   q.Volume,
	}
}
