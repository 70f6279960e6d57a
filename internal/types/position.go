package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the current holding of one instrument. Quantity is signed:
// positive for long, negative for short. A flat position (quantity zero) is
// removed from the portfolio's active set.
type Position struct {
	Symbol   string `yaml:"symbol" json:"symbol"`
	Exchange string `yaml:"exchange" json:"exchange"`
	// Quantity is the signed number of units held.
	Quantity decimal.Decimal `yaml:"quantity" json:"quantity"`
	// AvgEntryPrice is the quantity-weighted average entry price of the
	// currently open quantity.
	AvgEntryPrice decimal.Decimal `yaml:"avg_entry_price" json:"avg_entry_price"`
	// RealizedPnL accumulates monotonically across the position's life.
	RealizedPnL decimal.Decimal `yaml:"realized_pnl" json:"realized_pnl"`
	OpenedAt    time.Time       `yaml:"opened_at" json:"opened_at"`
	UpdatedAt   time.Time       `yaml:"updated_at" json:"updated_at"`
}

// InstrumentKey returns the portfolio key for the position's instrument.
func (p Position) InstrumentKey() string {
	return InstrumentKey(p.Exchange, p.Symbol)
}

// IsFlat reports whether the position holds no units.
func (p Position) IsFlat() bool {
	return p.Quantity.IsZero()
}

// IsLong reports whether the position quantity is positive.
func (p Position) IsLong() bool {
	return p.Quantity.IsPositive()
}

// DirectionSign returns 1 for long positions, -1 for short, 0 for flat.
func (p Position) DirectionSign() decimal.Decimal {
	return decimal.NewFromInt(int64(p.Quantity.Sign()))
}

// MarketValue returns the signed value of the position at the given mark
// price. Derived from current state, never cached.
func (p Position) MarketValue(mark decimal.Decimal) decimal.Decimal {
	return p.Quantity.Mul(mark)
}

// Exposure returns the absolute value of the position at the mark price.
func (p Position) Exposure(mark decimal.Decimal) decimal.Decimal {
	return p.MarketValue(mark).Abs()
}

// UnrealizedPnL returns the open profit at the given mark price. A flat
// position always has zero unrealized P&L.
func (p Position) UnrealizedPnL(mark decimal.Decimal) decimal.Decimal {
	if p.IsFlat() {
		return decimal.Zero
	}

	return mark.Sub(p.AvgEntryPrice).Mul(p.Quantity)
}

// UnrealizedPct returns the open profit as a signed fraction of the entry
// price, adjusted for direction so that a losing short is negative too.
func (p Position) UnrealizedPct(mark decimal.Decimal) decimal.Decimal {
	if p.IsFlat() || p.AvgEntryPrice.IsZero() {
		return decimal.Zero
	}

	return mark.Sub(p.AvgEntryPrice).Div(p.AvgEntryPrice).Mul(p.DirectionSign())
}
