package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the immutable record of one executed order (a fill).
type Trade struct {
	ID       string `yaml:"id" json:"id"`
	OrderID  string `yaml:"order_id" json:"order_id"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Exchange string `yaml:"exchange" json:"exchange"`
	Side     Side   `yaml:"side" json:"side"`
	// Quantity is the executed quantity, always positive.
	Quantity decimal.Decimal `yaml:"quantity" json:"quantity"`
	// Price is the fill price after slippage.
	Price decimal.Decimal `yaml:"price" json:"price"`
	Time  time.Time       `yaml:"time" json:"time"`
	// Commission is the fee charged for this fill, deducted from cash at
	// fill time.
	Commission decimal.Decimal `yaml:"commission" json:"commission"`
	// ClosedQuantity is the portion of the fill that reduced an existing
	// position. Zero for fills that only open or add to a position.
	ClosedQuantity decimal.Decimal `yaml:"closed_quantity" json:"closed_quantity"`
	// RealizedPnL is the profit realized by the closing portion of this
	// fill. Zero for fills that only open or add to a position.
	RealizedPnL decimal.Decimal `yaml:"realized_pnl" json:"realized_pnl"`
	Reason      Reason          `yaml:"reason" json:"reason"`
}

// InstrumentKey returns the portfolio key for the trade's instrument.
func (t Trade) InstrumentKey() string {
	return InstrumentKey(t.Exchange, t.Symbol)
}

// Notional returns the gross traded value, quantity * price.
func (t Trade) Notional() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// CashDelta returns the signed cash impact of the fill: buys pay the
// notional, sells receive it, and commission is always deducted.
func (t Trade) CashDelta() decimal.Decimal {
	if t.Side == SideBuy {
		return t.Notional().Neg().Sub(t.Commission)
	}

	return t.Notional().Sub(t.Commission)
}

// SignedQuantity returns the position delta: positive for buys, negative for
// sells.
func (t Trade) SignedQuantity() decimal.Decimal {
	if t.Side == SideBuy {
		return t.Quantity
	}

	return t.Quantity.Neg()
}
