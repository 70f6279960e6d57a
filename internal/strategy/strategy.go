package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/internal/types"
)

// Context is the read-only market and portfolio view handed to a strategy
// for one tick. The driver builds a fresh context per tick; strategies must
// not retain references across ticks.
type Context struct {
	// Portfolio is a snapshot of the run's portfolio.
	Portfolio types.Portfolio
	// Marks holds the current mark price per instrument key.
	Marks map[string]decimal.Decimal
	// Equity is the portfolio's total equity at the current marks.
	Equity decimal.Decimal
}

// Strategy maps market context and portfolio state to a trading signal. It
// is a capability: the engine never inspects the concrete type. A strategy
// may keep internal state (indicator windows) but must be deterministic for
// a given bar sequence.
type Strategy interface {
	// Name identifies the strategy in orders, trades, and results.
	Name() string
	// OnBar evaluates one bar and returns a signal. Returning a Hold
	// signal means no action this tick.
	OnBar(ctx Context, bar types.Bar) (types.Signal, error)
}

// HasPosition reports whether the context's portfolio holds the bar's
// instrument.
func (c Context) HasPosition(bar types.Bar) (types.Position, bool) {
	return c.Portfolio.Position(bar.InstrumentKey())
}
