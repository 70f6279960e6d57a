// Package ledger owns the cash balance and position state of one run. Fills
// are applied exactly once per trade id, average entry prices are
// quantity-weighted, and reducing fills realize P&L on the closed portion.
// Equity is always derived from cash, positions, and mark prices.
package ledger

import (
	"time"

	"go.uber.org/zap"

	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/internal/logger"
	"github.com/tradesim-lab/tradesim/internal/types"
	"github.com/tradesim-lab/tradesim/pkg/errors"
)

// Ledger applies trades to a portfolio. Single-run scoped; the driver is the
// only writer.
type Ledger struct {
	portfolio *types.Portfolio
	logger    *logger.Logger
	// applied guards against double-counting: re-applying a known trade id
	// is a no-op.
	applied         map[string]struct{}
	totalCommission decimal.Decimal
	totalRealized   decimal.Decimal
}

// NewLedger creates a ledger over a fresh cash-only portfolio.
func NewLedger(initialCapital decimal.Decimal, createdAt time.Time, log *logger.Logger) *Ledger {
	return &Ledger{
		portfolio:       types.NewPortfolio(initialCapital, createdAt),
		logger:          log,
		applied:         make(map[string]struct{}),
		totalCommission: decimal.Zero,
		totalRealized:   decimal.Zero,
	}
}

// Portfolio returns the ledger's live portfolio. Callers outside the driver
// loop must use Snapshot instead.
func (l *Ledger) Portfolio() *types.Portfolio {
	return l.portfolio
}

// Snapshot returns an atomic deep copy of the portfolio for reporting.
func (l *Ledger) Snapshot() types.Portfolio {
	return l.portfolio.Snapshot()
}

// TotalCommission returns the cumulative commission paid.
func (l *Ledger) TotalCommission() decimal.Decimal {
	return l.totalCommission
}

// TotalRealized returns the cumulative realized P&L across all positions.
func (l *Ledger) TotalRealized() decimal.Decimal {
	return l.totalRealized
}

// Applied reports whether the trade id has already been applied.
func (l *Ledger) Applied(tradeID string) bool {
	_, ok := l.applied[tradeID]

	return ok
}

// Apply updates cash and position state for one fill. It is idempotent per
// trade id. The trade's ClosedQuantity and RealizedPnL fields are set from
// the ledger's view of the position at application time. A fill that flips a
// position through flat closes the old side and opens the new one as a
// single atomic operation.
func (l *Ledger) Apply(trade *types.Trade) (types.Position, error) {
	if trade.ID == "" {
		return types.Position{}, errors.New(errors.ErrCodeLedgerInconsistent, "trade has no id")
	}

	key := trade.InstrumentKey()

	if l.Applied(trade.ID) {
		l.logger.Warn("ignoring already-applied trade",
			zap.Error(errors.Newf(errors.ErrCodeDuplicateTrade, "trade %s already applied", trade.ID)),
		)

		pos, _ := l.portfolio.Position(key)

		return pos, nil
	}

	if trade.Quantity.LessThanOrEqual(decimal.Zero) {
		return types.Position{}, errors.Newf(errors.ErrCodeLedgerInconsistent,
			"trade %s has non-positive quantity %s", trade.ID, trade.Quantity)
	}

	pos, _ := l.portfolio.Position(key)
	if pos.Symbol == "" {
		pos = types.Position{
			Symbol:        trade.Symbol,
			Exchange:      trade.Exchange,
			Quantity:      decimal.Zero,
			AvgEntryPrice: decimal.Zero,
			RealizedPnL:   decimal.Zero,
			OpenedAt:      trade.Time,
			UpdatedAt:     trade.Time,
		}
	}

	delta := trade.SignedQuantity()

	switch {
	case pos.Quantity.IsZero() || pos.Quantity.Sign() == delta.Sign():
		pos = l.addToPosition(pos, delta, trade)
	case delta.Abs().LessThanOrEqual(pos.Quantity.Abs()):
		pos = l.reducePosition(pos, delta, trade)
	default:
		pos = l.flipPosition(pos, delta, trade)
	}

	pos.UpdatedAt = trade.Time

	l.portfolio.Cash = l.portfolio.Cash.Add(trade.CashDelta())
	l.portfolio.UpdatedAt = trade.Time
	l.portfolio.SetPosition(pos)

	l.totalCommission = l.totalCommission.Add(trade.Commission)
	l.totalRealized = l.totalRealized.Add(trade.RealizedPnL)
	l.applied[trade.ID] = struct{}{}

	return pos, nil
}

// addToPosition opens a position or adds to one in the same direction,
// re-weighting the average entry price.
func (l *Ledger) addToPosition(pos types.Position, delta decimal.Decimal, trade *types.Trade) types.Position {
	oldAbs := pos.Quantity.Abs()
	addAbs := delta.Abs()
	newAbs := oldAbs.Add(addAbs)

	weighted := pos.AvgEntryPrice.Mul(oldAbs).Add(trade.Price.Mul(addAbs))
	pos.AvgEntryPrice = weighted.Div(newAbs)

	if pos.Quantity.IsZero() {
		pos.OpenedAt = trade.Time
	}

	pos.Quantity = pos.Quantity.Add(delta)

	return pos
}

// reducePosition closes part or all of a position, realizing P&L on the
// closed quantity.
func (l *Ledger) reducePosition(pos types.Position, delta decimal.Decimal, trade *types.Trade) types.Position {
	closed := delta.Abs()
	realized := closed.Mul(trade.Price.Sub(pos.AvgEntryPrice)).Mul(pos.DirectionSign())

	trade.ClosedQuantity = closed
	trade.RealizedPnL = realized

	pos.RealizedPnL = pos.RealizedPnL.Add(realized)
	pos.Quantity = pos.Quantity.Add(delta)

	return pos
}

// flipPosition closes the whole position and opens the residual quantity in
// the opposite direction at a fresh entry price.
func (l *Ledger) flipPosition(pos types.Position, delta decimal.Decimal, trade *types.Trade) types.Position {
	closed := pos.Quantity.Abs()
	realized := closed.Mul(trade.Price.Sub(pos.AvgEntryPrice)).Mul(pos.DirectionSign())

	trade.ClosedQuantity = closed
	trade.RealizedPnL = realized

	residual := delta.Add(pos.Quantity)

	return types.Position{
		Symbol:        pos.Symbol,
		Exchange:      pos.Exchange,
		Quantity:      residual,
		AvgEntryPrice: trade.Price,
		RealizedPnL:   decimal.Zero,
		OpenedAt:      trade.Time,
		UpdatedAt:     trade.Time,
	}
}
