// Package simulator models order execution against market data. It owns the
// pending-order set for one run and fills orders under deterministic rules:
// market orders at the bar open adjusted by slippage, limit orders at the
// limit price when the bar range crosses it, stop orders once the bar range
// touches the stop price.
package simulator

import (
	"go.uber.org/zap"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/internal/logger"
	"github.com/tradesim-lab/tradesim/internal/types"
)

// Config holds the execution-model parameters for one run.
type Config struct {
	// CommissionRate is the fee fraction charged on every fill's notional.
	CommissionRate decimal.Decimal
	// SlippageRate is the adverse price deviation fraction applied to
	// market-style fills. Buys pay up, sells receive down.
	SlippageRate decimal.Decimal
	// Precision is the number of decimal places fill prices are rounded to.
	Precision int32
}

// Simulator fills orders against incoming bars. It is single-run scoped and
// not safe for concurrent use; the driver calls it from one goroutine.
type Simulator struct {
	cfg     Config
	logger  *logger.Logger
	pending []*types.Order
	// armed tracks stop and stop-limit orders whose stop price has been
	// touched. An armed stop-limit rests as a limit order afterwards.
	armed map[string]bool
}

// NewSimulator creates an order simulator with an empty pending set.
func NewSimulator(cfg Config, log *logger.Logger) *Simulator {
	return &Simulator{
		cfg:     cfg,
		logger:  log,
		pending: make([]*types.Order, 0),
		armed:   make(map[string]bool),
	}
}

// Submit validates the order and adds it to the pending set. An order that
// fails validation is marked Rejected and never becomes pending; this is a
// recorded outcome, not an error.
func (s *Simulator) Submit(order *types.Order) error {
	if err := order.Validate(); err != nil {
		return order.MarkRejected(types.Reason{
			Reason:  types.OrderReasonInvalidQuantity,
			Message: err.Error(),
		})
	}

	s.pending = append(s.pending, order)

	s.logger.Debug("order submitted",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("kind", string(order.Kind)),
		zap.String("quantity", order.Quantity.String()),
	)

	return nil
}

// PendingCount returns the number of orders waiting to fill.
func (s *Simulator) PendingCount() int {
	return len(s.pending)
}

// ProcessBar attempts to fill every pending order of the bar's instrument,
// in submission order. Filled orders leave the pending set; a filled order
// can never fill again.
func (s *Simulator) ProcessBar(bar types.Bar) []types.Trade {
	trades := make([]types.Trade, 0)
	remaining := s.pending[:0]

	for _, order := range s.pending {
		if order.InstrumentKey() != bar.InstrumentKey() {
			remaining = append(remaining, order)

			continue
		}

		trade, filled := s.TryFill(order, bar)
		if !filled {
			remaining = append(remaining, order)

			continue
		}

		trades = append(trades, trade)
	}

	s.pending = remaining

	return trades
}

// TryFill attempts to fill one pending order against the bar. On success the
// order is marked Filled and the resulting trade is returned; realized P&L
// on the trade is left for the ledger to determine.
func (s *Simulator) TryFill(order *types.Order, bar types.Bar) (types.Trade, bool) {
	price, ok := s.fillPrice(order, bar)
	if !ok {
		return types.Trade{}, false
	}

	if err := order.MarkFilled(); err != nil {
		// A terminal order in the pending set is an internal bug; never
		// fill it a second time.
		s.logger.Error("refusing to fill terminal order",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)

		return types.Trade{}, false
	}

	delete(s.armed, order.ID)

	price = price.Round(s.cfg.Precision)
	commission := price.Mul(order.Quantity).Mul(s.cfg.CommissionRate).Round(s.cfg.Precision)

	// Trade ids derive from the order id so repeated runs over the same
	// input produce identical trade logs.
	tradeID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("trade:"+order.ID)).String()

	trade := types.Trade{
		ID:             tradeID,
		OrderID:        order.ID,
		Symbol:         order.Symbol,
		Exchange:       order.Exchange,
		Side:           order.Side,
		Quantity:       order.Quantity,
		Price:          price,
		Time:           bar.Time,
		Commission:     commission,
		ClosedQuantity: decimal.Zero,
		RealizedPnL:    decimal.Zero,
		Reason:         order.Reason,
	}

	s.logger.Debug("order filled",
		zap.String("order_id", order.ID),
		zap.String("trade_id", trade.ID),
		zap.String("price", price.String()),
		zap.String("commission", commission.String()),
	)

	return trade, true
}

// fillPrice decides whether the order fills against this bar and at what
// price, per order kind.
func (s *Simulator) fillPrice(order *types.Order, bar types.Bar) (decimal.Decimal, bool) {
	switch order.Kind {
	case types.OrderKindMarket:
		return s.slipped(bar.Open, order.Side), true

	case types.OrderKindLimit:
		return s.limitFillPrice(order.Side, order.LimitPrice.Unwrap(), bar)

	case types.OrderKindStop:
		stop := order.StopPrice.Unwrap()
		if !stopTriggered(order.Side, stop, bar) {
			return decimal.Decimal{}, false
		}

		// A bar that opens beyond the stop gaps through it; the fill
		// happens at the open, not the stale stop price.
		base := stop
		if order.Side == types.SideBuy && bar.Open.GreaterThan(stop) {
			base = bar.Open
		}

		if order.Side == types.SideSell && bar.Open.LessThan(stop) {
			base = bar.Open
		}

		return s.slipped(base, order.Side), true

	case types.OrderKindStopLimit:
		if !s.armed[order.ID] {
			if !stopTriggered(order.Side, order.StopPrice.Unwrap(), bar) {
				return decimal.Decimal{}, false
			}

			s.armed[order.ID] = true
		}

		return s.limitFillPrice(order.Side, order.LimitPrice.Unwrap(), bar)
	}

	return decimal.Decimal{}, false
}

// limitFillPrice fills a resting limit order. A marketable limit, with the
// whole bar on the favorable side of the limit price, fills like a market
// order capped at the limit; this equivalence is deliberate, not a special
// case. An in-range limit fills at the limit price itself, never with
// favorable slippage.
func (s *Simulator) limitFillPrice(side types.Side, limit decimal.Decimal, bar types.Bar) (decimal.Decimal, bool) {
	if side == types.SideBuy {
		if bar.Low.GreaterThan(limit) {
			return decimal.Decimal{}, false
		}

		if bar.High.LessThan(limit) {
			price := s.slipped(bar.Open, side)
			if price.GreaterThan(limit) {
				price = limit
			}

			return price, true
		}

		return limit, true
	}

	if bar.High.LessThan(limit) {
		return decimal.Decimal{}, false
	}

	if bar.Low.GreaterThan(limit) {
		price := s.slipped(bar.Open, side)
		if price.LessThan(limit) {
			price = limit
		}

		return price, true
	}

	return limit, true
}

// stopTriggered reports whether the bar touched the stop threshold: buys
// trigger when the bar trades at or above the stop, sells at or below.
func stopTriggered(side types.Side, stop decimal.Decimal, bar types.Bar) bool {
	if side == types.SideBuy {
		return bar.High.GreaterThanOrEqual(stop)
	}

	return bar.Low.LessThanOrEqual(stop)
}

// slipped applies the adverse slippage adjustment to a base price.
func (s *Simulator) slipped(base decimal.Decimal, side types.Side) decimal.Decimal {
	one := decimal.NewFromInt(1)

	if side == types.SideBuy {
		return base.Mul(one.Add(s.cfg.SlippageRate))
	}

	return base.Mul(one.Sub(s.cfg.SlippageRate))
}

// CancelAll cancels every pending order with the given reason and returns
// the cancelled orders. Used at end of run so resting orders are never
// silently dropped.
func (s *Simulator) CancelAll(reason types.Reason) []*types.Order {
	cancelled := make([]*types.Order, 0, len(s.pending))

	for _, order := range s.pending {
		if err := order.MarkCancelled(reason); err != nil {
			s.logger.Error("failed to cancel pending order",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)

			continue
		}

		cancelled = append(cancelled, order)
	}

	s.pending = s.pending[:0]
	s.armed = make(map[string]bool)

	return cancelled
}
