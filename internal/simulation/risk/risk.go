// Package risk gates orders against configured limits and forces exits on
// stop-loss and take-profit breaches. Exit checks run ahead of the strategy
// each tick; pre-trade checks run before an order reaches the simulator.
package risk

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/internal/logger"
	"github.com/tradesim-lab/tradesim/internal/types"
)

// Manager evaluates risk rules for one run. Single-run scoped; the driver is
// the only caller.
type Manager struct {
	params types.RiskParams
	logger *logger.Logger
	// day is the current UTC trading day, "2006-01-02".
	day            string
	dayStartEquity decimal.Decimal
	// dailyBreached blocks new entries for the remainder of the day once
	// the daily loss limit is hit. Exits stay permitted.
	dailyBreached bool
}

// NewManager creates a risk manager with the given parameters.
func NewManager(params types.RiskParams, log *logger.Logger) *Manager {
	return &Manager{
		params:         params,
		logger:         log,
		day:            "",
		dayStartEquity: decimal.Zero,
		dailyBreached:  false,
	}
}

// OnTick rolls the trading day and re-evaluates the daily loss limit against
// pre-trade equity. Must be called once per tick before exit checks.
func (m *Manager) OnTick(at time.Time, equity decimal.Decimal) {
	day := at.UTC().Format("2006-01-02")
	if day != m.day {
		m.day = day
		m.dayStartEquity = equity
		m.dailyBreached = false
	}

	limit, ok := m.params.DailyLossLimitPct.Take()
	if ok != nil || m.dailyBreached || m.dayStartEquity.LessThanOrEqual(decimal.Zero) {
		return
	}

	loss := m.dayStartEquity.Sub(equity).Div(m.dayStartEquity)
	if loss.GreaterThanOrEqual(limit) {
		m.dailyBreached = true

		m.logger.Warn("daily loss limit breached, blocking new entries",
			zap.String("day", m.day),
			zap.String("loss_pct", loss.String()),
			zap.String("limit_pct", limit.String()),
		)
	}
}

// DailyBreached reports whether entries are blocked for the current day.
func (m *Manager) DailyBreached() bool {
	return m.dailyBreached
}

// CheckExits inspects the position of the bar's instrument at the current
// mark and returns a synthetic exit signal when a stop-loss or take-profit
// threshold is breached. The driver consumes this ahead of the strategy's
// own signal for the tick.
func (m *Manager) CheckExits(portfolio *types.Portfolio, bar types.Bar) (types.Signal, bool) {
	pos, ok := portfolio.Position(bar.InstrumentKey())
	if !ok || pos.IsFlat() {
		return types.Signal{}, false
	}

	mark := bar.Close
	pct := pos.UnrealizedPct(mark)

	if stop, err := m.params.StopLossPct.Take(); err == nil {
		if pct.LessThanOrEqual(stop.Neg()) {
			return m.exitSignal(bar, types.OrderReasonStopLoss, pct), true
		}
	}

	if target, err := m.params.TakeProfitPct.Take(); err == nil {
		if pct.GreaterThanOrEqual(target) {
			return m.exitSignal(bar, types.OrderReasonTakeProfit, pct), true
		}
	}

	return types.Signal{}, false
}

func (m *Manager) exitSignal(bar types.Bar, reason string, pct decimal.Decimal) types.Signal {
	m.logger.Info("risk exit triggered",
		zap.String("symbol", bar.Symbol),
		zap.String("reason", reason),
		zap.String("unrealized_pct", pct.String()),
	)

	return types.Signal{
		Time:       bar.Time,
		Type:       types.SignalTypeExit,
		Symbol:     bar.Symbol,
		Exchange:   bar.Exchange,
		Price:      bar.Close,
		Confidence: 1,
		Reason:     reason,
		Metadata:   nil,
	}
}

// CheckOrder runs the pre-trade checks on an order about to be submitted.
// Orders that reduce exposure always pass; entries are checked against the
// daily loss limit, the max-positions cap, the position-size cap, and the
// exposure cap. A blocked order never reaches the simulator.
func (m *Manager) CheckOrder(order *types.Order, portfolio *types.Portfolio, marks map[string]decimal.Decimal, equity decimal.Decimal) (types.Reason, bool) {
	key := order.InstrumentKey()
	pos, _ := portfolio.Position(key)

	resulting := pos.Quantity.Add(signedQuantity(order))
	if resulting.Abs().LessThanOrEqual(pos.Quantity.Abs()) {
		return types.Reason{}, true
	}

	if m.dailyBreached {
		return types.Reason{
			Reason:  types.OrderReasonDailyLossLimit,
			Message: "daily loss limit breached, entries blocked until next day",
		}, false
	}

	if m.params.MaxOpenPositions > 0 && pos.IsFlat() &&
		portfolio.OpenPositionCount() >= m.params.MaxOpenPositions {
		return types.Reason{
			Reason: types.OrderReasonMaxPositions,
			Message: fmt.Sprintf("open positions at cap %d",
				m.params.MaxOpenPositions),
		}, false
	}

	mark := referencePrice(order, marks[key])

	if maxPos, err := m.params.MaxPositionPct.Take(); err == nil {
		value := resulting.Abs().Mul(mark)
		capValue := equity.Mul(maxPos)

		if value.GreaterThan(capValue) {
			return types.Reason{
				Reason: types.OrderReasonMaxPositionSize,
				Message: fmt.Sprintf("resulting position value %s exceeds cap %s",
					value, capValue),
			}, false
		}
	}

	if maxExp, err := m.params.MaxExposurePct.Take(); err == nil {
		current := portfolio.TotalExposure(marks)
		existing := pos.Exposure(mark)
		total := current.Sub(existing).Add(resulting.Abs().Mul(mark))
		capValue := equity.Mul(maxExp)

		if total.GreaterThan(capValue) {
			return types.Reason{
				Reason: types.OrderReasonMaxExposure,
				Message: fmt.Sprintf("resulting exposure %s exceeds cap %s",
					total, capValue),
			}, false
		}
	}

	return types.Reason{}, true
}

// referencePrice values an order for pre-trade checks: the limit price when
// one is set, otherwise the current mark.
func referencePrice(order *types.Order, mark decimal.Decimal) decimal.Decimal {
	if limit, err := order.LimitPrice.Take(); err == nil {
		return limit
	}

	return mark
}

func signedQuantity(order *types.Order) decimal.Decimal {
	if order.Side == types.SideBuy {
		return order.Quantity
	}

	return order.Quantity.Neg()
}
