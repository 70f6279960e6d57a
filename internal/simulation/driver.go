// Package simulation contains the tick driver shared by backtest and
// forward-test runs. Every tick flows through the same fixed pipeline: mark
// update, risk exit check, strategy signal, pre-trade risk check, fill
// attempt, ledger application, equity-curve append. Backtest and live runs
// never diverge because they execute this exact code path.
package simulation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/internal/logger"
	"github.com/tradesim-lab/tradesim/internal/simulation/ledger"
	"github.com/tradesim-lab/tradesim/internal/simulation/risk"
	"github.com/tradesim-lab/tradesim/internal/simulation/simulator"
	"github.com/tradesim-lab/tradesim/internal/strategy"
	"github.com/tradesim-lab/tradesim/internal/types"
	"github.com/tradesim-lab/tradesim/pkg/errors"
)

// Config holds the immutable execution parameters of one run.
type Config struct {
	InitialCapital decimal.Decimal
	CommissionRate decimal.Decimal
	SlippageRate   decimal.Decimal
	// OrderSizePct is the fraction of current equity committed per entry.
	OrderSizePct decimal.Decimal
	// DecimalPrecision is the number of decimal places quantities and
	// prices are truncated or rounded to.
	DecimalPrecision int32
	Risk             types.RiskParams
}

// Validate checks the run parameters before any tick is processed.
func (c Config) Validate() error {
	if c.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"initial capital must be positive, got %s", c.InitialCapital)
	}

	if c.CommissionRate.IsNegative() || c.SlippageRate.IsNegative() {
		return errors.New(errors.ErrCodeInvalidConfiguration,
			"commission and slippage rates must be non-negative")
	}

	one := decimal.NewFromInt(1)
	if c.OrderSizePct.LessThanOrEqual(decimal.Zero) || c.OrderSizePct.GreaterThan(one) {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"order size pct must be in (0, 1], got %s", c.OrderSizePct)
	}

	if c.DecimalPrecision < 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration,
			"decimal precision must be non-negative")
	}

	return c.Risk.Validate()
}

// Driver owns the portfolio, the pending-order set, and the run logs of a
// single run. It is not safe for concurrent use: one goroutine drives ticks,
// and readers take snapshots through the accessor methods only between
// ticks.
type Driver struct {
	cfg      Config
	logger   *logger.Logger
	strategy strategy.Strategy
	sim      *simulator.Simulator
	ledger   *ledger.Ledger
	risk     *risk.Manager

	status types.RunStatus
	marks  map[string]decimal.Decimal
	orders []*types.Order
	trades []types.Trade
	curve  []types.EquityPoint
	// orderSeq numbers the orders of this run so order ids are
	// deterministic across repeated runs over the same input.
	orderSeq int
}

// NewDriver assembles a driver in the Initialized state.
func NewDriver(cfg Config, strat strategy.Strategy, log *logger.Logger, startedAt time.Time) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	simCfg := simulator.Config{
		CommissionRate: cfg.CommissionRate,
		SlippageRate:   cfg.SlippageRate,
		Precision:      cfg.DecimalPrecision,
	}

	return &Driver{
		cfg:      cfg,
		logger:   log,
		strategy: strat,
		sim:      simulator.NewSimulator(simCfg, log),
		ledger:   ledger.NewLedger(cfg.InitialCapital, startedAt, log),
		risk:     risk.NewManager(cfg.Risk, log),
		status:   types.RunStatusInitialized,
		marks:    make(map[string]decimal.Decimal),
		orders:   make([]*types.Order, 0),
		trades:   make([]types.Trade, 0),
		curve:    make([]types.EquityPoint, 0),
		orderSeq: 0,
	}, nil
}

// Start moves the run from Initialized to Running.
func (d *Driver) Start() error {
	if d.status != types.RunStatusInitialized {
		return errors.Newf(errors.ErrCodeExecutionFault,
			"cannot start run in status %s", d.status)
	}

	d.status = types.RunStatusRunning

	return nil
}

// ProcessTick advances the simulation by one bar. The pipeline order is a
// core invariant; reordering it changes results.
func (d *Driver) ProcessTick(bar types.Bar) error {
	if d.status != types.RunStatusRunning {
		return errors.Newf(errors.ErrCodeExecutionFault,
			"cannot process tick in status %s", d.status)
	}

	key := bar.InstrumentKey()

	// (1) Mark price update.
	d.marks[key] = bar.Close
	equity := d.ledger.Portfolio().TotalEquity(d.marks)
	d.risk.OnTick(bar.Time, equity)

	// (2) Risk exit check. A fired exit overrides the strategy this tick.
	signal, riskExit := d.risk.CheckExits(d.ledger.Portfolio(), bar)

	// (3) Strategy signal.
	if !riskExit {
		var err error

		signal, err = d.strategy.OnBar(d.strategyContext(equity), bar)
		if err != nil {
			d.fail(err)

			return errors.Wrapf(errors.ErrCodeExecutionFault, err,
				"strategy %s failed on bar %s %s", d.strategy.Name(), bar.Symbol, bar.Time)
		}
	}

	// (4) Order construction and pre-trade risk check.
	if signal.IsActionable() {
		if order := d.orderFromSignal(signal, bar, equity); order != nil {
			d.orders = append(d.orders, order)

			if reason, ok := d.risk.CheckOrder(order, d.ledger.Portfolio(), d.marks, equity); !ok {
				if err := order.MarkRejected(reason); err != nil {
					d.fail(err)

					return err
				}

				d.logger.Info("order blocked by risk manager",
					zap.String("order_id", order.ID),
					zap.Error(errors.Newf(errors.ErrCodeRiskBlocked,
						"%s: %s", reason.Reason, reason.Message)),
				)
			} else if err := d.sim.Submit(order); err != nil {
				d.fail(err)

				return err
			}
		}
	}

	// (5) Fill attempt against the current bar.
	fills := d.sim.ProcessBar(bar)

	// (6) Ledger application.
	for i := range fills {
		if _, err := d.ledger.Apply(&fills[i]); err != nil {
			d.fail(err)

			return err
		}

		d.trades = append(d.trades, fills[i])
	}

	// (7) Equity-curve append, one point per tick.
	d.curve = append(d.curve, types.EquityPoint{
		Time:   bar.Time,
		Equity: d.ledger.Portfolio().TotalEquity(d.marks),
	})

	return nil
}

// strategyContext builds the read-only view handed to the strategy. Maps are
// copied so the strategy cannot retain live references.
func (d *Driver) strategyContext(equity decimal.Decimal) strategy.Context {
	marks := make(map[string]decimal.Decimal, len(d.marks))
	for key, mark := range d.marks {
		marks[key] = mark
	}

	return strategy.Context{
		Portfolio: d.ledger.Snapshot(),
		Marks:     marks,
		Equity:    equity,
	}
}

// orderFromSignal maps an actionable signal to at most one market order. A
// signal in the direction already held is a no-op. A reversal closes the
// held quantity and opens the new side in a single order, so the ledger
// flips atomically.
func (d *Driver) orderFromSignal(signal types.Signal, bar types.Bar, equity decimal.Decimal) *types.Order {
	pos, _ := d.ledger.Portfolio().Position(bar.InstrumentKey())

	var side types.Side

	var quantity decimal.Decimal

	switch signal.Type {
	case types.SignalTypeExit:
		if pos.IsFlat() {
			return nil
		}

		quantity = pos.Quantity.Abs()
		side = types.SideSell

		if !pos.IsLong() {
			side = types.SideBuy
		}

	case types.SignalTypeLong:
		if pos.IsLong() {
			return nil
		}

		quantity = d.entryQuantity(equity, bar.Close).Add(pos.Quantity.Abs())
		side = types.SideBuy

	case types.SignalTypeShort:
		if !pos.IsFlat() && !pos.IsLong() {
			return nil
		}

		quantity = d.entryQuantity(equity, bar.Close).Add(pos.Quantity.Abs())
		side = types.SideSell

	case types.SignalTypeHold:
		return nil
	}

	d.orderSeq++

	return &types.Order{
		ID:           uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "order:%d", d.orderSeq)).String(),
		Symbol:       bar.Symbol,
		Exchange:     bar.Exchange,
		Side:         side,
		Kind:         types.OrderKindMarket,
		Quantity:     quantity,
		LimitPrice:   optional.None[decimal.Decimal](),
		StopPrice:    optional.None[decimal.Decimal](),
		CreatedAt:    bar.Time,
		Status:       types.OrderStatusPending,
		Reason:       orderReason(signal),
		StrategyName: d.strategy.Name(),
	}
}

// entryQuantity sizes a new entry: the configured equity fraction at the
// current price, truncated to the run's precision. A result of zero is
// submitted anyway and rejected for audit rather than silently clamped.
func (d *Driver) entryQuantity(equity, price decimal.Decimal) decimal.Decimal {
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	return equity.Mul(d.cfg.OrderSizePct).Div(price).Truncate(d.cfg.DecimalPrecision)
}

// orderReason tags the order with its origin: risk exits carry their own
// reason code, strategy orders carry the signal's free-form reason as the
// message.
func orderReason(signal types.Signal) types.Reason {
	switch signal.Reason {
	case types.OrderReasonStopLoss, types.OrderReasonTakeProfit:
		return types.Reason{Reason: signal.Reason, Message: ""}
	}

	return types.Reason{Reason: types.OrderReasonStrategy, Message: signal.Reason}
}

// Complete ends a running run normally: leftover pending orders are
// cancelled and the status becomes Completed.
func (d *Driver) Complete() {
	d.finish(types.RunStatusCompleted)
}

// Stop ends a running run on external command.
func (d *Driver) Stop() {
	d.finish(types.RunStatusStopped)
}

func (d *Driver) finish(status types.RunStatus) {
	if d.status != types.RunStatusRunning {
		return
	}

	cancelled := d.sim.CancelAll(types.Reason{
		Reason:  types.OrderReasonEndOfRun,
		Message: "run ended with order still pending",
	})

	if len(cancelled) > 0 {
		d.logger.Info("cancelled pending orders at end of run",
			zap.Int("count", len(cancelled)),
		)
	}

	d.status = status
}

func (d *Driver) fail(err error) {
	d.status = types.RunStatusFailed

	d.logger.Error("run failed", zap.Error(err))
}

// Status returns the run's lifecycle state.
func (d *Driver) Status() types.RunStatus {
	return d.status
}

// Equity returns total equity at the current marks.
func (d *Driver) Equity() decimal.Decimal {
	return d.ledger.Portfolio().TotalEquity(d.marks)
}

// Portfolio returns an atomic snapshot of the portfolio.
func (d *Driver) Portfolio() types.Portfolio {
	return d.ledger.Snapshot()
}

// Marks returns a copy of the current mark prices.
func (d *Driver) Marks() map[string]decimal.Decimal {
	marks := make(map[string]decimal.Decimal, len(d.marks))
	for key, mark := range d.marks {
		marks[key] = mark
	}

	return marks
}

// Orders returns the full order audit log, including rejected and cancelled
// orders, in creation order.
func (d *Driver) Orders() []types.Order {
	orders := make([]types.Order, 0, len(d.orders))
	for _, order := range d.orders {
		orders = append(orders, *order)
	}

	return orders
}

// Trades returns the fill log in execution order.
func (d *Driver) Trades() []types.Trade {
	trades := make([]types.Trade, len(d.trades))
	copy(trades, d.trades)

	return trades
}

// EquityCurve returns the equity history, one point per processed tick.
func (d *Driver) EquityCurve() []types.EquityPoint {
	curve := make([]types.EquityPoint, len(d.curve))
	copy(curve, d.curve)

	return curve
}

// TotalCommission returns the cumulative commission paid so far.
func (d *Driver) TotalCommission() decimal.Decimal {
	return d.ledger.TotalCommission()
}
