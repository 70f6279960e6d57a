package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/pkg/errors"
)

type Side string

type OrderKind string

type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderKindMarket    OrderKind = "MARKET"
	OrderKindLimit     OrderKind = "LIMIT"
	OrderKindStop      OrderKind = "STOP"
	OrderKindStopLimit OrderKind = "STOP_LIMIT"
)

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

const (
	OrderReasonStrategy        string = "strategy"
	OrderReasonStopLoss        string = "stop_loss"
	OrderReasonTakeProfit      string = "take_profit"
	OrderReasonInvalidQuantity string = "invalid_quantity"
	OrderReasonMaxPositionSize string = "max_position_size"
	OrderReasonMaxExposure     string = "max_exposure"
	OrderReasonMaxPositions    string = "max_positions"
	OrderReasonDailyLossLimit  string = "daily_loss_limit"
	OrderReasonEndOfRun        string = "end_of_run"
)

// Reason records why an order was created, blocked, or cancelled.
type Reason struct {
	Reason  string `yaml:"reason" json:"reason"`
	Message string `yaml:"message" json:"message"`
}

// Order is a request to trade. An order transitions
// Pending -> {Filled | Cancelled | Rejected} exactly once; no order re-enters
// Pending.
type Order struct {
	ID       string    `yaml:"id" json:"id" validate:"required,uuid"`
	Symbol   string    `yaml:"symbol" json:"symbol" validate:"required"`
	Exchange string    `yaml:"exchange" json:"exchange" validate:"required"`
	Side     Side      `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Kind     OrderKind `yaml:"kind" json:"kind" validate:"required,oneof=MARKET LIMIT STOP STOP_LIMIT"`
	// Quantity is the requested number of units, always positive.
	Quantity decimal.Decimal `yaml:"quantity" json:"quantity"`
	// LimitPrice is required for LIMIT and STOP_LIMIT orders.
	LimitPrice optional.Option[decimal.Decimal] `yaml:"limit_price" json:"limit_price"`
	// StopPrice is required for STOP and STOP_LIMIT orders.
	StopPrice optional.Option[decimal.Decimal] `yaml:"stop_price" json:"stop_price"`
	CreatedAt time.Time                        `yaml:"created_at" json:"created_at"`
	Status    OrderStatus                      `yaml:"status" json:"status"`
	Reason    Reason                           `yaml:"reason" json:"reason"`
	// StrategyName is the name of the strategy that created this order.
	// Risk-manager exits carry the originating strategy name as well.
	StrategyName string `yaml:"strategy_name" json:"strategy_name"`
}

// InstrumentKey returns the portfolio key for the order's instrument.
func (o *Order) InstrumentKey() string {
	return InstrumentKey(o.Exchange, o.Symbol)
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	if o.Quantity.LessThanOrEqual(decimal.Zero) {
		return errors.Newf(errors.ErrCodeInvalidQuantity, "order quantity must be positive, got %s", o.Quantity)
	}

	switch o.Kind {
	case OrderKindLimit, OrderKindStopLimit:
		if o.LimitPrice.IsNone() {
			return errors.Newf(errors.ErrCodeInvalidPrice, "%s order requires a limit price", o.Kind)
		}

		if o.LimitPrice.Unwrap().LessThanOrEqual(decimal.Zero) {
			return errors.New(errors.ErrCodeInvalidPrice, "limit price must be positive")
		}
	case OrderKindMarket, OrderKindStop:
	}

	switch o.Kind {
	case OrderKindStop, OrderKindStopLimit:
		if o.StopPrice.IsNone() {
			return errors.Newf(errors.ErrCodeInvalidPrice, "%s order requires a stop price", o.Kind)
		}

		if o.StopPrice.Unwrap().LessThanOrEqual(decimal.Zero) {
			return errors.New(errors.ErrCodeInvalidPrice, "stop price must be positive")
		}
	case OrderKindMarket, OrderKindLimit:
	}

	return nil
}

// transition moves the order out of Pending. Completed orders never change
// status again.
func (o *Order) transition(to OrderStatus) error {
	if o.Status != OrderStatusPending {
		return errors.Newf(errors.ErrCodeOrderAlreadyFilled,
			"order %s is %s, cannot transition to %s", o.ID, o.Status, to)
	}

	o.Status = to

	return nil
}

// MarkFilled marks a pending order as filled.
func (o *Order) MarkFilled() error {
	return o.transition(OrderStatusFilled)
}

// MarkCancelled marks a pending order as cancelled with the given reason.
func (o *Order) MarkCancelled(reason Reason) error {
	if err := o.transition(OrderStatusCancelled); err != nil {
		return err
	}

	o.Reason = reason

	return nil
}

// MarkRejected marks a pending order as rejected with the given reason.
// Rejected orders are kept for audit but never reach the simulator.
func (o *Order) MarkRejected(reason Reason) error {
	if err := o.transition(OrderStatusRejected); err != nil {
		return err
	}

	o.Reason = reason

	return nil
}

// IsTerminal reports whether the order has left the Pending state.
func (o *Order) IsTerminal() bool {
	return o.Status != OrderStatusPending
}
