package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/tradesim-lab/tradesim/pkg/errors"
)

type TypesTestSuite struct {
	suite.Suite
	now time.Time
}

func (suite *TypesTestSuite) SetupTest() {
	suite.now = time.Date(2024, 4, 8, 13, 30, 0, 0, time.UTC)
}

func TestTypesSuite(t *testing.T) {
	suite.Run(t, new(TypesTestSuite))
}

func (suite *TypesTestSuite) order(kind OrderKind) *Order {
	return &Order{
		ID:           uuid.NewSHA1(uuid.NameSpaceOID, []byte("order:test")).String(),
		Symbol:       "AAPL",
		Exchange:     "NASDAQ",
		Side:         SideBuy,
		Kind:         kind,
		Quantity:     decimal.NewFromInt(10),
		LimitPrice:   optional.None[decimal.Decimal](),
		StopPrice:    optional.None[decimal.Decimal](),
		CreatedAt:    suite.now,
		Status:       OrderStatusPending,
		Reason:       Reason{Reason: OrderReasonStrategy, Message: ""},
		StrategyName: "test",
	}
}

func (suite *TypesTestSuite) TestOrderLifecycleIsOneWay() {
	order := suite.order(OrderKindMarket)

	suite.False(order.IsTerminal())
	suite.Require().NoError(order.MarkFilled())
	suite.True(order.IsTerminal())
	suite.Equal(OrderStatusFilled, order.Status)

	err := order.MarkCancelled(Reason{Reason: OrderReasonEndOfRun, Message: ""})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeOrderAlreadyFilled))
	suite.Equal(OrderStatusFilled, order.Status)
}

func (suite *TypesTestSuite) TestOrderCancelKeepsReason() {
	order := suite.order(OrderKindMarket)

	reason := Reason{Reason: OrderReasonEndOfRun, Message: "run ended with order still pending"}
	suite.Require().NoError(order.MarkCancelled(reason))
	suite.Equal(OrderStatusCancelled, order.Status)
	suite.Equal(reason, order.Reason)
}

func (suite *TypesTestSuite) TestOrderValidation() {
	valid := suite.order(OrderKindMarket)
	suite.Require().NoError(valid.Validate())

	zeroQty := suite.order(OrderKindMarket)
	zeroQty.Quantity = decimal.Zero
	suite.True(errors.HasCode(zeroQty.Validate(), errors.ErrCodeInvalidQuantity))

	limitNoPrice := suite.order(OrderKindLimit)
	suite.True(errors.HasCode(limitNoPrice.Validate(), errors.ErrCodeInvalidPrice))

	stopNoPrice := suite.order(OrderKindStop)
	suite.True(errors.HasCode(stopNoPrice.Validate(), errors.ErrCodeInvalidPrice))

	stopLimit := suite.order(OrderKindStopLimit)
	stopLimit.LimitPrice = optional.Some(decimal.NewFromInt(49))
	stopLimit.StopPrice = optional.Some(decimal.NewFromInt(50))
	suite.Require().NoError(stopLimit.Validate())
}

func (suite *TypesTestSuite) TestTradeCashDelta() {
	trade := Trade{
		ID:             "t1",
		OrderID:        "o1",
		Symbol:         "AAPL",
		Exchange:       "NASDAQ",
		Side:           SideBuy,
		Quantity:       decimal.NewFromInt(10),
		Price:          decimal.NewFromInt(50),
		Time:           suite.now,
		Commission:     decimal.RequireFromString("0.5"),
		ClosedQuantity: decimal.Zero,
		RealizedPnL:    decimal.Zero,
		Reason:         Reason{Reason: OrderReasonStrategy, Message: ""},
	}

	suite.True(trade.CashDelta().Equal(decimal.RequireFromString("-500.5")))
	suite.True(trade.SignedQuantity().Equal(decimal.NewFromInt(10)))

	trade.Side = SideSell
	suite.True(trade.CashDelta().Equal(decimal.RequireFromString("499.5")))
	suite.True(trade.SignedQuantity().Equal(decimal.NewFromInt(-10)))
}

func (suite *TypesTestSuite) TestBarCrosses() {
	bar := Bar{
		Symbol:   "AAPL",
		Exchange: "NASDAQ",
		Interval: Interval1d,
		Time:     suite.now,
		Open:     decimal.NewFromInt(50),
		High:     decimal.NewFromInt(55),
		Low:      decimal.NewFromInt(48),
		Close:    decimal.NewFromInt(52),
		Volume:   decimal.NewFromInt(1000),
	}

	suite.True(bar.Crosses(decimal.NewFromInt(48)))
	suite.True(bar.Crosses(decimal.NewFromInt(55)))
	suite.True(bar.Crosses(decimal.NewFromInt(50)))
	suite.False(bar.Crosses(decimal.RequireFromString("47.99")))
	suite.False(bar.Crosses(decimal.RequireFromString("55.01")))
}

func (suite *TypesTestSuite) TestQuoteToBar() {
	quote := Quote{
		Symbol:   "AAPL",
		Exchange: "NASDAQ",
		Time:     suite.now,
		Price:    decimal.RequireFromString("50.25"),
		Volume:   decimal.NewFromInt(300),
	}

	bar := quote.Bar()
	suite.True(bar.Open.Equal(quote.Price))
	suite.True(bar.High.Equal(quote.Price))
	suite.True(bar.Low.Equal(quote.Price))
	suite.True(bar.Close.Equal(quote.Price))
	suite.Equal("NASDAQ:AAPL", bar.InstrumentKey())
}

func (suite *TypesTestSuite) TestIntervalDuration() {
	suite.Equal(time.Minute, Interval1m.Duration())
	suite.Equal(24*time.Hour, Interval1d.Duration())
	suite.True(Interval4h.IsValid())
	suite.False(Interval("7m").IsValid())
}

func (suite *TypesTestSuite) TestPortfolioEquityAndExposure() {
	portfolio := NewPortfolio(decimal.NewFromInt(100000), suite.now)

	portfolio.SetPosition(Position{
		Symbol:        "AAPL",
		Exchange:      "NASDAQ",
		Quantity:      decimal.NewFromInt(100),
		AvgEntryPrice: decimal.NewFromInt(50),
		RealizedPnL:   decimal.Zero,
		OpenedAt:      suite.now,
		UpdatedAt:     suite.now,
	})
	portfolio.SetPosition(Position{
		Symbol:        "MSFT",
		Exchange:      "NASDAQ",
		Quantity:      decimal.NewFromInt(-20),
		AvgEntryPrice: decimal.NewFromInt(300),
		RealizedPnL:   decimal.Zero,
		OpenedAt:      suite.now,
		UpdatedAt:     suite.now,
	})

	marks := map[string]decimal.Decimal{
		"NASDAQ:AAPL": decimal.NewFromInt(55),
		"NASDAQ:MSFT": decimal.NewFromInt(310),
	}

	// 100000 + 100*55 - 20*310 = 99300.
	suite.True(portfolio.TotalEquity(marks).Equal(decimal.NewFromInt(99300)))
	// |5500| + |-6200| = 11700.
	suite.True(portfolio.TotalExposure(marks).Equal(decimal.NewFromInt(11700)))
	// 100*5 + (-20)*10 = 300.
	suite.True(portfolio.TotalUnrealizedPnL(marks).Equal(decimal.NewFromInt(300)))

	suite.Equal([]string{"NASDAQ:AAPL", "NASDAQ:MSFT"}, portfolio.PositionKeys())
}

func (suite *TypesTestSuite) TestPortfolioUnmarkedPositionUsesEntryValue() {
	portfolio := NewPortfolio(decimal.NewFromInt(1000), suite.now)
	portfolio.SetPosition(Position{
		Symbol:        "AAPL",
		Exchange:      "NASDAQ",
		Quantity:      decimal.NewFromInt(10),
		AvgEntryPrice: decimal.NewFromInt(50),
		RealizedPnL:   decimal.Zero,
		OpenedAt:      suite.now,
		UpdatedAt:     suite.now,
	})

	suite.True(portfolio.TotalEquity(nil).Equal(decimal.NewFromInt(1500)))
	suite.True(portfolio.TotalUnrealizedPnL(nil).IsZero())
}

func (suite *TypesTestSuite) TestPortfolioFlatPositionRemoved() {
	portfolio := NewPortfolio(decimal.NewFromInt(1000), suite.now)
	portfolio.SetPosition(Position{
		Symbol:        "AAPL",
		Exchange:      "NASDAQ",
		Quantity:      decimal.NewFromInt(10),
		AvgEntryPrice: decimal.NewFromInt(50),
		RealizedPnL:   decimal.Zero,
		OpenedAt:      suite.now,
		UpdatedAt:     suite.now,
	})
	suite.Equal(1, portfolio.OpenPositionCount())

	flat := Position{
		Symbol:        "AAPL",
		Exchange:      "NASDAQ",
		Quantity:      decimal.Zero,
		AvgEntryPrice: decimal.Zero,
		RealizedPnL:   decimal.NewFromInt(25),
		OpenedAt:      suite.now,
		UpdatedAt:     suite.now,
	}
	portfolio.SetPosition(flat)
	suite.Equal(0, portfolio.OpenPositionCount())
}

func (suite *TypesTestSuite) TestPortfolioSnapshotIsIsolated() {
	portfolio := NewPortfolio(decimal.NewFromInt(1000), suite.now)
	portfolio.SetPosition(Position{
		Symbol:        "AAPL",
		Exchange:      "NASDAQ",
		Quantity:      decimal.NewFromInt(10),
		AvgEntryPrice: decimal.NewFromInt(50),
		RealizedPnL:   decimal.Zero,
		OpenedAt:      suite.now,
		UpdatedAt:     suite.now,
	})

	snap := portfolio.Snapshot()
	delete(snap.Positions, "NASDAQ:AAPL")

	suite.Equal(1, portfolio.OpenPositionCount())
}

func (suite *TypesTestSuite) TestPositionShortUnrealizedPct() {
	pos := Position{
		Symbol:        "AAPL",
		Exchange:      "NASDAQ",
		Quantity:      decimal.NewFromInt(-10),
		AvgEntryPrice: decimal.NewFromInt(100),
		RealizedPnL:   decimal.Zero,
		OpenedAt:      suite.now,
		UpdatedAt:     suite.now,
	}

	// Price falls 5%: a short is up 5%.
	suite.True(pos.UnrealizedPct(decimal.NewFromInt(95)).Equal(decimal.RequireFromString("0.05")))
	suite.True(pos.UnrealizedPnL(decimal.NewFromInt(95)).Equal(decimal.NewFromInt(50)))
}

func (suite *TypesTestSuite) TestSignalValidation() {
	signal := Signal{
		Time:       suite.now,
		Type:       SignalTypeLong,
		Symbol:     "AAPL",
		Exchange:   "NASDAQ",
		Price:      decimal.NewFromInt(50),
		Confidence: 1,
		Reason:     "test",
		Metadata:   nil,
	}
	suite.True(signal.IsActionable())

	hold := HoldSignal(Bar{
		Symbol: "AAPL", Exchange: "NASDAQ", Interval: Interval1d, Time: suite.now,
		Open: decimal.NewFromInt(50), High: decimal.NewFromInt(50),
		Low: decimal.NewFromInt(50), Close: decimal.NewFromInt(50),
		Volume: decimal.Zero,
	})
	suite.False(hold.IsActionable())
}
