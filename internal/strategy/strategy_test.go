package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/tradesim-lab/tradesim/internal/types"
	"github.com/tradesim-lab/tradesim/pkg/errors"
)

type StrategyTestSuite struct {
	suite.Suite
	start time.Time
}

func (suite *StrategyTestSuite) SetupTest() {
	suite.start = time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

func (suite *StrategyTestSuite) bar(day int, price string) types.Bar {
	p := decimal.RequireFromString(price)

	return types.Bar{
		Symbol:   "AAPL",
		Exchange: "NASDAQ",
		Interval: types.Interval1d,
		Time:     suite.start.AddDate(0, 0, day),
		Open:     p,
		High:     p,
		Low:      p,
		Close:    p,
		Volume:   decimal.NewFromInt(1000),
	}
}

func (suite *StrategyTestSuite) flatContext() Context {
	return Context{
		Portfolio: *types.NewPortfolio(decimal.NewFromInt(100000), suite.start),
		Marks:     map[string]decimal.Decimal{},
		Equity:    decimal.NewFromInt(100000),
	}
}

func (suite *StrategyTestSuite) longContext() Context {
	ctx := suite.flatContext()
	ctx.Portfolio.SetPosition(types.Position{
		Symbol:        "AAPL",
		Exchange:      "NASDAQ",
		Quantity:      decimal.NewFromInt(100),
		AvgEntryPrice: decimal.NewFromInt(10),
		RealizedPnL:   decimal.Zero,
		OpenedAt:      suite.start,
		UpdatedAt:     suite.start,
	})

	return ctx
}

func (suite *StrategyTestSuite) TestSMACrossoverSignals() {
	strat := NewSMACrossover(2, 3)

	// Warm-up: the long average needs three bars, plus one primed tick.
	for day, price := range []string{"10", "10", "10"} {
		signal, err := strat.OnBar(suite.flatContext(), suite.bar(day, price))
		suite.Require().NoError(err)
		suite.Equal(types.SignalTypeHold, signal.Type)
	}

	// Short average jumps above the long one: entry.
	signal, err := strat.OnBar(suite.flatContext(), suite.bar(3, "20"))
	suite.Require().NoError(err)
	suite.Equal(types.SignalTypeLong, signal.Type)
	suite.Equal("sma_cross_up", signal.Reason)

	// Still above after one weak bar: hold.
	signal, err = strat.OnBar(suite.longContext(), suite.bar(4, "1"))
	suite.Require().NoError(err)
	suite.Equal(types.SignalTypeHold, signal.Type)

	// Short average falls below the long one: exit.
	signal, err = strat.OnBar(suite.longContext(), suite.bar(5, "1"))
	suite.Require().NoError(err)
	suite.Equal(types.SignalTypeExit, signal.Type)
	suite.Equal("sma_cross_down", signal.Reason)
}

func (suite *StrategyTestSuite) TestSMACrossoverNeedsPositionToExit() {
	strat := NewSMACrossover(2, 3)

	for day, price := range []string{"10", "10", "10", "20", "1"} {
		_, err := strat.OnBar(suite.flatContext(), suite.bar(day, price))
		suite.Require().NoError(err)
	}

	// The down-cross without a held position is a hold, not an exit.
	signal, err := strat.OnBar(suite.flatContext(), suite.bar(5, "1"))
	suite.Require().NoError(err)
	suite.Equal(types.SignalTypeHold, signal.Type)
}

func (suite *StrategyTestSuite) TestSMACrossoverKeepsPerInstrumentState() {
	strat := NewSMACrossover(2, 3)

	for day, price := range []string{"10", "10", "10", "20"} {
		_, err := strat.OnBar(suite.flatContext(), suite.bar(day, price))
		suite.Require().NoError(err)
	}

	// A fresh instrument starts its own warm-up.
	other := suite.bar(4, "20")
	other.Symbol = "MSFT"

	signal, err := strat.OnBar(suite.flatContext(), other)
	suite.Require().NoError(err)
	suite.Equal(types.SignalTypeHold, signal.Type)
}

func (suite *StrategyTestSuite) TestMomentumSignals() {
	strat := NewMomentum(3, decimal.RequireFromString("0.05"))

	for day, price := range []string{"100", "100", "100"} {
		signal, err := strat.OnBar(suite.flatContext(), suite.bar(day, price))
		suite.Require().NoError(err)
		suite.Equal(types.SignalTypeHold, signal.Type)
	}

	// +6% over the lookback window: long entry.
	signal, err := strat.OnBar(suite.flatContext(), suite.bar(3, "106"))
	suite.Require().NoError(err)
	suite.Equal(types.SignalTypeLong, signal.Type)
	suite.Equal("momentum_up", signal.Reason)

	// Momentum fades inside half the band: exit.
	signal, err = strat.OnBar(suite.longContext(), suite.bar(4, "101"))
	suite.Require().NoError(err)
	suite.Equal(types.SignalTypeExit, signal.Type)
	suite.Equal("momentum_faded", signal.Reason)
}

func (suite *StrategyTestSuite) TestMomentumShortEntry() {
	strat := NewMomentum(3, decimal.RequireFromString("0.05"))

	for day, price := range []string{"100", "100", "100"} {
		_, err := strat.OnBar(suite.flatContext(), suite.bar(day, price))
		suite.Require().NoError(err)
	}

	signal, err := strat.OnBar(suite.flatContext(), suite.bar(3, "93"))
	suite.Require().NoError(err)
	suite.Equal(types.SignalTypeShort, signal.Type)
	suite.Equal("momentum_down", signal.Reason)
}

func (suite *StrategyTestSuite) TestRegistryBuildsBuiltins() {
	registry := NewRegistry(nil)
	suite.Equal([]string{"momentum", "sma_cross"}, registry.Names())

	strat, err := registry.Build("sma_cross", Params{
		"short_period": "3",
		"long_period":  "9",
	})
	suite.Require().NoError(err)
	suite.Equal("sma_cross_3_9", strat.Name())
}

func (suite *StrategyTestSuite) TestRegistryUnknownStrategy() {
	registry := NewRegistry(nil)

	_, err := registry.Build("nope", nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidStrategy))
}

func (suite *StrategyTestSuite) TestRegistryBuildsFreshInstances() {
	registry := NewRegistry(nil)

	first, err := registry.Build("momentum", nil)
	suite.Require().NoError(err)

	second, err := registry.Build("momentum", nil)
	suite.Require().NoError(err)

	suite.NotSame(first, second)
}

func (suite *StrategyTestSuite) TestRegistryBadParamFails() {
	registry := NewRegistry(nil)

	_, err := registry.Build("momentum", Params{"threshold": "not-a-number"})
	suite.Require().Error(err)
}
