package datasource

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/tradesim-lab/tradesim/internal/logger"
	"github.com/tradesim-lab/tradesim/internal/types"
	"github.com/tradesim-lab/tradesim/pkg/errors"
)

const testBarsCSV = `time,symbol,open,high,low,close,volume
2024-01-02 00:00:00,AAPL,50.0,51.0,49.5,50.5,10000
2024-01-03 00:00:00,AAPL,50.5,52.0,50.0,51.5,12000
2024-01-04 00:00:00,AAPL,51.5,53.0,51.0,52.0,9000
2024-01-02 00:00:00,MSFT,300.0,302.0,299.0,301.0,8000
2024-01-03 00:00:00,MSFT,301.0,305.0,300.5,304.0,7500
`

type DuckDBSourceTestSuite struct {
	suite.Suite
	source *DuckDBSource
}

func (suite *DuckDBSourceTestSuite) SetupTest() {
	csvPath := filepath.Join(suite.T().TempDir(), "bars.csv")
	suite.Require().NoError(os.WriteFile(csvPath, []byte(testBarsCSV), 0644))

	source, err := NewDuckDBSource("NASDAQ", types.Interval1d, logger.NewTestLogger())
	suite.Require().NoError(err)
	suite.Require().NoError(source.Initialize(csvPath))

	suite.source = source
}

func (suite *DuckDBSourceTestSuite) TearDownTest() {
	suite.Require().NoError(suite.source.Close())
}

func TestDuckDBSourceSuite(t *testing.T) {
	suite.Run(t, new(DuckDBSourceTestSuite))
}

func (suite *DuckDBSourceTestSuite) collect(symbol string,
	start, end optional.Option[time.Time],
) []types.Bar {
	bars := make([]types.Bar, 0)

	for bar, err := range suite.source.GetBars(symbol, "NASDAQ", types.Interval1d, start, end) {
		suite.Require().NoError(err)
		bars = append(bars, bar)
	}

	return bars
}

func (suite *DuckDBSourceTestSuite) TestGetBarsOrderedAscending() {
	bars := suite.collect("AAPL", optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().Len(bars, 3)

	suite.Equal("AAPL", bars[0].Symbol)
	suite.Equal("NASDAQ", bars[0].Exchange)
	suite.Equal(types.Interval1d, bars[0].Interval)
	suite.True(bars[0].Open.Equal(decimal.NewFromInt(50)))
	suite.True(bars[0].Close.Equal(decimal.RequireFromString("50.5")))
	suite.True(bars[2].High.Equal(decimal.NewFromInt(53)))

	for i := 1; i < len(bars); i++ {
		suite.True(bars[i].Time.After(bars[i-1].Time))
	}
}

func (suite *DuckDBSourceTestSuite) TestGetBarsWindowFilter() {
	start := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	bars := suite.collect("AAPL", optional.Some(start), optional.None[time.Time]())
	suite.Len(bars, 2)

	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	bars = suite.collect("AAPL", optional.None[time.Time](), optional.Some(end))
	suite.Len(bars, 2)

	bars = suite.collect("AAPL", optional.Some(start), optional.Some(end))
	suite.Len(bars, 1)
}

func (suite *DuckDBSourceTestSuite) TestGetBarsFiltersBySymbol() {
	bars := suite.collect("MSFT", optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().Len(bars, 2)

	for _, bar := range bars {
		suite.Equal("MSFT", bar.Symbol)
	}
}

func (suite *DuckDBSourceTestSuite) TestUnknownSymbolYieldsNothing() {
	bars := suite.collect("TSLA", optional.None[time.Time](), optional.None[time.Time]())
	suite.Empty(bars)
}

func (suite *DuckDBSourceTestSuite) TestCount() {
	count, err := suite.source.Count("AAPL", "NASDAQ", types.Interval1d,
		optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Equal(3, count)

	count, err = suite.source.Count("TSLA", "NASDAQ", types.Interval1d,
		optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Equal(0, count)
}

func (suite *DuckDBSourceTestSuite) TestIntervalMismatchFails() {
	_, err := suite.source.Count("AAPL", "NASDAQ", types.Interval1h,
		optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidInterval))

	for _, err := range suite.source.GetBars("AAPL", "NASDAQ", types.Interval1h,
		optional.None[time.Time](), optional.None[time.Time]()) {
		suite.Require().Error(err)
		suite.True(errors.HasCode(err, errors.ErrCodeInvalidInterval))
	}
}

func (suite *DuckDBSourceTestSuite) TestInitializePathWithSingleQuote() {
	csvPath := filepath.Join(suite.T().TempDir(), "trader's bars.csv")
	suite.Require().NoError(os.WriteFile(csvPath, []byte(testBarsCSV), 0644))

	source, err := NewDuckDBSource("NASDAQ", types.Interval1d, logger.NewTestLogger())
	suite.Require().NoError(err)

	defer func() { suite.Require().NoError(source.Close()) }()

	suite.Require().NoError(source.Initialize(csvPath))

	count, err := source.Count("AAPL", "NASDAQ", types.Interval1d,
		optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Equal(3, count)
}

func (suite *DuckDBSourceTestSuite) TestInvalidIntervalRejectedAtConstruction() {
	_, err := NewDuckDBSource("NASDAQ", types.Interval("7m"), logger.NewTestLogger())
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidInterval))
}

type ChannelQuoteSourceTestSuite struct {
	suite.Suite
	now time.Time
}

func (suite *ChannelQuoteSourceTestSuite) SetupTest() {
	suite.now = time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)
}

func TestChannelQuoteSourceSuite(t *testing.T) {
	suite.Run(t, new(ChannelQuoteSourceTestSuite))
}

func (suite *ChannelQuoteSourceTestSuite) quote(symbol string, offset int, price string) types.Quote {
	return types.Quote{
		Symbol:   symbol,
		Exchange: "NASDAQ",
		Time:     suite.now.Add(time.Duration(offset) * time.Second),
		Price:    decimal.RequireFromString(price),
		Volume:   decimal.NewFromInt(100),
	}
}

func (suite *ChannelQuoteSourceTestSuite) TestDeliversInOrderUntilDisconnect() {
	source := NewChannelQuoteSource(8)

	source.Publish(suite.quote("AAPL", 0, "50"))
	source.Publish(suite.quote("AAPL", 1, "50.5"))
	source.Publish(suite.quote("AAPL", 2, "51"))
	source.Disconnect()

	prices := make([]string, 0)

	for quote, err := range source.SubscribeQuotes("AAPL", "NASDAQ") {
		suite.Require().NoError(err)
		prices = append(prices, quote.Price.String())
	}

	suite.Equal([]string{"50", "50.5", "51"}, prices)
}

func (suite *ChannelQuoteSourceTestSuite) TestSkipsOtherInstruments() {
	source := NewChannelQuoteSource(8)

	source.Publish(suite.quote("AAPL", 0, "50"))
	source.Publish(suite.quote("MSFT", 1, "300"))
	source.Publish(suite.quote("AAPL", 2, "51"))
	source.Disconnect()

	count := 0

	for quote, err := range source.SubscribeQuotes("AAPL", "NASDAQ") {
		suite.Require().NoError(err)
		suite.Equal("AAPL", quote.Symbol)
		count++
	}

	suite.Equal(2, count)
}

func (suite *ChannelQuoteSourceTestSuite) TestPublishAfterDisconnectIsNoOp() {
	source := NewChannelQuoteSource(8)

	source.Publish(suite.quote("AAPL", 0, "50"))
	source.Disconnect()
	source.Publish(suite.quote("AAPL", 1, "51"))
	source.Disconnect()

	count := 0
	for _, err := range source.SubscribeQuotes("AAPL", "NASDAQ") {
		suite.Require().NoError(err)

		count++
	}

	suite.Equal(1, count)
}

func (suite *ChannelQuoteSourceTestSuite) TestDisconnectReleasesBlockedPublish() {
	source := NewChannelQuoteSource(1)

	source.Publish(suite.quote("AAPL", 0, "50"))

	released := make(chan struct{})

	go func() {
		// Buffer is full and nothing consumes, so this send parks until
		// the disconnect.
		source.Publish(suite.quote("AAPL", 1, "51"))
		close(released)
	}()

	time.Sleep(20 * time.Millisecond)
	source.Disconnect()

	select {
	case <-released:
	case <-time.After(3 * time.Second):
		suite.Fail("Publish stayed blocked across Disconnect")
	}
}

func (suite *ChannelQuoteSourceTestSuite) TestEarlyBreakStopsIteration() {
	source := NewChannelQuoteSource(8)

	source.Publish(suite.quote("AAPL", 0, "50"))
	source.Publish(suite.quote("AAPL", 1, "51"))
	source.Disconnect()

	seen := 0

	for _, err := range source.SubscribeQuotes("AAPL", "NASDAQ") {
		suite.Require().NoError(err)

		seen++

		break
	}

	suite.Equal(1, seen)
}
