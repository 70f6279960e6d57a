// Package datasource defines the market-data interfaces the simulation core
// consumes, plus a DuckDB-backed historical source for file-based backtests.
package datasource

import (
	"iter"
	"time"

	"github.com/moznion/go-optional"
	"github.com/tradesim-lab/tradesim/internal/types"
)

// HistoricalSource supplies a finite, replayable bar sequence in ascending
// timestamp order. Backtests drive this to completion.
type HistoricalSource interface {
	// GetBars yields the bars for one instrument within the optional time
	// window, ordered by timestamp ascending.
	GetBars(symbol string, exchange string, interval types.Interval,
		start optional.Option[time.Time], end optional.Option[time.Time]) iter.Seq2[types.Bar, error]
	// Count returns the number of bars the same query would yield.
	Count(symbol string, exchange string, interval types.Interval,
		start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// Close releases the underlying resources.
	Close() error
}

// QuoteSource supplies an unbounded live quote stream. The stream is not
// restartable: a terminated iterator means the upstream disconnected, and
// the consumer must subscribe again to resume.
type QuoteSource interface {
	// SubscribeQuotes yields quotes for one instrument in arrival order
	// until the subscription ends or the consumer stops iterating.
	SubscribeQuotes(symbol string, exchange string) iter.Seq2[types.Quote, error]
}
