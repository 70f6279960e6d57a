package datasource

import (
	"iter"
	"sync"

	"github.com/tradesim-lab/tradesim/internal/types"
)

// ChannelQuoteSource is a QuoteSource fed in-process through Publish. It
// backs paper-trading sessions whose quotes arrive from an external feed
// adapter, and doubles as the replay vehicle for quote streams in tests.
type ChannelQuoteSource struct {
	mu     sync.Mutex
	ch     chan types.Quote
	done   chan struct{}
	closed bool
}

// NewChannelQuoteSource creates a source with the given buffer size.
func NewChannelQuoteSource(buffer int) *ChannelQuoteSource {
	return &ChannelQuoteSource{
		ch:     make(chan types.Quote, buffer),
		done:   make(chan struct{}),
		closed: false,
	}
}

// Publish delivers one quote to the subscriber. Publishing after Disconnect
// is a no-op. The send happens outside the mutex, so a Publish parked on a
// full buffer cannot block a concurrent Disconnect.
func (c *ChannelQuoteSource) Publish(quote types.Quote) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return
	}

	select {
	case c.ch <- quote:
	case <-c.done:
	}
}

// Disconnect ends the stream and releases any Publish waiting for buffer
// space. The subscriber's iterator terminates after draining buffered quotes,
// which consumers treat as an upstream disconnect.
func (c *ChannelQuoteSource) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.done)
}

// SubscribeQuotes implements QuoteSource. Quotes for other instruments are
// skipped; per-instrument arrival order is preserved. The quote channel is
// never closed, so the iterator watches done and then drains what was
// buffered before the disconnect.
func (c *ChannelQuoteSource) SubscribeQuotes(symbol string, exchange string) iter.Seq2[types.Quote, error] {
	key := types.InstrumentKey(exchange, symbol)

	return func(yield func(types.Quote, error) bool) {
		for {
			select {
			case quote := <-c.ch:
				if types.InstrumentKey(quote.Exchange, quote.Symbol) != key {
					continue
				}

				if !yield(quote, nil) {
					return
				}

			case <-c.done:
				for {
					select {
					case quote := <-c.ch:
						if types.InstrumentKey(quote.Exchange, quote.Symbol) != key {
							continue
						}

						if !yield(quote, nil) {
							return
						}
					default:
						return
					}
				}
			}
		}
	}
}
