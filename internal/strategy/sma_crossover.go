package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/internal/types"
)

// SMACrossover buys when the short moving average crosses above the long one
// and exits when it crosses back below. One independent pair of averages is
// kept per instrument.
type SMACrossover struct {
	shortPeriod int
	longPeriod  int
	state       map[string]*smaCrossState
}

type smaCrossState struct {
	short *streamingSMA
	long  *streamingSMA
	// prevDiff is short-long from the previous tick, used to detect the
	// crossing edge.
	prevDiff decimal.Decimal
	primed   bool
}

// NewSMACrossover creates an SMA crossover strategy with the given periods.
func NewSMACrossover(shortPeriod, longPeriod int) *SMACrossover {
	if shortPeriod <= 0 {
		shortPeriod = 5
	}

	if longPeriod <= shortPeriod {
		longPeriod = shortPeriod * 4
	}

	return &SMACrossover{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		state:       make(map[string]*smaCrossState),
	}
}

// Name implements Strategy.
func (s *SMACrossover) Name() string {
	return fmt.Sprintf("sma_cross_%d_%d", s.shortPeriod, s.longPeriod)
}

// OnBar implements Strategy.
func (s *SMACrossover) OnBar(ctx Context, bar types.Bar) (types.Signal, error) {
	key := bar.InstrumentKey()

	st, ok := s.state[key]
	if !ok {
		st = &smaCrossState{
			short:    newStreamingSMA(s.shortPeriod),
			long:     newStreamingSMA(s.longPeriod),
			prevDiff: decimal.Zero,
			primed:   false,
		}
		s.state[key] = st
	}

	st.short.Update(bar.Close)
	st.long.Update(bar.Close)

	if !st.long.Ready() {
		return types.HoldSignal(bar), nil
	}

	diff := st.short.Value().Sub(st.long.Value())

	defer func() {
		st.prevDiff = diff
		st.primed = true
	}()

	if !st.primed {
		return types.HoldSignal(bar), nil
	}

	_, hasPosition := ctx.HasPosition(bar)

	crossedUp := diff.IsPositive() && !st.prevDiff.IsPositive()
	crossedDown := diff.IsNegative() && !st.prevDiff.IsNegative()

	switch {
	case crossedUp && !hasPosition:
		return types.Signal{
			Time:       bar.Time,
			Type:       types.SignalTypeLong,
			Symbol:     bar.Symbol,
			Exchange:   bar.Exchange,
			Price:      bar.Close,
			Confidence: 1,
			Reason:     "sma_cross_up",
			Metadata:   nil,
		}, nil
	case crossedDown && hasPosition:
		return types.Signal{
			Time:       bar.Time,
			Type:       types.SignalTypeExit,
			Symbol:     bar.Symbol,
			Exchange:   bar.Exchange,
			Price:      bar.Close,
			Confidence: 1,
			Reason:     "sma_cross_down",
			Metadata:   nil,
		}, nil
	}

	return types.HoldSignal(bar), nil
}
