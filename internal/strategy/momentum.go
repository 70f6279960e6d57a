package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/internal/types"
)

// Momentum goes long when the close has risen more than threshold over the
// lookback window and short when it has fallen by the same amount, exiting
// when momentum fades back inside the band.
type Momentum struct {
	lookback  int
	threshold decimal.Decimal
	closes    map[string][]decimal.Decimal
}

// NewMomentum creates a momentum strategy. threshold is a fraction, e.g.
// 0.02 for a 2% move over the lookback window.
func NewMomentum(lookback int, threshold decimal.Decimal) *Momentum {
	if lookback <= 0 {
		lookback = 10
	}

	if threshold.LessThanOrEqual(decimal.Zero) {
		threshold = decimal.RequireFromString("0.02")
	}

	return &Momentum{
		lookback:  lookback,
		threshold: threshold,
		closes:    make(map[string][]decimal.Decimal),
	}
}

// Name implements Strategy.
func (m *Momentum) Name() string {
	return fmt.Sprintf("momentum_%d", m.lookback)
}

// OnBar implements Strategy.
func (m *Momentum) OnBar(ctx Context, bar types.Bar) (types.Signal, error) {
	key := bar.InstrumentKey()

	window := append(m.closes[key], bar.Close)
	if len(window) > m.lookback+1 {
		window = window[1:]
	}

	m.closes[key] = window

	if len(window) < m.lookback+1 {
		return types.HoldSignal(bar), nil
	}

	first := window[0]
	if first.IsZero() {
		return types.HoldSignal(bar), nil
	}

	change := bar.Close.Sub(first).Div(first)
	_, hasPosition := ctx.HasPosition(bar)

	switch {
	case change.GreaterThanOrEqual(m.threshold) && !hasPosition:
		return m.signal(bar, types.SignalTypeLong, "momentum_up"), nil
	case change.LessThanOrEqual(m.threshold.Neg()) && !hasPosition:
		return m.signal(bar, types.SignalTypeShort, "momentum_down"), nil
	case hasPosition && change.Abs().LessThan(m.threshold.Div(decimal.NewFromInt(2))):
		// half-band retrace before exiting, so the strategy does not flap
		return m.signal(bar, types.SignalTypeExit, "momentum_faded"), nil
	}

	return types.HoldSignal(bar), nil
}

func (m *Momentum) signal(bar types.Bar, kind types.SignalType, reason string) types.Signal {
	return types.Signal{
		Time:       bar.Time,
		Type:       kind,
		Symbol:     bar.Symbol,
		Exchange:   bar.Exchange,
		Price:      bar.Close,
		Confidence: 1,
		Reason:     reason,
		Metadata:   nil,
	}
}
