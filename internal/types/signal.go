package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type SignalType string

const (
	// SignalTypeLong tells the driver to open or hold a long position.
	SignalTypeLong SignalType = "long"
	// SignalTypeShort tells the driver to open or hold a short position.
	SignalTypeShort SignalType = "short"
	// SignalTypeExit tells the driver to close the current position.
	SignalTypeExit SignalType = "exit"
	// SignalTypeHold tells the driver to take no action this tick.
	SignalTypeHold SignalType = "hold"
)

// Signal is the output of one strategy evaluation for one tick. Signals are
// produced fresh each tick and carry no identity.
type Signal struct {
	// Time is the time of the tick that produced the signal.
	Time time.Time
	// Type is the type of the signal.
	Type SignalType
	// Symbol is the instrument symbol the signal refers to.
	Symbol string
	// Exchange is the instrument exchange.
	Exchange string
	// Price is the reference price the signal was computed from.
	Price decimal.Decimal
	// Confidence is the strategy's conviction, in [0, 1].
	Confidence float64
	// Reason describes why the signal fired, e.g. "sma_cross" or "stop_loss".
	Reason string
	// Metadata carries optional strategy-specific key/value context.
	Metadata map[string]string
}

// IsActionable reports whether the signal requests a position change.
func (s Signal) IsActionable() bool {
	switch s.Type {
	case SignalTypeLong, SignalTypeShort, SignalTypeExit:
		return true
	case SignalTypeHold:
		return false
	}

	return false
}

// HoldSignal returns a no-action signal for the given tick.
func HoldSignal(bar Bar) Signal {
	return Signal{
		Time:       bar.Time,
		Type:       SignalTypeHold,
		Symbol:     bar.Symbol,
		Exchange:   bar.Exchange,
		Price:      bar.Close,
		Confidence: 0,
		Reason:     "",
		Metadata:   nil,
	}
}
