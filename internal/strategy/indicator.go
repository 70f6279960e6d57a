package strategy

import (
	"github.com/shopspring/decimal"
)

// streamingSMA is a streaming simple moving average over closing prices.
type streamingSMA struct {
	period int
	window []decimal.Decimal
}

func newStreamingSMA(period int) *streamingSMA {
	return &streamingSMA{
		period: period,
		window: make([]decimal.Decimal, 0, period),
	}
}

func (s *streamingSMA) Update(close decimal.Decimal) {
	s.window = append(s.window, close)
	if len(s.window) > s.period {
		s.window = s.window[1:]
	}
}

func (s *streamingSMA) Ready() bool {
	return len(s.window) >= s.period
}

func (s *streamingSMA) Value() decimal.Decimal {
	if !s.Ready() {
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, close := range s.window {
		sum = sum.Add(close)
	}

	return sum.Div(decimal.NewFromInt(int64(len(s.window))))
}
