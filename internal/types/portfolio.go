package types

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio owns the cash balance and the active position set of one run or
// session. Equity is always a derived view over cash, positions, and mark
// prices; it is never mutated independently of the ledger of fills.
type Portfolio struct {
	Cash      decimal.Decimal     `yaml:"cash" json:"cash"`
	Positions map[string]Position `yaml:"positions" json:"positions"`
	CreatedAt time.Time           `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time           `yaml:"updated_at" json:"updated_at"`
}

// NewPortfolio creates a portfolio holding only cash.
func NewPortfolio(initialCapital decimal.Decimal, createdAt time.Time) *Portfolio {
	return &Portfolio{
		Cash:      initialCapital,
		Positions: make(map[string]Position),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// Position returns the active position for the instrument key, if any.
func (p *Portfolio) Position(key string) (Position, bool) {
	pos, ok := p.Positions[key]

	return pos, ok
}

// SetPosition stores the position, removing it from the active set when it
// has gone flat.
func (p *Portfolio) SetPosition(pos Position) {
	key := pos.InstrumentKey()
	if pos.IsFlat() {
		delete(p.Positions, key)

		return
	}

	p.Positions[key] = pos
}

// OpenPositionCount returns the number of active positions.
func (p *Portfolio) OpenPositionCount() int {
	return len(p.Positions)
}

// PositionKeys returns the active instrument keys in deterministic order.
func (p *Portfolio) PositionKeys() []string {
	keys := make([]string, 0, len(p.Positions))
	for key := range p.Positions {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// TotalEquity returns cash plus the signed market value of every position at
// the supplied mark prices. Positions without a mark contribute their entry
// value, so equity is defined from the first tick.
func (p *Portfolio) TotalEquity(marks map[string]decimal.Decimal) decimal.Decimal {
	equity := p.Cash

	for key, pos := range p.Positions {
		mark, ok := marks[key]
		if !ok {
			mark = pos.AvgEntryPrice
		}

		equity = equity.Add(pos.MarketValue(mark))
	}

	return equity
}

// TotalExposure returns the sum of absolute position values at the supplied
// mark prices.
func (p *Portfolio) TotalExposure(marks map[string]decimal.Decimal) decimal.Decimal {
	exposure := decimal.Zero

	for key, pos := range p.Positions {
		mark, ok := marks[key]
		if !ok {
			mark = pos.AvgEntryPrice
		}

		exposure = exposure.Add(pos.Exposure(mark))
	}

	return exposure
}

// TotalUnrealizedPnL returns the open profit across all positions.
func (p *Portfolio) TotalUnrealizedPnL(marks map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero

	for key, pos := range p.Positions {
		mark, ok := marks[key]
		if !ok {
			mark = pos.AvgEntryPrice
		}

		total = total.Add(pos.UnrealizedPnL(mark))
	}

	return total
}

// Snapshot returns a deep copy of the portfolio. Callers use snapshots for
// reporting so the live portfolio is never locked across a caller-controlled
// duration.
func (p *Portfolio) Snapshot() Portfolio {
	positions := make(map[string]Position, len(p.Positions))
	for key, pos := range p.Positions {
		positions[key] = pos
	}

	return Portfolio{
		Cash:      p.Cash,
		Positions: positions,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
