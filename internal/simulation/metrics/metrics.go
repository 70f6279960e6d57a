// Package metrics derives aggregate performance statistics from a completed
// trade log and equity curve. Calculate is a pure function: the same inputs
// always produce the same metrics.
package metrics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/internal/types"
)

// DefaultAnnualizationFactor is the Sharpe annualization constant used when
// the run configuration does not override it: 252 trading days per year.
const DefaultAnnualizationFactor = 252.0

// Config carries the inputs Calculate needs beyond the trade and equity
// history.
type Config struct {
	InitialCapital decimal.Decimal
	// AnnualizationFactor scales the per-period Sharpe ratio. It is a
	// configuration constant, not derived from the bar interval.
	AnnualizationFactor float64
}

// Calculate computes the full metrics set. It never fails: degenerate inputs
// (no trades, flat equity) produce zero-valued statistics, not errors.
func Calculate(trades []types.Trade, curve []types.EquityPoint, cfg Config) types.PerformanceMetrics {
	annualization := cfg.AnnualizationFactor
	if annualization <= 0 {
		annualization = DefaultAnnualizationFactor
	}

	m := types.PerformanceMetrics{
		TotalClosedTrades:    0,
		WinningTrades:        0,
		LosingTrades:         0,
		WinRate:              decimal.Zero,
		GrossProfit:          decimal.Zero,
		GrossLoss:            decimal.Zero,
		NetProfit:            decimal.Zero,
		ProfitFactor:         decimal.Zero,
		ProfitFactorInfinite: false,
		SharpeRatio:          decimal.Zero,
		MaxDrawdownPct:       decimal.Zero,
		MaxDrawdownDuration:  0,
		TotalCommission:      decimal.Zero,
		InitialCapital:       cfg.InitialCapital,
		FinalEquity:          cfg.InitialCapital,
		TotalReturnPct:       decimal.Zero,
	}

	for _, trade := range trades {
		m.TotalCommission = m.TotalCommission.Add(trade.Commission)

		if trade.ClosedQuantity.IsZero() {
			continue
		}

		m.TotalClosedTrades++

		switch trade.RealizedPnL.Sign() {
		case 1:
			m.WinningTrades++
			m.GrossProfit = m.GrossProfit.Add(trade.RealizedPnL)
		case -1:
			m.LosingTrades++
			m.GrossLoss = m.GrossLoss.Add(trade.RealizedPnL.Neg())
		}
	}

	m.NetProfit = m.GrossProfit.Sub(m.GrossLoss)

	if m.TotalClosedTrades > 0 {
		m.WinRate = decimal.NewFromInt(int64(m.WinningTrades)).
			Div(decimal.NewFromInt(int64(m.TotalClosedTrades)))
	}

	switch {
	case m.GrossLoss.IsPositive():
		m.ProfitFactor = m.GrossProfit.Div(m.GrossLoss)
	case m.GrossProfit.IsPositive():
		// No losing trades: the ratio is infinite, flagged rather than
		// computed.
		m.ProfitFactorInfinite = true
	}

	m.SharpeRatio = sharpeRatio(curve, annualization)
	m.MaxDrawdownPct, m.MaxDrawdownDuration = maxDrawdown(curve)

	if len(curve) > 0 {
		m.FinalEquity = curve[len(curve)-1].Equity
	}

	if cfg.InitialCapital.IsPositive() {
		m.TotalReturnPct = m.FinalEquity.Sub(cfg.InitialCapital).Div(cfg.InitialCapital)
	}

	return m
}

// sharpeRatio computes mean(period returns) / stdev * sqrt(annualization)
// over the equity curve. Returns zero when fewer than two returns exist or
// the returns have no variance.
func sharpeRatio(curve []types.EquityPoint, annualization float64) decimal.Decimal {
	returns := make([]float64, 0, len(curve))

	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev.IsZero() {
			continue
		}

		r, _ := curve[i].Equity.Sub(prev).Div(prev).Float64()
		returns = append(returns, r)
	}

	if len(returns) < 2 {
		return decimal.Zero
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}

	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}

	variance /= float64(len(returns) - 1)

	stdev := math.Sqrt(variance)
	if stdev == 0 {
		return decimal.Zero
	}

	return decimal.NewFromFloat(mean / stdev * math.Sqrt(annualization))
}

// maxDrawdown returns the largest peak-to-trough equity decline as a
// positive fraction, together with the time elapsed between that peak and
// its trough.
func maxDrawdown(curve []types.EquityPoint) (decimal.Decimal, time.Duration) {
	if len(curve) == 0 {
		return decimal.Zero, 0
	}

	peak := curve[0].Equity
	peakTime := curve[0].Time
	maxDD := decimal.Zero
	maxDuration := time.Duration(0)

	for _, point := range curve[1:] {
		if point.Equity.GreaterThan(peak) {
			peak = point.Equity
			peakTime = point.Time

			continue
		}

		if !peak.IsPositive() {
			continue
		}

		dd := peak.Sub(point.Equity).Div(peak)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
			maxDuration = point.Time.Sub(peakTime)
		}
	}

	return maxDD, maxDuration
}
