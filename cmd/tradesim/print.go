package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/internal/types"
)

var hundred = decimal.NewFromInt(100)

func printMetrics(result *types.BacktestResult) {
	m := result.Metrics

	profitFactor := m.ProfitFactor.StringFixed(4)
	if m.ProfitFactorInfinite {
		profitFactor = "inf"
	}

	fmt.Printf("\nRun %s (%s) finished with status %s\n", result.RunID, result.StrategyName, result.Status)
	fmt.Printf("  Initial capital:  %s\n", m.InitialCapital.StringFixed(2))
	fmt.Printf("  Final equity:     %s\n", m.FinalEquity.StringFixed(2))
	fmt.Printf("  Total return:     %s%%\n", m.TotalReturnPct.Mul(hundred).StringFixed(2))
	fmt.Printf("  Net profit:       %s\n", m.NetProfit.StringFixed(2))
	fmt.Printf("  Closed trades:    %d (%d won / %d lost, win rate %s%%)\n",
		m.TotalClosedTrades, m.WinningTrades, m.LosingTrades, m.WinRate.Mul(hundred).StringFixed(1))
	fmt.Printf("  Profit factor:    %s\n", profitFactor)
	fmt.Printf("  Sharpe ratio:     %s\n", m.SharpeRatio.StringFixed(4))
	fmt.Printf("  Max drawdown:     %s%% over %s\n",
		m.MaxDrawdownPct.Mul(hundred).StringFixed(2), m.MaxDrawdownDuration)
	fmt.Printf("  Commission paid:  %s\n", m.TotalCommission.StringFixed(2))

	if len(result.Gaps) > 0 {
		fmt.Printf("  Data gaps:        %d span(s) with missing bars\n", len(result.Gaps))
	}
}
