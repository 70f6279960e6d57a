package types

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// RunStatus is the lifecycle state of one backtest run.
type RunStatus string

const (
	RunStatusInitialized RunStatus = "INITIALIZED"
	RunStatusRunning     RunStatus = "RUNNING"
	RunStatusCompleted   RunStatus = "COMPLETED"
	RunStatusStopped     RunStatus = "STOPPED"
	RunStatusFailed      RunStatus = "FAILED"
)

// SessionStatus is the lifecycle state of one forward-test session.
type SessionStatus string

const (
	SessionStatusRunning SessionStatus = "RUNNING"
	SessionStatusPaused  SessionStatus = "PAUSED"
	SessionStatusStopped SessionStatus = "STOPPED"
)

// EquityPoint is one time-stamped equity value. The equity curve is an
// append-only ordered sequence, one point per processed tick.
type EquityPoint struct {
	Time   time.Time       `yaml:"time" json:"time"`
	Equity decimal.Decimal `yaml:"equity" json:"equity"`
}

// GapSpan records a stretch of missing bars inside a requested window. Gaps
// are warnings: the run continues with the available data.
type GapSpan struct {
	Symbol   string    `yaml:"symbol" json:"symbol"`
	Exchange string    `yaml:"exchange" json:"exchange"`
	// Start is the time of the last bar before the gap.
	Start time.Time `yaml:"start" json:"start"`
	// End is the time of the first bar after the gap.
	End time.Time `yaml:"end" json:"end"`
	// MissingBars is the number of bars expected but absent.
	MissingBars int `yaml:"missing_bars" json:"missing_bars"`
}

// PerformanceMetrics are aggregate statistics derived from a completed trade
// log and equity curve.
type PerformanceMetrics struct {
	// TotalClosedTrades counts fills that realized P&L.
	TotalClosedTrades int `yaml:"total_closed_trades" json:"total_closed_trades"`
	WinningTrades     int `yaml:"winning_trades" json:"winning_trades"`
	LosingTrades      int `yaml:"losing_trades" json:"losing_trades"`
	// WinRate is winning / closed trades; zero when no trades closed.
	WinRate decimal.Decimal `yaml:"win_rate" json:"win_rate"`
	// GrossProfit is the sum of positive realized P&L.
	GrossProfit decimal.Decimal `yaml:"gross_profit" json:"gross_profit"`
	// GrossLoss is the sum of negative realized P&L, as a positive number.
	GrossLoss decimal.Decimal `yaml:"gross_loss" json:"gross_loss"`
	NetProfit decimal.Decimal `yaml:"net_profit" json:"net_profit"`
	// ProfitFactor is gross profit / gross loss. When gross loss is zero
	// and gross profit positive, ProfitFactorInfinite is set instead.
	ProfitFactor         decimal.Decimal `yaml:"profit_factor" json:"profit_factor"`
	ProfitFactorInfinite bool            `yaml:"profit_factor_infinite" json:"profit_factor_infinite"`
	// SharpeRatio is mean(period returns) / stdev * sqrt(annualization).
	SharpeRatio decimal.Decimal `yaml:"sharpe_ratio" json:"sharpe_ratio"`
	// MaxDrawdownPct is the largest peak-to-trough equity decline as a
	// positive fraction.
	MaxDrawdownPct decimal.Decimal `yaml:"max_drawdown_pct" json:"max_drawdown_pct"`
	// MaxDrawdownDuration is the time between the peak and the trough of
	// the maximum drawdown.
	MaxDrawdownDuration time.Duration   `yaml:"max_drawdown_duration" json:"max_drawdown_duration"`
	TotalCommission     decimal.Decimal `yaml:"total_commission" json:"total_commission"`
	InitialCapital      decimal.Decimal `yaml:"initial_capital" json:"initial_capital"`
	FinalEquity         decimal.Decimal `yaml:"final_equity" json:"final_equity"`
	// TotalReturnPct is (final - initial) / initial.
	TotalReturnPct decimal.Decimal `yaml:"total_return_pct" json:"total_return_pct"`
}

// BacktestResult is the complete outcome of one backtest run.
type BacktestResult struct {
	// RunID is a ULID, sortable by creation time.
	RunID        string    `yaml:"run_id" json:"run_id"`
	StrategyName string    `yaml:"strategy_name" json:"strategy_name"`
	Status       RunStatus `yaml:"status" json:"status"`
	Symbols      []string  `yaml:"symbols" json:"symbols"`
	Exchange     string    `yaml:"exchange" json:"exchange"`
	Interval     Interval  `yaml:"interval" json:"interval"`
	StartedAt    time.Time `yaml:"started_at" json:"started_at"`
	FinishedAt   time.Time `yaml:"finished_at" json:"finished_at"`
	// Orders is the full audit log including rejected and cancelled orders.
	Orders []Order `yaml:"orders" json:"orders"`
	// Trades is the ordered fill log.
	Trades      []Trade            `yaml:"trades" json:"trades"`
	EquityCurve []EquityPoint      `yaml:"equity_curve" json:"equity_curve"`
	Gaps        []GapSpan          `yaml:"gaps" json:"gaps"`
	Metrics     PerformanceMetrics `yaml:"metrics" json:"metrics"`
	// FinalPortfolio is the portfolio state when the run ended.
	FinalPortfolio Portfolio `yaml:"final_portfolio" json:"final_portfolio"`
}

// WriteYAML writes the result to a YAML file.
func (r *BacktestResult) WriteYAML(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest result to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest result to file: %w", err)
	}

	return nil
}
