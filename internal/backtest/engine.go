// Package backtest drives a finite historical bar sequence through the
// simulation driver and derives the run's performance metrics. Runs are
// deterministic: the same bar sequence and configuration always produce an
// identical trade log and metrics.
package backtest

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/oklog/ulid/v2"
	"github.com/tradesim-lab/tradesim/internal/config"
	"github.com/tradesim-lab/tradesim/internal/datasource"
	"github.com/tradesim-lab/tradesim/internal/logger"
	"github.com/tradesim-lab/tradesim/internal/simulation"
	"github.com/tradesim-lab/tradesim/internal/simulation/metrics"
	"github.com/tradesim-lab/tradesim/internal/strategy"
	"github.com/tradesim-lab/tradesim/internal/types"
	"github.com/tradesim-lab/tradesim/pkg/errors"
)

// ProgressFunc is called after every processed tick with the processed and
// total bar counts.
type ProgressFunc func(processed int, total int)

// Engine runs backtests against a historical bar source. Engines are
// reusable across runs; each run owns isolated driver state, so independent
// runs may execute concurrently on separate Engine calls.
type Engine struct {
	source   datasource.HistoricalSource
	registry *strategy.Registry
	logger   *logger.Logger
	progress ProgressFunc
}

// NewEngine creates a backtest engine over the given bar source.
func NewEngine(source datasource.HistoricalSource, registry *strategy.Registry, log *logger.Logger) *Engine {
	return &Engine{
		source:   source,
		registry: registry,
		logger:   log,
		progress: nil,
	}
}

// SetProgress installs a per-tick progress callback.
func (e *Engine) SetProgress(fn ProgressFunc) {
	e.progress = fn
}

// Run executes one backtest to completion and blocks until the run is
// Completed, Stopped by context cancellation, or Failed. Cancellation is
// honored between ticks only, so no tick is ever left half-applied.
func (e *Engine) Run(ctx context.Context, cfg *config.BacktestConfig) (*types.BacktestResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	strat, err := e.registry.Build(cfg.Strategy, cfg.StrategyParams)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now().UTC()

	driver, err := simulation.NewDriver(cfg.Simulation(), strat, e.logger, startedAt)
	if err != nil {
		return nil, err
	}

	bars, gaps, err := e.materializeBars(cfg)
	if err != nil {
		return nil, err
	}

	runID := ulid.Make().String()
	runLog := e.logger.With(zap.String("run_id", runID))

	runLog.Info("starting backtest",
		zap.String("strategy", strat.Name()),
		zap.Strings("symbols", cfg.Symbols),
		zap.Int("bars", len(bars)),
		zap.Int("gaps", len(gaps)),
	)

	for _, gap := range gaps {
		runLog.Warn("historical data gap, continuing with available bars",
			zap.Error(errors.Newf(errors.ErrCodeDataGap,
				"%s:%s missing %d bars between %s and %s",
				gap.Exchange, gap.Symbol, gap.MissingBars,
				gap.Start.Format(time.RFC3339), gap.End.Format(time.RFC3339))),
		)
	}

	if err := driver.Start(); err != nil {
		return nil, err
	}

	for i, bar := range bars {
		if ctx.Err() != nil {
			runLog.Info("backtest cancelled")
			driver.Stop()

			break
		}

		if err := driver.ProcessTick(bar); err != nil {
			return nil, err
		}

		if e.progress != nil {
			e.progress(i+1, len(bars))
		}
	}

	driver.Complete()

	result := &types.BacktestResult{
		RunID:          runID,
		StrategyName:   strat.Name(),
		Status:         driver.Status(),
		Symbols:        cfg.Symbols,
		Exchange:       cfg.Exchange,
		Interval:       cfg.Interval,
		StartedAt:      startedAt,
		FinishedAt:     time.Now().UTC(),
		Orders:         driver.Orders(),
		Trades:         driver.Trades(),
		EquityCurve:    driver.EquityCurve(),
		Gaps:           gaps,
		Metrics:        metrics.Calculate(driver.Trades(), driver.EquityCurve(), cfg.Metrics()),
		FinalPortfolio: driver.Portfolio(),
	}

	runLog.Info("backtest finished",
		zap.String("status", string(result.Status)),
		zap.Int("trades", len(result.Trades)),
		zap.String("final_equity", result.Metrics.FinalEquity.String()),
	)

	return result, nil
}

// materializeBars loads every symbol's bars, verifies per-symbol ordering,
// records gap spans, and merges the streams into one sequence ordered by
// (time, symbol).
func (e *Engine) materializeBars(cfg *config.BacktestConfig) ([]types.Bar, []types.GapSpan, error) {
	all := make([]types.Bar, 0)
	gaps := make([]types.GapSpan, 0)

	for _, symbol := range cfg.Symbols {
		bars, err := e.loadSymbol(symbol, cfg)
		if err != nil {
			return nil, nil, err
		}

		gaps = append(gaps, detectGaps(bars, cfg.Interval)...)
		all = append(all, bars...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Time.Equal(all[j].Time) {
			return all[i].Time.Before(all[j].Time)
		}

		return all[i].Symbol < all[j].Symbol
	})

	return all, gaps, nil
}

func (e *Engine) loadSymbol(symbol string, cfg *config.BacktestConfig) ([]types.Bar, error) {
	bars := make([]types.Bar, 0)

	for bar, err := range e.source.GetBars(symbol, cfg.Exchange, cfg.Interval, cfg.StartTime, cfg.EndTime) {
		if err != nil {
			return nil, err
		}

		if len(bars) > 0 && !bar.Time.After(bars[len(bars)-1].Time) {
			return nil, errors.Newf(errors.ErrCodeDataOutOfOrder,
				"bar for %s at %s is not after previous bar at %s",
				symbol, bar.Time, bars[len(bars)-1].Time)
		}

		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataNotFound,
			"no bars for %s:%s in the requested window", cfg.Exchange, symbol)
	}

	return bars, nil
}

// detectGaps records spans of missing bars inside one symbol's sequence.
// Gaps are warnings carried in the result; the run continues with the
// available data.
func detectGaps(bars []types.Bar, interval types.Interval) []types.GapSpan {
	expected := interval.Duration()
	gaps := make([]types.GapSpan, 0)

	for i := 1; i < len(bars); i++ {
		delta := bars[i].Time.Sub(bars[i-1].Time)
		if delta <= expected {
			continue
		}

		missing := int(delta/expected) - 1
		if missing < 1 {
			continue
		}

		gaps = append(gaps, types.GapSpan{
			Symbol:      bars[i].Symbol,
			Exchange:    bars[i].Exchange,
			Start:       bars[i-1].Time,
			End:         bars[i].Time,
			MissingBars: missing,
		})
	}

	return gaps
}
