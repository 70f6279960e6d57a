// Package persistence stores completed backtest results. The core only
// depends on the ResultStore interface; the SQLite implementation is one
// collaborator behind it.
package persistence

import (
	"context"
	"time"

	"github.com/tradesim-lab/tradesim/internal/types"
)

// ResultSummary is the listing view of a stored result.
type ResultSummary struct {
	RunID        string
	StrategyName string
	Status       types.RunStatus
	Exchange     string
	StartedAt    time.Time
	FinishedAt   time.Time
	NetProfit    string
}

// ResultStore persists completed backtest results.
type ResultStore interface {
	// SaveResult stores a result and returns its run id.
	SaveResult(ctx context.Context, result *types.BacktestResult) (string, error)
	// LoadResult retrieves a result by run id.
	LoadResult(ctx context.Context, runID string) (*types.BacktestResult, error)
	// ListResults returns summaries of stored results, newest first.
	ListResults(ctx context.Context, limit int) ([]ResultSummary, error)
	// Close releases the underlying resources.
	Close() error
}
