package persistence

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/Masterminds/squirrel"
	"github.com/tradesim-lab/tradesim/internal/types"
	"github.com/tradesim-lab/tradesim/pkg/errors"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ ResultStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS backtest_results (
	run_id        TEXT PRIMARY KEY,
	strategy_name TEXT NOT NULL,
	status        TEXT NOT NULL,
	exchange      TEXT NOT NULL,
	started_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP NOT NULL,
	net_profit    TEXT NOT NULL,
	payload       BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_backtest_results_started_at
	ON backtest_results (started_at DESC);
`

// SQLiteStore implements ResultStore backed by a SQLite database. The full
// result is stored as a JSON payload; the indexed columns exist for listing
// and lookup only.
type SQLiteStore struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to open sqlite store", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to create result schema", err)
	}

	return &SQLiteStore{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveResult implements ResultStore. Saving the same run id again replaces
// the stored result.
func (s *SQLiteStore) SaveResult(ctx context.Context, result *types.BacktestResult) (string, error) {
	if result.RunID == "" {
		return "", errors.New(errors.ErrCodeStoreWriteFailed, "result has no run id")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to serialize result", err)
	}

	query, args, err := s.sq.
		Replace("backtest_results").
		Columns("run_id", "strategy_name", "status", "exchange",
			"started_at", "finished_at", "net_profit", "payload").
		Values(result.RunID, result.StrategyName, string(result.Status), result.Exchange,
			result.StartedAt, result.FinishedAt, result.Metrics.NetProfit.String(), payload).
		ToSql()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to build insert", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to save result", err)
	}

	return result.RunID, nil
}

// LoadResult implements ResultStore.
func (s *SQLiteStore) LoadResult(ctx context.Context, runID string) (*types.BacktestResult, error) {
	query, args, err := s.sq.
		Select("payload").
		From("backtest_results").
		Where(squirrel.Eq{"run_id": runID}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to build select", err)
	}

	var payload []byte
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Newf(errors.ErrCodeResultNotFound, "result %s not found", runID)
		}

		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to load result", err)
	}

	var result types.BacktestResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStoreUnavailable, err,
			"failed to deserialize result %s", runID)
	}

	return &result, nil
}

// ListResults implements ResultStore.
func (s *SQLiteStore) ListResults(ctx context.Context, limit int) ([]ResultSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	query, args, err := s.sq.
		Select("run_id", "strategy_name", "status", "exchange",
			"started_at", "finished_at", "net_profit").
		From("backtest_results").
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to build list query", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to list results", err)
	}

	defer rows.Close()

	summaries := make([]ResultSummary, 0, limit)

	for rows.Next() {
		var summary ResultSummary

		var status string

		if err := rows.Scan(&summary.RunID, &summary.StrategyName, &status,
			&summary.Exchange, &summary.StartedAt, &summary.FinishedAt, &summary.NetProfit); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to scan result row", err)
		}

		summary.Status = types.RunStatus(status)
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "error iterating result rows", err)
	}

	return summaries, nil
}
