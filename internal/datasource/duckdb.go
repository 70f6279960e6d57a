package datasource

import (
	"database/sql"
	"fmt"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/internal/logger"
	"github.com/tradesim-lab/tradesim/internal/types"
	"github.com/tradesim-lab/tradesim/pkg/errors"
)

// DuckDBSource reads historical bars from parquet or CSV files through an
// in-memory DuckDB view. The file must carry time, symbol, open, high, low,
// close, and volume columns; the exchange label is supplied at construction
// because data files rarely carry one.
type DuckDBSource struct {
	db       *sql.DB
	logger   *logger.Logger
	sq       squirrel.StatementBuilderType
	exchange string
	interval types.Interval
}

// NewDuckDBSource opens an in-memory DuckDB instance tagged with the
// exchange and interval of the data it will serve.
func NewDuckDBSource(exchange string, interval types.Interval, log *logger.Logger) (*DuckDBSource, error) {
	if !interval.IsValid() {
		return nil, errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval %q", interval)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	return &DuckDBSource{
		db:       db,
		logger:   log,
		sq:       squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		exchange: exchange,
		interval: interval,
	}, nil
}

// Initialize points the market_data view at a parquet or CSV file. Calling
// it again replaces the view.
func (d *DuckDBSource) Initialize(path string) error {
	d.logger.Debug("initializing duckdb bar source", zap.String("path", path))

	if _, err := d.db.Exec(`DROP VIEW IF EXISTS market_data;`); err != nil {
		return errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to drop existing view", err)
	}

	reader := "read_parquet"
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		reader = "read_csv_auto"
	}

	// CREATE VIEW has no squirrel support; raw SQL with the path inlined,
	// single quotes doubled per SQL string-literal rules.
	escaped := strings.ReplaceAll(path, "'", "''")
	query := fmt.Sprintf(`CREATE VIEW market_data AS SELECT * FROM %s('%s');`, reader, escaped)

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err,
			"failed to create view over %s", path)
	}

	return nil
}

// GetBars implements HistoricalSource. Bars are yielded in ascending
// timestamp order; iteration stops at the first scan error.
func (d *DuckDBSource) GetBars(symbol string, exchange string, interval types.Interval,
	start optional.Option[time.Time], end optional.Option[time.Time],
) iter.Seq2[types.Bar, error] {
	return func(yield func(types.Bar, error) bool) {
		if interval != d.interval {
			yield(types.Bar{}, errors.Newf(errors.ErrCodeInvalidInterval,
				"source serves %s bars, requested %s", d.interval, interval))

			return
		}

		rows, err := d.queryBars(symbol, start, end)
		if err != nil {
			yield(types.Bar{}, err)

			return
		}

		defer rows.Close()

		for rows.Next() {
			var (
				timestamp                      time.Time
				rowSymbol                      string
				open, high, low, close, volume float64
			)

			if err := rows.Scan(&timestamp, &rowSymbol, &open, &high, &low, &close, &volume); err != nil {
				yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar row", err))

				return
			}

			bar := types.Bar{
				Symbol:   rowSymbol,
				Exchange: exchange,
				Interval: interval,
				Time:     timestamp,
				Open:     decimal.NewFromFloat(open),
				High:     decimal.NewFromFloat(high),
				Low:      decimal.NewFromFloat(low),
				Close:    decimal.NewFromFloat(close),
				Volume:   decimal.NewFromFloat(volume),
			}

			if !yield(bar, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating bar rows", err))
		}
	}
}

func (d *DuckDBSource) queryBars(symbol string,
	start optional.Option[time.Time], end optional.Option[time.Time],
) (*sql.Rows, error) {
	builder := d.sq.
		Select("time", "symbol", "open", "high", "low", "close", "volume").
		From("market_data").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("time ASC")

	if from, err := start.Take(); err == nil {
		builder = builder.Where(squirrel.GtOrEq{"time": from})
	}

	if until, err := end.Take(); err == nil {
		builder = builder.Where(squirrel.LtOrEq{"time": until})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build bar query", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query bars", err)
	}

	return rows, nil
}

// Count implements HistoricalSource.
func (d *DuckDBSource) Count(symbol string, _ string, interval types.Interval,
	start optional.Option[time.Time], end optional.Option[time.Time],
) (int, error) {
	if interval != d.interval {
		return 0, errors.Newf(errors.ErrCodeInvalidInterval,
			"source serves %s bars, requested %s", d.interval, interval)
	}

	builder := d.sq.
		Select("COUNT(*)").
		From("market_data").
		Where(squirrel.Eq{"symbol": symbol})

	if from, err := start.Take(); err == nil {
		builder = builder.Where(squirrel.GtOrEq{"time": from})
	}

	if until, err := end.Take(); err == nil {
		builder = builder.Where(squirrel.LtOrEq{"time": until})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// Close implements HistoricalSource.
func (d *DuckDBSource) Close() error {
	return d.db.Close()
}
