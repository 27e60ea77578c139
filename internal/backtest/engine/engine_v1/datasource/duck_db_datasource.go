package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/logger"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"go.uber.org/zap"
)

// DuckDBLoader reads bars from parquet or CSV files through a DuckDB view named
// market_data with columns time, symbol, open, high, low, close and volume.
// Rows are resampled to the requested interval on read.
type DuckDBLoader struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBLoader opens a DuckDB database at path (":memory:" or "" for an
// in-memory one). Initialize must be called before Load.
func NewDuckDBLoader(path string, logger *logger.Logger) (*DuckDBLoader, error) {
	if path == ":memory:" {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	if _, err := db.Exec(`SET threads=4;`); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to set DuckDB optimizations: %w", err)
	}

	return &DuckDBLoader{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Initialize points the market_data view at dataPath. Files ending in .csv are
// read with read_csv_auto, everything else as parquet. Glob patterns are allowed.
func (d *DuckDBLoader) Initialize(dataPath string) error {
	d.logger.Debug("Initializing DuckDB data source", zap.String("path", dataPath))

	if _, err := d.db.Exec(`DROP VIEW IF EXISTS market_data;`); err != nil {
		return fmt.Errorf("failed to drop existing view: %w", err)
	}

	reader := "read_parquet"
	if strings.EqualFold(filepath.Ext(dataPath), ".csv") {
		reader = "read_csv_auto"
	}

	// Squirrel doesn't support CREATE VIEW
	query := fmt.Sprintf(`
		CREATE VIEW market_data AS
		SELECT * FROM %s('%s');
	`, reader, strings.ReplaceAll(dataPath, "'", "''"))

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to read market data from %s", dataPath)
	}

	return nil
}

// Load implements Loader. Each output bar takes the first open, highest high,
// lowest low, last close and summed volume of the rows in its time bucket.
func (d *DuckDBLoader) Load(ctx context.Context, symbol string, interval types.Interval, start, end optional.Option[time.Time]) (types.MarketSeries, error) {
	query, args, err := d.buildLoadQuery(symbol, interval, start, end)
	if err != nil {
		return types.MarketSeries{}, err
	}

	d.logger.Debug("Loading market data",
		zap.String("symbol", symbol),
		zap.String("interval", string(interval)),
	)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		if ctx.Err() != nil {
			return types.MarketSeries{}, ctx.Err()
		}

		return types.MarketSeries{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query market data", err)
	}
	defer rows.Close()

	bars := make([]types.Bar, 0, 1000)

	for rows.Next() {
		var bar types.Bar

		if err := rows.Scan(&bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return types.MarketSeries{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan row", err)
		}

		bar.Time = bar.Time.UTC()
		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return types.MarketSeries{}, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating rows", err)
	}

	if len(bars) == 0 {
		return types.MarketSeries{}, dataUnavailable(symbol, interval)
	}

	return types.NewMarketSeries(symbol, interval, bars)
}

func (d *DuckDBLoader) buildLoadQuery(symbol string, interval types.Interval, start, end optional.Option[time.Time]) (string, []any, error) {
	minutes, err := getIntervalMinutes(interval)
	if err != nil {
		return "", nil, err
	}

	bucket := fmt.Sprintf("time_bucket(INTERVAL '%d minutes', time)", minutes)

	conditions := squirrel.And{squirrel.Eq{"symbol": symbol}}
	if start.IsSome() {
		conditions = append(conditions, squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		conditions = append(conditions, squirrel.LtOrEq{"time": end.Unwrap()})
	}

	query, args, err := d.sq.
		Select(
			bucket+" AS bucket_time",
			"CAST(arg_min(open, time) AS DOUBLE) AS open",
			"CAST(max(high) AS DOUBLE) AS high",
			"CAST(min(low) AS DOUBLE) AS low",
			"CAST(arg_max(close, time) AS DOUBLE) AS close",
			"CAST(sum(volume) AS DOUBLE) AS volume",
		).
		From("market_data").
		Where(conditions).
		GroupBy("bucket_time").
		OrderBy("bucket_time ASC").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build query: %w", err)
	}

	return query, args, nil
}

// Symbols implements SymbolLister.
func (d *DuckDBLoader) Symbols(ctx context.Context) ([]string, error) {
	query, args, err := d.sq.
		Select("DISTINCT symbol").
		From("market_data").
		OrderBy("symbol ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query symbols", err)
	}
	defer rows.Close()

	var symbols []string

	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan symbol", err)
		}

		symbols = append(symbols, symbol)
	}

	return symbols, rows.Err()
}

// Close releases the database.
func (d *DuckDBLoader) Close() error {
	return d.db.Close()
}
