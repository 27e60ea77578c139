package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Store persists registry entries between processes.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	// Save replaces everything stored with entries.
	Save(ctx context.Context, entries []Entry) error
	Close() error
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS strategies (
	strategy_key TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	strategy_type TEXT NOT NULL,
	enabled INTEGER NOT NULL,
	parameters TEXT NOT NULL,
	model_type TEXT NOT NULL DEFAULT '',
	model_path TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS strategy_results (
	strategy_key TEXT PRIMARY KEY,
	enabled INTEGER NOT NULL,
	total_return REAL NOT NULL,
	total_trades INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	sharpe_ratio REAL NOT NULL,
	parameters TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore keeps the registry in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

// NewSQLiteStore opens (or creates) the database at dbPath and creates its tables.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to open registry database", err)
	}

	// a single connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to create registry tables", err)
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

// Save writes entries in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to begin transaction", err)
	}

	if err := s.save(ctx, tx, entries); err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to save registry", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to commit registry", err)
	}

	return nil
}

func (s *SQLiteStore) save(ctx context.Context, tx *sql.Tx, entries []Entry) error {
	for _, table := range []string{"strategies", "strategy_results"} {
		query, args, err := s.sq.Delete(table).ToSql()
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, entry := range entries {
		cfg := entry.Config

		params, err := json.Marshal(cfg.Parameters)
		if err != nil {
			return err
		}

		query, args, err := s.sq.
			Insert("strategies").
			Columns("strategy_key", "symbol", "strategy_type", "enabled", "parameters", "model_type", "model_path").
			Values(cfg.Key().String(), cfg.Symbol, string(cfg.StrategyType), cfg.Enabled, string(params), cfg.ModelType, cfg.ModelPath).
			ToSql()
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert strategy %s: %w", cfg.Key(), err)
		}

		if entry.LastResult.IsNone() {
			continue
		}

		if err := s.saveResult(ctx, tx, cfg.Key().String(), entry.LastResult.Unwrap()); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteStore) saveResult(ctx context.Context, tx *sql.Tx, key string, summary StrategySummary) error {
	params, err := json.Marshal(summary.Parameters)
	if err != nil {
		return err
	}

	query, args, err := s.sq.
		Insert("strategy_results").
		Columns(
			"strategy_key", "enabled", "total_return", "total_trades", "win_rate",
			"max_drawdown", "sharpe_ratio", "parameters", "error", "updated_at",
		).
		Values(
			key, summary.Enabled, summary.TotalReturn, summary.TotalTrades, summary.WinRate,
			summary.MaxDrawdown, summary.SharpeRatio, string(params), summary.Error, summary.UpdatedAt.UnixMilli(),
		).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert result %s: %w", key, err)
	}

	return nil
}

// Load returns every stored entry ordered by key.
func (s *SQLiteStore) Load(ctx context.Context) ([]Entry, error) {
	results, err := s.loadResults(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to load strategy results", err)
	}

	query, args, err := s.sq.
		Select("strategy_key", "symbol", "strategy_type", "enabled", "parameters", "model_type", "model_path").
		From("strategies").
		OrderBy("strategy_key ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to build query", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to query strategies", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var (
			key, strategyType, params string
			cfg                       types.StrategyConfig
		)

		if err := rows.Scan(&key, &cfg.Symbol, &strategyType, &cfg.Enabled, &params, &cfg.ModelType, &cfg.ModelPath); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to scan strategy", err)
		}

		cfg.StrategyType, err = types.ParseStrategyType(strategyType)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeStorageFailed, err, "stored strategy %s is invalid", key)
		}

		if err := json.Unmarshal([]byte(params), &cfg.Parameters); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeStorageFailed, err, "stored parameters of %s are invalid", key)
		}

		entry := Entry{Config: cfg, LastResult: optional.None[StrategySummary]()}
		if summary, ok := results[key]; ok {
			entry.LastResult = optional.Some(summary)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to read strategies", err)
	}

	return entries, nil
}

func (s *SQLiteStore) loadResults(ctx context.Context) (map[string]StrategySummary, error) {
	query, args, err := s.sq.
		Select(
			"strategy_key", "enabled", "total_return", "total_trades", "win_rate",
			"max_drawdown", "sharpe_ratio", "parameters", "error", "updated_at",
		).
		From("strategy_results").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make(map[string]StrategySummary)

	for rows.Next() {
		var (
			summary   StrategySummary
			params    string
			updatedAt int64
		)

		if err := rows.Scan(
			&summary.StrategyKey,
			&summary.Enabled,
			&summary.TotalReturn,
			&summary.TotalTrades,
			&summary.WinRate,
			&summary.MaxDrawdown,
			&summary.SharpeRatio,
			&params,
			&summary.Error,
			&updatedAt,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(params), &summary.Parameters); err != nil {
			return nil, err
		}

		summary.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		results[summary.StrategyKey] = summary
	}

	return results, rows.Err()
}
