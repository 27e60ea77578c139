// Package report writes backtest results to disk: statistics as YAML, trades
// and the equity curve as Parquet.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/internal/version"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	StatsFile  = "stats.yaml"
	TradesFile = "trades.parquet"
	EquityFile = "equity.parquet"
)

// Metadata describes how a result was produced.
type Metadata struct {
	StrategyType types.StrategyType `yaml:"strategy_type"`
	Parameters   map[string]float64 `yaml:"parameters"`
	Interval     types.Interval     `yaml:"interval"`
	EngineConfig string             `yaml:"engine_config,omitempty"`
	GeneratedAt  time.Time          `yaml:"generated_at"`
	// Version of argo-quant that wrote the report. Filled in by WriteStats when empty.
	Version string `yaml:"version"`
}

// Stats is the content of stats.yaml.
type Stats struct {
	Metadata Metadata             `yaml:"metadata"`
	Result   types.BacktestResult `yaml:"result"`
}

// TradeRecord is the Parquet schema of trades.parquet.
type TradeRecord struct {
	ID             string  `parquet:"id"`
	Timestamp      int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Symbol         string  `parquet:"symbol"`
	Side           string  `parquet:"side"`
	Quantity       float64 `parquet:"quantity"`
	Price          float64 `parquet:"price"`
	Fee            float64 `parquet:"fee"`
	StrategyID     string  `parquet:"strategy_id"`
	Reason         string  `parquet:"reason"`
	RealizedPnL    float64 `parquet:"realized_pnl"`
	ClosedQuantity float64 `parquet:"closed_quantity"`
	EntryPrice     float64 `parquet:"entry_price"`
}

// EquityRecord is the Parquet schema of equity.parquet.
type EquityRecord struct {
	Timestamp   int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	TotalEquity float64 `parquet:"total_equity"`
}

// Write creates dir and writes the three report files into it.
func Write(dir string, result types.BacktestResult, meta Metadata) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeReportFailed, "failed to create report directory", err)
	}

	if err := WriteStats(filepath.Join(dir, StatsFile), result, meta); err != nil {
		return err
	}

	if err := writeParquetFile(filepath.Join(dir, TradesFile), toTradeRecords(result.Trades)); err != nil {
		return errors.Wrap(errors.ErrCodeReportFailed, "failed to write trades", err)
	}

	if err := writeParquetFile(filepath.Join(dir, EquityFile), toEquityRecords(result.EquityCurve)); err != nil {
		return errors.Wrap(errors.ErrCodeReportFailed, "failed to write equity curve", err)
	}

	return nil
}

// WriteStats writes the statistics of result to path as YAML.
func WriteStats(path string, result types.BacktestResult, meta Metadata) error {
	if meta.Version == "" {
		meta.Version = version.GetVersion()
	}

	data, err := yaml.Marshal(Stats{Metadata: meta, Result: result})
	if err != nil {
		return errors.Wrap(errors.ErrCodeReportFailed, "failed to marshal stats", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeReportFailed, "failed to write stats", err)
	}

	return nil
}

// ReadStats reads a stats.yaml written by WriteStats. Reports from an
// incompatible version are rejected.
func ReadStats(path string) (Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, errors.Wrap(errors.ErrCodeReportFailed, "failed to read stats", err)
	}

	var stats Stats
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return Stats{}, errors.Wrap(errors.ErrCodeReportFailed, "failed to parse stats", err)
	}

	if err := version.CheckVersionCompatibility(version.GetVersion(), stats.Metadata.Version); err != nil {
		return Stats{}, errors.Wrap(errors.ErrCodeReportFailed, "incompatible report", err)
	}

	return stats, nil
}

// ReadTrades reads trades.parquet back into trades, in file order.
func ReadTrades(path string) ([]types.Trade, error) {
	records, err := parquet.ReadFile[TradeRecord](path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeReportFailed, "failed to read trades", err)
	}

	trades := make([]types.Trade, len(records))
	for i, r := range records {
		trades[i] = types.Trade{
			ID:             r.ID,
			Timestamp:      time.UnixMilli(r.Timestamp).UTC(),
			Symbol:         r.Symbol,
			Side:           types.Side(r.Side),
			Quantity:       r.Quantity,
			Price:          r.Price,
			Fee:            r.Fee,
			StrategyID:     r.StrategyID,
			Reason:         r.Reason,
			RealizedPnL:    r.RealizedPnL,
			ClosedQuantity: r.ClosedQuantity,
			EntryPrice:     r.EntryPrice,
		}
	}

	return trades, nil
}

// ReadEquity reads equity.parquet back into an equity curve.
func ReadEquity(path string) (types.EquityCurve, error) {
	records, err := parquet.ReadFile[EquityRecord](path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeReportFailed, "failed to read equity curve", err)
	}

	curve := make(types.EquityCurve, len(records))
	for i, r := range records {
		curve[i] = types.EquityPoint{Timestamp: time.UnixMilli(r.Timestamp).UTC(), TotalEquity: r.TotalEquity}
	}

	return curve, nil
}

func toTradeRecords(trades []types.Trade) []TradeRecord {
	records := make([]TradeRecord, len(trades))
	for i, t := range trades {
		records[i] = TradeRecord{
			ID:             t.ID,
			Timestamp:      t.Timestamp.UnixMilli(),
			Symbol:         t.Symbol,
			Side:           string(t.Side),
			Quantity:       t.Quantity,
			Price:          t.Price,
			Fee:            t.Fee,
			StrategyID:     t.StrategyID,
			Reason:         t.Reason,
			RealizedPnL:    t.RealizedPnL,
			ClosedQuantity: t.ClosedQuantity,
			EntryPrice:     t.EntryPrice,
		}
	}

	return records
}

func toEquityRecords(curve types.EquityCurve) []EquityRecord {
	records := make([]EquityRecord, len(curve))
	for i, p := range curve {
		records[i] = EquityRecord{Timestamp: p.Timestamp.UnixMilli(), TotalEquity: p.TotalEquity}
	}

	return records
}

func writeParquetFile[T any](path string, records []T) error {
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}

	return nil
}
