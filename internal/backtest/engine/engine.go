package engine

import (
	"context"

	"github.com/rxtech-lab/argo-quant/internal/strategy"
	"github.com/rxtech-lab/argo-quant/internal/types"
)

// Lifecycle callback types for backtest phases
// All callbacks with error return can abort execution if they return an error.
// Compare invokes callbacks from several goroutines, so they must be safe for concurrent use.

// OnCompareStartCallback is called once before Compare schedules its runs.
type OnCompareStartCallback func(totalStrategies int, symbol string) error

// OnCompareEndCallback is called when Compare returns (always called via defer).
type OnCompareEndCallback func(err error)

// OnRunStartCallback is called when a single run begins.
// runID is derived from the strategy, the series and the initial cash, so reruns share it.
type OnRunStartCallback func(runID string, strategyID string, symbol string, totalDataPoints int) error

// OnRunEndCallback is called when a single run reaches COMPLETED or FAILED.
type OnRunEndCallback func(runID string, status RunStatus, result types.BacktestResult, err error)

// OnProcessDataCallback is called for each data point processed.
type OnProcessDataCallback func(current int, total int) error

// LifecycleCallbacks holds all lifecycle callback functions for the backtest engine.
// All fields are pointers - nil means no callback will be invoked.
type LifecycleCallbacks struct {
	OnCompareStart *OnCompareStartCallback
	OnCompareEnd   *OnCompareEndCallback
	OnRunStart     *OnRunStartCallback
	OnRunEnd       *OnRunEndCallback
	OnProcessData  *OnProcessDataCallback
}

// RunStatus is the state of a single backtest run.
type RunStatus string

const (
	RunStatusInitialized RunStatus = "INITIALIZED"
	RunStatusRunning     RunStatus = "RUNNING"
	RunStatusCompleted   RunStatus = "COMPLETED"
	RunStatusFailed      RunStatus = "FAILED"
)

// IsTerminal reports whether no further transition is possible.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// ComparisonResult is the outcome of one strategy inside Compare. Err is set
// instead of Result when that run failed or was cancelled.
type ComparisonResult struct {
	StrategyID   string               `json:"strategy_id"`
	StrategyType types.StrategyType   `json:"strategy_type"`
	Result       types.BacktestResult `json:"result"`
	Err          error                `json:"-"`
}

type Engine interface {
	// Initialize the engine with the given YAML configuration.
	Initialize(config string) error
	// SetCallbacks replaces the lifecycle callbacks used by later runs.
	SetCallbacks(callbacks LifecycleCallbacks)
	// Run replays series through strat. Each call owns a fresh ledger, so
	// concurrent calls on the same engine are safe. A non-positive
	// initialCash falls back to the configured initial capital.
	Run(ctx context.Context, strat strategy.Strategy, series types.MarketSeries, initialCash float64) (types.BacktestResult, error)
	// Compare runs every strategy over the same series on a bounded worker pool.
	// Individual failures are reported per item; the returned error is only set
	// when ctx was cancelled.
	Compare(ctx context.Context, strategies []strategy.Strategy, series types.MarketSeries, initialCash float64) ([]ComparisonResult, error)
	// GetConfigSchema returns the schema of the engine configuration
	GetConfigSchema() (string, error)
}
