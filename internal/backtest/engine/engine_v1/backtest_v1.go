package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	engine_types "github.com/rxtech-lab/argo-quant/internal/backtest/engine"
	"github.com/rxtech-lab/argo-quant/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/argo-quant/internal/indicator"
	"github.com/rxtech-lab/argo-quant/internal/logger"
	"github.com/rxtech-lab/argo-quant/internal/strategy"
	"github.com/rxtech-lab/argo-quant/internal/trading"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

type BacktestEngineV1 struct {
	config            BacktestEngineV1Config
	callbacks         engine_types.LifecycleCallbacks
	log               *logger.Logger
	indicatorRegistry indicator.IndicatorRegistry
	mu                sync.RWMutex
}

// NewBacktestEngineV1 creates an engine with DefaultConfig. A nil logger discards output.
func NewBacktestEngineV1(log *logger.Logger) engine_types.Engine {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &BacktestEngineV1{
		config:            DefaultConfig(),
		log:               log,
		indicatorRegistry: indicator.NewDefaultRegistry(),
	}
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	// parse the config on top of the defaults
	parsed := DefaultConfig()

	if err := yaml.Unmarshal([]byte(config), &parsed); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to parse backtest config", err)
	}

	if err := parsed.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	b.config = parsed
	b.mu.Unlock()

	b.log.Debug("Backtest engine initialized",
		zap.Float64("initial_capital", parsed.InitialCapital),
		zap.String("broker", string(parsed.Broker)),
		zap.String("fill_policy", string(parsed.FillPolicy)),
		zap.Bool("allow_short", parsed.AllowShort),
	)

	return nil
}

// Config returns the active configuration.
func (b *BacktestEngineV1) Config() BacktestEngineV1Config {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.config
}

// SetCallbacks implements engine.Engine.
func (b *BacktestEngineV1) SetCallbacks(callbacks engine_types.LifecycleCallbacks) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.callbacks = callbacks
}

// Run implements engine.Engine.
func (b *BacktestEngineV1) Run(ctx context.Context, strat strategy.Strategy, series types.MarketSeries, initialCash float64) (types.BacktestResult, error) {
	b.mu.RLock()
	config := b.config
	callbacks := b.callbacks
	b.mu.RUnlock()

	if strat == nil {
		return types.BacktestResult{}, errors.New(errors.ErrCodeInvalidParameters, "no strategy given")
	}

	if initialCash <= 0 {
		initialCash = config.InitialCapital
	}

	if initialCash <= 0 {
		return types.BacktestResult{}, errors.Newf(errors.ErrCodeInvalidParameters, "initial cash must be positive, got %g", initialCash)
	}

	series = clipSeries(series, config)
	runID := getRunID(strat.ID(), series, initialCash)

	state := NewBacktestState(runID, strat.ID(), initialCash, trading.ExecutorConfig{
		Commission:       commission_fee.GetCommissionFeeHandler(config.Broker, config.CommissionRate),
		DecimalPrecision: config.DecimalPrecision,
		AllowShort:       config.AllowShort,
	}, b.log)

	result, err := b.run(ctx, state, strat, series, config, callbacks)
	if err != nil {
		if transitionErr := state.Transition(engine_types.RunStatusFailed); transitionErr != nil {
			b.log.Error("Failed to mark run as failed", zap.Error(transitionErr))
		}

		b.log.Error("Backtest run failed",
			zap.String("run_id", state.runID),
			zap.String("strategy", strat.ID()),
			zap.String("symbol", series.Symbol()),
			zap.Error(err),
		)
	}

	if callbacks.OnRunEnd != nil {
		(*callbacks.OnRunEnd)(state.runID, state.Status(), result, err)
	}

	if err != nil {
		return types.BacktestResult{}, err
	}

	return result, nil
}

func (b *BacktestEngineV1) run(
	ctx context.Context,
	state *BacktestState,
	strat strategy.Strategy,
	series types.MarketSeries,
	config BacktestEngineV1Config,
	callbacks engine_types.LifecycleCallbacks,
) (types.BacktestResult, error) {
	total := series.Len()
	symbol := series.Symbol()

	required := max(strat.RequiredBars(), 1)
	if total < required {
		return types.BacktestResult{}, errors.NewInsufficientDataErrorf(required, total, symbol,
			"strategy %s needs %d bars but %s has %d", strat.ID(), required, symbol, total)
	}

	if err := ctx.Err(); err != nil {
		return types.BacktestResult{}, errors.Wrap(errors.ErrCodeBacktestRunCancelled, "run cancelled before start", err)
	}

	if callbacks.OnRunStart != nil {
		if err := (*callbacks.OnRunStart)(state.runID, strat.ID(), symbol, total); err != nil {
			return types.BacktestResult{}, errors.Wrap(errors.ErrCodeCallbackFailed, "OnRunStart callback failed", err)
		}
	}

	if err := state.Transition(engine_types.RunStatusRunning); err != nil {
		return types.BacktestResult{}, err
	}

	set, err := indicator.Compute(b.indicatorRegistry, series, strat.Indicators())
	if err != nil {
		return types.BacktestResult{}, fmt.Errorf("failed to compute indicators: %w", err)
	}

	positionSize := strat.Risk().PositionSize

	b.log.Debug("Running strategy",
		zap.String("run_id", state.runID),
		zap.String("strategy", strat.ID()),
		zap.String("symbol", symbol),
		zap.Int("bars", total),
	)

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return types.BacktestResult{}, errors.Wrapf(errors.ErrCodeBacktestRunCancelled, err, "run cancelled at bar %d", i)
		}

		bar := series.At(i)

		if state.pending != nil {
			signal := *state.pending
			state.pending = nil

			if err := b.execute(state, symbol, signal, bar.Open, bar, positionSize); err != nil {
				return types.BacktestResult{}, err
			}
		}

		signal, err := strat.Decide(strategy.DecisionContext{
			Index:      i,
			Series:     series.Head(i + 1),
			Indicators: set.Window(i + 1),
			Position:   state.executor.GetPosition(symbol),
		})
		if err != nil {
			return types.BacktestResult{}, fmt.Errorf("strategy %s failed at bar %d: %w", strat.ID(), i, err)
		}

		if !signal.IsHold() {
			switch config.FillPolicy {
			case FillPolicyNextOpen:
				if i+1 < total {
					state.pending = &signal
				}
			default:
				if err := b.execute(state, symbol, signal, bar.Close, bar, positionSize); err != nil {
					return types.BacktestResult{}, err
				}
			}
		}

		state.Record(bar.Time, map[string]float64{symbol: bar.Close})

		if callbacks.OnProcessData != nil {
			if err := (*callbacks.OnProcessData)(i+1, total); err != nil {
				return types.BacktestResult{}, errors.Wrap(errors.ErrCodeCallbackFailed, "OnProcessData callback failed", err)
			}
		}
	}

	if config.ShouldCloseAtEnd() {
		last := series.At(total - 1)

		_, closed, err := state.executor.ClosePosition(symbol, last.Close, last.Time, types.TradeReasonFinalClose)
		if err != nil {
			return types.BacktestResult{}, fmt.Errorf("failed to close final position: %w", err)
		}

		if closed {
			state.Remark(map[string]float64{symbol: last.Close})
		}
	}

	if err := state.Transition(engine_types.RunStatusCompleted); err != nil {
		return types.BacktestResult{}, err
	}

	result := buildResult(state, strat, series, config)

	b.log.Info("Backtest run completed",
		zap.String("run_id", result.RunID),
		zap.String("strategy", result.StrategyID),
		zap.String("symbol", symbol),
		zap.Float64("total_return", result.TotalReturn),
		zap.Int("total_trades", result.TotalTrades),
	)

	return result, nil
}

// execute fills signal at price. bar supplies the fill time.
func (b *BacktestEngineV1) execute(state *BacktestState, symbol string, signal types.Signal, price float64, bar types.Bar, positionSize float64) error {
	_, err := state.executor.PlaceOrder(trading.Order{
		Symbol:       symbol,
		Signal:       signal,
		Price:        price,
		Time:         bar.Time,
		PositionSize: positionSize,
		Marks:        map[string]float64{symbol: price},
	})
	if err != nil {
		return fmt.Errorf("failed to place %s order for %s at %s: %w", signal.Type, symbol, bar.Time, err)
	}

	return nil
}

// Compare implements engine.Engine.
func (b *BacktestEngineV1) Compare(ctx context.Context, strategies []strategy.Strategy, series types.MarketSeries, initialCash float64) (results []engine_types.ComparisonResult, err error) {
	b.mu.RLock()
	workers := b.config.Workers
	callbacks := b.callbacks
	b.mu.RUnlock()

	if callbacks.OnCompareEnd != nil {
		defer func() {
			(*callbacks.OnCompareEnd)(err)
		}()
	}

	if callbacks.OnCompareStart != nil {
		if cbErr := (*callbacks.OnCompareStart)(len(strategies), series.Symbol()); cbErr != nil {
			return nil, errors.Wrap(errors.ErrCodeCallbackFailed, "OnCompareStart callback failed", cbErr)
		}
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results = make([]engine_types.ComparisonResult, len(strategies))

	var g errgroup.Group

	g.SetLimit(workers)

	for i, strat := range strategies {
		results[i] = engine_types.ComparisonResult{StrategyID: strat.ID(), StrategyType: strat.Type()}

		g.Go(func() error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				results[i].Err = errors.Wrap(errors.ErrCodeBacktestRunCancelled, "comparison cancelled", ctxErr)

				return nil
			}

			result, runErr := b.Run(ctx, strat, series, initialCash)
			if runErr != nil {
				results[i].Err = runErr

				return nil
			}

			results[i].Result = result

			return nil
		})
	}

	// workers only report per-item errors
	_ = g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return results, errors.Wrap(errors.ErrCodeBacktestRunCancelled, "comparison cancelled", ctxErr)
	}

	return results, nil
}

// GetConfigSchema implements engine.Engine.
func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	config := b.Config()

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return "", fmt.Errorf("failed to generate schema: %w", err)
	}

	return schema, nil
}

// clipSeries applies the configured time range.
func clipSeries(series types.MarketSeries, config BacktestEngineV1Config) types.MarketSeries {
	if config.StartTime.IsNone() && config.EndTime.IsNone() {
		return series
	}

	return series.Between(unwrapTime(config.StartTime), unwrapTime(config.EndTime))
}

func unwrapTime(t optional.Option[time.Time]) time.Time {
	if t.IsNone() {
		return time.Time{}
	}

	return t.Unwrap()
}

// getRunID derives a stable ID from what determines a run's outcome, so
// repeated runs over the same inputs produce the same trade IDs.
func getRunID(strategyID string, series types.MarketSeries, initialCash float64) uuid.UUID {
	key := fmt.Sprintf("%s|%s|%s|%d|%g", strategyID, series.Symbol(), series.Interval(), series.Len(), initialCash)

	if first, ok := series.Head(1).Last(); ok {
		last, _ := series.Last()
		key += fmt.Sprintf("|%d|%d", first.Time.UnixNano(), last.Time.UnixNano())
	}

	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key))
}
