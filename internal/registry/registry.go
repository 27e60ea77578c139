// Package registry owns the set of configured strategies, keyed by symbol and
// strategy type, and refreshes their backtest results across many symbols.
package registry

import (
	"context"
	"maps"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/backtest/engine"
	"github.com/rxtech-lab/argo-quant/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-quant/internal/logger"
	"github.com/rxtech-lab/argo-quant/internal/strategy"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StrategySummary is the outcome of the latest Update run for one strategy.
// Error is set instead of the statistics when the run failed.
type StrategySummary struct {
	StrategyKey string             `json:"strategy_key" yaml:"strategy_key"`
	Enabled     bool               `json:"enabled" yaml:"enabled"`
	TotalReturn float64            `json:"total_return" yaml:"total_return"`
	TotalTrades int                `json:"total_trades" yaml:"total_trades"`
	WinRate     float64            `json:"win_rate" yaml:"win_rate"`
	MaxDrawdown float64            `json:"max_drawdown" yaml:"max_drawdown"`
	SharpeRatio float64            `json:"sharpe_ratio" yaml:"sharpe_ratio"`
	Parameters  map[string]float64 `json:"parameters" yaml:"parameters"`
	Error       string             `json:"error,omitempty" yaml:"error,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at" yaml:"updated_at"`
}

// SymbolUpdate groups the summaries produced for one symbol.
type SymbolUpdate struct {
	Symbol     string            `json:"symbol"`
	Strategies []StrategySummary `json:"strategies"`
}

// Entry is a configured strategy plus its latest Update result, if any.
type Entry struct {
	Config     types.StrategyConfig
	LastResult optional.Option[StrategySummary]
}

// Registry is safe for concurrent use. Backtests run without holding its lock.
type Registry struct {
	entries map[types.StrategyKey]*Entry
	mu      sync.RWMutex

	engine      engine.Engine
	loader      datasource.Loader
	interval    types.Interval
	start       optional.Option[time.Time]
	end         optional.Option[time.Time]
	initialCash float64
	workers     int
	now         func() time.Time
	log         *logger.Logger
}

type Option func(*Registry)

// WithEngine sets the engine Update backtests with.
func WithEngine(e engine.Engine) Option {
	return func(r *Registry) {
		r.engine = e
	}
}

// WithLoader sets where Update reads market data from.
func WithLoader(l datasource.Loader) Option {
	return func(r *Registry) {
		r.loader = l
	}
}

// WithInterval sets the bar interval Update loads. Defaults to 1h.
func WithInterval(interval types.Interval) Option {
	return func(r *Registry) {
		r.interval = interval
	}
}

// WithRange bounds the bars Update loads.
func WithRange(start, end optional.Option[time.Time]) Option {
	return func(r *Registry) {
		r.start = start
		r.end = end
	}
}

// WithInitialCash sets the starting cash of every Update run. Zero uses the engine's configured capital.
func WithInitialCash(cash float64) Option {
	return func(r *Registry) {
		r.initialCash = cash
	}
}

// WithWorkers bounds the symbols updated concurrently. Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(r *Registry) {
		r.workers = n
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithClock replaces time.Now for summary timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		entries:  make(map[types.StrategyKey]*Entry),
		interval: types.Interval1h,
		start:    optional.None[time.Time](),
		end:      optional.None[time.Time](),
		now:      time.Now,
		log:      logger.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Upsert creates or overwrites the parameters of (symbol, strategyType).
// Parameters are validated by building the strategy and missing ones take
// their defaults. A new entry starts disabled, an existing one keeps its flag.
func (r *Registry) Upsert(symbol string, strategyType types.StrategyType, parameters map[string]float64) (types.StrategyConfig, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return types.StrategyConfig{}, errors.New(errors.ErrCodeInvalidParameters, "symbol is required")
	}

	if _, err := types.ParseStrategyType(string(strategyType)); err != nil {
		return types.StrategyConfig{}, err
	}

	params, err := resolveParameters(strategyType, parameters)
	if err != nil {
		return types.StrategyConfig{}, err
	}

	cfg := types.StrategyConfig{Symbol: symbol, StrategyType: strategyType, Parameters: params}
	if _, err := strategy.New(cfg); err != nil {
		return types.StrategyConfig{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := cfg.Key()
	if existing, ok := r.entries[key]; ok {
		existing.Config.Parameters = params
		existing.LastResult = optional.None[StrategySummary]()

		return existing.Config.Clone(), nil
	}

	r.entries[key] = &Entry{Config: cfg, LastResult: optional.None[StrategySummary]()}

	r.log.Debug("Strategy registered", zap.String("key", key.String()))

	return cfg.Clone(), nil
}

// Put stores cfg as-is after validating it, replacing any entry with the same key.
func (r *Registry) Put(cfg types.StrategyConfig) error {
	if strings.TrimSpace(cfg.Symbol) == "" {
		return errors.New(errors.ErrCodeInvalidParameters, "symbol is required")
	}

	if _, err := strategy.New(cfg); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[cfg.Key()] = &Entry{Config: cfg.Clone(), LastResult: optional.None[StrategySummary]()}

	return nil
}

// SetEnabled fails with ErrCodeUnknownStrategy when key is not registered.
func (r *Registry) SetEnabled(key string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.lookup(key)
	if err != nil {
		return err
	}

	entry.Config.Enabled = enabled

	return nil
}

// Toggle flips the enabled flag of key and returns the new value.
func (r *Registry) Toggle(key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.lookup(key)
	if err != nil {
		return false, err
	}

	entry.Config.Enabled = !entry.Config.Enabled

	return entry.Config.Enabled, nil
}

// BulkSetEnabled changes every key or none: an unknown key aborts before any change.
func (r *Registry) BulkSetEnabled(keys []string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]*Entry, 0, len(keys))

	for _, key := range keys {
		entry, err := r.lookup(key)
		if err != nil {
			return err
		}

		entries = append(entries, entry)
	}

	for _, entry := range entries {
		entry.Config.Enabled = enabled
	}

	return nil
}

// EnableAll enables every registered strategy and returns how many there are.
func (r *Registry) EnableAll() int {
	return r.setAll(true)
}

// DisableAll disables every registered strategy and returns how many there are.
func (r *Registry) DisableAll() int {
	return r.setAll(false)
}

func (r *Registry) setAll(enabled bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.entries {
		entry.Config.Enabled = enabled
	}

	return len(r.entries)
}

// Get returns a copy of the entry stored under key.
func (r *Registry) Get(key string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, err := r.lookup(key)
	if err != nil {
		return Entry{}, err
	}

	return copyEntry(entry), nil
}

// List returns every config sorted by key.
func (r *Registry) List() []types.StrategyConfig {
	entries := r.Entries()

	out := make([]types.StrategyConfig, len(entries))
	for i, entry := range entries {
		out[i] = entry.Config
	}

	return out
}

// Enabled returns the enabled configs sorted by key.
func (r *Registry) Enabled() []types.StrategyConfig {
	var out []types.StrategyConfig

	for _, cfg := range r.List() {
		if cfg.Enabled {
			out = append(out, cfg)
		}
	}

	return out
}

// Entries returns copies of every entry sorted by key.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, copyEntry(entry))
	}

	slices.SortFunc(out, func(a, b Entry) int {
		return strings.Compare(a.Config.Key().String(), b.Config.Key().String())
	})

	return out
}

// Len is the number of registered strategies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Replace swaps the whole registry content, as after loading from a Store.
func (r *Registry) Replace(entries []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[types.StrategyKey]*Entry, len(entries))
	for _, entry := range entries {
		e := copyEntry(&entry)
		r.entries[e.Config.Key()] = &e
	}
}

// Update backtests every known strategy type on every symbol and stores the
// results with the configs. Types missing from the registry are registered,
// disabled, with default parameters; existing entries run with their current
// parameters and are not reset to the defaults. Symbols run concurrently on a bounded pool. A
// failed load or run is reported on its items and does not stop the others.
// The returned error is only set when ctx was cancelled; the partial results
// are still returned.
func (r *Registry) Update(ctx context.Context, symbols []string) ([]SymbolUpdate, error) {
	if r.engine == nil || r.loader == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "registry has no engine or loader")
	}

	symbols = normalizeSymbols(symbols)
	if len(symbols) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameters, "no symbols to update")
	}

	workers := r.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]SymbolUpdate, len(symbols))

	var g errgroup.Group

	g.SetLimit(workers)

	for i, symbol := range symbols {
		results[i] = SymbolUpdate{Symbol: symbol}

		g.Go(func() error {
			results[i].Strategies = r.updateSymbol(ctx, symbol)

			return nil
		})
	}

	// workers only report per-item errors
	_ = g.Wait()

	r.log.Info("Strategies updated",
		zap.Int("symbols", len(symbols)),
		zap.Int("strategies", len(symbols)*len(strategy.KnownTypes())),
	)

	if err := ctx.Err(); err != nil {
		return results, errors.Wrap(errors.ErrCodeBacktestRunCancelled, "update cancelled", err)
	}

	return results, nil
}

func (r *Registry) updateSymbol(ctx context.Context, symbol string) []StrategySummary {
	known := strategy.KnownTypes()
	summaries := make([]StrategySummary, 0, len(known))

	var (
		series  types.MarketSeries
		loadErr error
	)

	if loadErr = ctx.Err(); loadErr == nil {
		series, loadErr = r.loader.Load(ctx, symbol, r.interval, r.start, r.end)
	}

	if loadErr != nil {
		r.log.Error("Failed to load market data",
			zap.String("symbol", symbol),
			zap.Error(loadErr),
		)
	}

	for _, t := range known {
		cfg, err := r.ensure(symbol, t)
		if err == nil {
			err = loadErr
		}

		if err == nil {
			err = ctx.Err()
		}

		summary := StrategySummary{
			StrategyKey: cfg.Key().String(),
			Enabled:     cfg.Enabled,
			Parameters:  cfg.Parameters,
			UpdatedAt:   r.now(),
		}

		if err == nil {
			err = r.backtest(ctx, cfg, series, &summary)
		}

		if err != nil {
			summary.Error = err.Error()
		}

		r.record(cfg.Key(), summary)
		summaries = append(summaries, summary)
	}

	return summaries
}

func (r *Registry) backtest(ctx context.Context, cfg types.StrategyConfig, series types.MarketSeries, summary *StrategySummary) error {
	strat, err := strategy.New(cfg)
	if err != nil {
		return err
	}

	result, err := r.engine.Run(ctx, strat, series, r.initialCash)
	if err != nil {
		return err
	}

	summary.TotalReturn = result.TotalReturn
	summary.TotalTrades = result.TotalTrades
	summary.WinRate = result.WinRate
	summary.MaxDrawdown = result.MaxDrawdown
	summary.SharpeRatio = result.SharpeRatio

	return nil
}

// ensure returns the config for (symbol, t), registering the defaults when missing.
func (r *Registry) ensure(symbol string, t types.StrategyType) (types.StrategyConfig, error) {
	key := types.StrategyKey{Symbol: symbol, Type: t}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[key]; ok {
		return entry.Config.Clone(), nil
	}

	params, err := strategy.DefaultParameters(t)
	if err != nil {
		return types.StrategyConfig{Symbol: symbol, StrategyType: t}, err
	}

	cfg := types.StrategyConfig{Symbol: symbol, StrategyType: t, Parameters: params}
	r.entries[key] = &Entry{Config: cfg, LastResult: optional.None[StrategySummary]()}

	return cfg.Clone(), nil
}

func (r *Registry) record(key types.StrategyKey, summary StrategySummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// the entry may have been replaced while the backtest ran
	if entry, ok := r.entries[key]; ok {
		entry.LastResult = optional.Some(summary)
	}
}

// lookup must be called with r.mu held.
func (r *Registry) lookup(key string) (*Entry, error) {
	parsed, err := types.ParseStrategyKey(key)
	if err != nil {
		return nil, err
	}

	entry, ok := r.entries[parsed]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "strategy %q is not registered", key)
	}

	return entry, nil
}

// resolveParameters overlays parameters on the defaults of t so stored configs are complete.
func resolveParameters(t types.StrategyType, parameters map[string]float64) (map[string]float64, error) {
	params, err := strategy.DefaultParameters(t)
	if err != nil {
		return nil, err
	}

	maps.Copy(params, parameters)

	return params, nil
}

func cloneParameters(params map[string]float64) map[string]float64 {
	cfg := types.StrategyConfig{Parameters: params}

	return cfg.Clone().Parameters
}

func copyEntry(entry *Entry) Entry {
	out := Entry{Config: entry.Config.Clone(), LastResult: optional.None[StrategySummary]()}

	if entry.LastResult.IsSome() {
		summary := entry.LastResult.Unwrap()
		summary.Parameters = cloneParameters(summary.Parameters)
		out.LastResult = optional.Some(summary)
	}

	return out
}

// normalizeSymbols trims, drops empties and removes duplicates, keeping order.
func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))

	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}

		if _, dup := seen[s]; dup {
			continue
		}

		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}
