// Package paper runs strategies against bars as they arrive, keeping one
// long-lived ledger for the whole portfolio.
package paper

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/indicator"
	"github.com/rxtech-lab/argo-quant/internal/ledger"
	"github.com/rxtech-lab/argo-quant/internal/logger"
	"github.com/rxtech-lab/argo-quant/internal/risk"
	"github.com/rxtech-lab/argo-quant/internal/strategy"
	"github.com/rxtech-lab/argo-quant/internal/trading"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"go.uber.org/zap"
)

// dailyWindow is the look-back of the daily PnL in Portfolio.
const dailyWindow = 24 * time.Hour

// Portfolio is a point-in-time view of the session.
type Portfolio struct {
	PortfolioValue float64          `json:"portfolio_value"`
	Cash           float64          `json:"cash"`
	RealizedPnL    float64          `json:"realized_pnl"`
	UnrealizedPnL  float64          `json:"unrealized_pnl"`
	DailyPnL       float64          `json:"daily_pnl"`
	DailyReturn    float64          `json:"daily_return"`
	Positions      []types.Position `json:"positions"`
}

type slot struct {
	strategy strategy.Strategy
	executor *trading.Executor
	series   types.MarketSeries
}

// Session is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	ledger    *ledger.Ledger
	slots     map[string]*slot
	marks     map[string]float64
	curve     types.EquityCurve
	benchmark optional.Option[string]

	executorConfig    trading.ExecutorConfig
	analyzer          *risk.Analyzer
	indicatorRegistry indicator.IndicatorRegistry
	log               *logger.Logger
}

type Option func(*Session)

// WithExecutorConfig sets the fee model, precision and shorting rules of every fill.
func WithExecutorConfig(config trading.ExecutorConfig) Option {
	return func(s *Session) {
		s.executorConfig = config
	}
}

// WithAnalyzer replaces the default risk analyzer.
func WithAnalyzer(a *risk.Analyzer) Option {
	return func(s *Session) {
		s.analyzer = a
	}
}

// WithBenchmark names the symbol whose bars serve as the beta benchmark.
func WithBenchmark(symbol string) Option {
	return func(s *Session) {
		s.benchmark = optional.Some(symbol)
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

func NewSession(initialCash float64, opts ...Option) (*Session, error) {
	if initialCash <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameters, "initial cash must be positive, got %v", initialCash)
	}

	s := &Session{
		ledger:            ledger.New(initialCash),
		slots:             make(map[string]*slot),
		marks:             make(map[string]float64),
		benchmark:         optional.None[string](),
		executorConfig:    trading.ExecutorConfig{DecimalPrecision: 4},
		analyzer:          risk.NewAnalyzer(),
		indicatorRegistry: indicator.NewDefaultRegistry(),
		log:               logger.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// AddStrategy attaches strat to symbol. history seeds the bars the strategy
// sees before the first OnBar; it may be empty but must be for symbol.
func (s *Session) AddStrategy(symbol string, strat strategy.Strategy, history types.MarketSeries) error {
	if strat == nil {
		return errors.New(errors.ErrCodeInvalidParameters, "strategy is required")
	}

	if !history.IsEmpty() && history.Symbol() != symbol {
		return errors.Newf(errors.ErrCodeInvalidParameters, "history is for %s, not %s", history.Symbol(), symbol)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.slots[symbol]
	if exists && existing.strategy != nil {
		return errors.Newf(errors.ErrCodeInvalidParameters, "symbol %s already has a strategy", symbol)
	}

	switch {
	case history.IsEmpty() && exists:
		// bars streamed before the strategy was attached
		history = existing.series
	case history.IsEmpty():
		history, _ = types.NewMarketSeries(symbol, history.Interval(), nil)
	}

	idSpace := uuid.NewSHA1(uuid.NameSpaceOID, []byte("paper|"+strat.ID()))

	s.slots[symbol] = &slot{
		strategy: strat,
		executor: trading.NewExecutor(s.ledger, strat.ID(), idSpace, s.executorConfig, s.log),
		series:   history,
	}

	if last, ok := history.Last(); ok {
		s.marks[symbol] = last.Close
	}

	s.log.Info("Paper strategy attached",
		zap.String("symbol", symbol),
		zap.String("strategy", strat.ID()),
		zap.Int("history", history.Len()),
	)

	return nil
}

// OnBar appends bar to symbol's history, lets its strategy decide and fills
// any order at the bar's close. Symbols without a strategy only update their
// mark, so benchmarks can be streamed through the same call.
func (s *Session) OnBar(symbol string, bar types.Bar) ([]types.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[symbol]
	if !ok {
		empty, _ := types.NewMarketSeries(symbol, "", nil)
		sl = &slot{series: empty}
		s.slots[symbol] = sl
	}

	series, err := sl.series.Append(bar)
	if err != nil {
		return nil, err
	}

	sl.series = series
	s.marks[symbol] = bar.Close

	var trades []types.Trade

	if sl.strategy != nil && series.Len() >= max(sl.strategy.RequiredBars(), 1) {
		trades, err = s.decide(sl, bar)
		if err != nil {
			return nil, err
		}
	}

	s.record(bar.Time)

	return trades, nil
}

func (s *Session) decide(sl *slot, bar types.Bar) ([]types.Trade, error) {
	set, err := indicator.Compute(s.indicatorRegistry, sl.series, sl.strategy.Indicators())
	if err != nil {
		return nil, fmt.Errorf("failed to compute indicators: %w", err)
	}

	symbol := sl.series.Symbol()

	signal, err := sl.strategy.Decide(strategy.DecisionContext{
		Index:      sl.series.Len() - 1,
		Series:     sl.series,
		Indicators: set,
		Position:   sl.executor.GetPosition(symbol),
	})
	if err != nil {
		return nil, fmt.Errorf("strategy %s failed: %w", sl.strategy.ID(), err)
	}

	if signal.IsHold() {
		return nil, nil
	}

	trades, err := sl.executor.PlaceOrder(trading.Order{
		Symbol:       symbol,
		Signal:       signal,
		Price:        bar.Close,
		Time:         bar.Time,
		PositionSize: sl.strategy.Risk().PositionSize,
		Marks:        s.marks,
	})
	if err != nil {
		return nil, err
	}

	for _, trade := range trades {
		s.log.Info("Paper fill",
			zap.String("symbol", trade.Symbol),
			zap.String("side", string(trade.Side)),
			zap.Float64("quantity", trade.Quantity),
			zap.Float64("price", trade.Price),
		)
	}

	return trades, nil
}

// record adds an equity point at t, replacing the last one when several
// symbols report the same timestamp. Bars older than the last point leave the
// curve unchanged.
func (s *Session) record(t time.Time) {
	point := types.EquityPoint{Timestamp: t, TotalEquity: s.ledger.Equity(s.marks)}

	if n := len(s.curve); n > 0 && !t.After(s.curve[n-1].Timestamp) {
		if t.Equal(s.curve[n-1].Timestamp) {
			s.curve[n-1].TotalEquity = point.TotalEquity
		}

		return
	}

	s.curve = append(s.curve, point)
}

// Risk summarises the session's equity curve and closed trades.
func (s *Session) Risk() types.RiskMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	benchmark := optional.None[types.EquityCurve]()
	if series, ok := s.benchmarkSeries(); ok {
		benchmark = optional.Some(risk.SeriesCurve(series))
	}

	return s.analyzer.Analyze(s.curve, s.ledger.Trades(), benchmark)
}

// PositionRisks measures every open position against its own history.
func (s *Session) PositionRisks() []risk.PositionRisk {
	s.mu.Lock()
	defer s.mu.Unlock()

	benchmark := optional.None[types.MarketSeries]()
	if series, ok := s.benchmarkSeries(); ok {
		benchmark = optional.Some(series)
	}

	equity := s.ledger.Equity(s.marks)

	var out []risk.PositionRisk

	for _, pos := range s.ledger.Positions() {
		sl, ok := s.slots[pos.Symbol]
		if !ok {
			continue
		}

		out = append(out, s.analyzer.AnalyzePosition(pos, sl.series, equity, benchmark))
	}

	return out
}

// Portfolio returns the current value, PnL and positions. Daily figures
// compare against the last equity point at least a day older than the latest.
func (s *Session) Portfolio() Portfolio {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := s.ledger.Equity(s.marks)
	out := Portfolio{
		PortfolioValue: value,
		Cash:           s.ledger.Cash(),
		RealizedPnL:    s.ledger.RealizedPnL(),
		UnrealizedPnL:  s.ledger.UnrealizedPnL(s.marks),
		Positions:      s.ledger.Positions(),
	}

	if len(s.curve) == 0 {
		return out
	}

	last := s.curve[len(s.curve)-1]
	reference := s.curve[0]

	for _, p := range s.curve {
		if last.Timestamp.Sub(p.Timestamp) < dailyWindow {
			break
		}

		reference = p
	}

	out.DailyPnL = value - reference.TotalEquity
	if reference.TotalEquity != 0 {
		out.DailyReturn = out.DailyPnL / reference.TotalEquity
	}

	return out
}

// EquityCurve returns a copy of the recorded curve.
func (s *Session) EquityCurve() types.EquityCurve {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.curve)
}

// Trades returns every fill so far.
func (s *Session) Trades() []types.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ledger.Trades()
}

// Symbols lists the symbols that have a strategy attached, sorted.
func (s *Session) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string

	for symbol, sl := range s.slots {
		if sl.strategy != nil {
			out = append(out, symbol)
		}
	}

	slices.Sort(out)

	return out
}

// benchmarkSeries must be called with s.mu held.
func (s *Session) benchmarkSeries() (types.MarketSeries, bool) {
	if s.benchmark.IsNone() {
		return types.MarketSeries{}, false
	}

	sl, ok := s.slots[s.benchmark.Unwrap()]
	if !ok || sl.series.IsEmpty() {
		return types.MarketSeries{}, false
	}

	return sl.series, true
}
