// Package risk derives risk statistics from equity curves, trade logs and
// positions. Degenerate inputs produce zeros or None, never NaN or Inf.
package risk

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/types"
)

const (
	DefaultRiskFreeRate   = 0.02
	DefaultPeriodsPerYear = 252
	varConfidence         = 0.95

	// minPositionObservations is the fewest returns a per-position VaR or beta is estimated from.
	minPositionObservations = 10
)

// Analyzer computes RiskMetrics for curves sampled at a fixed interval.
type Analyzer struct {
	riskFreeRate   float64
	periodsPerYear float64
}

type Option func(*Analyzer)

// WithRiskFreeRate sets the annual risk-free rate used by the Sharpe ratio.
func WithRiskFreeRate(rate float64) Option {
	return func(a *Analyzer) {
		a.riskFreeRate = rate
	}
}

// WithPeriodsPerYear sets the annualization factor directly.
func WithPeriodsPerYear(periods float64) Option {
	return func(a *Analyzer) {
		if periods > 0 {
			a.periodsPerYear = periods
		}
	}
}

// WithInterval derives the annualization factor from the bar interval.
func WithInterval(interval types.Interval) Option {
	return WithPeriodsPerYear(interval.PeriodsPerYear())
}

func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		riskFreeRate:   DefaultRiskFreeRate,
		periodsPerYear: DefaultPeriodsPerYear,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *Analyzer) RiskFreeRate() float64   { return a.riskFreeRate }
func (a *Analyzer) PeriodsPerYear() float64 { return a.periodsPerYear }

// Analyze summarises curve. VaR is scaled by the latest equity. Beta needs a
// benchmark sharing at least three timestamps with curve.
func (a *Analyzer) Analyze(curve types.EquityCurve, trades []types.Trade, benchmark optional.Option[types.EquityCurve]) types.RiskMetrics {
	returns := curve.Returns()

	metrics := types.RiskMetrics{
		SharpeRatio: SharpeRatio(returns, a.riskFreeRate, a.periodsPerYear),
		MaxDrawdown: MaxDrawdown(curve.Values()),
		VaR95:       ValueAtRisk(returns, varConfidence, curve.Last()),
		Beta:        optional.None[float64](),
		Volatility:  Volatility(returns, a.periodsPerYear),
		WinRate:     WinRate(trades),
	}

	if benchmark.IsSome() {
		asset, bench := AlignedReturns(curve, benchmark.Unwrap())
		metrics.Beta = Beta(asset, bench)
	}

	return metrics
}

// PositionRisk describes one holding within a portfolio.
type PositionRisk struct {
	Symbol      string                   `json:"symbol"`
	Quantity    float64                  `json:"quantity"`
	MarketValue float64                  `json:"market_value"`
	Weight      float64                  `json:"weight"`
	Volatility  float64                  `json:"volatility"`
	VaR95       float64                  `json:"var_95"`
	Beta        optional.Option[float64] `json:"-"`
	Correlation optional.Option[float64] `json:"-"`
}

// AnalyzePosition measures a position against its own price history. VaR,
// beta and correlation stay empty until minPositionObservations returns exist.
func (a *Analyzer) AnalyzePosition(position types.Position, series types.MarketSeries, portfolioValue float64, benchmark optional.Option[types.MarketSeries]) PositionRisk {
	out := PositionRisk{
		Symbol:      position.Symbol,
		Quantity:    position.Quantity,
		Beta:        optional.None[float64](),
		Correlation: optional.None[float64](),
	}

	last, ok := series.Last()
	if !ok {
		return out
	}

	out.MarketValue = position.MarketValue(last.Close)
	if portfolioValue > 0 {
		out.Weight = out.MarketValue / portfolioValue
	}

	curve := SeriesCurve(series)
	returns := curve.Returns()
	out.Volatility = Volatility(returns, a.periodsPerYear)

	if len(returns) < minPositionObservations {
		return out
	}

	out.VaR95 = ValueAtRisk(returns, varConfidence, out.MarketValue)

	if benchmark.IsSome() {
		asset, bench := AlignedReturns(curve, SeriesCurve(benchmark.Unwrap()))
		if len(asset) >= minPositionObservations {
			out.Beta = Beta(asset, bench)
			out.Correlation = Correlation(asset, bench)
		}
	}

	return out
}
