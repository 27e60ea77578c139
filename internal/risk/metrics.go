package risk

import (
	"math"
	"slices"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/types"
)

// MaxDrawdown is the largest peak-to-trough decline as a fraction of the peak,
// found in one forward pass. The result is in [0, 1].
func MaxDrawdown(values []float64) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0

	for _, v := range values {
		if v > peak {
			peak = v
		}

		if peak <= 0 {
			continue
		}

		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}

	return math.Min(maxDD, 1)
}

// Mean returns 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// StdDev is the sample standard deviation; fewer than two values give 0.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	mean := Mean(values)

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}

	return math.Sqrt(variance / float64(len(values)-1))
}

// SharpeRatio annualizes the mean excess return over its deviation. A flat
// return series has a ratio of 0.
func SharpeRatio(returns []float64, riskFreeRate, periodsPerYear float64) float64 {
	std := StdDev(returns)
	if std == 0 || periodsPerYear <= 0 {
		return 0
	}

	excess := Mean(returns) - riskFreeRate/periodsPerYear

	return excess / std * math.Sqrt(periodsPerYear)
}

// Volatility is the annualized standard deviation of returns.
func Volatility(returns []float64, periodsPerYear float64) float64 {
	if periodsPerYear <= 0 {
		return 0
	}

	return StdDev(returns) * math.Sqrt(periodsPerYear)
}

// Percentile uses linear interpolation between closest ranks, p in [0, 100].
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))

	if lo == hi {
		return sorted[lo]
	}

	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// ValueAtRisk is the loss at the given confidence (e.g. 0.95) applied to
// exposure, as a positive amount. A non-negative tail percentile means no loss.
func ValueAtRisk(returns []float64, confidence, exposure float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	tail := Percentile(returns, (1-confidence)*100)
	if tail >= 0 {
		return 0
	}

	return -tail * math.Abs(exposure)
}

// Beta is cov(asset, benchmark) / var(benchmark) over paired returns. It is
// None with fewer than two pairs or a flat benchmark.
func Beta(asset, benchmark []float64) optional.Option[float64] {
	n := min(len(asset), len(benchmark))
	if n < 2 {
		return optional.None[float64]()
	}

	asset, benchmark = asset[:n], benchmark[:n]
	meanA, meanB := Mean(asset), Mean(benchmark)

	cov, variance := 0.0, 0.0
	for i := 0; i < n; i++ {
		cov += (asset[i] - meanA) * (benchmark[i] - meanB)
		variance += (benchmark[i] - meanB) * (benchmark[i] - meanB)
	}

	if variance == 0 {
		return optional.None[float64]()
	}

	return optional.Some(cov / variance)
}

// Correlation is Pearson's r over paired returns, None when either side is flat.
func Correlation(a, b []float64) optional.Option[float64] {
	n := min(len(a), len(b))
	if n < 2 {
		return optional.None[float64]()
	}

	sa, sb := StdDev(a[:n]), StdDev(b[:n])
	if sa == 0 || sb == 0 {
		return optional.None[float64]()
	}

	meanA, meanB := Mean(a[:n]), Mean(b[:n])

	cov := 0.0
	for i := 0; i < n; i++ {
		cov += (a[i] - meanA) * (b[i] - meanB)
	}

	return optional.Some(cov / float64(n-1) / (sa * sb))
}

// AlignedReturns pairs the returns of two curves on their common timestamps.
// A return is only taken between consecutive common timestamps.
func AlignedReturns(curve, benchmark types.EquityCurve) (asset, bench []float64) {
	benchAt := make(map[time.Time]float64, len(benchmark))
	for _, p := range benchmark {
		benchAt[p.Timestamp.UTC()] = p.TotalEquity
	}

	var prevAsset, prevBench float64

	havePrev := false

	for _, p := range curve {
		b, ok := benchAt[p.Timestamp.UTC()]
		if !ok {
			continue
		}

		if havePrev && prevAsset != 0 && prevBench != 0 {
			asset = append(asset, p.TotalEquity/prevAsset-1)
			bench = append(bench, b/prevBench-1)
		}

		prevAsset, prevBench, havePrev = p.TotalEquity, b, true
	}

	return asset, bench
}

// WinRate is the fraction of closing trades with positive realized PnL.
func WinRate(trades []types.Trade) float64 {
	closing, wins := 0, 0

	for _, t := range trades {
		if !t.IsClosing() {
			continue
		}

		closing++

		if t.RealizedPnL > 0 {
			wins++
		}
	}

	if closing == 0 {
		return 0
	}

	return float64(wins) / float64(closing)
}

// ProfitFactor is gross profit over gross loss of closing trades. Without
// losing trades it is types.ProfitFactorNoLosses when there was any profit and
// 0 otherwise.
func ProfitFactor(trades []types.Trade) float64 {
	profit, loss := 0.0, 0.0

	for _, t := range trades {
		if !t.IsClosing() {
			continue
		}

		if t.RealizedPnL > 0 {
			profit += t.RealizedPnL
		} else {
			loss -= t.RealizedPnL
		}
	}

	if loss == 0 {
		if profit > 0 {
			return types.ProfitFactorNoLosses
		}

		return 0
	}

	return profit / loss
}

// AverageTradeReturn is the mean realized return per closing trade, each
// relative to the cost basis it closed.
func AverageTradeReturn(trades []types.Trade) float64 {
	var returns []float64

	for _, t := range trades {
		if t.IsClosing() {
			returns = append(returns, t.ReturnFraction())
		}
	}

	return Mean(returns)
}

// AnnualReturn compounds totalReturn over a 365-day year using the whole
// days in span. Runs shorter than a day report 0 and a total loss stays at -1.
func AnnualReturn(totalReturn float64, span time.Duration) float64 {
	days := math.Floor(span.Hours() / 24)
	if days <= 0 {
		return 0
	}

	if totalReturn <= -1 {
		return -1
	}

	annual := math.Pow(1+totalReturn, 365/days) - 1
	if math.IsInf(annual, 0) {
		return math.MaxFloat64
	}

	return annual
}

// CalmarRatio is annual return over max drawdown, 0 without a drawdown.
func CalmarRatio(annualReturn, maxDrawdown float64) float64 {
	if maxDrawdown <= 0 {
		return 0
	}

	return annualReturn / maxDrawdown
}

// SeriesCurve views a series' closes as an equity curve, for use as a benchmark.
func SeriesCurve(series types.MarketSeries) types.EquityCurve {
	bars := series.Bars()
	curve := make(types.EquityCurve, len(bars))

	for i, b := range bars {
		curve[i] = types.EquityPoint{Timestamp: b.Time, TotalEquity: b.Close}
	}

	return curve
}
