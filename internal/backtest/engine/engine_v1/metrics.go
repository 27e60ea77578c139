package engine

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/risk"
	"github.com/rxtech-lab/argo-quant/internal/strategy"
	"github.com/rxtech-lab/argo-quant/internal/types"
)

// buildResult derives the statistics of a completed run.
func buildResult(state *BacktestState, strat strategy.Strategy, series types.MarketSeries, config BacktestEngineV1Config) types.BacktestResult {
	curve := state.Curve()
	trades := state.Trades()
	initial := state.InitialCash()
	final := curve.Last()

	first, _ := series.Head(1).Last()
	last, _ := series.Last()

	analyzer := risk.NewAnalyzer(
		risk.WithRiskFreeRate(config.RiskFreeRate),
		risk.WithInterval(series.Interval()),
	)
	metrics := analyzer.Analyze(curve, trades, optional.None[types.EquityCurve]())

	totalReturn := 0.0
	if initial > 0 {
		totalReturn = final/initial - 1
	}

	annualReturn := risk.AnnualReturn(totalReturn, last.Time.Sub(first.Time))

	return types.BacktestResult{
		RunID:          state.runID,
		Symbol:         series.Symbol(),
		StrategyID:     strat.ID(),
		InitialCash:    initial,
		FinalEquity:    final,
		StartTime:      first.Time,
		EndTime:        last.Time,
		TotalReturn:    totalReturn,
		AnnualReturn:   annualReturn,
		MaxDrawdown:    metrics.MaxDrawdown,
		SharpeRatio:    metrics.SharpeRatio,
		WinRate:        metrics.WinRate,
		ProfitFactor:   risk.ProfitFactor(trades),
		AvgTradeReturn: risk.AverageTradeReturn(trades),
		TotalTrades:    len(trades),
		TotalFees:      state.TotalFees(),
		Volatility:     metrics.Volatility,
		CalmarRatio:    risk.CalmarRatio(annualReturn, metrics.MaxDrawdown),
		Trades:         trades,
		EquityCurve:    curve,
	}
}
