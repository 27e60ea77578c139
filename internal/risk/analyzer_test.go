package risk

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/stretchr/testify/suite"
)

type AnalyzerTestSuite struct {
	suite.Suite
}

func TestAnalyzerSuite(t *testing.T) {
	suite.Run(t, new(AnalyzerTestSuite))
}

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func curveOf(values ...float64) types.EquityCurve {
	curve := make(types.EquityCurve, len(values))
	for i, v := range values {
		curve[i] = types.EquityPoint{Timestamp: start.AddDate(0, 0, i), TotalEquity: v}
	}

	return curve
}

func (suite *AnalyzerTestSuite) TestAnalyze() {
	curve := curveOf(100, 110, 99, 105, 120, 90, 95)
	trades := []types.Trade{
		{Side: types.SideBuy, Quantity: 1},
		{Side: types.SideSell, Quantity: 1, ClosedQuantity: 1, RealizedPnL: 10},
		{Side: types.SideSell, Quantity: 1, ClosedQuantity: 1, RealizedPnL: -4},
	}

	metrics := NewAnalyzer().Analyze(curve, trades, optional.None[types.EquityCurve]())

	suite.InDelta(0.25, metrics.MaxDrawdown, 1e-12)
	suite.InDelta(0.1526194959223347, metrics.SharpeRatio, 1e-9)
	suite.InDelta(2.350865311273602, metrics.Volatility, 1e-9)
	suite.InDelta(20.1875, metrics.VaR95, 1e-9)
	suite.InDelta(0.5, metrics.WinRate, 1e-12)
	suite.True(metrics.Beta.IsNone())
}

func (suite *AnalyzerTestSuite) TestDegenerateCurves() {
	tests := []struct {
		name  string
		curve types.EquityCurve
	}{
		{"empty", nil},
		{"single point", curveOf(100)},
		{"flat", curveOf(100, 100, 100, 100)},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			metrics := NewAnalyzer().Analyze(tc.curve, nil, optional.Some(curveOf(1, 2, 3, 4)))

			suite.Zero(metrics.SharpeRatio)
			suite.Zero(metrics.MaxDrawdown)
			suite.Zero(metrics.VaR95)
			suite.Zero(metrics.Volatility)
			suite.Zero(metrics.WinRate)
			suite.False(math.IsNaN(metrics.SharpeRatio))
		})
	}
}

func (suite *AnalyzerTestSuite) TestBetaAlignsOnTimestamps() {
	bench := curveOf(100, 110, 99, 108.9)
	asset := types.EquityCurve{
		{Timestamp: start, TotalEquity: 100},
		{Timestamp: start.Add(12 * time.Hour), TotalEquity: 500},
		{Timestamp: start.AddDate(0, 0, 1), TotalEquity: 120},
		{Timestamp: start.AddDate(0, 0, 2), TotalEquity: 96},
		{Timestamp: start.AddDate(0, 0, 3), TotalEquity: 115.2},
	}

	metrics := NewAnalyzer().Analyze(asset, nil, optional.Some(bench))
	suite.Require().True(metrics.Beta.IsSome())
	suite.InDelta(2.0, metrics.Beta.Unwrap(), 1e-9)
}

func (suite *AnalyzerTestSuite) TestBetaNeedsVariance() {
	suite.True(Beta([]float64{0.1, 0.2}, []float64{0.01, 0.01}).IsNone())
	suite.True(Beta([]float64{0.1}, []float64{0.01}).IsNone())
}

func (suite *AnalyzerTestSuite) TestPercentile() {
	suite.Equal(0.0, Percentile(nil, 5))
	suite.InDelta(2.0, Percentile([]float64{3, 1, 2}, 50), 1e-12)
	suite.InDelta(12.5, Percentile([]float64{20, 10}, 25), 1e-12)
	suite.Equal(1.0, Percentile([]float64{4, 3, 2, 1}, 0))
	suite.Equal(4.0, Percentile([]float64{4, 3, 2, 1}, 100))
}

func (suite *AnalyzerTestSuite) TestValueAtRiskNeverNegative() {
	suite.Zero(ValueAtRisk([]float64{0.01, 0.02, 0.03}, 0.95, 1000))
}

func (suite *AnalyzerTestSuite) TestMaxDrawdownBounds() {
	suite.Zero(MaxDrawdown([]float64{1, 2, 3, 4}))
	suite.InDelta(1.0, MaxDrawdown([]float64{100, 0}), 1e-12)
	suite.InDelta(0.5, MaxDrawdown([]float64{100, 50, 200, 150}), 1e-12)
}

func (suite *AnalyzerTestSuite) TestAnnualReturnAndCalmar() {
	suite.InDelta(0.1, AnnualReturn(0.21, 730*24*time.Hour), 1e-9)
	suite.Zero(AnnualReturn(0.5, 6*time.Hour))
	suite.Equal(-1.0, AnnualReturn(-1, 48*time.Hour))
	suite.InDelta(0.5, CalmarRatio(0.1, 0.2), 1e-12)
	suite.Zero(CalmarRatio(0.1, 0))
}

func (suite *AnalyzerTestSuite) TestProfitFactor() {
	opening := types.Trade{Side: types.SideBuy, Quantity: 1}
	win := types.Trade{Side: types.SideSell, Quantity: 1, ClosedQuantity: 1, EntryPrice: 100, RealizedPnL: 30}
	loss := types.Trade{Side: types.SideSell, Quantity: 1, ClosedQuantity: 1, EntryPrice: 100, RealizedPnL: -10}

	tests := []struct {
		name     string
		trades   []types.Trade
		expected float64
	}{
		{"no trades", nil, 0},
		{"only opening trades", []types.Trade{opening}, 0},
		{"wins and losses", []types.Trade{opening, win, opening, loss}, 3},
		{"no losses", []types.Trade{opening, win}, types.ProfitFactorNoLosses},
		{"break even only", []types.Trade{{ClosedQuantity: 1, EntryPrice: 100}}, 0},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.InDelta(tc.expected, ProfitFactor(tc.trades), 1e-12)
		})
	}
}

func (suite *AnalyzerTestSuite) TestAverageTradeReturn() {
	trades := []types.Trade{
		{Side: types.SideBuy, Quantity: 2, Price: 100},
		{Side: types.SideSell, Quantity: 2, ClosedQuantity: 2, EntryPrice: 100, RealizedPnL: 20},
		{Side: types.SideBuy, Quantity: 1, Price: 50},
		{Side: types.SideSell, Quantity: 1, ClosedQuantity: 1, EntryPrice: 50, RealizedPnL: -5},
	}

	// (0.1 + -0.1) / 2
	suite.InDelta(0.0, AverageTradeReturn(trades), 1e-12)
	suite.Zero(AverageTradeReturn(trades[:1]))
}

func (suite *AnalyzerTestSuite) TestOptions() {
	a := NewAnalyzer(WithInterval(types.Interval1h), WithRiskFreeRate(0))
	suite.Equal(8760.0, a.PeriodsPerYear())
	suite.Zero(a.RiskFreeRate())

	suite.Equal(float64(DefaultPeriodsPerYear), NewAnalyzer(WithPeriodsPerYear(-1)).PeriodsPerYear())
}

func (suite *AnalyzerTestSuite) TestRiskMetricsJSONKeepsNullBeta() {
	metrics := NewAnalyzer().Analyze(curveOf(100, 90, 95), nil, optional.None[types.EquityCurve]())

	data, err := json.Marshal(metrics)
	suite.Require().NoError(err)
	suite.Contains(string(data), `"beta":null`)
}

func (suite *AnalyzerTestSuite) TestAnalyzePosition() {
	bars := make([]types.Bar, 30)
	benchBars := make([]types.Bar, 30)

	for i := range bars {
		c := 100 + 5*math.Sin(float64(i))
		b := 50 + 2*math.Sin(float64(i))
		bars[i] = types.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
		benchBars[i] = types.Bar{Time: start.AddDate(0, 0, i), Open: b, High: b, Low: b, Close: b}
	}

	series, err := types.NewMarketSeries("ETHUSDT", types.Interval1d, bars)
	suite.Require().NoError(err)

	benchmark, err := types.NewMarketSeries("BTCUSDT", types.Interval1d, benchBars)
	suite.Require().NoError(err)

	position := types.Position{Symbol: "ETHUSDT", Quantity: 2, AvgEntryPrice: 95}
	pr := NewAnalyzer().AnalyzePosition(position, series, 1000, optional.Some(benchmark))

	last, _ := series.Last()
	suite.InDelta(2*last.Close, pr.MarketValue, 1e-9)
	suite.InDelta(2*last.Close/1000, pr.Weight, 1e-9)
	suite.Positive(pr.Volatility)
	suite.Positive(pr.VaR95)
	suite.True(pr.Beta.IsSome())
	suite.Require().True(pr.Correlation.IsSome())
	suite.Greater(pr.Correlation.Unwrap(), 0.9)

	short, err := types.NewMarketSeries("ETHUSDT", types.Interval1d, bars[:5])
	suite.Require().NoError(err)

	pr = NewAnalyzer().AnalyzePosition(position, short, 1000, optional.Some(benchmark))
	suite.Zero(pr.VaR95)
	suite.True(pr.Beta.IsNone())
}
