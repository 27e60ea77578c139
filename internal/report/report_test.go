package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/internal/version"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ReportTestSuite struct {
	suite.Suite
	dir    string
	result types.BacktestResult
	meta   Metadata
}

func TestReportSuite(t *testing.T) {
	suite.Run(t, new(ReportTestSuite))
}

func (suite *ReportTestSuite) SetupTest() {
	suite.dir = filepath.Join(suite.T().TempDir(), "BTCUSDT_ma", "BTCUSDT", "20240101_20240102")

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	suite.result = types.BacktestResult{
		RunID:        "run-1",
		Symbol:       "BTCUSDT",
		StrategyID:   "BTCUSDT_ma",
		InitialCash:  10000,
		FinalEquity:  10500,
		StartTime:    start,
		EndTime:      start.Add(2 * time.Hour),
		TotalReturn:  0.05,
		MaxDrawdown:  0.02,
		SharpeRatio:  1.25,
		WinRate:      1,
		ProfitFactor: types.ProfitFactorNoLosses,
		TotalTrades:  2,
		Trades: []types.Trade{
			{ID: "t1", Timestamp: start, Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 50, Price: 100, StrategyID: "BTCUSDT_ma", Reason: types.TradeReasonStrategy},
			{
				ID: "t2", Timestamp: start.Add(2 * time.Hour), Symbol: "BTCUSDT", Side: types.SideSell, Quantity: 50, Price: 110,
				Fee: 1.5, StrategyID: "BTCUSDT_ma", Reason: types.TradeReasonFinalClose,
				RealizedPnL: 500, ClosedQuantity: 50, EntryPrice: 100,
			},
		},
		EquityCurve: types.EquityCurve{
			{Timestamp: start, TotalEquity: 10000},
			{Timestamp: start.Add(time.Hour), TotalEquity: 10250},
			{Timestamp: start.Add(2 * time.Hour), TotalEquity: 10500},
		},
	}

	suite.meta = Metadata{
		StrategyType: types.StrategyTypeMA,
		Parameters:   map[string]float64{"short_window": 10, "long_window": 30},
		Interval:     types.Interval1h,
		GeneratedAt:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (suite *ReportTestSuite) TestWriteCreatesAllFiles() {
	suite.Require().NoError(Write(suite.dir, suite.result, suite.meta))

	for _, name := range []string{StatsFile, TradesFile, EquityFile} {
		_, err := os.Stat(filepath.Join(suite.dir, name))
		suite.NoError(err, name)
	}
}

func (suite *ReportTestSuite) TestStatsOmitSeries() {
	suite.Require().NoError(Write(suite.dir, suite.result, suite.meta))

	stats, err := ReadStats(filepath.Join(suite.dir, StatsFile))
	suite.Require().NoError(err)

	suite.Equal(suite.meta.StrategyType, stats.Metadata.StrategyType)
	suite.Equal(30.0, stats.Metadata.Parameters["long_window"])
	suite.Equal("run-1", stats.Result.RunID)
	suite.Equal(0.05, stats.Result.TotalReturn)
	suite.Equal(types.ProfitFactorNoLosses, stats.Result.ProfitFactor)
	suite.True(suite.result.StartTime.Equal(stats.Result.StartTime))
	suite.Empty(stats.Result.Trades)
	suite.Empty(stats.Result.EquityCurve)

	data, err := os.ReadFile(filepath.Join(suite.dir, StatsFile))
	suite.Require().NoError(err)
	suite.Contains(string(data), "total_return: 0.05")
}

func (suite *ReportTestSuite) TestStatsVersion() {
	current := version.Version
	version.Version = "v0.3.0"

	defer func() { version.Version = current }()

	suite.Require().NoError(Write(suite.dir, suite.result, suite.meta))

	stats, err := ReadStats(filepath.Join(suite.dir, StatsFile))
	suite.Require().NoError(err)
	suite.Equal("v0.3.0", stats.Metadata.Version)

	meta := suite.meta
	meta.Version = "v0.3.4"
	suite.Require().NoError(WriteStats(filepath.Join(suite.dir, StatsFile), suite.result, meta))

	_, err = ReadStats(filepath.Join(suite.dir, StatsFile))
	suite.NoError(err)

	meta.Version = "v1.0.0"
	suite.Require().NoError(WriteStats(filepath.Join(suite.dir, StatsFile), suite.result, meta))

	_, err = ReadStats(filepath.Join(suite.dir, StatsFile))
	suite.True(errors.HasCode(err, errors.ErrCodeReportFailed))
}

func (suite *ReportTestSuite) TestTradesParquet() {
	suite.Require().NoError(Write(suite.dir, suite.result, suite.meta))

	trades, err := ReadTrades(filepath.Join(suite.dir, TradesFile))
	suite.Require().NoError(err)
	suite.Equal(suite.result.Trades, trades)
}

func (suite *ReportTestSuite) TestEquityParquet() {
	suite.Require().NoError(Write(suite.dir, suite.result, suite.meta))

	curve, err := ReadEquity(filepath.Join(suite.dir, EquityFile))
	suite.Require().NoError(err)
	suite.Equal(suite.result.EquityCurve, curve)
}

func (suite *ReportTestSuite) TestReadMissingFiles() {
	_, err := ReadStats(filepath.Join(suite.dir, StatsFile))
	suite.True(errors.HasCode(err, errors.ErrCodeReportFailed))

	_, err = ReadTrades(filepath.Join(suite.dir, TradesFile))
	suite.True(errors.HasCode(err, errors.ErrCodeReportFailed))
}
