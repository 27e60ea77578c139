package datasource

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type MemoryLoaderTestSuite struct {
	suite.Suite
	loader *MemoryLoader
	start  time.Time
}

func TestMemoryLoaderSuite(t *testing.T) {
	suite.Run(t, new(MemoryLoaderTestSuite))
}

func hourlySeries(symbol string, start time.Time, n int) types.MarketSeries {
	bars := make([]types.Bar, n)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = types.Bar{Time: start.Add(time.Duration(i) * time.Hour), Open: p, High: p + 1, Low: p - 1, Close: p + 0.5, Volume: 10}
	}

	series, err := types.NewMarketSeries(symbol, types.Interval1h, bars)
	if err != nil {
		panic(err)
	}

	return series
}

func (suite *MemoryLoaderTestSuite) SetupTest() {
	suite.start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	suite.loader = NewMemoryLoader(
		hourlySeries("BTCUSDT", suite.start, 48),
		hourlySeries("ETHUSDT", suite.start, 24),
	)
}

func (suite *MemoryLoaderTestSuite) TestLoad() {
	tests := []struct {
		name     string
		start    optional.Option[time.Time]
		end      optional.Option[time.Time]
		expected int
	}{
		{"open range", optional.None[time.Time](), optional.None[time.Time](), 48},
		{"from start", optional.Some(suite.start.Add(40 * time.Hour)), optional.None[time.Time](), 8},
		{"until end inclusive", optional.None[time.Time](), optional.Some(suite.start.Add(9 * time.Hour)), 10},
		{"both bounds", optional.Some(suite.start.Add(time.Hour)), optional.Some(suite.start.Add(3 * time.Hour)), 3},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			series, err := suite.loader.Load(context.Background(), "BTCUSDT", types.Interval1h, tc.start, tc.end)
			suite.Require().NoError(err)
			suite.Equal(tc.expected, series.Len())
			suite.Equal("BTCUSDT", series.Symbol())
		})
	}
}

func (suite *MemoryLoaderTestSuite) TestDataUnavailable() {
	ctx := context.Background()
	none := optional.None[time.Time]()

	_, err := suite.loader.Load(ctx, "SOLUSDT", types.Interval1h, none, none)
	suite.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))

	_, err = suite.loader.Load(ctx, "BTCUSDT", types.Interval1d, none, none)
	suite.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))

	_, err = suite.loader.Load(ctx, "BTCUSDT", types.Interval1h, optional.Some(suite.start.AddDate(1, 0, 0)), none)
	suite.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))
}

func (suite *MemoryLoaderTestSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := suite.loader.Load(ctx, "BTCUSDT", types.Interval1h, optional.None[time.Time](), optional.None[time.Time]())
	suite.ErrorIs(err, context.Canceled)
}

func (suite *MemoryLoaderTestSuite) TestSymbols() {
	symbols, err := suite.loader.Symbols(context.Background())
	suite.Require().NoError(err)
	suite.Equal([]string{"BTCUSDT", "ETHUSDT"}, symbols)
}

func (suite *MemoryLoaderTestSuite) TestGetIntervalMinutes() {
	minutes, err := getIntervalMinutes(types.Interval4h)
	suite.Require().NoError(err)
	suite.Equal(240, minutes)

	_, err = getIntervalMinutes("3h")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidInterval))
}
