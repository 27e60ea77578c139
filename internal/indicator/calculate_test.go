package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/stretchr/testify/suite"
)

type CalculateTestSuite struct {
	suite.Suite
}

func TestCalculateSuite(t *testing.T) {
	suite.Run(t, new(CalculateTestSuite))
}

// seriesFromCloses builds an hourly series where high/low bracket the close by 1.
func seriesFromCloses(closes []float64) types.MarketSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, len(closes))

	for i, c := range closes {
		bars[i] = types.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 100 + float64(i%7),
		}
	}

	series, err := types.NewMarketSeries("TEST", types.Interval1h, bars)
	if err != nil {
		panic(err)
	}

	return series
}

// wave produces a deterministic oscillating trend.
func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 10*math.Sin(float64(i)/5) + float64(i)*0.1
	}

	return out
}

func (suite *CalculateTestSuite) assertSeries(expected, actual []float64) {
	suite.Require().Len(actual, len(expected))

	for i := range expected {
		if math.IsNaN(expected[i]) {
			suite.True(math.IsNaN(actual[i]), "index %d: expected NaN, got %v", i, actual[i])

			continue
		}

		suite.InDelta(expected[i], actual[i], 1e-9, "index %d", i)
	}
}

func (suite *CalculateTestSuite) TestSMA() {
	nan := math.NaN()
	suite.assertSeries([]float64{nan, nan, 2, 3, 4}, CalculateSMA([]float64{1, 2, 3, 4, 5}, 3))
	suite.assertSeries([]float64{nan, nan}, CalculateSMA([]float64{1, 2}, 3))
	suite.assertSeries([]float64{nan, nan}, CalculateSMA([]float64{1, 2}, 0))
}

func (suite *CalculateTestSuite) TestEMA() {
	nan := math.NaN()
	suite.assertSeries([]float64{nan, nan, 2, 3, 4}, CalculateEMA([]float64{1, 2, 3, 4, 5}, 3))
	// leading NaN input shifts the seed
	suite.assertSeries([]float64{nan, nan, 3, 13.0 / 3}, CalculateEMA([]float64{nan, 2, 4, 5}, 2))
}

func (suite *CalculateTestSuite) TestRSI() {
	nan := math.NaN()

	tests := []struct {
		name     string
		closes   []float64
		period   int
		expected []float64
	}{
		{
			name:     "alternating moves",
			closes:   []float64{1, 2, 1, 2, 1},
			period:   2,
			expected: []float64{nan, nan, 50, 75, 37.5},
		},
		{
			name:     "no losses reports 100",
			closes:   []float64{1, 2, 3, 4},
			period:   3,
			expected: []float64{nan, nan, nan, 100},
		},
		{
			name:     "too short",
			closes:   []float64{1, 2, 3},
			period:   3,
			expected: []float64{nan, nan, nan},
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.assertSeries(tc.expected, CalculateRSI(tc.closes, tc.period))
		})
	}
}

func (suite *CalculateTestSuite) TestRSIBounded() {
	for i, v := range CalculateRSI(wave(200), 14) {
		if i < 14 {
			suite.True(math.IsNaN(v))

			continue
		}

		suite.GreaterOrEqual(v, 0.0)
		suite.LessOrEqual(v, 100.0)
	}
}

func (suite *CalculateTestSuite) TestMACD() {
	closes := wave(120)
	line, signal, hist := CalculateMACD(closes, 12, 26, 9)

	suite.True(math.IsNaN(line[24]))
	suite.False(math.IsNaN(line[25]))
	suite.True(math.IsNaN(signal[32]))
	suite.False(math.IsNaN(signal[33]))

	for i := 33; i < len(closes); i++ {
		suite.InDelta(line[i]-signal[i], hist[i], 1e-12)
	}
}

func (suite *CalculateTestSuite) TestBollingerBands() {
	nan := math.NaN()
	upper, middle, lower := CalculateBollingerBands([]float64{1, 2, 3}, 3, 2)
	suite.assertSeries([]float64{nan, nan, 4}, upper)
	suite.assertSeries([]float64{nan, nan, 2}, middle)
	suite.assertSeries([]float64{nan, nan, 0}, lower)
}

func (suite *CalculateTestSuite) TestATR() {
	nan := math.NaN()
	atr := CalculateATR([]float64{10, 11, 12}, []float64{8, 9, 10}, []float64{9, 10, 11}, 2)
	suite.assertSeries([]float64{nan, 2, 2}, atr)

	// mismatched inputs yield all NaN
	suite.assertSeries([]float64{nan, nan}, CalculateATR([]float64{1}, []float64{1, 2}, []float64{1, 2}, 1))
}

func (suite *CalculateTestSuite) TestCrosses() {
	a := []float64{1, 2, 3, 1}
	b := []float64{2, 2, 2, 2}

	suite.False(CrossedAbove(a, b, 0))
	suite.False(CrossedAbove(a, b, 1))
	suite.True(CrossedAbove(a, b, 2))
	suite.True(CrossedBelow(a, b, 3))
	suite.False(CrossedBelow(a, b, 2))
	suite.False(CrossedAbove([]float64{math.NaN(), 3}, []float64{2, 2}, 1))
}

func (suite *CalculateTestSuite) TestReturnsAndStdDev() {
	returns := Returns([]float64{100, 110, 99})
	suite.True(math.IsNaN(returns[0]))
	suite.InDelta(0.1, returns[1], 1e-12)
	suite.InDelta(-0.1, returns[2], 1e-12)

	std := CalculateStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	suite.InDelta(2.138089935299395, std[7], 1e-12)
}
