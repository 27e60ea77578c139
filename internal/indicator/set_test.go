package indicator

import (
	"math"
	"testing"

	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type SetTestSuite struct {
	suite.Suite
}

func TestSetSuite(t *testing.T) {
	suite.Run(t, new(SetTestSuite))
}

var testRequirements = []Requirement{
	{Key: "ma_short", Type: types.IndicatorTypeMA, Params: []any{5}},
	{Key: "rsi", Type: types.IndicatorTypeRSI, Params: []any{14}},
	{Key: "macd", Type: types.IndicatorTypeMACD, Params: []any{12, 26, 9}},
	{Key: "bb", Type: types.IndicatorTypeBollingerBands, Params: []any{20, 2.0}},
	{Key: "atr", Type: types.IndicatorTypeATR},
}

func (suite *SetTestSuite) TestKeys() {
	set, err := Compute(NewDefaultRegistry(), seriesFromCloses(wave(60)), testRequirements)
	suite.Require().NoError(err)

	for _, key := range []string{"ma_short", "rsi", "atr", "macd.macd", "macd.signal", "macd.histogram", "bb.upper", "bb.middle", "bb.lower"} {
		suite.True(set.Has(key), key)
	}

	suite.False(set.Has("macd"))
	suite.Nil(set.Line("missing"))
	suite.True(math.IsNaN(set.Last("missing")))
}

func (suite *SetTestSuite) TestDuplicateKey() {
	_, err := Compute(NewDefaultRegistry(), seriesFromCloses(wave(10)), []Requirement{
		{Key: "x", Type: types.IndicatorTypeMA, Params: []any{2}},
		{Key: "x", Type: types.IndicatorTypeEMA, Params: []any{2}},
	})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameters))
}

func (suite *SetTestSuite) TestWindowHidesFutureValues() {
	set, err := Compute(NewDefaultRegistry(), seriesFromCloses(wave(60)), testRequirements)
	suite.Require().NoError(err)

	window := set.Window(30)
	suite.Equal(30, window.Len())
	suite.Len(window.Line("rsi"), 30)
	suite.Equal(set.At("rsi", 29), window.Last("rsi"))
	suite.True(math.IsNaN(window.At("rsi", 30)))
	suite.Equal(60, set.Window(1000).Len())
}

// Computing once and windowing must equal recomputing on each truncated prefix.
func (suite *SetTestSuite) TestNoLookAhead() {
	series := seriesFromCloses(wave(90))
	registry := NewDefaultRegistry()

	full, err := Compute(registry, series, testRequirements)
	suite.Require().NoError(err)

	for i := 1; i <= series.Len(); i += 7 {
		prefix, err := Compute(registry, series.Head(i), testRequirements)
		suite.Require().NoError(err)

		window := full.Window(i)
		for key := range full.lines {
			expected := prefix.Line(key)
			actual := window.Line(key)
			suite.Require().Len(actual, len(expected))

			for j := range expected {
				if math.IsNaN(expected[j]) {
					suite.True(math.IsNaN(actual[j]), "%s[%d] at prefix %d", key, j, i)

					continue
				}

				suite.InDelta(expected[j], actual[j], 1e-9, "%s[%d] at prefix %d", key, j, i)
			}
		}
	}
}
