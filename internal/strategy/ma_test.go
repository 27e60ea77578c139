package strategy

import (
	"testing"

	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/stretchr/testify/suite"
)

type MovingAverageTestSuite struct {
	suite.Suite
}

func TestMovingAverageSuite(t *testing.T) {
	suite.Run(t, new(MovingAverageTestSuite))
}

func (suite *MovingAverageTestSuite) newStrategy() *MovingAverage {
	return NewMovingAverage("TEST_ma", MAParams{ShortWindow: 2, LongWindow: 4, RiskParams: defaultRisk})
}

func (suite *MovingAverageTestSuite) TestCrossSignals() {
	series := seriesFromCloses([]float64{10, 10, 10, 10, 9, 8, 7, 8, 10, 12})

	signals, err := decideEach(suite.newStrategy(), series)
	suite.Require().NoError(err)

	suite.Equal(map[int]types.SignalType{
		4: types.SignalTypeSell,
		8: types.SignalTypeBuy,
	}, nonHold(signals))
	suite.Equal(types.TradeReasonStrategy, signals[8].Reason)
}

func (suite *MovingAverageTestSuite) TestFlatSeriesHolds() {
	series := seriesFromCloses([]float64{5, 5, 5, 5, 5, 5, 5, 5})

	signals, err := decideEach(suite.newStrategy(), series)
	suite.Require().NoError(err)
	suite.Empty(nonHold(signals))
}

func (suite *MovingAverageTestSuite) TestMetadata() {
	s := suite.newStrategy()

	suite.Equal("TEST_ma", s.ID())
	suite.Equal(types.StrategyTypeMA, s.Type())
	suite.Equal(5, s.RequiredBars())
	suite.Len(s.Indicators(), 2)
	suite.Equal(defaultRisk, s.Risk())
}
