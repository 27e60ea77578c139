package indicator_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-quant/internal/indicator"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/mocks"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type SetMockTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller
	mock *mocks.MockIndicator
}

func TestSetMockSuite(t *testing.T) {
	suite.Run(t, new(SetMockTestSuite))
}

func (suite *SetMockTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.mock = mocks.NewMockIndicator(suite.ctrl)
	suite.mock.EXPECT().Name().Return(types.IndicatorType("custom")).AnyTimes()
}

func (suite *SetMockTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *SetMockTestSuite) registry() indicator.IndicatorRegistry {
	registry := indicator.NewIndicatorRegistry()
	suite.Require().NoError(registry.RegisterIndicator(func() indicator.Indicator { return suite.mock }))

	return registry
}

func (suite *SetMockTestSuite) series() types.MarketSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []types.Bar{
		{Time: start, Open: 1, High: 1, Low: 1, Close: 1},
		{Time: start.Add(time.Hour), Open: 2, High: 2, Low: 2, Close: 2},
	}

	series, err := types.NewMarketSeries("TEST", types.Interval1h, bars)
	suite.Require().NoError(err)

	return series
}

func (suite *SetMockTestSuite) TestComputeErrorIsWrapped() {
	suite.mock.EXPECT().Compute(gomock.Any()).Return(nil, fmt.Errorf("boom"))

	_, err := indicator.Compute(suite.registry(), suite.series(), []indicator.Requirement{{Key: "c", Type: "custom"}})
	suite.True(errors.HasCode(err, errors.ErrCodeIndicatorCalculation))
	suite.Contains(err.Error(), "boom")
}

func (suite *SetMockTestSuite) TestConfigErrorIsInvalidParameters() {
	suite.mock.EXPECT().Config(5).Return(fmt.Errorf("bad period"))

	_, err := indicator.Compute(suite.registry(), suite.series(), []indicator.Requirement{{Key: "c", Type: "custom", Params: []any{5}}})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameters))
}

func (suite *SetMockTestSuite) TestMultiLineKeys() {
	suite.mock.EXPECT().Compute(gomock.Any()).Return(indicator.Lines{
		"up":   {1, 2},
		"down": {0, 1},
	}, nil)

	set, err := indicator.Compute(suite.registry(), suite.series(), []indicator.Requirement{{Key: "c", Type: "custom"}})
	suite.Require().NoError(err)
	suite.Equal([]float64{1, 2}, set.Line("c.up"))
	suite.Equal(1.0, set.Last("c.down"))
	suite.False(set.Has("c"))
}
