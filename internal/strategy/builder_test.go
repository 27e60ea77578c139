package strategy

import (
	"path/filepath"
	"testing"

	"github.com/rxtech-lab/argo-quant/internal/strategy/ml"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type BuilderTestSuite struct {
	suite.Suite
}

func TestBuilderSuite(t *testing.T) {
	suite.Run(t, new(BuilderTestSuite))
}

func (suite *BuilderTestSuite) TestBuildsEveryKnownType() {
	for _, t := range KnownTypes() {
		s, err := New(types.StrategyConfig{Symbol: "AAPL", StrategyType: t, Enabled: true})
		suite.Require().NoError(err, t)

		suite.Equal(t, s.Type())
		suite.Equal("AAPL_"+string(t), s.ID())
		suite.IsType(&Guard{}, s)
		suite.Positive(s.RequiredBars())
	}
}

func (suite *BuilderTestSuite) TestWithoutSymbolUsesTypeAsID() {
	s, err := New(types.StrategyConfig{StrategyType: types.StrategyTypeRSI}, WithoutRiskGuard())
	suite.Require().NoError(err)

	suite.Equal("rsi", s.ID())
	suite.IsType(&RSIThreshold{}, s)
}

func (suite *BuilderTestSuite) TestUnknownType() {
	_, err := New(types.StrategyConfig{Symbol: "AAPL", StrategyType: "momentum"})
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownStrategy))
}

func (suite *BuilderTestSuite) TestInvalidParameters() {
	_, err := New(types.StrategyConfig{
		Symbol:       "AAPL",
		StrategyType: types.StrategyTypeMA,
		Parameters:   map[string]float64{"short_window": 50, "long_window": 10},
	})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameters))
}

func (suite *BuilderTestSuite) TestParametersReachStrategy() {
	s, err := New(types.StrategyConfig{
		Symbol:       "AAPL",
		StrategyType: types.StrategyTypeMA,
		Parameters:   map[string]float64{"short_window": 3, "long_window": 7, "position_size": 0.5},
	}, WithoutRiskGuard())
	suite.Require().NoError(err)

	suite.Equal(8, s.RequiredBars())
	suite.Equal(0.5, s.Risk().PositionSize)
}

func (suite *BuilderTestSuite) TestMLWithoutModelFallsBack() {
	s, err := New(types.StrategyConfig{Symbol: "AAPL", StrategyType: types.StrategyTypeML, ModelType: ModelTypeLogistic}, WithoutRiskGuard())
	suite.Require().NoError(err)

	mlStrategy, ok := s.(*MachineLearning)
	suite.Require().True(ok)
	suite.False(mlStrategy.UsesModel())
	suite.Equal(21, s.RequiredBars())
}

func (suite *BuilderTestSuite) TestMLLoadsLogisticModel() {
	path := filepath.Join(suite.T().TempDir(), "model.json")
	model := &ml.LogisticModel{Weights: make([]float64, ml.NumFeatures), NumFeatures: ml.NumFeatures, NeutralBand: 0.05}
	suite.Require().NoError(model.Save(path))

	s, err := New(types.StrategyConfig{Symbol: "AAPL", StrategyType: types.StrategyTypeML, ModelPath: path}, WithoutRiskGuard())
	suite.Require().NoError(err)

	mlStrategy, ok := s.(*MachineLearning)
	suite.Require().True(ok)
	suite.True(mlStrategy.UsesModel())
}

func (suite *BuilderTestSuite) TestMLModelErrors() {
	_, err := New(types.StrategyConfig{
		Symbol:       "AAPL",
		StrategyType: types.StrategyTypeML,
		ModelType:    "random_forest",
		ModelPath:    "model.bin",
	})
	suite.True(errors.HasCode(err, errors.ErrCodeUnsupportedStrategy))

	_, err = New(types.StrategyConfig{
		Symbol:       "AAPL",
		StrategyType: types.StrategyTypeML,
		ModelPath:    filepath.Join(suite.T().TempDir(), "missing.json"),
	})
	suite.Error(err)
}
