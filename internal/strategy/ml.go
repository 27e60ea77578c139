package strategy

import (
	"github.com/rxtech-lab/argo-quant/internal/indicator"
	"github.com/rxtech-lab/argo-quant/internal/strategy/ml"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

const (
	keyMLFallbackFast = "ml_fallback_fast"
	keyMLFallbackSlow = "ml_fallback_slow"

	mlFallbackFast = 5
	mlFallbackSlow = 20
)

// MachineLearning trades on predictions from a Predictor. Without a predictor
// it falls back to a 5/20 moving-average crossover.
type MachineLearning struct {
	id        string
	params    MLParams
	predictor ml.Predictor
}

func NewMachineLearning(id string, params MLParams, predictor ml.Predictor) *MachineLearning {
	return &MachineLearning{id: id, params: params, predictor: predictor}
}

func (s *MachineLearning) ID() string               { return s.id }
func (s *MachineLearning) Type() types.StrategyType { return types.StrategyTypeML }
func (s *MachineLearning) Risk() RiskParams         { return s.params.RiskParams }

// UsesModel reports whether decisions come from a predictor rather than the fallback.
func (s *MachineLearning) UsesModel() bool {
	return s.predictor != nil
}

func (s *MachineLearning) Indicators() []indicator.Requirement {
	if s.predictor == nil {
		return []indicator.Requirement{
			{Key: keyMLFallbackFast, Type: types.IndicatorTypeMA, Params: []any{mlFallbackFast}},
			{Key: keyMLFallbackSlow, Type: types.IndicatorTypeMA, Params: []any{mlFallbackSlow}},
		}
	}

	return ml.Requirements()
}

func (s *MachineLearning) RequiredBars() int {
	if s.predictor == nil {
		return mlFallbackSlow + 1
	}

	return ml.WarmupBars(s.params.LookbackPeriod)
}

func (s *MachineLearning) Decide(ctx DecisionContext) (types.Signal, error) {
	if s.predictor == nil {
		return crossSignal(ctx, keyMLFallbackFast, keyMLFallbackSlow), nil
	}

	if ctx.Series.Len() < ml.WarmupBars(s.params.LookbackPeriod) {
		return types.Hold(), nil
	}

	features, err := ml.ExtractFeatures(ctx.Series, ctx.Indicators, s.params.LookbackPeriod)
	if err != nil {
		return types.Hold(), err
	}

	prediction, err := s.predictor.Predict(features)
	if err != nil {
		return types.Hold(), errors.Wrapf(errors.ErrCodePredictionFailed, err, "prediction failed at bar %d", ctx.Index)
	}

	if prediction.Confidence < s.params.MinConfidence {
		return types.Hold(), nil
	}

	switch prediction.Direction {
	case ml.DirectionUp:
		return types.Buy(types.TradeReasonStrategy), nil
	case ml.DirectionDown:
		return types.Sell(types.TradeReasonStrategy), nil
	default:
		return types.Hold(), nil
	}
}
