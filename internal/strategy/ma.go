package strategy

import (
	"github.com/rxtech-lab/argo-quant/internal/indicator"
	"github.com/rxtech-lab/argo-quant/internal/types"
)

const (
	keyMAShort = "ma_short"
	keyMALong  = "ma_long"
)

// MovingAverage buys when the short SMA crosses above the long SMA and sells on the opposite cross.
type MovingAverage struct {
	id     string
	params MAParams
}

func NewMovingAverage(id string, params MAParams) *MovingAverage {
	return &MovingAverage{id: id, params: params}
}

func (s *MovingAverage) ID() string               { return s.id }
func (s *MovingAverage) Type() types.StrategyType { return types.StrategyTypeMA }
func (s *MovingAverage) Risk() RiskParams         { return s.params.RiskParams }

func (s *MovingAverage) Indicators() []indicator.Requirement {
	return []indicator.Requirement{
		{Key: keyMAShort, Type: types.IndicatorTypeMA, Params: []any{s.params.ShortWindow}},
		{Key: keyMALong, Type: types.IndicatorTypeMA, Params: []any{s.params.LongWindow}},
	}
}

// RequiredBars allows one comparison of two defined long averages.
func (s *MovingAverage) RequiredBars() int {
	return s.params.LongWindow + 1
}

func (s *MovingAverage) Decide(ctx DecisionContext) (types.Signal, error) {
	return crossSignal(ctx, keyMAShort, keyMALong), nil
}

// crossSignal is shared by the strategies that trade a fast/slow average cross.
func crossSignal(ctx DecisionContext, fastKey, slowKey string) types.Signal {
	fast := ctx.Indicators.Line(fastKey)
	slow := ctx.Indicators.Line(slowKey)

	switch {
	case indicator.CrossedAbove(fast, slow, ctx.Index):
		return types.Buy(types.TradeReasonStrategy)
	case indicator.CrossedBelow(fast, slow, ctx.Index):
		return types.Sell(types.TradeReasonStrategy)
	default:
		return types.Hold()
	}
}
