package strategy

import (
	"github.com/rxtech-lab/argo-quant/internal/indicator"
	"github.com/rxtech-lab/argo-quant/internal/types"
)

const keyRSI = "rsi"

// RSIThreshold buys when RSI climbs back above the oversold level and sells
// when it falls back below the overbought level.
type RSIThreshold struct {
	id     string
	params RSIParams
}

func NewRSIThreshold(id string, params RSIParams) *RSIThreshold {
	return &RSIThreshold{id: id, params: params}
}

func (s *RSIThreshold) ID() string               { return s.id }
func (s *RSIThreshold) Type() types.StrategyType { return types.StrategyTypeRSI }
func (s *RSIThreshold) Risk() RiskParams         { return s.params.RiskParams }

func (s *RSIThreshold) Indicators() []indicator.Requirement {
	return []indicator.Requirement{
		{Key: keyRSI, Type: types.IndicatorTypeRSI, Params: []any{s.params.RSIPeriod}},
	}
}

// RequiredBars covers the first RSI value plus one more to detect a cross.
func (s *RSIThreshold) RequiredBars() int {
	return s.params.RSIPeriod + 2
}

func (s *RSIThreshold) Decide(ctx DecisionContext) (types.Signal, error) {
	i := ctx.Index
	if i < 1 {
		return types.Hold(), nil
	}

	prev := ctx.Indicators.At(keyRSI, i-1)
	cur := ctx.Indicators.At(keyRSI, i)

	if !indicator.Valid(prev) || !indicator.Valid(cur) {
		return types.Hold(), nil
	}

	switch {
	case prev <= s.params.Oversold && cur > s.params.Oversold:
		return types.Buy(types.TradeReasonStrategy), nil
	case prev >= s.params.Overbought && cur < s.params.Overbought:
		return types.Sell(types.TradeReasonStrategy), nil
	default:
		return types.Hold(), nil
	}
}
