package strategy

import (
	"github.com/rxtech-lab/argo-quant/internal/types"
)

// Guard wraps a strategy with stop-loss and take-profit exits that are checked
// against the current close before the inner strategy runs. Thresholds are
// strict: a move of exactly StopLoss does not trigger.
type Guard struct {
	Strategy
}

// WithRiskGuard wraps s unless it is already guarded.
func WithRiskGuard(s Strategy) Strategy {
	if _, ok := s.(*Guard); ok {
		return s
	}

	return &Guard{Strategy: s}
}

// Unwrap returns the inner strategy.
func (g *Guard) Unwrap() Strategy {
	return g.Strategy
}

func (g *Guard) Decide(ctx DecisionContext) (types.Signal, error) {
	if signal, ok := g.protectiveExit(ctx); ok {
		return signal, nil
	}

	return g.Strategy.Decide(ctx)
}

func (g *Guard) protectiveExit(ctx DecisionContext) (types.Signal, bool) {
	pos := ctx.Position
	if pos.IsFlat() || pos.AvgEntryPrice <= 0 {
		return types.Signal{}, false
	}

	risk := g.Risk()
	price := ctx.Current().Close
	entry := pos.AvgEntryPrice

	var reason string

	if pos.IsLong() {
		switch {
		case risk.StopLoss > 0 && price < entry*(1-risk.StopLoss):
			reason = types.TradeReasonStopLoss
		case risk.TakeProfit > 0 && price > entry*(1+risk.TakeProfit):
			reason = types.TradeReasonTakeProfit
		default:
			return types.Signal{}, false
		}

		return types.Signal{Type: types.SignalTypeSell, Quantity: pos.Exposure(), Reason: reason}, true
	}

	switch {
	case risk.StopLoss > 0 && price > entry*(1+risk.StopLoss):
		reason = types.TradeReasonStopLoss
	case risk.TakeProfit > 0 && price < entry*(1-risk.TakeProfit):
		reason = types.TradeReasonTakeProfit
	default:
		return types.Signal{}, false
	}

	return types.Signal{Type: types.SignalTypeBuy, Quantity: pos.Exposure(), Reason: reason}, true
}
