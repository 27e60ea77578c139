// Package strategy turns a truncated view of the market into trading signals.
//
// A Strategy never sees bars after the one it is deciding on: the engine hands
// it a DecisionContext whose Series and Indicators end at Index.
package strategy

import (
	"github.com/rxtech-lab/argo-quant/internal/indicator"
	"github.com/rxtech-lab/argo-quant/internal/types"
)

// DecisionContext is everything a strategy may look at for one bar.
type DecisionContext struct {
	// Index of the current bar in the full series
	Index int
	// Series holds bars 0..Index
	Series types.MarketSeries
	// Indicators exposes values 0..Index of every requested line
	Indicators indicator.Set
	// Position is the current holding in Series.Symbol()
	Position types.Position
}

// Current returns the bar being decided on.
func (c DecisionContext) Current() types.Bar {
	bar, _ := c.Series.Last()

	return bar
}

// RiskParams control sizing and protective exits. A zero StopLoss or
// TakeProfit disables that exit.
type RiskParams struct {
	PositionSize float64 `json:"position_size" jsonschema:"title=Position Size,description=Fraction of equity committed per entry,minimum=0,maximum=1" validate:"gt=0,lte=1"`
	StopLoss     float64 `json:"stop_loss" jsonschema:"title=Stop Loss,description=Adverse move from entry that forces an exit,minimum=0" validate:"gte=0,lt=1"`
	TakeProfit   float64 `json:"take_profit" jsonschema:"title=Take Profit,description=Favourable move from entry that forces an exit,minimum=0" validate:"gte=0"`
}

// Strategy decides one bar at a time. Decide must be deterministic and must
// not retain state between calls.
type Strategy interface {
	ID() string
	Type() types.StrategyType
	// Indicators lists the lines Decide reads from DecisionContext.Indicators
	Indicators() []indicator.Requirement
	// RequiredBars is the minimum series length for a meaningful run
	RequiredBars() int
	Decide(ctx DecisionContext) (types.Signal, error)
	Risk() RiskParams
}
