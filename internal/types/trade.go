package types

import (
	"math"
	"time"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign is +1 for buys and -1 for sells.
func (s Side) Sign() float64 {
	if s == SideSell {
		return -1
	}

	return 1
}

const (
	TradeReasonStrategy   string = "strategy"
	TradeReasonStopLoss   string = "stop_loss"
	TradeReasonTakeProfit string = "take_profit"
	TradeReasonFinalClose string = "final_close"
)

// Trade is an executed fill. RealizedPnL, ClosedQuantity and EntryPrice are
// filled in by the ledger when the fill reduces an existing position.
type Trade struct {
	ID         string    `json:"id" yaml:"id"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Symbol     string    `json:"symbol" yaml:"symbol"`
	Side       Side      `json:"side" yaml:"side"`
	Quantity   float64   `json:"quantity" yaml:"quantity"`
	Price      float64   `json:"price" yaml:"price"`
	Fee        float64   `json:"fee" yaml:"fee"`
	StrategyID string    `json:"strategy_id" yaml:"strategy_id"`
	Reason     string    `json:"reason" yaml:"reason"`
	// RealizedPnL is the profit of the portion that closed existing exposure,
	// e.g. long 3 @ 100, sell 1 @ 110 realizes 10.
	RealizedPnL    float64 `json:"realized_pnl" yaml:"realized_pnl"`
	ClosedQuantity float64 `json:"closed_quantity" yaml:"closed_quantity"`
	// EntryPrice is the average entry of the exposure that was closed.
	EntryPrice float64 `json:"entry_price" yaml:"entry_price"`
}

// IsClosing reports whether the trade reduced an existing position.
func (t Trade) IsClosing() bool {
	return t.ClosedQuantity > 0
}

// ReturnFraction is the realized return of the closed portion relative to its cost basis.
func (t Trade) ReturnFraction() float64 {
	basis := t.EntryPrice * t.ClosedQuantity
	if basis == 0 {
		return 0
	}

	return t.RealizedPnL / basis
}

// Position is the signed holding for one symbol. Positive is long, negative is short.
type Position struct {
	Symbol        string  `json:"symbol" yaml:"symbol"`
	Quantity      float64 `json:"quantity" yaml:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price" yaml:"avg_entry_price"`
}

func (p Position) IsFlat() bool  { return p.Quantity == 0 }
func (p Position) IsLong() bool  { return p.Quantity > 0 }
func (p Position) IsShort() bool { return p.Quantity < 0 }

// MarketValue is the signed value of the position at mark.
func (p Position) MarketValue(mark float64) float64 {
	return p.Quantity * mark
}

// UnrealizedPnL is (mark - avg) * quantity, which is negative for a short when the price rises.
func (p Position) UnrealizedPnL(mark float64) float64 {
	if p.Quantity == 0 {
		return 0
	}

	return (mark - p.AvgEntryPrice) * p.Quantity
}

// Exposure is the absolute quantity held.
func (p Position) Exposure() float64 {
	return math.Abs(p.Quantity)
}
