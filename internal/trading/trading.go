package trading

import (
	"time"

	"github.com/rxtech-lab/argo-quant/internal/types"
)

// Order asks the trading system to act on a strategy signal at a known price.
type Order struct {
	Symbol string       `validate:"required"`
	Signal types.Signal `validate:"-"`
	Price  float64      `validate:"gt=0"`
	Time   time.Time    `validate:"required"`
	// PositionSize is the fraction of equity committed when the signal has no explicit quantity.
	PositionSize float64 `validate:"gte=0,lte=1"`
	// Marks prices every open position for equity-based sizing.
	Marks map[string]float64 `validate:"-"`
}

// TradingSystem turns signals into fills.
type TradingSystem interface {
	// PlaceOrder executes the signal and returns the resulting fills, possibly none
	PlaceOrder(order Order) ([]types.Trade, error)
	// ClosePosition flattens symbol at price
	ClosePosition(symbol string, price float64, at time.Time, reason string) (types.Trade, bool, error)
	// GetPosition returns the current position for a symbol
	GetPosition(symbol string) types.Position
}
