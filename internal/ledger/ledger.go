// Package ledger tracks cash, positions and realized profit for one account.
//
// Positions use weighted-average cost. With fees F paid so far, every state satisfies
//
//	cash + Σ quantity×mark = initial + realized + unrealized(mark) − F
//
// A Ledger is not safe for concurrent use; each backtest run owns its own.
package ledger

import (
	"math"
	"slices"
	"strings"

	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"github.com/shopspring/decimal"
)

type position struct {
	quantity decimal.Decimal
	avgPrice decimal.Decimal
}

type Ledger struct {
	initialCash decimal.Decimal
	cash        decimal.Decimal
	realized    decimal.Decimal
	fees        decimal.Decimal
	positions   map[string]*position
	trades      []types.Trade
}

func New(initialCash float64) *Ledger {
	cash := decimal.NewFromFloat(initialCash)

	return &Ledger{
		initialCash: cash,
		cash:        cash,
		realized:    decimal.Zero,
		fees:        decimal.Zero,
		positions:   make(map[string]*position),
	}
}

func validateFill(trade types.Trade) error {
	switch {
	case strings.TrimSpace(trade.Symbol) == "":
		return errors.New(errors.ErrCodeInvalidParameters, "fill has no symbol")
	case trade.Side != types.SideBuy && trade.Side != types.SideSell:
		return errors.Newf(errors.ErrCodeInvalidParameters, "fill has invalid side %q", trade.Side)
	case math.IsNaN(trade.Quantity) || math.IsInf(trade.Quantity, 0) || trade.Quantity <= 0:
		return errors.Newf(errors.ErrCodeInvalidParameters, "fill quantity must be positive, got %v", trade.Quantity)
	case math.IsNaN(trade.Price) || math.IsInf(trade.Price, 0) || trade.Price <= 0:
		return errors.Newf(errors.ErrCodeInvalidParameters, "fill price must be positive, got %v", trade.Price)
	case math.IsNaN(trade.Fee) || trade.Fee < 0:
		return errors.Newf(errors.ErrCodeInvalidParameters, "fill fee must be non-negative, got %v", trade.Fee)
	}

	return nil
}

// ApplyFill books a fill and returns it with RealizedPnL, ClosedQuantity and
// EntryPrice set. The ledger is unchanged when an error is returned.
//
// Increasing a position re-averages the entry price. Reducing it realizes
// (price − avg) × closed for longs and the mirror for shorts, leaving the
// average untouched. Crossing zero closes the old side and opens the remainder
// at the fill price.
func (l *Ledger) ApplyFill(trade types.Trade) (types.Trade, error) {
	if err := validateFill(trade); err != nil {
		return trade, err
	}

	qty := decimal.NewFromFloat(trade.Quantity)
	price := decimal.NewFromFloat(trade.Price)
	fee := decimal.NewFromFloat(trade.Fee)

	delta := qty
	if trade.Side == types.SideSell {
		delta = qty.Neg()
	}

	pos, ok := l.positions[trade.Symbol]
	if !ok {
		pos = &position{quantity: decimal.Zero, avgPrice: decimal.Zero}
		l.positions[trade.Symbol] = pos
	}

	current := pos.quantity
	newQty := current.Add(delta)

	if current.IsZero() || current.Sign() == delta.Sign() {
		// increase: weighted average of old and new exposure
		cost := current.Abs().Mul(pos.avgPrice).Add(qty.Mul(price))
		pos.avgPrice = cost.Div(newQty.Abs())
	} else {
		closed := decimal.Min(qty, current.Abs())
		pnl := price.Sub(pos.avgPrice).Mul(closed)

		if current.IsNegative() {
			pnl = pnl.Neg()
		}

		trade.ClosedQuantity = closed.InexactFloat64()
		trade.EntryPrice = pos.avgPrice.InexactFloat64()
		trade.RealizedPnL = pnl.InexactFloat64()
		l.realized = l.realized.Add(pnl)

		switch {
		case newQty.IsZero():
			pos.avgPrice = decimal.Zero
		case newQty.Sign() != current.Sign():
			pos.avgPrice = price
		}
	}

	pos.quantity = newQty

	notional := price.Mul(qty)
	if trade.Side == types.SideBuy {
		l.cash = l.cash.Sub(notional).Sub(fee)
	} else {
		l.cash = l.cash.Add(notional).Sub(fee)
	}

	l.fees = l.fees.Add(fee)
	l.trades = append(l.trades, trade)

	return trade, nil
}

// Position returns the holding for symbol; unknown symbols are flat.
func (l *Ledger) Position(symbol string) types.Position {
	pos, ok := l.positions[symbol]
	if !ok {
		return types.Position{Symbol: symbol}
	}

	return types.Position{
		Symbol:        symbol,
		Quantity:      pos.quantity.InexactFloat64(),
		AvgEntryPrice: pos.avgPrice.InexactFloat64(),
	}
}

// Positions returns the non-flat positions ordered by symbol.
func (l *Ledger) Positions() []types.Position {
	symbols := make([]string, 0, len(l.positions))
	for symbol, pos := range l.positions {
		if !pos.quantity.IsZero() {
			symbols = append(symbols, symbol)
		}
	}

	slices.Sort(symbols)

	out := make([]types.Position, 0, len(symbols))
	for _, symbol := range symbols {
		out = append(out, l.Position(symbol))
	}

	return out
}

// Trades returns every booked fill in order.
func (l *Ledger) Trades() []types.Trade {
	return slices.Clone(l.trades)
}

func (l *Ledger) InitialCash() float64 { return l.initialCash.InexactFloat64() }
func (l *Ledger) Cash() float64        { return l.cash.InexactFloat64() }
func (l *Ledger) RealizedPnL() float64 { return l.realized.InexactFloat64() }
func (l *Ledger) TotalFees() float64   { return l.fees.InexactFloat64() }

// markFor returns the mark for symbol, falling back to the entry price so an
// unpriced position contributes no unrealized profit.
func markFor(marks map[string]float64, symbol string, pos *position) decimal.Decimal {
	if mark, ok := marks[symbol]; ok && !math.IsNaN(mark) {
		return decimal.NewFromFloat(mark)
	}

	return pos.avgPrice
}

// UnrealizedPnL is Σ (mark − avg) × quantity over open positions.
func (l *Ledger) UnrealizedPnL(marks map[string]float64) float64 {
	total := decimal.Zero

	for symbol, pos := range l.positions {
		if pos.quantity.IsZero() {
			continue
		}

		mark := markFor(marks, symbol, pos)
		total = total.Add(mark.Sub(pos.avgPrice).Mul(pos.quantity))
	}

	return total.InexactFloat64()
}

// Equity is cash plus the signed market value of every open position.
func (l *Ledger) Equity(marks map[string]float64) float64 {
	total := l.cash

	for symbol, pos := range l.positions {
		if pos.quantity.IsZero() {
			continue
		}

		total = total.Add(pos.quantity.Mul(markFor(marks, symbol, pos)))
	}

	return total.InexactFloat64()
}
