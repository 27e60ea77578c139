package trading

import (
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-quant/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/argo-quant/internal/ledger"
	"github.com/rxtech-lab/argo-quant/internal/logger"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/internal/utils"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"go.uber.org/zap"
)

type ExecutorConfig struct {
	Commission       commission_fee.CommissionFee
	DecimalPrecision int
	// AllowShort lets SELL open a short from flat. Otherwise SELL only closes longs.
	AllowShort bool
}

// Executor is the ledger-backed TradingSystem shared by backtests and paper sessions.
//
//   - BUY when flat opens a long sized at PositionSize × equity, capped by cash.
//   - BUY when short covers the whole short.
//   - SELL when long closes the whole long.
//   - SELL when flat opens a short only if AllowShort.
//   - Signals that would add to an existing position are ignored.
//
// A positive Signal.Quantity overrides sizing and is capped at the open exposure when closing.
type Executor struct {
	ledger     *ledger.Ledger
	config     ExecutorConfig
	strategyID string
	idSpace    uuid.UUID
	seq        int
	validate   *validator.Validate
	logger     *logger.Logger
}

// NewExecutor creates an executor. Trade IDs are derived from idSpace and a
// sequence number, so two runs with the same idSpace produce the same IDs.
func NewExecutor(l *ledger.Ledger, strategyID string, idSpace uuid.UUID, config ExecutorConfig, log *logger.Logger) *Executor {
	if config.Commission == nil {
		config.Commission = commission_fee.NewZeroCommissionFee()
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Executor{
		ledger:     l,
		config:     config,
		strategyID: strategyID,
		idSpace:    idSpace,
		validate:   validator.New(),
		logger:     log,
	}
}

func (e *Executor) GetPosition(symbol string) types.Position {
	return e.ledger.Position(symbol)
}

// PlaceOrder implements TradingSystem.
func (e *Executor) PlaceOrder(order Order) ([]types.Trade, error) {
	if order.Signal.IsHold() {
		return nil, nil
	}

	if err := e.validate.Struct(order); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameters, "invalid order", err)
	}

	pos := e.ledger.Position(order.Symbol)

	reason := order.Signal.Reason
	if reason == "" {
		reason = types.TradeReasonStrategy
	}

	var (
		side types.Side
		qty  float64
	)

	switch order.Signal.Type {
	case types.SignalTypeBuy:
		side = types.SideBuy

		switch {
		case pos.IsShort():
			qty = e.closingQuantity(pos, order.Signal.Quantity)
		case pos.IsFlat():
			qty = e.openingQuantity(order)
		default:
			return nil, nil
		}
	case types.SignalTypeSell:
		side = types.SideSell

		switch {
		case pos.IsLong():
			qty = e.closingQuantity(pos, order.Signal.Quantity)
		case pos.IsFlat() && e.config.AllowShort:
			qty = e.openingQuantity(order)
		default:
			return nil, nil
		}
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameters, "unknown signal type %q", order.Signal.Type)
	}

	if qty <= 0 {
		e.logger.Debug("Order quantity rounds to zero, skipping",
			zap.String("symbol", order.Symbol),
			zap.String("signal", string(order.Signal.Type)),
			zap.Float64("price", order.Price),
		)

		return nil, nil
	}

	trade, err := e.fill(order.Symbol, side, qty, order.Price, order.Time, reason)
	if err != nil {
		return nil, err
	}

	return []types.Trade{trade}, nil
}

// ClosePosition implements TradingSystem. The bool is false when already flat.
func (e *Executor) ClosePosition(symbol string, price float64, at time.Time, reason string) (types.Trade, bool, error) {
	pos := e.ledger.Position(symbol)
	if pos.IsFlat() {
		return types.Trade{}, false, nil
	}

	side := types.SideSell
	if pos.IsShort() {
		side = types.SideBuy
	}

	trade, err := e.fill(symbol, side, pos.Exposure(), price, at, reason)
	if err != nil {
		return types.Trade{}, false, err
	}

	return trade, true, nil
}

func (e *Executor) closingQuantity(pos types.Position, requested float64) float64 {
	if requested > 0 {
		return math.Min(requested, pos.Exposure())
	}

	return pos.Exposure()
}

func (e *Executor) openingQuantity(order Order) float64 {
	if order.Signal.Quantity > 0 {
		return utils.RoundToDecimalPrecision(order.Signal.Quantity, e.config.DecimalPrecision)
	}

	marks := order.Marks
	if marks == nil {
		marks = map[string]float64{order.Symbol: order.Price}
	}

	qty := utils.CalculateOrderQuantityByPercentage(
		e.ledger.Equity(marks),
		e.ledger.Cash(),
		order.Price,
		e.config.Commission,
		order.PositionSize,
	)

	return utils.RoundToDecimalPrecision(qty, e.config.DecimalPrecision)
}

func (e *Executor) fill(symbol string, side types.Side, qty, price float64, at time.Time, reason string) (types.Trade, error) {
	e.seq++

	trade := types.Trade{
		ID:         uuid.NewSHA1(e.idSpace, []byte(strconv.Itoa(e.seq))).String(),
		Timestamp:  at,
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		Fee:        e.config.Commission.Calculate(qty, price),
		StrategyID: e.strategyID,
		Reason:     reason,
	}

	booked, err := e.ledger.ApplyFill(trade)
	if err != nil {
		return types.Trade{}, errors.Wrapf(errors.ErrCodeFillRejected, err, "fill rejected for %s", symbol)
	}

	e.logger.Debug("Filled order",
		zap.String("id", booked.ID),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("quantity", qty),
		zap.Float64("price", price),
		zap.Float64("realized_pnl", booked.RealizedPnL),
		zap.String("reason", reason),
	)

	return booked, nil
}
