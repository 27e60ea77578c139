package trading

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-quant/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/argo-quant/internal/ledger"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ExecutorTestSuite struct {
	suite.Suite
	ledger   *ledger.Ledger
	executor *Executor
	now      time.Time
}

func TestExecutorSuite(t *testing.T) {
	suite.Run(t, new(ExecutorTestSuite))
}

func (suite *ExecutorTestSuite) SetupTest() {
	suite.ledger = ledger.New(10000)
	suite.executor = NewExecutor(suite.ledger, "ma", uuid.NameSpaceOID, ExecutorConfig{DecimalPrecision: 4}, nil)
	suite.now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *ExecutorTestSuite) order(signal types.Signal, price float64) Order {
	return Order{Symbol: "BTCUSDT", Signal: signal, Price: price, Time: suite.now, PositionSize: 0.1}
}

func (suite *ExecutorTestSuite) TestBuyWhenFlatSizesFromEquity() {
	trades, err := suite.executor.PlaceOrder(suite.order(types.Buy(""), 300))
	suite.Require().NoError(err)
	suite.Require().Len(trades, 1)

	// 10% of 10000 at 300 = 3.3333 after flooring to 4 decimals
	suite.Equal(3.3333, trades[0].Quantity)
	suite.Equal(types.SideBuy, trades[0].Side)
	suite.Equal(types.TradeReasonStrategy, trades[0].Reason)
	suite.Equal("ma", trades[0].StrategyID)
	suite.NotEmpty(trades[0].ID)
}

func (suite *ExecutorTestSuite) TestBuySizeIsCappedByCash() {
	_, err := suite.executor.PlaceOrder(Order{Symbol: "ETHUSDT", Signal: types.Buy(""), Price: 100, Time: suite.now, PositionSize: 0.6})
	suite.Require().NoError(err)
	suite.InDelta(4000.0, suite.ledger.Cash(), 1e-9)

	trades, err := suite.executor.PlaceOrder(Order{
		Symbol:       "BTCUSDT",
		Signal:       types.Buy(""),
		Price:        100,
		Time:         suite.now,
		PositionSize: 0.8,
		Marks:        map[string]float64{"ETHUSDT": 100, "BTCUSDT": 100},
	})
	suite.Require().NoError(err)
	suite.Require().Len(trades, 1)

	// 80% of 10000 equity wants 80 units, only 4000 cash is left
	suite.Equal(40.0, trades[0].Quantity)
	suite.InDelta(0.0, suite.ledger.Cash(), 1e-9)
}

func (suite *ExecutorTestSuite) TestBuyWhenLongIsIgnored() {
	_, err := suite.executor.PlaceOrder(suite.order(types.Buy(""), 100))
	suite.Require().NoError(err)

	trades, err := suite.executor.PlaceOrder(suite.order(types.Buy(""), 100))
	suite.NoError(err)
	suite.Empty(trades)
}

func (suite *ExecutorTestSuite) TestSellClosesWholeLong() {
	_, err := suite.executor.PlaceOrder(suite.order(types.Buy(""), 100))
	suite.Require().NoError(err)

	trades, err := suite.executor.PlaceOrder(suite.order(types.Sell("exit"), 110))
	suite.Require().NoError(err)
	suite.Require().Len(trades, 1)
	suite.Equal(10.0, trades[0].Quantity)
	suite.InDelta(100.0, trades[0].RealizedPnL, 1e-9)
	suite.Equal("exit", trades[0].Reason)
	suite.True(suite.executor.GetPosition("BTCUSDT").IsFlat())
}

func (suite *ExecutorTestSuite) TestSellWhenFlatWithoutShorting() {
	trades, err := suite.executor.PlaceOrder(suite.order(types.Sell(""), 100))
	suite.NoError(err)
	suite.Empty(trades)
}

func (suite *ExecutorTestSuite) TestShortThenCover() {
	executor := NewExecutor(suite.ledger, "rsi", uuid.NameSpaceOID, ExecutorConfig{DecimalPrecision: 4, AllowShort: true}, nil)

	trades, err := executor.PlaceOrder(suite.order(types.Sell(""), 100))
	suite.Require().NoError(err)
	suite.Require().Len(trades, 1)
	suite.True(executor.GetPosition("BTCUSDT").IsShort())

	trades, err = executor.PlaceOrder(suite.order(types.Buy(""), 90))
	suite.Require().NoError(err)
	suite.Require().Len(trades, 1)
	suite.InDelta(100.0, trades[0].RealizedPnL, 1e-9)
	suite.True(executor.GetPosition("BTCUSDT").IsFlat())
}

func (suite *ExecutorTestSuite) TestExplicitQuantity() {
	signal := types.Buy("")
	signal.Quantity = 2.5
	_, err := suite.executor.PlaceOrder(suite.order(signal, 100))
	suite.Require().NoError(err)

	partial := types.Sell(types.TradeReasonStopLoss)
	partial.Quantity = 1
	trades, err := suite.executor.PlaceOrder(suite.order(partial, 100))
	suite.Require().NoError(err)
	suite.Equal(1.0, trades[0].Quantity)
	suite.InDelta(1.5, suite.executor.GetPosition("BTCUSDT").Quantity, 1e-12)

	// more than held is capped
	partial.Quantity = 10
	trades, err = suite.executor.PlaceOrder(suite.order(partial, 100))
	suite.Require().NoError(err)
	suite.InDelta(1.5, trades[0].Quantity, 1e-12)
}

func (suite *ExecutorTestSuite) TestFeesAreCharged() {
	executor := NewExecutor(suite.ledger, "ma", uuid.NameSpaceOID, ExecutorConfig{
		Commission:       commission_fee.NewPercentageCommissionFee(0.001),
		DecimalPrecision: 4,
	}, nil)

	trades, err := executor.PlaceOrder(suite.order(types.Buy(""), 100))
	suite.Require().NoError(err)
	suite.Require().Len(trades, 1)
	suite.Greater(trades[0].Fee, 0.0)
	suite.LessOrEqual(trades[0].Quantity*100+trades[0].Fee, 1000.0)
}

func (suite *ExecutorTestSuite) TestClosePosition() {
	_, ok, err := suite.executor.ClosePosition("BTCUSDT", 100, suite.now, types.TradeReasonFinalClose)
	suite.NoError(err)
	suite.False(ok)

	_, err = suite.executor.PlaceOrder(suite.order(types.Buy(""), 100))
	suite.Require().NoError(err)

	trade, ok, err := suite.executor.ClosePosition("BTCUSDT", 120, suite.now, types.TradeReasonFinalClose)
	suite.NoError(err)
	suite.True(ok)
	suite.Equal(types.TradeReasonFinalClose, trade.Reason)
	suite.InDelta(200.0, trade.RealizedPnL, 1e-9)
}

func (suite *ExecutorTestSuite) TestInvalidOrder() {
	_, err := suite.executor.PlaceOrder(Order{Symbol: "BTCUSDT", Signal: types.Buy(""), Price: 0, Time: suite.now})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameters))

	trades, err := suite.executor.PlaceOrder(Order{Signal: types.Hold()})
	suite.NoError(err)
	suite.Empty(trades)
}

func (suite *ExecutorTestSuite) TestTradeIDsAreDeterministic() {
	other := NewExecutor(ledger.New(10000), "ma", uuid.NameSpaceOID, ExecutorConfig{DecimalPrecision: 4}, nil)

	first, err := suite.executor.PlaceOrder(suite.order(types.Buy(""), 100))
	suite.Require().NoError(err)
	second, err := other.PlaceOrder(suite.order(types.Buy(""), 100))
	suite.Require().NoError(err)

	suite.Equal(first[0].ID, second[0].ID)
}
