package ledger

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type LedgerTestSuite struct {
	suite.Suite
	ledger *Ledger
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (suite *LedgerTestSuite) SetupTest() {
	suite.ledger = New(10000)
}

func fill(side types.Side, qty, price float64) types.Trade {
	return types.Trade{
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Symbol:    "BTCUSDT",
		Side:      side,
		Quantity:  qty,
		Price:     price,
	}
}

func (suite *LedgerTestSuite) apply(trade types.Trade) types.Trade {
	out, err := suite.ledger.ApplyFill(trade)
	suite.Require().NoError(err)

	return out
}

func (suite *LedgerTestSuite) TestWeightedAverageThenClose() {
	suite.apply(fill(types.SideBuy, 1, 100))
	suite.apply(fill(types.SideBuy, 1, 120))

	pos := suite.ledger.Position("BTCUSDT")
	suite.InDelta(2.0, pos.Quantity, 1e-12)
	suite.InDelta(110.0, pos.AvgEntryPrice, 1e-9)

	closing := suite.apply(fill(types.SideSell, 2, 150))
	suite.InDelta(80.0, closing.RealizedPnL, 1e-9)
	suite.InDelta(2.0, closing.ClosedQuantity, 1e-12)
	suite.InDelta(110.0, closing.EntryPrice, 1e-9)

	pos = suite.ledger.Position("BTCUSDT")
	suite.True(pos.IsFlat())
	suite.Equal(0.0, pos.AvgEntryPrice)
	suite.InDelta(80.0, suite.ledger.RealizedPnL(), 1e-9)
	suite.InDelta(10080.0, suite.ledger.Cash(), 1e-9)
	suite.Empty(suite.ledger.Positions())
}

func (suite *LedgerTestSuite) TestPartialCloseKeepsAverage() {
	suite.apply(fill(types.SideBuy, 3, 100))
	closing := suite.apply(fill(types.SideSell, 1, 110))

	suite.InDelta(10.0, closing.RealizedPnL, 1e-9)
	pos := suite.ledger.Position("BTCUSDT")
	suite.InDelta(2.0, pos.Quantity, 1e-12)
	suite.InDelta(100.0, pos.AvgEntryPrice, 1e-9)
}

func (suite *LedgerTestSuite) TestShortRealizesMirror() {
	suite.apply(fill(types.SideSell, 2, 100))
	pos := suite.ledger.Position("BTCUSDT")
	suite.True(pos.IsShort())
	suite.InDelta(100.0, pos.AvgEntryPrice, 1e-9)

	cover := suite.apply(fill(types.SideBuy, 1, 90))
	suite.InDelta(10.0, cover.RealizedPnL, 1e-9)
	suite.InDelta(-10.0, suite.ledger.UnrealizedPnL(map[string]float64{"BTCUSDT": 110}), 1e-9)
}

func (suite *LedgerTestSuite) TestFlipOpensRemainderAtFillPrice() {
	suite.apply(fill(types.SideBuy, 1, 100))
	flip := suite.apply(fill(types.SideSell, 3, 90))

	suite.InDelta(-10.0, flip.RealizedPnL, 1e-9)
	suite.InDelta(1.0, flip.ClosedQuantity, 1e-12)

	pos := suite.ledger.Position("BTCUSDT")
	suite.InDelta(-2.0, pos.Quantity, 1e-12)
	suite.InDelta(90.0, pos.AvgEntryPrice, 1e-9)
}

func (suite *LedgerTestSuite) TestFeesReduceCashOnBothSides() {
	buy := fill(types.SideBuy, 1, 100)
	buy.Fee = 1
	sell := fill(types.SideSell, 1, 100)
	sell.Fee = 2

	suite.apply(buy)
	suite.apply(sell)

	suite.InDelta(9997.0, suite.ledger.Cash(), 1e-9)
	suite.InDelta(3.0, suite.ledger.TotalFees(), 1e-9)
	suite.InDelta(0.0, suite.ledger.RealizedPnL(), 1e-9)
	suite.Len(suite.ledger.Trades(), 2)
}

func (suite *LedgerTestSuite) TestRejectsInvalidFills() {
	tests := []struct {
		name  string
		trade types.Trade
	}{
		{name: "zero quantity", trade: fill(types.SideBuy, 0, 100)},
		{name: "negative quantity", trade: fill(types.SideBuy, -1, 100)},
		{name: "zero price", trade: fill(types.SideSell, 1, 0)},
		{name: "bad side", trade: fill(types.Side("HOLD"), 1, 100)},
		{name: "missing symbol", trade: types.Trade{Side: types.SideBuy, Quantity: 1, Price: 1}},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := suite.ledger.ApplyFill(tc.trade)
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameters))
		})
	}

	suite.Equal(10000.0, suite.ledger.Cash())
	suite.Empty(suite.ledger.Trades())
}

func (suite *LedgerTestSuite) TestEquityUsesMarks() {
	suite.apply(fill(types.SideBuy, 2, 100))

	suite.InDelta(10020.0, suite.ledger.Equity(map[string]float64{"BTCUSDT": 110}), 1e-9)
	// a missing mark values the position at cost
	suite.InDelta(10000.0, suite.ledger.Equity(nil), 1e-9)
	suite.Equal(10000.0, suite.ledger.InitialCash())
}

// Random fill sequences must preserve cash + Σ qty×mark = initial + realized + unrealized − fees.
func (suite *LedgerTestSuite) TestAccountingIdentityHolds() {
	rng := rand.New(rand.NewSource(42))
	symbols := []string{"BTCUSDT", "ETHUSDT"}
	marks := map[string]float64{"BTCUSDT": 100, "ETHUSDT": 50}

	for i := 0; i < 500; i++ {
		symbol := symbols[rng.Intn(len(symbols))]
		marks[symbol] *= 1 + (rng.Float64()-0.5)*0.04

		side := types.SideBuy
		if rng.Intn(2) == 0 {
			side = types.SideSell
		}

		trade := types.Trade{
			Symbol:   symbol,
			Side:     side,
			Quantity: float64(rng.Intn(5)+1) / 4,
			Price:    marks[symbol],
			Fee:      float64(rng.Intn(3)) * 0.1,
		}
		suite.apply(trade)

		lhs := suite.ledger.Equity(marks)
		rhs := suite.ledger.InitialCash() + suite.ledger.RealizedPnL() + suite.ledger.UnrealizedPnL(marks) - suite.ledger.TotalFees()
		suite.Require().InDelta(rhs, lhs, 1e-6, "step %d", i)
	}
}
