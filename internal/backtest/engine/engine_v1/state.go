package engine

import (
	"time"

	"github.com/google/uuid"
	engine_types "github.com/rxtech-lab/argo-quant/internal/backtest/engine"
	"github.com/rxtech-lab/argo-quant/internal/ledger"
	"github.com/rxtech-lab/argo-quant/internal/logger"
	"github.com/rxtech-lab/argo-quant/internal/trading"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"go.uber.org/zap"
)

var allowedTransitions = map[engine_types.RunStatus][]engine_types.RunStatus{
	engine_types.RunStatusInitialized: {engine_types.RunStatusRunning, engine_types.RunStatusFailed},
	engine_types.RunStatusRunning:     {engine_types.RunStatusCompleted, engine_types.RunStatusFailed},
}

// BacktestState is everything one run owns: its ledger, executor, equity
// curve and status. It is never shared between runs.
type BacktestState struct {
	runID    string
	status   engine_types.RunStatus
	ledger   *ledger.Ledger
	executor *trading.Executor
	curve    types.EquityCurve
	// pending holds a signal waiting for the next bar's open
	pending *types.Signal
	logger  *logger.Logger
}

func NewBacktestState(runID uuid.UUID, strategyID string, initialCash float64, config trading.ExecutorConfig, log *logger.Logger) *BacktestState {
	l := ledger.New(initialCash)

	return &BacktestState{
		runID:    runID.String(),
		status:   engine_types.RunStatusInitialized,
		ledger:   l,
		executor: trading.NewExecutor(l, strategyID, runID, config, log),
		logger:   log,
	}
}

func (s *BacktestState) Status() engine_types.RunStatus {
	return s.status
}

// Transition moves the run to next. Terminal states never change.
func (s *BacktestState) Transition(next engine_types.RunStatus) error {
	for _, allowed := range allowedTransitions[s.status] {
		if allowed == next {
			s.logger.Debug("Run state changed",
				zap.String("run_id", s.runID),
				zap.String("from", string(s.status)),
				zap.String("to", string(next)),
			)
			s.status = next

			return nil
		}
	}

	return errors.Newf(errors.ErrCodeInvalidStateChange, "run %s cannot move from %s to %s", s.runID, s.status, next)
}

// Record appends the mark-to-market equity for the bar at t.
func (s *BacktestState) Record(t time.Time, marks map[string]float64) {
	s.curve = append(s.curve, types.EquityPoint{Timestamp: t, TotalEquity: s.ledger.Equity(marks)})
}

// Remark replaces the equity of the latest point, used after the final close.
func (s *BacktestState) Remark(marks map[string]float64) {
	if len(s.curve) == 0 {
		return
	}

	s.curve[len(s.curve)-1].TotalEquity = s.ledger.Equity(marks)
}

func (s *BacktestState) Curve() types.EquityCurve {
	return s.curve
}

func (s *BacktestState) Trades() []types.Trade {
	return s.ledger.Trades()
}

func (s *BacktestState) TotalFees() float64 {
	return s.ledger.TotalFees()
}

func (s *BacktestState) InitialCash() float64 {
	return s.ledger.InitialCash()
}
