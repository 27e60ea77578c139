package types

import (
	"encoding/json"
	"time"

	"github.com/moznion/go-optional"
)

// ProfitFactorNoLosses is reported when there are winning trades but no losing
// ones, in place of an infinite ratio.
const ProfitFactorNoLosses = 1e9

type EquityPoint struct {
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	TotalEquity float64   `json:"total_equity" yaml:"total_equity"`
}

// EquityCurve holds one point per processed bar.
type EquityCurve []EquityPoint

func (c EquityCurve) Values() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.TotalEquity
	}

	return out
}

// Returns are the simple period returns between consecutive points. A period
// starting from zero equity contributes 0.
func (c EquityCurve) Returns() []float64 {
	if len(c) < 2 {
		return nil
	}

	out := make([]float64, len(c)-1)
	for i := 1; i < len(c); i++ {
		prev := c[i-1].TotalEquity
		if prev == 0 {
			continue
		}

		out[i-1] = c[i].TotalEquity/prev - 1
	}

	return out
}

// Last returns the most recent equity value, or 0 for an empty curve.
func (c EquityCurve) Last() float64 {
	if len(c) == 0 {
		return 0
	}

	return c[len(c)-1].TotalEquity
}

// BacktestResult holds derived statistics of a single run. Ratios are fractions, never percentages.
type BacktestResult struct {
	RunID          string      `json:"run_id" yaml:"run_id"`
	Symbol         string      `json:"symbol" yaml:"symbol"`
	StrategyID     string      `json:"strategy_id" yaml:"strategy_id"`
	InitialCash    float64     `json:"initial_cash" yaml:"initial_cash"`
	FinalEquity    float64     `json:"final_equity" yaml:"final_equity"`
	StartTime      time.Time   `json:"start_time" yaml:"start_time"`
	EndTime        time.Time   `json:"end_time" yaml:"end_time"`
	TotalReturn    float64     `json:"total_return" yaml:"total_return"`
	AnnualReturn   float64     `json:"annual_return" yaml:"annual_return"`
	MaxDrawdown    float64     `json:"max_drawdown" yaml:"max_drawdown"`
	SharpeRatio    float64     `json:"sharpe_ratio" yaml:"sharpe_ratio"`
	WinRate        float64     `json:"win_rate" yaml:"win_rate"`
	ProfitFactor   float64     `json:"profit_factor" yaml:"profit_factor"`
	AvgTradeReturn float64     `json:"avg_trade_return" yaml:"avg_trade_return"`
	TotalTrades    int         `json:"total_trades" yaml:"total_trades"`
	TotalFees      float64     `json:"total_fees" yaml:"total_fees"`
	Volatility     float64     `json:"volatility" yaml:"volatility"`
	CalmarRatio    float64     `json:"calmar_ratio" yaml:"calmar_ratio"`
	Trades         []Trade     `json:"trades" yaml:"-"`
	EquityCurve    EquityCurve `json:"equity_curve" yaml:"-"`
}

// RiskMetrics summarises an equity curve. Beta is None without a benchmark or
// when it can't be estimated.
type RiskMetrics struct {
	SharpeRatio float64                  `json:"sharpe_ratio"`
	MaxDrawdown float64                  `json:"max_drawdown"`
	VaR95       float64                  `json:"var_95"`
	Beta        optional.Option[float64] `json:"beta"`
	Volatility  float64                  `json:"volatility"`
	WinRate     float64                  `json:"win_rate"`
}

type riskMetricsJSON struct {
	SharpeRatio float64  `json:"sharpe_ratio"`
	MaxDrawdown float64  `json:"max_drawdown"`
	VaR95       float64  `json:"var_95"`
	Beta        *float64 `json:"beta"`
	Volatility  float64  `json:"volatility"`
	WinRate     float64  `json:"win_rate"`
}

// MarshalJSON renders a missing beta as null.
func (m RiskMetrics) MarshalJSON() ([]byte, error) {
	aux := riskMetricsJSON{
		SharpeRatio: m.SharpeRatio,
		MaxDrawdown: m.MaxDrawdown,
		VaR95:       m.VaR95,
		Volatility:  m.Volatility,
		WinRate:     m.WinRate,
	}

	if m.Beta.IsSome() {
		beta := m.Beta.Unwrap()
		aux.Beta = &beta
	}

	return json.Marshal(aux)
}

func (m *RiskMetrics) UnmarshalJSON(data []byte) error {
	var aux riskMetricsJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*m = RiskMetrics{
		SharpeRatio: aux.SharpeRatio,
		MaxDrawdown: aux.MaxDrawdown,
		VaR95:       aux.VaR95,
		Volatility:  aux.Volatility,
		WinRate:     aux.WinRate,
		Beta:        optional.None[float64](),
	}

	if aux.Beta != nil {
		m.Beta = optional.Some(*aux.Beta)
	}

	return nil
}
