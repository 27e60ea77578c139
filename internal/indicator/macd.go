package indicator

import (
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

const (
	LineMACD      = "macd"
	LineSignal    = "signal"
	LineHistogram = "histogram"
)

// MACD represents the Moving Average Convergence Divergence indicator.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD indicator with default configuration.
func NewMACD() Indicator {
	return &MACD{
		fastPeriod:   12, // Default fast period
		slowPeriod:   26, // Default slow period
		signalPeriod: 9,  // Default signal period
	}
}

// Name returns the name of the indicator.
func (m *MACD) Name() types.IndicatorType {
	return types.IndicatorTypeMACD
}

// Config configures the MACD indicator. Expected parameters: fastPeriod (int), slowPeriod (int), signalPeriod (int).
func (m *MACD) Config(params ...any) error {
	if len(params) != 3 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 3 parameters: fastPeriod (int), slowPeriod (int), signalPeriod (int)")
	}

	fastPeriod, err := intParam(params, 0, "fastPeriod")
	if err != nil {
		return err
	}

	slowPeriod, err := intParam(params, 1, "slowPeriod")
	if err != nil {
		return err
	}

	signalPeriod, err := intParam(params, 2, "signalPeriod")
	if err != nil {
		return err
	}

	if fastPeriod >= slowPeriod {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "fastPeriod (%d) must be less than slowPeriod (%d)", fastPeriod, slowPeriod)
	}

	m.fastPeriod = fastPeriod
	m.slowPeriod = slowPeriod
	m.signalPeriod = signalPeriod

	return nil
}

// Warmup covers the slow EMA seed plus the signal EMA seed.
func (m *MACD) Warmup() int {
	return m.slowPeriod + m.signalPeriod - 2
}

func (m *MACD) Compute(series types.MarketSeries) (Lines, error) {
	line, signal, histogram := CalculateMACD(series.Closes(), m.fastPeriod, m.slowPeriod, m.signalPeriod)

	return Lines{
		LineMACD:      line,
		LineSignal:    signal,
		LineHistogram: histogram,
	}, nil
}
