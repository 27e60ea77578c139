package indicator

import (
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

// EMA represents the Exponential Moving Average indicator.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator with default configuration.
func NewEMA() Indicator {
	return &EMA{period: 20}
}

func (e *EMA) Name() types.IndicatorType {
	return types.IndicatorTypeEMA
}

// Config configures the EMA indicator. Expected parameters: period (int).
func (e *EMA) Config(params ...any) error {
	if len(params) != 1 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 1 parameter: period (int)")
	}

	period, err := intParam(params, 0, "period")
	if err != nil {
		return err
	}

	e.period = period

	return nil
}

func (e *EMA) Warmup() int {
	return e.period - 1
}

func (e *EMA) Compute(series types.MarketSeries) (Lines, error) {
	return Lines{LineValue: CalculateEMA(series.Closes(), e.period)}, nil
}
