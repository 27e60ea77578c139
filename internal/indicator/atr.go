package indicator

import (
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

// ATR represents the Average True Range indicator.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator with default configuration.
func NewATR() Indicator {
	return &ATR{period: 14}
}

func (a *ATR) Name() types.IndicatorType {
	return types.IndicatorTypeATR
}

// Config configures the ATR indicator. Expected parameters: period (int).
func (a *ATR) Config(params ...any) error {
	if len(params) != 1 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 1 parameter: period (int)")
	}

	period, err := intParam(params, 0, "period")
	if err != nil {
		return err
	}

	a.period = period

	return nil
}

func (a *ATR) Warmup() int {
	return a.period - 1
}

func (a *ATR) Compute(series types.MarketSeries) (Lines, error) {
	return Lines{LineValue: CalculateATR(series.Highs(), series.Lows(), series.Closes(), a.period)}, nil
}
