package indicator

import (
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

// MA is the simple moving average of closing prices.
type MA struct {
	period int
}

// NewMA creates a new MA indicator with default configuration.
func NewMA() Indicator {
	return &MA{period: 20}
}

func (m *MA) Name() types.IndicatorType {
	return types.IndicatorTypeMA
}

// Config configures the MA indicator. Expected parameters: period (int).
func (m *MA) Config(params ...any) error {
	if len(params) != 1 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 1 parameter: period (int)")
	}

	period, err := intParam(params, 0, "period")
	if err != nil {
		return err
	}

	m.period = period

	return nil
}

func (m *MA) Warmup() int {
	return m.period - 1
}

func (m *MA) Compute(series types.MarketSeries) (Lines, error) {
	return Lines{LineValue: CalculateSMA(series.Closes(), m.period)}, nil
}
