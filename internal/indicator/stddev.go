package indicator

import (
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

// StdDev is the rolling sample standard deviation of simple close-to-close returns.
type StdDev struct {
	period int
}

func NewStdDev() Indicator {
	return &StdDev{period: 20}
}

func (s *StdDev) Name() types.IndicatorType {
	return types.IndicatorTypeStdDev
}

// Config configures the StdDev indicator. Expected parameters: period (int).
func (s *StdDev) Config(params ...any) error {
	if len(params) != 1 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 1 parameter: period (int)")
	}

	period, err := intParam(params, 0, "period")
	if err != nil {
		return err
	}

	if period < 2 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be at least 2, got %d", period)
	}

	s.period = period

	return nil
}

// Warmup includes the first bar, which has no return.
func (s *StdDev) Warmup() int {
	return s.period
}

func (s *StdDev) Compute(series types.MarketSeries) (Lines, error) {
	return Lines{LineValue: CalculateStdDev(Returns(series.Closes()), s.period)}, nil
}

// Returns are simple returns aligned with values; index 0 is NaN.
func Returns(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			out[i] = values[i]/values[i-1] - 1
		}
	}

	return out
}
