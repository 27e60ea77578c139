package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

// LineValue is the line name used by single-output indicators.
const LineValue = "value"

// Lines maps an output name (e.g. "upper", "histogram") to a series aligned with the input bars.
type Lines map[string][]float64

// Indicator interface defines methods that any technical indicator must implement
type Indicator interface {
	// Name returns the name of the indicator
	Name() types.IndicatorType
	// Config applies positional parameters, e.g. Config(14) for a 14-period RSI
	Config(params ...any) error
	// Warmup is the number of leading bars whose values are undefined
	Warmup() int
	// Compute evaluates every line over the whole series
	Compute(series types.MarketSeries) (Lines, error)
}

// intParam reads an int parameter. Whole float64 values are accepted because
// strategy parameters are stored as float64.
func intParam(params []any, idx int, name string) (int, error) {
	var value int

	switch v := params[idx].(type) {
	case int:
		value = v
	case float64:
		if v != math.Trunc(v) {
			return 0, errors.Newf(errors.ErrCodeInvalidType, "invalid value for %s parameter, expected a whole number, got %v", name, v)
		}

		value = int(v)
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidType, "invalid type for %s parameter, expected int", name)
	}

	if value <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "%s must be a positive integer, got %d", name, value)
	}

	return value, nil
}

func floatParam(params []any, idx int, name string) (float64, error) {
	switch v := params[idx].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidType, "invalid type for %s parameter, expected float64", name)
	}
}
