package indicator

import (
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

const (
	LineUpper  = "upper"
	LineMiddle = "middle"
	LineLower  = "lower"
)

// BollingerBands represents the Bollinger Bands indicator.
type BollingerBands struct {
	period     int
	multiplier float64
}

// NewBollingerBands creates a new Bollinger Bands indicator with default configuration.
func NewBollingerBands() Indicator {
	return &BollingerBands{
		period:     20,
		multiplier: 2.0,
	}
}

func (bb *BollingerBands) Name() types.IndicatorType {
	return types.IndicatorTypeBollingerBands
}

// Config configures the Bollinger Bands. Expected parameters: period (int), multiplier (float64).
func (bb *BollingerBands) Config(params ...any) error {
	if len(params) != 2 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 2 parameters: period (int), multiplier (float64)")
	}

	period, err := intParam(params, 0, "period")
	if err != nil {
		return err
	}

	if period < 2 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be at least 2, got %d", period)
	}

	multiplier, err := floatParam(params, 1, "multiplier")
	if err != nil {
		return err
	}

	if multiplier <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameters, "multiplier must be positive, got %v", multiplier)
	}

	bb.period = period
	bb.multiplier = multiplier

	return nil
}

func (bb *BollingerBands) Warmup() int {
	return bb.period - 1
}

func (bb *BollingerBands) Compute(series types.MarketSeries) (Lines, error) {
	upper, middle, lower := CalculateBollingerBands(series.Closes(), bb.period, bb.multiplier)

	return Lines{
		LineUpper:  upper,
		LineMiddle: middle,
		LineLower:  lower,
	}, nil
}
