package strategy

import (
	"bytes"
	"encoding/json"
	"maps"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	strategyschema "github.com/rxtech-lab/argo-quant/pkg/strategy"
)

var validate = validator.New()

// MAParams configure the moving-average crossover.
type MAParams struct {
	ShortWindow int `json:"short_window" jsonschema:"title=Short Window,minimum=1,default=10" validate:"gt=0"`
	LongWindow  int `json:"long_window" jsonschema:"title=Long Window,minimum=2,default=30" validate:"gtfield=ShortWindow"`
	RiskParams
}

// RSIParams configure the RSI threshold-cross strategy.
type RSIParams struct {
	RSIPeriod  int     `json:"rsi_period" jsonschema:"title=RSI Period,minimum=1,default=14" validate:"gt=0"`
	Oversold   float64 `json:"oversold" jsonschema:"title=Oversold,exclusiveMinimum=0,exclusiveMaximum=100,default=30" validate:"gt=0"`
	Overbought float64 `json:"overbought" jsonschema:"title=Overbought,exclusiveMinimum=0,exclusiveMaximum=100,default=70" validate:"gtfield=Oversold,lt=100"`
	RiskParams
}

// MLParams configure the model-driven strategy.
type MLParams struct {
	LookbackPeriod int     `json:"lookback_period" jsonschema:"title=Lookback Period,minimum=2,default=20" validate:"gte=2"`
	MinConfidence  float64 `json:"min_confidence" jsonschema:"title=Minimum Confidence,minimum=0,maximum=1,default=0.5" validate:"gte=0,lte=1"`
	RiskParams
}

// ChanlunParams configure the fractal/stroke strategy.
type ChanlunParams struct {
	MinSwingLength int `json:"min_swing_length" jsonschema:"title=Minimum Swing Length,description=Bars between alternating pivots,minimum=1,default=3" validate:"gt=0"`
	FractalWindow  int `json:"fractal_window" jsonschema:"title=Fractal Window,description=Bars on each side that a pivot must exceed,minimum=1,default=2" validate:"gt=0"`
	MACDFast       int `json:"macd_fast" jsonschema:"title=MACD Fast,minimum=1,default=12" validate:"gt=0"`
	MACDSlow       int `json:"macd_slow" jsonschema:"title=MACD Slow,minimum=2,default=26" validate:"gtfield=MACDFast"`
	MACDSignal     int `json:"macd_signal" jsonschema:"title=MACD Signal,minimum=1,default=9" validate:"gt=0"`
	RiskParams
}

var defaultRisk = RiskParams{PositionSize: 0.1, StopLoss: 0.02, TakeProfit: 0.05}

func defaultMAParams() MAParams {
	return MAParams{ShortWindow: 10, LongWindow: 30, RiskParams: defaultRisk}
}

func defaultRSIParams() RSIParams {
	return RSIParams{RSIPeriod: 14, Oversold: 30, Overbought: 70, RiskParams: defaultRisk}
}

func defaultMLParams() MLParams {
	return MLParams{LookbackPeriod: 20, MinConfidence: 0.5, RiskParams: defaultRisk}
}

func defaultChanlunParams() ChanlunParams {
	return ChanlunParams{
		MinSwingLength: 3,
		FractalWindow:  2,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		RiskParams:     RiskParams{PositionSize: 0.3, StopLoss: 0.03, TakeProfit: 0.05},
	}
}

func defaultsFor(t types.StrategyType) (any, error) {
	switch t {
	case types.StrategyTypeMA:
		return defaultMAParams(), nil
	case types.StrategyTypeRSI:
		return defaultRSIParams(), nil
	case types.StrategyTypeML:
		return defaultMLParams(), nil
	case types.StrategyTypeChanlun:
		return defaultChanlunParams(), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy type %q", t)
	}
}

// KnownTypes lists the strategy types New can build.
func KnownTypes() []types.StrategyType {
	return append([]types.StrategyType(nil), types.AllStrategyTypes...)
}

// DefaultParameters returns the full default parameter map for a strategy type.
func DefaultParameters(t types.StrategyType) (map[string]float64, error) {
	defaults, err := defaultsFor(t)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(defaults)
	if err != nil {
		return nil, err
	}

	var out map[string]float64
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// ParameterSchema returns the JSON schema of a strategy type's parameters.
func ParameterSchema(t types.StrategyType) (string, error) {
	defaults, err := defaultsFor(t)
	if err != nil {
		return "", err
	}

	return strategyschema.ToJSONSchema(defaults)
}

// decodeParameters overlays params on defaults and validates the result.
// Unknown names, fractional values for integer parameters and failed
// constraints are all InvalidParameters.
func decodeParameters[T any](defaults T, params map[string]float64) (T, error) {
	out := defaults

	for name, value := range params {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return out, errors.Newf(errors.ErrCodeInvalidParameters, "parameter %s is not a finite number", name)
		}
	}

	if len(params) > 0 {
		data, err := json.Marshal(maps.Clone(params))
		if err != nil {
			return out, errors.Wrap(errors.ErrCodeInvalidParameters, "failed to encode parameters", err)
		}

		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()

		if err := decoder.Decode(&out); err != nil {
			return defaults, errors.Wrap(errors.ErrCodeInvalidParameters, "invalid strategy parameters", err)
		}
	}

	if err := validate.Struct(out); err != nil {
		return defaults, errors.Wrap(errors.ErrCodeInvalidParameters, "invalid strategy parameters", err)
	}

	return out, nil
}
