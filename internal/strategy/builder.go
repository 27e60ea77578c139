package strategy

import (
	"path/filepath"
	"strings"

	"github.com/rxtech-lab/argo-quant/internal/strategy/ml"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

const (
	ModelTypeLogistic = "logistic"
	ModelTypeONNX     = "onnx"
)

type options struct {
	predictor ml.Predictor
	noGuard   bool
}

type Option func(*options)

// WithPredictor supplies the model for an ML strategy, taking precedence over ModelPath.
func WithPredictor(p ml.Predictor) Option {
	return func(o *options) {
		o.predictor = p
	}
}

// WithoutRiskGuard returns the bare strategy without stop-loss/take-profit exits.
func WithoutRiskGuard() Option {
	return func(o *options) {
		o.noGuard = true
	}
}

// New builds a strategy from its configuration. Parameters missing from
// cfg.Parameters take their defaults. The result is wrapped in a risk Guard
// unless WithoutRiskGuard is given.
func New(cfg types.StrategyConfig, opts ...Option) (Strategy, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	id := string(cfg.StrategyType)
	if cfg.Symbol != "" {
		id = cfg.Key().String()
	}

	var (
		s   Strategy
		err error
	)

	switch cfg.StrategyType {
	case types.StrategyTypeMA:
		var params MAParams
		if params, err = decodeParameters(defaultMAParams(), cfg.Parameters); err == nil {
			s = NewMovingAverage(id, params)
		}
	case types.StrategyTypeRSI:
		var params RSIParams
		if params, err = decodeParameters(defaultRSIParams(), cfg.Parameters); err == nil {
			s = NewRSIThreshold(id, params)
		}
	case types.StrategyTypeML:
		var params MLParams
		if params, err = decodeParameters(defaultMLParams(), cfg.Parameters); err == nil {
			predictor := o.predictor
			if predictor == nil {
				predictor, err = loadPredictor(cfg)
			}

			if err == nil {
				s = NewMachineLearning(id, params, predictor)
			}
		}
	case types.StrategyTypeChanlun:
		var params ChanlunParams
		if params, err = decodeParameters(defaultChanlunParams(), cfg.Parameters); err == nil {
			s = NewChanlun(id, params)
		}
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy type %q", cfg.StrategyType)
	}

	if err != nil {
		return nil, err
	}

	if o.noGuard {
		return s, nil
	}

	return WithRiskGuard(s), nil
}

// loadPredictor opens the model named by cfg. No model path means no predictor,
// whatever the model type.
func loadPredictor(cfg types.StrategyConfig) (ml.Predictor, error) {
	if cfg.ModelPath == "" {
		return nil, nil
	}

	modelType := strings.ToLower(cfg.ModelType)
	if modelType == "" {
		switch strings.ToLower(filepath.Ext(cfg.ModelPath)) {
		case ".onnx":
			modelType = ModelTypeONNX
		default:
			modelType = ModelTypeLogistic
		}
	}

	switch modelType {
	case ModelTypeLogistic:
		model, err := ml.LoadLogisticModel(cfg.ModelPath)
		if err != nil {
			return nil, err
		}

		return model, nil
	case ModelTypeONNX:
		model, err := ml.NewONNXPredictor(cfg.ModelPath, ml.NumFeatures)
		if err != nil {
			return nil, err
		}

		return model, nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedStrategy, "model type %q has no predictor", cfg.ModelType)
	}
}
