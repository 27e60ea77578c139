package ml

import (
	"encoding/json"
	"math"
	"os"

	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

// LogisticModel is a logistic regression over the feature vector giving the
// probability that the next bar closes higher.
type LogisticModel struct {
	Weights     []float64 `json:"weights"`
	Bias        float64   `json:"bias"`
	NumFeatures int       `json:"num_features"`
	// NeutralBand is the half-width around 0.5 treated as flat.
	NeutralBand float64 `json:"neutral_band"`
}

// LoadLogisticModel reads a JSON model file.
func LoadLogisticModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeModelLoadFailed, err, "failed to read model file %s", path)
	}

	var model LogisticModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeModelLoadFailed, err, "failed to unmarshal model %s", path)
	}

	if model.NumFeatures == 0 {
		model.NumFeatures = len(model.Weights)
	}

	if len(model.Weights) != model.NumFeatures {
		return nil, errors.Newf(errors.ErrCodeModelLoadFailed, "model %s has %d weights for %d features", path, len(model.Weights), model.NumFeatures)
	}

	return &model, nil
}

// Save writes the model as indented JSON.
func (m *LogisticModel) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to marshal model", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Probability returns P(up) for the features.
func (m *LogisticModel) Probability(features []float64) (float64, error) {
	if len(features) != m.NumFeatures {
		return 0, errors.Newf(errors.ErrCodePredictionFailed, "feature count mismatch: expected %d, got %d", m.NumFeatures, len(features))
	}

	z := m.Bias
	for i, f := range features {
		z += m.Weights[i] * f
	}

	return sigmoid(z), nil
}

// Predict implements Predictor. Confidence is the probability of the chosen side.
func (m *LogisticModel) Predict(features []float64) (Prediction, error) {
	p, err := m.Probability(features)
	if err != nil {
		return Prediction{}, err
	}

	switch {
	case p > 0.5+m.NeutralBand:
		return Prediction{Direction: DirectionUp, Confidence: p}, nil
	case p < 0.5-m.NeutralBand:
		return Prediction{Direction: DirectionDown, Confidence: 1 - p}, nil
	default:
		return Prediction{Direction: DirectionFlat, Confidence: 1 - math.Abs(p-0.5)*2}, nil
	}
}

// sigmoid function: 1 / (1 + e^(-z))
func sigmoid(z float64) float64 {
	// Clamp z to prevent overflow
	if z > 20 {
		return 1.0
	}

	if z < -20 {
		return 0.0
	}

	return 1.0 / (1.0 + math.Exp(-z))
}
