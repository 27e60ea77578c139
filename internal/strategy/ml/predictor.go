// Package ml holds the prediction capability used by the ML strategy: feature
// extraction from a truncated series and the model back ends that score it.
package ml

// Direction is the predicted move of the next bar.
type Direction int

const (
	DirectionDown Direction = -1
	DirectionFlat Direction = 0
	DirectionUp   Direction = 1
)

// Prediction is a direction with a confidence in [0, 1].
type Prediction struct {
	Direction  Direction
	Confidence float64
}

// Predictor scores a feature vector. Implementations must be deterministic for
// a given model and input.
type Predictor interface {
	Predict(features []float64) (Prediction, error)
}
