package ml

import (
	"os"
	"runtime"
	"sync"

	"github.com/rxtech-lab/argo-quant/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// SharedLibraryEnv overrides the onnxruntime shared library location.
const SharedLibraryEnv = "ONNXRUNTIME_LIB"

var (
	ortOnce sync.Once
	ortErr  error
)

func defaultLibraryPath() string {
	if path := os.Getenv(SharedLibraryEnv); path != "" {
		return path
	}

	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "/usr/lib/libonnxruntime.so"
	}
}

// InitializeORT loads the onnxruntime library once per process.
func InitializeORT() error {
	ortOnce.Do(func() {
		ort.SetSharedLibraryPath(defaultLibraryPath())
		ortErr = ort.InitializeEnvironment()
	})

	return ortErr
}

// ONNXPredictor runs a classifier exported to ONNX. The model takes a
// (1, NumFeatures) float32 "input" and returns (1, 3) "output" probabilities
// ordered down, flat, up.
type ONNXPredictor struct {
	mu          sync.Mutex
	session     *ort.AdvancedSession
	input       *ort.Tensor[float32]
	output      *ort.Tensor[float32]
	numFeatures int
}

func NewONNXPredictor(modelPath string, numFeatures int) (*ONNXPredictor, error) {
	if err := InitializeORT(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeModelLoadFailed, "failed to initialize onnxruntime", err)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(numFeatures)), make([]float32, numFeatures))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeModelLoadFailed, "failed to create input tensor", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3))
	if err != nil {
		inputTensor.Destroy()

		return nil, errors.Wrap(errors.ErrCodeModelLoadFailed, "failed to create output tensor", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()

		return nil, errors.Wrapf(errors.ErrCodeModelLoadFailed, err, "failed to create session for %s", modelPath)
	}

	return &ONNXPredictor{
		session:     session,
		input:       inputTensor,
		output:      outputTensor,
		numFeatures: numFeatures,
	}, nil
}

// Predict implements Predictor. Calls are serialized because the tensors are reused.
func (p *ONNXPredictor) Predict(features []float64) (Prediction, error) {
	if len(features) != p.numFeatures {
		return Prediction{}, errors.Newf(errors.ErrCodePredictionFailed, "feature count mismatch: expected %d, got %d", p.numFeatures, len(features))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	data := p.input.GetData()
	for i, f := range features {
		data[i] = float32(f)
	}

	if err := p.session.Run(); err != nil {
		return Prediction{}, errors.Wrap(errors.ErrCodePredictionFailed, "inference failed", err)
	}

	return predictionFromProbabilities(p.output.GetData()), nil
}

func predictionFromProbabilities(probs []float32) Prediction {
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	return Prediction{
		Direction:  Direction(best - 1),
		Confidence: float64(probs[best]),
	}
}

func (p *ONNXPredictor) Close() {
	if p.session != nil {
		p.session.Destroy()
	}

	if p.input != nil {
		p.input.Destroy()
	}

	if p.output != nil {
		p.output.Destroy()
	}
}
