// Package classifier runs the breed model on a preprocessed tensor and ranks
// the softmax distribution over Labels.
package classifier

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/SyedDaiam9101/breed-classifier/internal/inference"
	"github.com/SyedDaiam9101/breed-classifier/internal/preprocess"
)

const (
	// InputName and OutputName are the tensor names in the model graph.
	InputName  = "input"
	OutputName = "output"
	// TopK is the number of predictions kept in a Result.
	TopK = 5
)

var (
	ErrInference = errors.New("inference failed")
	ErrStartup   = errors.New("model startup failed")
)

// Classifier is safe for concurrent use; it holds no mutable state besides
// the shared engine.
type Classifier struct {
	engine inference.InferenceEngine
	shape  []int64
}

// New wraps engine and runs one warm-up inference on random normal input.
// Any failure is reported as ErrStartup.
func New(engine inference.InferenceEngine, rng *rand.Rand) (*Classifier, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: inference engine is nil", ErrStartup)
	}
	c := &Classifier{engine: engine, shape: preprocess.Shape()}

	result, err := c.Classify(WarmupTensor(rng))
	if err != nil {
		return nil, fmt.Errorf("%w: warm-up inference: %v", ErrStartup, err)
	}
	if len(result) != TopK {
		return nil, fmt.Errorf("%w: warm-up returned %d predictions", ErrStartup, len(result))
	}
	return c, nil
}

// WarmupTensor fills a model-shaped tensor with standard normal samples.
func WarmupTensor(rng *rand.Rand) *inference.Tensor {
	shape := preprocess.Shape()
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return &inference.Tensor{Shape: shape, Data: data}
}

// Classify returns the TopK labels ranked by probability.
func (c *Classifier) Classify(t *inference.Tensor) (Result, error) {
	probs, err := c.Probabilities(t)
	if err != nil {
		return nil, err
	}

	idx := TopIndices(probs, TopK)
	result := make(Result, len(idx))
	for i, j := range idx {
		result[i] = Prediction{Label: Labels[j], Probability: probs[j]}
	}
	return result, nil
}

// Probabilities returns the softmax distribution over every label, in Labels order.
func (c *Classifier) Probabilities(t *inference.Tensor) ([]float64, error) {
	if !t.HasShape(c.shape...) {
		var got []int64
		if t != nil {
			got = t.Shape
		}
		return nil, fmt.Errorf("%w: input tensor has shape %v, model requires %v", ErrInference, got, c.shape)
	}

	outputs, err := c.engine.Run([]string{OutputName}, map[string]*inference.Tensor{InputName: t})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if len(outputs) != 1 || outputs[0] == nil {
		return nil, fmt.Errorf("%w: expected 1 output, got %d", ErrInference, len(outputs))
	}

	logits := outputs[0].Data
	if len(logits) != len(Labels) {
		return nil, fmt.Errorf("%w: model returned %d logits for %d labels", ErrInference, len(logits), len(Labels))
	}
	for i, v := range logits {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("%w: logit %d is %v", ErrInference, i, v)
		}
	}

	return Softmax(logits), nil
}

// Softmax normalizes logits into probabilities, subtracting the maximum
// before exponentiating.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	peak := float64(logits[0])
	for _, v := range logits[1:] {
		if float64(v) > peak {
			peak = float64(v)
		}
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(float64(v) - peak)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// TopIndices returns the indices of the k largest probabilities, descending.
// Equal probabilities keep the lower index first.
func TopIndices(probs []float64, k int) []int {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return probs[idx[a]] > probs[idx[b]]
	})
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}
