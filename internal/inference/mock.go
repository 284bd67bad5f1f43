// internal/inference/mock.go
package inference

import (
	"fmt"
	"sync"
)

// MockInference is a mock implementation of InferenceEngine for testing.
// It returns deterministic logits without requiring the ONNX shared library.
type MockInference struct {
	mu sync.Mutex

	// InputName is the only input the mock accepts.
	InputName string
	// OutputName is the only output the mock produces.
	OutputName string
	// Logits is returned as a [1, len(Logits)] output for every call.
	Logits []float32
	// ShouldError if true, Run will return an error
	ShouldError bool
	// ErrorMessage is the error message to return when ShouldError is true
	ErrorMessage string
	// CallCount tracks the number of times Run was called
	CallCount int
}

// DefaultMockLogits produce a distinct ranking over ten classes.
var DefaultMockLogits = []float32{2.0, 0.5, 0.1, -1.0, 1.2, 3.1, 0.0, -0.3, 0.8, 1.5}

// NewMock creates a MockInference with input "input", output "output" and
// DefaultMockLogits.
func NewMock() *MockInference {
	return NewMockWithLogits(DefaultMockLogits)
}

// NewMockWithLogits creates a MockInference returning the given logits
func NewMockWithLogits(logits []float32) *MockInference {
	return &MockInference{
		InputName:  "input",
		OutputName: "output",
		Logits:     append([]float32(nil), logits...),
	}
}

// Run validates that the expected input is present and returns the configured logits.
func (m *MockInference) Run(outputNames []string, inputs map[string]*Tensor) ([]*Tensor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++

	if m.ShouldError {
		if m.ErrorMessage != "" {
			return nil, fmt.Errorf("%s", m.ErrorMessage)
		}
		return nil, fmt.Errorf("mock inference error")
	}

	in, ok := inputs[m.InputName]
	if !ok || in == nil {
		return nil, fmt.Errorf("missing input %q", m.InputName)
	}
	if int64(len(in.Data)) != in.Elements() {
		return nil, fmt.Errorf("input %q has wrong size: got %d, expected %d", m.InputName, len(in.Data), in.Elements())
	}

	outputs := make([]*Tensor, 0, len(outputNames))
	for _, name := range outputNames {
		if name != m.OutputName {
			return nil, fmt.Errorf("unknown output %q", name)
		}
		outputs = append(outputs, &Tensor{
			Shape: []int64{1, int64(len(m.Logits))},
			Data:  append([]float32(nil), m.Logits...),
		})
	}

	return outputs, nil
}

// Calls returns the number of Run invocations so far.
func (m *MockInference) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// Close is a no-op for the mock implementation
func (m *MockInference) Close() error {
	return nil
}

// SetError configures the mock to return an error on the next Run call
func (m *MockInference) SetError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldError = true
	m.ErrorMessage = msg
}

// ClearError clears any configured error
func (m *MockInference) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldError = false
	m.ErrorMessage = ""
}

// Ensure MockInference implements InferenceEngine at compile time
var _ InferenceEngine = (*MockInference)(nil)
