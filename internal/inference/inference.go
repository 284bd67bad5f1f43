// internal/inference/inference.go
package inference

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Options describes the named inputs and outputs of an ONNX model.
type Options struct {
	// SharedLibraryPath points at libonnxruntime; empty uses the runtime default.
	SharedLibraryPath string
	InputNames        []string
	OutputNames       []string
	// OutputShapes gives the fixed shape of every output, keyed by name.
	OutputShapes map[string][]int64
}

// Inference wraps an ONNX runtime session. ONNX runtime sessions allow
// concurrent Run calls, so the lock only guards the session against Close.
// It implements the InferenceEngine interface.
type Inference struct {
	mu      sync.RWMutex
	session *ort.DynamicAdvancedSession
	opts    Options
}

// New creates a new Inference instance by loading the ONNX model from modelPath
func New(modelPath string, opts Options) (*Inference, error) {
	if len(opts.InputNames) == 0 || len(opts.OutputNames) == 0 {
		return nil, fmt.Errorf("failed to initialize: input and output names are required")
	}
	for _, name := range opts.OutputNames {
		if _, ok := opts.OutputShapes[name]; !ok {
			return nil, fmt.Errorf("failed to initialize: no shape for output %q", name)
		}
	}

	if opts.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(opts.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		opts.InputNames,
		opts.OutputNames,
		nil, // Use default session options
	)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Inference{
		session: session,
		opts:    opts,
	}, nil
}

// Run executes the session. outputNames must match the names the session was
// created with, in order.
func (inf *Inference) Run(outputNames []string, inputs map[string]*Tensor) ([]*Tensor, error) {
	inf.mu.RLock()
	defer inf.mu.RUnlock()

	if inf.session == nil {
		return nil, fmt.Errorf("inference session is nil")
	}
	if !sameNames(outputNames, inf.opts.OutputNames) {
		return nil, fmt.Errorf("unknown outputs %v, session provides %v", outputNames, inf.opts.OutputNames)
	}

	inputValues := make([]ort.ArbitraryTensor, 0, len(inf.opts.InputNames))
	for _, name := range inf.opts.InputNames {
		in, ok := inputs[name]
		if !ok || in == nil {
			destroyAll(inputValues)
			return nil, fmt.Errorf("missing input %q", name)
		}
		t, err := ort.NewTensor(ort.NewShape(in.Shape...), in.Data)
		if err != nil {
			destroyAll(inputValues)
			return nil, fmt.Errorf("failed to create input tensor: %w", err)
		}
		inputValues = append(inputValues, t)
	}
	defer destroyAll(inputValues)

	outputs := make([]*ort.Tensor[float32], 0, len(outputNames))
	outputValues := make([]ort.ArbitraryTensor, 0, len(outputNames))
	for _, name := range outputNames {
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(inf.opts.OutputShapes[name]...))
		if err != nil {
			destroyAll(outputValues)
			return nil, fmt.Errorf("failed to create output tensor: %w", err)
		}
		outputs = append(outputs, t)
		outputValues = append(outputValues, t)
	}
	defer destroyAll(outputValues)

	if err := inf.session.Run(inputValues, outputValues); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	result := make([]*Tensor, len(outputs))
	for i, out := range outputs {
		// GetData aliases memory freed by Destroy.
		data := append([]float32(nil), out.GetData()...)
		result[i] = &Tensor{
			Shape: append([]int64(nil), inf.opts.OutputShapes[outputNames[i]]...),
			Data:  data,
		}
	}
	return result, nil
}

// Close releases the ONNX session resources
func (inf *Inference) Close() error {
	inf.mu.Lock()
	defer inf.mu.Unlock()

	if inf.session != nil {
		err := inf.session.Destroy()
		inf.session = nil
		if err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
		return ort.DestroyEnvironment()
	}

	return nil
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func destroyAll(values []ort.ArbitraryTensor) {
	for _, v := range values {
		v.Destroy()
	}
}

// Ensure Inference implements InferenceEngine at compile time
var _ InferenceEngine = (*Inference)(nil)
