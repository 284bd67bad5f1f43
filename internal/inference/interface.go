// internal/inference/interface.go
package inference

// InferenceEngine is the boundary to the model-execution runtime.
// Implementations must be safe for concurrent use; callers do not serialize Run.
type InferenceEngine interface {
	// Run binds inputs by name, executes the model and returns one tensor per
	// entry of outputNames, in the same order.
	Run(outputNames []string, inputs map[string]*Tensor) ([]*Tensor, error)

	// Close releases any resources held by the inference engine.
	Close() error
}
