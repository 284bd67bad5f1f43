// internal/inference/tensor.go
package inference

import (
	"fmt"
)

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// NewTensor checks that data holds exactly as many elements as shape describes.
func NewTensor(shape []int64, data []float32) (*Tensor, error) {
	n, err := elementCount(shape)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != n {
		return nil, fmt.Errorf("tensor data has wrong size: got %d, expected %d for shape %v", len(data), n, shape)
	}
	return &Tensor{Shape: append([]int64(nil), shape...), Data: data}, nil
}

// Elements returns the product of the tensor dimensions.
func (t *Tensor) Elements() int64 {
	n, err := elementCount(t.Shape)
	if err != nil {
		return 0
	}
	return n
}

// HasShape reports whether the tensor has exactly the given dimensions and a
// matching data length.
func (t *Tensor) HasShape(shape ...int64) bool {
	if t == nil || len(t.Shape) != len(shape) {
		return false
	}
	for i := range shape {
		if t.Shape[i] != shape[i] {
			return false
		}
	}
	return int64(len(t.Data)) == t.Elements()
}

func elementCount(shape []int64) (int64, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("tensor shape is empty")
	}
	n := int64(1)
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("invalid tensor dimension %d in shape %v", d, shape)
		}
		n *= d
	}
	return n, nil
}
