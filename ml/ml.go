// Package ml is the boundary to the depth-estimation network: named tensors in, named tensors
// out. The network itself always lives outside this process.
package ml

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"gorgonia.org/tensor"
)

const (
	// InputTensorName is the tensor a Model reads its input batch from.
	InputTensorName = "input"
	// OutputTensorName is the tensor a Model writes its predictions to.
	OutputTensorName = "output"
)

// Tensors are a map of names to tensors.
type Tensors map[string]*tensor.Dense

// Model runs inference over tensors.
type Model interface {
	Infer(ctx context.Context, tensors Tensors) (Tensors, error)
	Close() error
}

// ModelFunc adapts a function into a Model with a no-op Close.
type ModelFunc func(ctx context.Context, tensors Tensors) (Tensors, error)

// Infer calls f.
func (f ModelFunc) Infer(ctx context.Context, tensors Tensors) (Tensors, error) {
	return f(ctx, tensors)
}

// Close does nothing.
func (f ModelFunc) Close() error {
	return nil
}

// Float32Tensor builds a float32 tensor of the given shape from float64 data.
func Float32Tensor(data []float64, shape ...int) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(shape...),
		tensor.WithBacking(convertNumberSlice[float64, float32](data)),
	)
}

// Float64Data returns the values of t as float64, whatever its numeric dtype.
func Float64Data(t *tensor.Dense) ([]float64, error) {
	return convertToFloat64Slice(t.Data())
}

// number interface for converting between numbers.
type number interface {
	constraints.Integer | constraints.Float
}

// convertNumberSlice converts any number slice into another number slice.
func convertNumberSlice[T1, T2 number](t1 []T1) []T2 {
	t2 := make([]T2, len(t1))
	for i := range t1 {
		t2[i] = T2(t1[i])
	}
	return t2
}

func convertToFloat64Slice(slice interface{}) ([]float64, error) {
	switch v := slice.(type) {
	case []float64:
		return v, nil
	case float64:
		return []float64{v}, nil
	case []float32:
		return convertNumberSlice[float32, float64](v), nil
	case float32:
		return []float64{float64(v)}, nil
	case []int:
		return convertNumberSlice[int, float64](v), nil
	case []int32:
		return convertNumberSlice[int32, float64](v), nil
	case []int64:
		return convertNumberSlice[int64, float64](v), nil
	case []uint8:
		return convertNumberSlice[uint8, float64](v), nil
	case []uint16:
		return convertNumberSlice[uint16, float64](v), nil
	case []uint32:
		return convertNumberSlice[uint32, float64](v), nil
	default:
		return nil, errors.Errorf("dont know how to convert slice of %T into a []float64", slice)
	}
}

// TensorNames returns the sorted names of the tensors.
func TensorNames(t Tensors) []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Output returns the output tensor, or the only tensor when there is exactly one.
func Output(t Tensors) (*tensor.Dense, error) {
	if out, ok := t[OutputTensorName]; ok {
		return out, nil
	}
	if len(t) == 1 {
		for _, out := range t {
			return out, nil
		}
	}
	return nil, errors.Errorf("no tensor named %q among output tensors %v", OutputTensorName, TensorNames(t))
}
