package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/trajnet/internal/tensor"
)

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat64(scalar)
	return cpu.unary("mul_scalar", x, func(v float64) float64 { return v * s })
}

// AddScalar adds scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat64(scalar)
	return cpu.unary("add_scalar", x, func(v float64) float64 { return v + s })
}

// Rsqrt computes 1/sqrt(x) element-wise.
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("rsqrt", x, func(v float64) float64 { return 1 / math.Sqrt(v) })
}

func (cpu *CPUBackend) unary(op string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result := cpu.alloc(op, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		unaryKernel(result.AsFloat32(), x.AsFloat32(), f)
	case tensor.Float64:
		unaryKernel(result.AsFloat64(), x.AsFloat64(), f)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, x.DType()))
	}
	return result
}

func unaryKernel[T float](dst, src []T, f func(float64) float64) {
	for i, v := range src {
		dst[i] = T(f(float64(v)))
	}
}

func toFloat64(scalar any) float64 {
	switch v := scalar.(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	case int:
		return float64(v)
	default:
		panic(fmt.Sprintf("unsupported scalar type %T", scalar))
	}
}

// MeanDim averages x along dim. With keepDim the reduced axis stays as size 1.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)

	outShape := shape.Clone()
	outShape[dim] = 1
	if !keepDim && len(shape) > 1 {
		outShape = append(outShape[:dim:dim], shape[dim+1:]...)
	}

	result := cpu.alloc("mean_dim", outShape, x.DType())
	outer := shape[:dim].NumElements()
	inner := shape[dim+1:].NumElements()

	switch x.DType() {
	case tensor.Float32:
		meanKernel(result.AsFloat32(), x.AsFloat32(), outer, shape[dim], inner)
	case tensor.Float64:
		meanKernel(result.AsFloat64(), x.AsFloat64(), outer, shape[dim], inner)
	default:
		panic(fmt.Sprintf("mean_dim: unsupported dtype %s", x.DType()))
	}
	return result
}

func meanKernel[T float](dst, src []T, outer, dimSize, inner int) {
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			var sum float64
			for d := 0; d < dimSize; d++ {
				sum += float64(src[(o*dimSize+d)*inner+in])
			}
			dst[o*inner+in] = T(sum / float64(dimSize))
		}
	}
}
