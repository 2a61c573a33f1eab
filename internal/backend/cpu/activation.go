package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/trajnet/internal/tensor"
)

// Softmax computes softmax along dim.
// Softmax(x_i) = exp(x_i - max) / sum_j exp(x_j - max).
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)

	result := cpu.alloc("softmax", shape, x.DType())
	outer := shape[:dim].NumElements()
	inner := shape[dim+1:].NumElements()

	switch x.DType() {
	case tensor.Float32:
		softmaxKernel(result.AsFloat32(), x.AsFloat32(), outer, shape[dim], inner)
	case tensor.Float64:
		softmaxKernel(result.AsFloat64(), x.AsFloat64(), outer, shape[dim], inner)
	default:
		panic(fmt.Sprintf("softmax: unsupported dtype %s", x.DType()))
	}
	return result
}

func softmaxKernel[T float](dst, src []T, outer, dimSize, inner int) {
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*dimSize*inner + in

			maxVal := src[base]
			for d := 1; d < dimSize; d++ {
				maxVal = max(maxVal, src[base+d*inner])
			}

			var sum float64
			for d := 0; d < dimSize; d++ {
				e := math.Exp(float64(src[base+d*inner] - maxVal))
				dst[base+d*inner] = T(e)
				sum += e
			}
			for d := 0; d < dimSize; d++ {
				dst[base+d*inner] = T(float64(dst[base+d*inner]) / sum)
			}
		}
	}
}

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.LeakyReLU(x, 0)
}

// LeakyReLU applies x for x >= 0 and slope*x otherwise.
func (cpu *CPUBackend) LeakyReLU(x *tensor.RawTensor, slope float64) *tensor.RawTensor {
	result := cpu.alloc("leaky_relu", x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		leakyReLUKernel(result.AsFloat32(), x.AsFloat32(), float32(slope))
	case tensor.Float64:
		leakyReLUKernel(result.AsFloat64(), x.AsFloat64(), slope)
	default:
		panic(fmt.Sprintf("leaky_relu: unsupported dtype %s", x.DType()))
	}
	return result
}

func leakyReLUKernel[T float](dst, src []T, slope T) {
	for i, v := range src {
		if v < 0 {
			dst[i] = slope * v
		} else {
			dst[i] = v
		}
	}
}
