package cpu

import (
	"fmt"

	"github.com/born-ml/trajnet/internal/tensor"
)

// Reshape returns a copy of t with a new shape of equal element count.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}

	result, err := t.Clone().WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

// Transpose permutes the dimensions of t. With no axes, all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	inStrides := shape.ComputeStrides()
	permStrides := make([]int, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
		permStrides[i] = inStrides[ax]
	}

	result := cpu.alloc("transpose", newShape, t.DType())
	outStrides := newShape.ComputeStrides()
	switch t.DType() {
	case tensor.Float32:
		gatherKernel(result.AsFloat32(), t.AsFloat32(), outStrides, permStrides)
	case tensor.Float64:
		gatherKernel(result.AsFloat64(), t.AsFloat64(), outStrides, permStrides)
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}
	return result
}

func gatherKernel[T float](dst, src []T, outStrides, srcStrides []int) {
	for i := range dst {
		dst[i] = src[computeFlatIndex(i, outStrides, srcStrides)]
	}
}

// Chunk splits x into n equal parts along dim.
func (cpu *CPUBackend) Chunk(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	if n <= 0 || shape[dim]%n != 0 {
		panic(fmt.Sprintf("chunk: dimension %d of size %d is not divisible into %d parts", dim, shape[dim], n))
	}

	outer := shape[:dim].NumElements()
	inner := shape[dim+1:].NumElements()
	size := shape[dim] / n

	partShape := shape.Clone()
	partShape[dim] = size

	elem := x.DType().Size()
	block := size * inner * elem
	src := x.Data()

	parts := make([]*tensor.RawTensor, n)
	for p := 0; p < n; p++ {
		part := cpu.alloc("chunk", partShape, x.DType())
		dst := part.Data()
		for o := 0; o < outer; o++ {
			start := (o*shape[dim]*inner + p*size*inner) * elem
			copy(dst[o*block:(o+1)*block], src[start:start+block])
		}
		parts[p] = part
	}
	return parts
}
