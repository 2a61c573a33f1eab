package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/trajnet/internal/parallel"
	"github.com/born-ml/trajnet/internal/tensor"
)

// MatMul performs matrix multiplication: (M, K) @ (K, N) -> (M, N).
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := cpu.alloc("matmul", tensor.Shape{m, n}, a.DType())
	switch a.DType() {
	case tensor.Float32:
		gemm(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n, false)
	case tensor.Float64:
		gemm(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), m, k, n, false)
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", a.DType()))
	}
	return result
}

// BatchMatMul performs batched matrix multiplication:
// (B, M, K) @ (B, K, N) -> (B, M, N).
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 3 || len(bShape) != 3 {
		panic(fmt.Sprintf("batchmatmul: expected 3D tensors, got %v and %v", aShape, bShape))
	}

	batch, m, k := aShape[0], aShape[1], aShape[2]
	if bShape[0] != batch {
		panic(fmt.Sprintf("batchmatmul: batch size mismatch %d vs %d", batch, bShape[0]))
	}
	if bShape[1] != k {
		panic(fmt.Sprintf("batchmatmul: inner dimension mismatch %v @ %v", aShape, bShape))
	}
	n := bShape[2]

	result := cpu.alloc("batchmatmul", tensor.Shape{batch, m, n}, a.DType())
	switch a.DType() {
	case tensor.Float32:
		batchGemm(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), batch, m, k, n, cpu.parallel)
	case tensor.Float64:
		batchGemm(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), batch, m, k, n, cpu.parallel)
	default:
		panic(fmt.Sprintf("batchmatmul: unsupported dtype %s", a.DType()))
	}
	return result
}

func batchGemm[T float](c, a, b []T, batch, m, k, n int, cfg parallel.Config) {
	cfg.MinChunkSize = 1
	parallel.For(batch, func(i int) {
		gemm(c[i*m*n:(i+1)*m*n], a[i*m*k:(i+1)*m*k], b[i*k*n:(i+1)*k*n], m, k, n, false)
	}, cfg)
}

// gemm computes c = a @ b for row-major a [m, k] and c [m, n].
// b is read as [k, n], or as the transpose of a row-major [n, k] when transB is set.
func gemm[T float](c, a, b []T, m, k, n int, transB bool) {
	tB := blas.NoTrans
	bRows, bCols := k, n
	if transB {
		tB = blas.Trans
		bRows, bCols = n, k
	}

	switch cc := any(c).(type) {
	case []float32:
		blas32.Gemm(blas.NoTrans, tB, 1,
			blas32.General{Rows: m, Cols: k, Stride: k, Data: any(a).([]float32)},
			blas32.General{Rows: bRows, Cols: bCols, Stride: bCols, Data: any(b).([]float32)},
			0,
			blas32.General{Rows: m, Cols: n, Stride: n, Data: cc})
	case []float64:
		blas64.Gemm(blas.NoTrans, tB, 1,
			blas64.General{Rows: m, Cols: k, Stride: k, Data: any(a).([]float64)},
			blas64.General{Rows: bRows, Cols: bCols, Stride: bCols, Data: any(b).([]float64)},
			0,
			blas64.General{Rows: m, Cols: n, Stride: n, Data: cc})
	default:
		panic(fmt.Sprintf("gemm: unsupported element type %T", c))
	}
}
