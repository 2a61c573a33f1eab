package cpu

import (
	"fmt"

	"github.com/born-ml/trajnet/internal/parallel"
	"github.com/born-ml/trajnet/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// stride and padding are {height, width} pairs, so a kernel may span only
// one axis (e.g. a temporal [K_t, 1] kernel with padding {p, 0}).
//
//	H_out = (H + 2*padding[0] - K_h) / stride[0] + 1
//	W_out = (W + 2*padding[1] - K_w) / stride[1] + 1
//
// Algorithm:
//  1. im2col: unfold input patches into rows [N*H_out*W_out, C_in*K_h*K_w]
//  2. GEMM: kernel [C_out, C_in*K_h*K_w] @ cols^T -> [C_out, N*H_out*W_out]
//  3. Rearrange to [N, C_out, H_out, W_out]
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding [2]int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}
	if stride[0] <= 0 || stride[1] <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %v", stride))
	}
	if padding[0] < 0 || padding[1] < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %v", padding))
	}

	g := convGeometry{
		N: inputShape[0], CIn: inputShape[1], H: inputShape[2], W: inputShape[3],
		COut: kernelShape[0], KH: kernelShape[2], KW: kernelShape[3],
		stride: stride, padding: padding,
	}
	if kernelShape[1] != g.CIn {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", g.CIn, kernelShape[1]))
	}

	g.HOut = (g.H+2*padding[0]-g.KH)/stride[0] + 1
	g.WOut = (g.W+2*padding[1]-g.KW)/stride[1] + 1
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", g.HOut, g.WOut))
	}

	output := cpu.alloc("conv2d", tensor.Shape{g.N, g.COut, g.HOut, g.WOut}, input.DType())
	switch input.DType() {
	case tensor.Float32:
		conv2d(output.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), g, cpu.parallel)
	case tensor.Float64:
		conv2d(output.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(), g, cpu.parallel)
	default:
		panic(fmt.Sprintf("conv2d: unsupported dtype %s", input.DType()))
	}
	return output
}

type convGeometry struct {
	N, CIn, H, W    int
	COut, KH, KW    int
	HOut, WOut      int
	stride, padding [2]int
}

func conv2d[T float](out, input, kernel []T, g convGeometry, cfg parallel.Config) {
	colWidth := g.CIn * g.KH * g.KW
	colHeight := g.N * g.HOut * g.WOut
	cols := make([]T, colHeight*colWidth)

	im2col(cols, input, g, cfg)

	// [C_out, N*H_out*W_out]
	product := make([]T, g.COut*colHeight)
	gemm(product, kernel, cols, g.COut, colWidth, colHeight, true)

	spatial := g.HOut * g.WOut
	for n := 0; n < g.N; n++ {
		for c := 0; c < g.COut; c++ {
			src := product[c*colHeight+n*spatial : c*colHeight+(n+1)*spatial]
			dst := out[(n*g.COut+c)*spatial : (n*g.COut+c+1)*spatial]
			copy(dst, src)
		}
	}
}

// im2col fills one row of cols per output position (n, h_out, w_out).
// Positions falling into the zero padding stay zero.
func im2col[T float](cols, input []T, g convGeometry, cfg parallel.Config) {
	colWidth := g.CIn * g.KH * g.KW
	rowsPerImage := g.HOut * g.WOut

	parallel.For(g.N*rowsPerImage, func(row int) {
		n := row / rowsPerImage
		outH := (row % rowsPerImage) / g.WOut
		outW := row % g.WOut

		hStart := outH*g.stride[0] - g.padding[0]
		wStart := outW*g.stride[1] - g.padding[1]

		bufIdx := row * colWidth
		for c := 0; c < g.CIn; c++ {
			plane := input[(n*g.CIn+c)*g.H*g.W : (n*g.CIn+c+1)*g.H*g.W]
			for kh := 0; kh < g.KH; kh++ {
				h := hStart + kh
				for kw := 0; kw < g.KW; kw++ {
					w := wStart + kw
					if h >= 0 && h < g.H && w >= 0 && w < g.W {
						cols[bufIdx] = plane[h*g.W+w]
					}
					bufIdx++
				}
			}
		}
	}, cfg)
}
