package stgcnn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/trajnet/internal/nn"
	"github.com/born-ml/trajnet/internal/tensor"
)

// GraphConvolution mixes channels with a time-only convolution and then
// propagates features along the graph described by an adjacency tensor.
//
// Input x:  [batch, in_channels, T, N]
// Input A:  [K, N, N]
// Output:   [batch, out_channels, T_out, N], A unchanged
//
// In ContractKernel mode the convolution emits K*out_channels channels,
// grouped as (K, out_channels), and
//
//	x'[b,c,t,w] = Σ_k Σ_v y[b,k,c,t,v] A[k,v,w]
//
// In ContractTime mode the convolution emits out_channels channels and
// adjacency slice t is applied to time step t.
type GraphConvolution[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	mode        Contraction
	conv        *nn.Conv2D[B]
	backend     B
}

// NewGraphConvolution creates a graph convolution for a K-deep adjacency.
//
// tKernel is the temporal extent of the channel-mixing convolution (1 in
// the Social-STGCNN layout); it must be odd and is padded to keep T.
func NewGraphConvolution[B tensor.Backend](
	inChannels, outChannels, kernelSize, tKernel int,
	mode Contraction,
	rng *rand.Rand,
	backend B,
) (*GraphConvolution[B], error) {
	if inChannels <= 0 || outChannels <= 0 || kernelSize <= 0 || tKernel <= 0 {
		return nil, fmt.Errorf("%w: graph conv in=%d out=%d K=%d t_kernel=%d",
			ErrInvalidConfig, inChannels, outChannels, kernelSize, tKernel)
	}
	if tKernel%2 == 0 {
		return nil, fmt.Errorf("%w: graph conv t_kernel %d", ErrEvenKernel, tKernel)
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown contraction %q", ErrInvalidConfig, mode)
	}

	convOut := outChannels
	if mode == ContractKernel {
		convOut = kernelSize * outChannels
	}
	conv := nn.NewConv2D(inChannels, convOut,
		[2]int{tKernel, 1}, [2]int{1, 1}, [2]int{(tKernel - 1) / 2, 0},
		true, rng, backend)

	return &GraphConvolution[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		mode:        mode,
		conv:        conv,
		backend:     backend,
	}, nil
}

// Forward applies the convolution and the graph contraction.
//
// Panics with an error wrapping ErrShapeMismatch when A is not [K, N, N]
// for this layer's K and the node count of x.
func (g *GraphConvolution[B]) Forward(
	x, adj *tensor.Tensor[float32, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	xs := x.Shape()
	if len(xs) != 4 || xs[1] != g.inChannels {
		panicShape("graph conv", "expected x [batch, %d, T, N], got %v", g.inChannels, xs)
	}
	as := adj.Shape()
	if len(as) != 3 || as[1] != as[2] {
		panicShape("graph conv", "expected A [K, N, N], got %v", as)
	}
	if as[0] != g.kernelSize {
		panicShape("graph conv", "adjacency depth %d != kernel size %d", as[0], g.kernelSize)
	}
	if as[1] != xs[3] {
		panicShape("graph conv", "adjacency nodes %d != feature nodes %d", as[1], xs[3])
	}

	y := g.conv.Forward(x)
	if g.mode == ContractTime {
		return g.contractTime(y, adj), adj
	}
	return g.contractKernel(y, adj), adj
}

// contractKernel computes Σ_k Σ_v y[b,k,c,t,v] A[k,v,w] as one GEMM:
// [B*C*T, K*N] @ [K*N, N].
func (g *GraphConvolution[B]) contractKernel(y, adj *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	ys := y.Shape()
	batch, t, n := ys[0], ys[2], ys[3]
	k, c := g.kernelSize, g.outChannels

	grouped := y.Reshape(batch, k, c, t, n).Transpose(0, 2, 3, 1, 4) // [B, C, T, K, N]
	out := grouped.Reshape(batch*c*t, k*n).MatMul(adj.Reshape(k*n, n))
	return out.Reshape(batch, c, t, n)
}

// contractTime computes Σ_v y[b,c,t,v] A[t,v,w] as a batched GEMM over t.
func (g *GraphConvolution[B]) contractTime(y, adj *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	ys := y.Shape()
	batch, c, t, n := ys[0], ys[1], ys[2], ys[3]
	if t != g.kernelSize {
		panicShape("graph conv", "time contraction needs T == K, got T=%d K=%d", t, g.kernelSize)
	}

	perStep := y.Transpose(2, 0, 1, 3).Reshape(t, batch*c, n) // [T, B*C, N]
	out := perStep.BatchMatMul(adj)                            // [T, B*C, N]
	return out.Reshape(t, batch, c, n).Transpose(1, 2, 0, 3)
}

// Parameters returns the convolution's weight and bias.
func (g *GraphConvolution[B]) Parameters() []*nn.Parameter[B] {
	return g.conv.Parameters()
}

// Conv returns the channel-mixing convolution.
func (g *GraphConvolution[B]) Conv() *nn.Conv2D[B] {
	return g.conv
}

// KernelSize returns K, the adjacency depth this layer accepts.
func (g *GraphConvolution[B]) KernelSize() int {
	return g.kernelSize
}

// StateDict returns the convolution state under "conv."
func (g *GraphConvolution[B]) StateDict() map[string]*tensor.RawTensor {
	return collectStateDict(g.submodules())
}

// LoadStateDict restores the convolution.
func (g *GraphConvolution[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadStateDict(stateDict, g.submodules())
}

func (g *GraphConvolution[B]) submodules() []namedModule {
	return []namedModule{{"conv", g.conv}}
}
