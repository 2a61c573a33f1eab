package stgcnn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/trajnet/internal/nn"
	"github.com/born-ml/trajnet/internal/tensor"
)

// SpatialAttention refines each adjacency slice with learned attention.
//
// For every time step t with a = A[t]^T:
//
//	e[i,j]     = LeakyReLU_0.2(W · [a_i ; a_j] + b)
//	alpha[i,:] = softmax_j(e[i,:])
//	out[t,i,:] = Σ_j alpha[i,j] a_j
//
// W maps the 2N-wide pair feature to one score, so N is fixed at
// construction. The pair feature is never materialized: W is split into
// halves acting on a_i and a_j separately.
type SpatialAttention[B tensor.Backend] struct {
	numNodes int
	score    *nn.Linear[B] // 2N -> 1
	lrelu    *nn.LeakyReLU[B]
	backend  B
}

// NewSpatialAttention creates an attention module for graphs of numNodes nodes.
func NewSpatialAttention[B tensor.Backend](numNodes int, rng *rand.Rand, backend B) (*SpatialAttention[B], error) {
	if numNodes <= 0 {
		return nil, fmt.Errorf("%w: attention num_nodes must be positive, got %d", ErrInvalidConfig, numNodes)
	}
	return &SpatialAttention[B]{
		numNodes: numNodes,
		score:    nn.NewLinear(2*numNodes, 1, rng, backend),
		lrelu:    nn.NewLeakyReLU[B](0.2),
		backend:  backend,
	}, nil
}

// Forward returns the attention-refined adjacency, [T, N, N].
func (s *SpatialAttention[B]) Forward(adj *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	alpha, transposed := s.weights(adj)
	return alpha.BatchMatMul(transposed)
}

// Weights returns the normalized attention weights alpha, [T, N, N].
// Every row alpha[t, i, :] sums to 1.
func (s *SpatialAttention[B]) Weights(adj *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	alpha, _ := s.weights(adj)
	return alpha
}

func (s *SpatialAttention[B]) weights(adj *tensor.Tensor[float32, B]) (alpha, transposed *tensor.Tensor[float32, B]) {
	shape := adj.Shape()
	if len(shape) != 3 || shape[1] != shape[2] {
		panicShape("spatial attention", "expected A [T, N, N], got %v", shape)
	}
	if shape[1] != s.numNodes {
		panicShape("spatial attention", "built for %d nodes, got %d", s.numNodes, shape[1])
	}
	steps, n := shape[0], shape[1]

	transposed = adj.Transpose(0, 2, 1) // a_t = A[t]^T

	// [T*N, N] @ [N, 2]: column 0 scores a_i as the left half, column 1 as the right.
	halves := s.score.Weight().Tensor().Reshape(2, n).T()
	scores := transposed.Reshape(steps*n, n).MatMul(halves).Chunk(2, 1)
	left := scores[0].Reshape(steps, n, 1)
	right := scores[1].Reshape(steps, 1, n)
	bias := s.score.Bias().Tensor().Reshape(1, 1, 1)

	e := s.lrelu.Forward(left.Add(right).Add(bias))
	return e.Softmax(-1), transposed
}

// NumNodes returns the node count the module was built for.
func (s *SpatialAttention[B]) NumNodes() int {
	return s.numNodes
}

// Parameters returns the scoring layer's weight and bias.
func (s *SpatialAttention[B]) Parameters() []*nn.Parameter[B] {
	return s.score.Parameters()
}

// StateDict returns the scoring layer state under "W."
func (s *SpatialAttention[B]) StateDict() map[string]*tensor.RawTensor {
	return collectStateDict(s.submodules())
}

// LoadStateDict restores the scoring layer.
func (s *SpatialAttention[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadStateDict(stateDict, s.submodules())
}

func (s *SpatialAttention[B]) submodules() []namedModule {
	return []namedModule{{"W", s.score}}
}
