package stgcnn

import (
	"fmt"
	"math"

	"github.com/born-ml/trajnet/internal/tensor"
)

// IdentityAdjacency returns K stacked N×N identity matrices: every node is
// connected only to itself at every step.
func IdentityAdjacency[B tensor.Backend](k, n int, backend B) *tensor.Tensor[float32, B] {
	adj := tensor.Zeros[float32](tensor.Shape{k, n, n}, backend)
	data := adj.Data()
	for s := 0; s < k; s++ {
		for i := 0; i < n; i++ {
			data[s*n*n+i*n+i] = 1
		}
	}
	return adj
}

// Bivariate holds the parameters of a 2D Gaussian over a future position.
type Bivariate struct {
	MeanX, MeanY   float64
	SigmaX, SigmaY float64
	Corr           float64
}

// BivariateParams decodes the first five output channels at (batch, step)
// for every node: mean x, mean y, exp of the two scale channels and tanh of
// the correlation channel.
func BivariateParams[B tensor.Backend](out *tensor.Tensor[float32, B], batch, step int) ([]Bivariate, error) {
	shape := out.Shape()
	if len(shape) != 4 || shape[1] < 5 {
		return nil, fmt.Errorf("%w: expected output [batch, >=5, T, N], got %v", ErrShapeMismatch, shape)
	}
	if batch < 0 || batch >= shape[0] || step < 0 || step >= shape[2] {
		return nil, fmt.Errorf("%w: index (batch=%d, step=%d) out of range for %v", ErrShapeMismatch, batch, step, shape)
	}

	params := make([]Bivariate, shape[3])
	for n := range params {
		at := func(c int) float64 { return float64(out.At(batch, c, step, n)) }
		params[n] = Bivariate{
			MeanX:  at(0),
			MeanY:  at(1),
			SigmaX: math.Exp(at(2)),
			SigmaY: math.Exp(at(3)),
			Corr:   math.Tanh(at(4)),
		}
	}
	return params, nil
}
