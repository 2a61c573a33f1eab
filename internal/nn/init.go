package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/trajnet/internal/tensor"
)

// KaimingUniform initializes weights from U(-1/sqrt(fanIn), 1/sqrt(fanIn)).
//
// This is PyTorch's default for Linear and Conv2d weights
// (kaiming_uniform_ with a = sqrt(5)), so parameters exported from a PyTorch
// model start from the same distribution.
//
// rng may be nil to use the global math/rand source.
func KaimingUniform[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return tensor.Uniform[float32](shape, 1/math.Sqrt(float64(fanIn)), rng, backend)
}

// Zeros creates a tensor filled with zeros.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
