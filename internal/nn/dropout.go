package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/trajnet/internal/tensor"
)

// Dropout zeroes elements with probability p during training and scales the
// survivors by 1/(1-p). In evaluation mode it returns its input unchanged.
//
// The layer owns its random source; concurrent training-mode calls must be
// serialized by the caller.
type Dropout[B tensor.Backend] struct {
	p        float64
	training bool
	rng      *rand.Rand
}

// NewDropout creates a Dropout layer. rng may be nil to use the global
// math/rand source. The layer starts in training mode.
func NewDropout[B tensor.Backend](p float64, rng *rand.Rand) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: probability must be in [0, 1), got %v", p))
	}
	return &Dropout[B]{p: p, training: true, rng: rng}
}

// Forward applies dropout.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.p == 0 {
		return input
	}

	mask := tensor.Zeros[float32](input.Shape(), input.Backend())
	scale := float32(1 / (1 - d.p))
	data := mask.Data()
	for i := range data {
		if d.sample() >= d.p {
			data[i] = scale
		}
	}
	return input.Mul(mask)
}

func (d *Dropout[B]) sample() float64 {
	if d.rng == nil {
		return rand.Float64() //nolint:gosec // G404: dropout masks do not need crypto randomness
	}
	return d.rng.Float64()
}

// SetTraining enables (true) or disables (false) dropout.
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// P returns the drop probability.
func (d *Dropout[B]) P() float64 {
	return d.p
}

// Parameters returns nil (Dropout has no trainable parameters).
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}
