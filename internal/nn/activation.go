package nn

import (
	"fmt"

	"github.com/born-ml/trajnet/internal/tensor"
)

// ReLUBackend is an interface for backends that support ReLU activation.
type ReLUBackend interface {
	ReLU(*tensor.RawTensor) *tensor.RawTensor
}

// LeakyReLUBackend is an interface for backends that support LeakyReLU
// activation with an arbitrary negative slope.
type LeakyReLUBackend interface {
	LeakyReLU(x *tensor.RawTensor, slope float64) *tensor.RawTensor
}

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
//
// Example:
//
//	relu := nn.NewReLU[Backend]()
//	output := relu.Forward(input)  // All negative values become 0
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if reluBackend, ok := any(backend).(ReLUBackend); ok {
		return tensor.New[float32, B](reluBackend.ReLU(input.Raw()), backend)
	}
	panic(fmt.Sprintf("ReLU: backend %s must implement ReLU", backend.Name()))
}

// Parameters returns nil (ReLU has no trainable parameters).
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// LeakyReLU applies f(x) = x for x >= 0 and slope * x otherwise.
type LeakyReLU[B tensor.Backend] struct {
	slope float64
}

// NewLeakyReLU creates a LeakyReLU with the given negative slope.
func NewLeakyReLU[B tensor.Backend](slope float64) *LeakyReLU[B] {
	return &LeakyReLU[B]{slope: slope}
}

// Forward applies LeakyReLU activation.
func (l *LeakyReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return leakyReLU(input, l.slope)
}

// Parameters returns nil (LeakyReLU has no trainable parameters).
func (l *LeakyReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// Slope returns the negative slope.
func (l *LeakyReLU[B]) Slope() float64 {
	return l.slope
}

// PReLU is a LeakyReLU whose negative slope is a single learnable parameter
// shared across all channels.
//
// The slope starts at 0.25.
type PReLU[B tensor.Backend] struct {
	weight *Parameter[B] // [1]
}

// NewPReLU creates a PReLU with slope 0.25.
func NewPReLU[B tensor.Backend](backend B) *PReLU[B] {
	return &PReLU[B]{
		weight: NewParameter("weight", tensor.Full[float32](tensor.Shape{1}, 0.25, backend)),
	}
}

// Forward applies PReLU activation with the current slope.
func (p *PReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return leakyReLU(input, float64(p.weight.Tensor().Data()[0]))
}

// Parameters returns [weight].
func (p *PReLU[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{p.weight}
}

// Weight returns the slope parameter.
func (p *PReLU[B]) Weight() *Parameter[B] {
	return p.weight
}

// StateDict returns the slope under "weight".
func (p *PReLU[B]) StateDict() map[string]*tensor.RawTensor {
	return parameterStateDict(p.weight)
}

// LoadStateDict loads the slope.
func (p *PReLU[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParameters(stateDict, p.weight)
}

func leakyReLU[B tensor.Backend](input *tensor.Tensor[float32, B], slope float64) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if leakyBackend, ok := any(backend).(LeakyReLUBackend); ok {
		return tensor.New[float32, B](leakyBackend.LeakyReLU(input.Raw(), slope), backend)
	}
	panic(fmt.Sprintf("LeakyReLU: backend %s must implement LeakyReLU", backend.Name()))
}
