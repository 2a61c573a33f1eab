package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/trajnet/internal/tensor"
)

// Linear implements a fully connected (dense) layer over the last axis.
//
// Performs y = x @ W.T + b where:
//   - x has shape [..., in_features]
//   - W has shape [out_features, in_features]
//   - b has shape [out_features]
//   - y has shape [..., out_features]
//
// Leading axes are flattened into one batch axis for the product and
// restored afterwards, so a [B, T, N, 2] position tensor projects to
// [B, T, N, out_features] in one call.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(2, 64, nil, backend)
//	output := layer.Forward(positions) // [B, T, N, 2] -> [B, T, N, 64]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B] // [out_features, in_features]
	bias        *Parameter[B] // [out_features]
	backend     B
}

// NewLinear creates a new Linear layer.
//
// Weight and bias are drawn from U(-1/sqrt(in), 1/sqrt(in)).
// rng may be nil to use the global math/rand source.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}

	weight := KaimingUniform(inFeatures, tensor.Shape{outFeatures, inFeatures}, rng, backend)
	bias := KaimingUniform(inFeatures, tensor.Shape{outFeatures}, rng, backend)

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", bias),
		backend:     backend,
	}
}

// Forward computes y = x @ W.T + b over the last axis of input.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) < 2 {
		panic(fmt.Sprintf("Linear.Forward: expected at least 2D input [..., features], got shape %v", inputShape))
	}
	if inputShape[len(inputShape)-1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d",
			l.inFeatures, inputShape[len(inputShape)-1]))
	}

	rows := inputShape[:len(inputShape)-1].NumElements()
	flat := input
	if len(inputShape) != 2 {
		flat = input.Reshape(rows, l.inFeatures)
	}

	// [rows, in] @ [in, out] + [1, out]
	output := flat.MatMul(l.weight.Tensor().T())
	output = output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))

	if len(inputShape) == 2 {
		return output
	}
	outShape := inputShape.Clone()
	outShape[len(outShape)-1] = l.outFeatures
	return output.Reshape(outShape...)
}

// Parameters returns [weight, bias].
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns a map of parameter names to raw tensors.
func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	return parameterStateDict(l.weight, l.bias)
}

// LoadStateDict loads parameters from a state dictionary.
func (l *Linear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParameters(stateDict, l.weight, l.bias)
}
