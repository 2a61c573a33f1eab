// Package nn implements the neural network layers trajnet is built from.
//
// This package provides:
//   - Module interface and Parameter
//   - Layers: Linear, Conv2D, BatchNorm2D, Dropout
//   - Activations: ReLU, LeakyReLU, PReLU
//   - Sequential container
//   - State dict helpers for exchanging parameters with a training harness
//
// Design follows PyTorch's nn.Module, adapted for Go generics.
package nn

import (
	"github.com/born-ml/trajnet/internal/tensor"
)

// Module is the base interface for all single-input neural network components.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	// Modules without trainable parameters return nil.
	Parameters() []*Parameter[B]
}

// Stateful is implemented by modules whose parameters and buffers can be
// exported to and restored from a flat name → tensor map.
type Stateful interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Trainable is implemented by modules that behave differently during
// training (batch statistics, dropout) and evaluation.
type Trainable interface {
	SetTraining(training bool)
}
