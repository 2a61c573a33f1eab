// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural network layers trajnet models are built
// from: Linear, Conv2D, BatchNorm2D, Dropout, ReLU, LeakyReLU, PReLU and
// the Sequential container.
package nn

import (
	"math/rand"

	"github.com/born-ml/trajnet/internal/nn"
	"github.com/born-ml/trajnet/internal/tensor"
)

// Module interface defines the common interface for all neural network modules.
type Module[B tensor.Backend] = nn.Module[B]

// Stateful is implemented by modules that export and restore a state dict.
type Stateful = nn.Stateful

// Trainable is implemented by modules with distinct training behavior.
type Trainable = nn.Trainable

// Parameter represents a trainable parameter in a neural network.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Layers

// Linear represents a fully connected layer applied over the last axis.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a new linear layer.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(2, 64, nil, backend)
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, rng, backend)
}

// Conv2D represents a 2D convolutional layer.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a new 2D convolutional layer with per-axis kernel,
// stride and padding.
//
// Example:
//
//	backend := cpu.New()
//	conv := nn.NewConv2D(64, 64, [2]int{3, 1}, [2]int{1, 1}, [2]int{1, 0}, true, nil, backend)
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride, padding [2]int,
	useBias bool,
	rng *rand.Rand,
	backend B,
) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelSize, stride, padding, useBias, rng, backend)
}

// BatchNorm2D represents per-channel batch normalization.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a batch norm layer with eps 1e-5 and momentum 0.1.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(numFeatures, backend)
}

// Dropout represents inverted dropout.
type Dropout[B tensor.Backend] = nn.Dropout[B]

// NewDropout creates a dropout layer.
func NewDropout[B tensor.Backend](p float64, rng *rand.Rand) *Dropout[B] {
	return nn.NewDropout[B](p, rng)
}

// Sequential chains modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Activations

// ReLU represents the Rectified Linear Unit activation function.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a new ReLU activation layer.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// LeakyReLU represents a ReLU with a fixed negative slope.
type LeakyReLU[B tensor.Backend] = nn.LeakyReLU[B]

// NewLeakyReLU creates a LeakyReLU with the given negative slope.
func NewLeakyReLU[B tensor.Backend](slope float64) *LeakyReLU[B] {
	return nn.NewLeakyReLU[B](slope)
}

// PReLU represents a ReLU with one learnable negative slope.
type PReLU[B tensor.Backend] = nn.PReLU[B]

// NewPReLU creates a PReLU with slope 0.25.
func NewPReLU[B tensor.Backend](backend B) *PReLU[B] {
	return nn.NewPReLU(backend)
}

// Initialization

// KaimingUniform draws weights from U(-1/sqrt(fanIn), 1/sqrt(fanIn)).
func KaimingUniform[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return nn.KaimingUniform(fanIn, shape, rng, backend)
}
