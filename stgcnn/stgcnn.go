// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package stgcnn is the public API of the trajectory prediction model.
//
// Example:
//
//	backend := cpu.New()
//	model, err := stgcnn.NewTrajectoryPredictor(stgcnn.DefaultConfig(), backend)
//	if err != nil {
//	    return err
//	}
//	model.Eval()
//
//	positions := tensor.Zeros[float32](tensor.Shape{1, 8, 4, 2}, backend)
//	adjacency := stgcnn.IdentityAdjacency(8, 4, backend)
//	out, _ := model.Forward(positions, adjacency) // [1, 5, 12, 4]
package stgcnn

import (
	"math/rand"

	"github.com/born-ml/trajnet/internal/stgcnn"
	"github.com/born-ml/trajnet/internal/tensor"
)

// Errors.
var (
	ErrInvalidConfig = stgcnn.ErrInvalidConfig
	ErrEvenKernel    = stgcnn.ErrEvenKernel
	ErrShapeMismatch = stgcnn.ErrShapeMismatch
)

// Config holds the predictor hyperparameters.
type Config = stgcnn.Config

// DefaultConfig returns the Social-STGCNN layout.
func DefaultConfig() Config {
	return stgcnn.DefaultConfig()
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	return stgcnn.LoadConfig(path)
}

// Contraction selects the graph contraction of GraphConvolution.
type Contraction = stgcnn.Contraction

// Contraction modes.
const (
	ContractKernel = stgcnn.ContractKernel
	ContractTime   = stgcnn.ContractTime
)

// ResidualKind is the residual path of a SpatioTemporalBlock.
type ResidualKind = stgcnn.ResidualKind

// Residual kinds.
const (
	ResidualZero       = stgcnn.ResidualZero
	ResidualIdentity   = stgcnn.ResidualIdentity
	ResidualProjection = stgcnn.ResidualProjection
)

// TrajectoryPredictor is the top-level model.
type TrajectoryPredictor[B tensor.Backend] = stgcnn.TrajectoryPredictor[B]

// NewTrajectoryPredictor validates cfg and builds the model.
func NewTrajectoryPredictor[B tensor.Backend](cfg Config, backend B) (*TrajectoryPredictor[B], error) {
	return stgcnn.NewTrajectoryPredictor(cfg, backend)
}

// BlockConfig configures one SpatioTemporalBlock.
type BlockConfig = stgcnn.BlockConfig

// SpatioTemporalBlock is a graph conv + temporal conv layer with residual.
type SpatioTemporalBlock[B tensor.Backend] = stgcnn.SpatioTemporalBlock[B]

// NewSpatioTemporalBlock builds a block.
func NewSpatioTemporalBlock[B tensor.Backend](cfg BlockConfig, rng *rand.Rand, backend B) (*SpatioTemporalBlock[B], error) {
	return stgcnn.NewSpatioTemporalBlock(cfg, rng, backend)
}

// GraphConvolution is a time-only conv followed by an adjacency contraction.
type GraphConvolution[B tensor.Backend] = stgcnn.GraphConvolution[B]

// NewGraphConvolution creates a graph convolution for a K-deep adjacency.
func NewGraphConvolution[B tensor.Backend](
	inChannels, outChannels, kernelSize, tKernel int,
	mode Contraction,
	rng *rand.Rand,
	backend B,
) (*GraphConvolution[B], error) {
	return stgcnn.NewGraphConvolution(inChannels, outChannels, kernelSize, tKernel, mode, rng, backend)
}

// SpatialAttention refines adjacency slices with learned attention.
type SpatialAttention[B tensor.Backend] = stgcnn.SpatialAttention[B]

// NewSpatialAttention creates an attention module for numNodes-node graphs.
func NewSpatialAttention[B tensor.Backend](numNodes int, rng *rand.Rand, backend B) (*SpatialAttention[B], error) {
	return stgcnn.NewSpatialAttention(numNodes, rng, backend)
}

// IdentityAdjacency returns K stacked N×N identity matrices.
func IdentityAdjacency[B tensor.Backend](k, n int, backend B) *tensor.Tensor[float32, B] {
	return stgcnn.IdentityAdjacency(k, n, backend)
}

// Bivariate holds the parameters of a 2D Gaussian.
type Bivariate = stgcnn.Bivariate

// BivariateParams decodes output channels at (batch, step) per node.
func BivariateParams[B tensor.Backend](out *tensor.Tensor[float32, B], batch, step int) ([]Bivariate, error) {
	return stgcnn.BivariateParams(out, batch, step)
}
