// Package stgcnn implements a spatio-temporal graph convolutional network
// for pedestrian trajectory prediction.
//
// The model consumes observed 2D positions [batch, T_obs, N, 2] and a stack
// of K per-step adjacency matrices [K, N, N], and emits per-node features
// [batch, output_feat, T_pred, N] for the prediction horizon, by default the
// five parameters of a bivariate Gaussian over each future position.
//
// Components:
//   - SpatialAttention: attention-refined adjacency, usable as a
//     preprocessing stage before the predictor
//   - GraphConvolution: time-only conv followed by a contraction against A
//   - SpatioTemporalBlock: GraphConvolution + temporal conv stack + residual
//   - TrajectoryPredictor: linear projection, blocks, prediction-conv cascade
//
// Construction validates configuration and returns errors wrapping
// ErrInvalidConfig or ErrEvenKernel. Forward passes panic with an error
// wrapping ErrShapeMismatch when inputs break a shape contract.
package stgcnn
