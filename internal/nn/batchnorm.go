package nn

import (
	"fmt"

	"github.com/born-ml/trajnet/internal/tensor"
)

// BatchNorm2D normalizes each channel of a [batch, channels, height, width]
// tensor.
//
// Training mode normalizes with the statistics of the current batch and
// updates the running estimates:
//
//	running_mean = (1 - momentum) * running_mean + momentum * batch_mean
//	running_var  = (1 - momentum) * running_var  + momentum * batch_var_unbiased
//
// Evaluation mode normalizes with the running estimates only, so the output
// is a fixed affine function of the input.
//
//	y = (x - mean) / sqrt(var + eps) * gamma + beta
//
// A fresh layer has running_mean = 0, running_var = 1, gamma = 1, beta = 0.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	eps         float32
	momentum    float32
	training    bool

	gamma *Parameter[B] // [channels], stored as "weight"
	beta  *Parameter[B] // [channels], stored as "bias"

	runningMean *tensor.Tensor[float32, B]
	runningVar  *tensor.Tensor[float32, B]

	backend B
}

// NewBatchNorm2D creates a BatchNorm2D with eps 1e-5 and momentum 0.1.
// The layer starts in training mode.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid num_features %d", numFeatures))
	}
	shape := tensor.Shape{numFeatures}
	return &BatchNorm2D[B]{
		numFeatures: numFeatures,
		eps:         1e-5,
		momentum:    0.1,
		training:    true,
		gamma:       NewParameter("weight", Ones(shape, backend)),
		beta:        NewParameter("bias", Zeros(shape, backend)),
		runningMean: Zeros(shape, backend),
		runningVar:  Ones(shape, backend),
		backend:     backend,
	}
}

// Forward normalizes input per channel.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != expected %d", shape[1], bn.numFeatures))
	}

	c := bn.numFeatures
	var mean, variance *tensor.Tensor[float32, B]
	if bn.training {
		// Mean over batch, height and width: [N,C,H,W] -> [1,C,1,1].
		mean = input.MeanDim(0, true).MeanDim(2, true).MeanDim(3, true)
		centered := input.Sub(mean)
		variance = centered.Mul(centered).MeanDim(0, true).MeanDim(2, true).MeanDim(3, true)
		bn.updateRunningStats(mean.Data(), variance.Data(), shape[0]*shape[2]*shape[3])
	} else {
		mean = bn.runningMean.Reshape(1, c, 1, 1)
		variance = bn.runningVar.Reshape(1, c, 1, 1)
	}

	invStd := variance.AddScalar(bn.eps).Rsqrt()
	normalized := input.Sub(mean).Mul(invStd)

	gamma := bn.gamma.Tensor().Reshape(1, c, 1, 1)
	beta := bn.beta.Tensor().Reshape(1, c, 1, 1)
	return normalized.Mul(gamma).Add(beta)
}

func (bn *BatchNorm2D[B]) updateRunningStats(mean, variance []float32, count int) {
	correction := float32(1)
	if count > 1 {
		correction = float32(count) / float32(count-1)
	}
	m := bn.momentum
	runningMean := bn.runningMean.Data()
	runningVar := bn.runningVar.Data()
	for i := range runningMean {
		runningMean[i] = (1-m)*runningMean[i] + m*mean[i]
		runningVar[i] = (1-m)*runningVar[i] + m*variance[i]*correction
	}
}

// SetTraining switches between batch statistics (true) and running
// statistics (false).
func (bn *BatchNorm2D[B]) SetTraining(training bool) {
	bn.training = training
}

// Training reports whether the layer is in training mode.
func (bn *BatchNorm2D[B]) Training() bool {
	return bn.training
}

// Parameters returns [weight, bias].
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.gamma, bn.beta}
}

// RunningMean returns the running mean buffer.
func (bn *BatchNorm2D[B]) RunningMean() *tensor.Tensor[float32, B] {
	return bn.runningMean
}

// RunningVar returns the running variance buffer.
func (bn *BatchNorm2D[B]) RunningVar() *tensor.Tensor[float32, B] {
	return bn.runningVar
}

// StateDict returns weight, bias, running_mean and running_var.
func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := parameterStateDict(bn.gamma, bn.beta)
	stateDict["running_mean"] = bn.runningMean.Raw()
	stateDict["running_var"] = bn.runningVar.Raw()
	return stateDict
}

// LoadStateDict restores parameters and running statistics.
func (bn *BatchNorm2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadParameters(stateDict, bn.gamma, bn.beta); err != nil {
		return err
	}
	buffers := []*Parameter[B]{
		NewParameter("running_mean", bn.runningMean),
		NewParameter("running_var", bn.runningVar),
	}
	return loadParameters(stateDict, buffers...)
}
