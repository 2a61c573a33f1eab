package nn_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/trajnet/internal/backend/cpu"
	"github.com/born-ml/trajnet/internal/nn"
	"github.com/born-ml/trajnet/internal/tensor"
)

func fromSlice(t *testing.T, backend *cpu.CPUBackend, data []float32, shape tensor.Shape) *tensor.Tensor[float32, *cpu.CPUBackend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, backend)
	require.NoError(t, err)
	return x
}

func TestParameter_Load(t *testing.T) {
	backend := cpu.New()
	param := nn.NewParameter("weight", tensor.Zeros[float32](tensor.Shape{3}, backend))
	assert.Equal(t, "weight", param.Name())

	src := fromSlice(t, backend, []float32{1, 2, 3}, tensor.Shape{3})
	require.NoError(t, param.Load(src.Raw()))
	assert.Equal(t, []float32{1, 2, 3}, param.Tensor().Data())

	// Loading copies: later writes to the source do not leak in.
	src.Data()[0] = 9
	assert.Equal(t, float32(1), param.Tensor().Data()[0])

	wrongShape := tensor.Zeros[float32](tensor.Shape{4}, backend)
	require.Error(t, param.Load(wrongShape.Raw()))

	wrongDType := tensor.Zeros[float64](tensor.Shape{3}, backend)
	require.Error(t, param.Load(wrongDType.Raw()))
}

func TestKaimingUniform_Bound(t *testing.T) {
	backend := cpu.New()
	w := nn.KaimingUniform(16, tensor.Shape{8, 16}, rand.New(rand.NewSource(3)), backend)
	for _, v := range w.Data() {
		assert.LessOrEqual(t, v, float32(0.25))
		assert.GreaterOrEqual(t, v, float32(-0.25))
	}
}

func TestLinear_Forward2D(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear(2, 3, nil, backend)
	copy(layer.Weight().Tensor().Data(), []float32{1, 0, 0, 1, 1, 1})
	copy(layer.Bias().Tensor().Data(), []float32{0.5, -0.5, 0})

	x := fromSlice(t, backend, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	y := layer.Forward(x)

	assert.Equal(t, tensor.Shape{2, 3}, y.Shape())
	assert.InDeltaSlice(t, []float32{1.5, 1.5, 3, 3.5, 3.5, 7}, y.Data(), 1e-6)
}

func TestLinear_ForwardLastAxis(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear(2, 4, rand.New(rand.NewSource(1)), backend)

	x := tensor.Ones[float32](tensor.Shape{1, 3, 5, 2}, backend)
	y := layer.Forward(x)
	require.Equal(t, tensor.Shape{1, 3, 5, 4}, y.Shape())

	// Every position has the same input, so every position has the same output.
	w := layer.Weight().Tensor()
	b := layer.Bias().Tensor().Data()
	for o := 0; o < 4; o++ {
		want := w.At(o, 0) + w.At(o, 1) + b[o]
		assert.InDelta(t, want, y.At(0, 2, 4, o), 1e-6)
		assert.InDelta(t, want, y.At(0, 0, 0, o), 1e-6)
	}
}

func TestLinear_WrongFeaturesPanics(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear(2, 4, nil, backend)
	assert.Panics(t, func() {
		layer.Forward(tensor.Ones[float32](tensor.Shape{3, 5}, backend))
	})
}

func TestLinear_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	src := nn.NewLinear(3, 2, rand.New(rand.NewSource(1)), backend)
	dst := nn.NewLinear(3, 2, rand.New(rand.NewSource(2)), backend)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	assert.Equal(t, src.Weight().Tensor().Data(), dst.Weight().Tensor().Data())
	assert.Equal(t, src.Bias().Tensor().Data(), dst.Bias().Tensor().Data())

	err := dst.LoadStateDict(map[string]*tensor.RawTensor{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight")
}

func TestConv2D_TemporalKernelWithBias(t *testing.T) {
	backend := cpu.New()
	conv := nn.NewConv2D(1, 1, [2]int{3, 1}, [2]int{1, 1}, [2]int{1, 0}, true, nil, backend)
	copy(conv.Weight().Tensor().Data(), []float32{1, 1, 1})
	conv.Bias().Tensor().Data()[0] = 10

	// [1, 1, T=4, N=2]
	x := fromSlice(t, backend, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 1, 4, 2})
	y := conv.Forward(x)

	require.Equal(t, tensor.Shape{1, 1, 4, 2}, y.Shape())
	// Column 0 holds 1,3,5,7; column 1 holds 2,4,6,8.
	assert.InDeltaSlice(t, []float32{14, 16, 19, 22, 25, 28, 22, 24}, y.Data(), 1e-5)
	assert.Equal(t, [2]int{4, 2}, conv.ComputeOutputSize(4, 2))
}

func TestConv2D_NoBias(t *testing.T) {
	backend := cpu.New()
	conv := nn.NewConv2D(2, 3, [2]int{1, 1}, [2]int{2, 1}, [2]int{0, 0}, false, nil, backend)

	assert.Nil(t, conv.Bias())
	assert.Len(t, conv.Parameters(), 1)
	assert.Len(t, conv.StateDict(), 1)

	y := conv.Forward(tensor.Ones[float32](tensor.Shape{2, 2, 6, 3}, backend))
	assert.Equal(t, tensor.Shape{2, 3, 3, 3}, y.Shape())
}

func TestConv2D_WrongChannelsPanics(t *testing.T) {
	backend := cpu.New()
	conv := nn.NewConv2D(2, 3, [2]int{3, 3}, [2]int{1, 1}, [2]int{1, 1}, true, nil, backend)
	assert.Panics(t, func() {
		conv.Forward(tensor.Ones[float32](tensor.Shape{1, 4, 5, 5}, backend))
	})
	assert.Panics(t, func() {
		conv.Forward(tensor.Ones[float32](tensor.Shape{2, 5, 5}, backend))
	})
}

func TestActivations(t *testing.T) {
	backend := cpu.New()
	x := fromSlice(t, backend, []float32{-2, -0.5, 0, 3}, tensor.Shape{4})

	assert.Equal(t, []float32{0, 0, 0, 3}, nn.NewReLU[*cpu.CPUBackend]().Forward(x).Data())
	assert.InDeltaSlice(t, []float32{-0.4, -0.1, 0, 3}, nn.NewLeakyReLU[*cpu.CPUBackend](0.2).Forward(x).Data(), 1e-6)

	prelu := nn.NewPReLU(backend)
	assert.Equal(t, float32(0.25), prelu.Weight().Tensor().Data()[0])
	assert.InDeltaSlice(t, []float32{-0.5, -0.125, 0, 3}, prelu.Forward(x).Data(), 1e-6)

	prelu.Weight().Tensor().Data()[0] = 0
	assert.Equal(t, []float32{0, 0, 0, 3}, prelu.Forward(x).Data())

	// Input is never modified.
	assert.Equal(t, []float32{-2, -0.5, 0, 3}, x.Data())
}

func TestBatchNorm2D_FreshEvalIsNearIdentity(t *testing.T) {
	backend := cpu.New()
	bn := nn.NewBatchNorm2D(2, backend)
	bn.SetTraining(false)

	x := fromSlice(t, backend, []float32{1, -2, 3, 4, 0, 0, 0, 0}, tensor.Shape{1, 2, 2, 2})
	y := bn.Forward(x)
	assert.InDeltaSlice(t, x.Data(), y.Data(), 1e-4)

	zeros := tensor.Zeros[float32](tensor.Shape{1, 2, 2, 2}, backend)
	assert.Equal(t, zeros.Data(), bn.Forward(zeros).Data())
}

func TestBatchNorm2D_TrainingNormalizesAndUpdatesStats(t *testing.T) {
	backend := cpu.New()
	bn := nn.NewBatchNorm2D(1, backend)
	require.True(t, bn.Training())

	// One channel, values 1..4: mean 2.5, biased var 1.25, unbiased var 5/3.
	x := fromSlice(t, backend, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	y := bn.Forward(x)

	var sum float32
	for _, v := range y.Data() {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-5)
	assert.InDelta(t, -1.5/1.118034, y.Data()[0], 1e-3)

	assert.InDelta(t, 0.25, bn.RunningMean().Data()[0], 1e-6)
	assert.InDelta(t, 0.9+0.1*5.0/3.0, bn.RunningVar().Data()[0], 1e-5)

	// Evaluation mode leaves the running statistics alone.
	bn.SetTraining(false)
	bn.Forward(x)
	assert.InDelta(t, 0.25, bn.RunningMean().Data()[0], 1e-6)
}

func TestBatchNorm2D_StateDict(t *testing.T) {
	backend := cpu.New()
	src := nn.NewBatchNorm2D(3, backend)
	copy(src.RunningMean().Data(), []float32{1, 2, 3})

	sd := src.StateDict()
	assert.Contains(t, sd, "weight")
	assert.Contains(t, sd, "bias")
	assert.Contains(t, sd, "running_mean")
	assert.Contains(t, sd, "running_var")

	dst := nn.NewBatchNorm2D(3, backend)
	require.NoError(t, dst.LoadStateDict(sd))
	assert.Equal(t, []float32{1, 2, 3}, dst.RunningMean().Data())

	delete(sd, "running_var")
	require.Error(t, dst.LoadStateDict(sd))
}

func TestDropout(t *testing.T) {
	backend := cpu.New()
	x := tensor.Ones[float32](tensor.Shape{1000}, backend)

	d := nn.NewDropout[*cpu.CPUBackend](0.5, rand.New(rand.NewSource(7)))
	y := d.Forward(x)

	zeros := 0
	for _, v := range y.Data() {
		if v == 0 {
			zeros++
			continue
		}
		assert.Equal(t, float32(2), v)
	}
	assert.Greater(t, zeros, 400)
	assert.Less(t, zeros, 600)

	d.SetTraining(false)
	assert.Equal(t, x, d.Forward(x))

	assert.Panics(t, func() { nn.NewDropout[*cpu.CPUBackend](1, nil) })
}

func TestSequential(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))
	seq := nn.NewSequential[*cpu.CPUBackend](
		nn.NewBatchNorm2D(2, backend),
		nn.NewPReLU(backend),
		nn.NewConv2D(2, 2, [2]int{3, 1}, [2]int{1, 1}, [2]int{1, 0}, true, rng, backend),
		nn.NewDropout[*cpu.CPUBackend](0.5, rng),
	)
	assert.Equal(t, 4, seq.Len())
	assert.Len(t, seq.Parameters(), 5)

	sd := seq.StateDict()
	assert.Contains(t, sd, "0.running_mean")
	assert.Contains(t, sd, "1.weight")
	assert.Contains(t, sd, "2.bias")
	assert.Len(t, sd, 7)

	seq.SetTraining(false)
	assert.False(t, seq.Module(0).(*nn.BatchNorm2D[*cpu.CPUBackend]).Training())

	x := tensor.Ones[float32](tensor.Shape{1, 2, 4, 3}, backend)
	assert.Equal(t, seq.Forward(x).Data(), seq.Forward(x).Data())

	other := nn.NewSequential[*cpu.CPUBackend](
		nn.NewBatchNorm2D(2, backend),
		nn.NewPReLU(backend),
		nn.NewConv2D(2, 2, [2]int{3, 1}, [2]int{1, 1}, [2]int{1, 0}, true, nil, backend),
		nn.NewDropout[*cpu.CPUBackend](0.5, nil),
	)
	other.SetTraining(false)
	require.NoError(t, other.LoadStateDict(sd))
	assert.Equal(t, seq.Forward(x).Data(), other.Forward(x).Data())

	assert.Panics(t, func() { seq.Module(4) })
}

func TestStateDictScoping(t *testing.T) {
	backend := cpu.New()
	inner := nn.NewLinear(2, 2, nil, backend).StateDict()

	sd := make(map[string]*tensor.RawTensor)
	nn.PrefixStateDict(sd, "blocks.0", inner)
	assert.Contains(t, sd, "blocks.0.weight")

	scoped := nn.ScopeStateDict(sd, "blocks.0")
	assert.Len(t, scoped, 2)
	assert.Same(t, inner["weight"], scoped["weight"])
	assert.Empty(t, nn.ScopeStateDict(sd, "blocks.1"))
}
