package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/trajnet/internal/parallel"
	"github.com/born-ml/trajnet/internal/tensor"
)

func TestConv2D_KnownValues(t *testing.T) {
	backend := newTestBackend()

	// 1 -> 1 channel, 2x2 kernel over a 3x3 input holding 1..9.
	input := rawFromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.Shape{1, 1, 3, 3})
	kernel := rawFromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})

	output := backend.Conv2D(input, kernel, [2]int{1, 1}, [2]int{0, 0})

	// [0,0]: 1*1 + 2*2 + 3*4 + 4*5 = 37
	// [0,1]: 1*2 + 2*3 + 3*5 + 4*6 = 47
	// [1,0]: 1*4 + 2*5 + 3*7 + 4*8 = 67
	// [1,1]: 1*5 + 2*6 + 3*8 + 4*9 = 77
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, output.Shape())
	assertClose(t, []float32{37, 47, 67, 77}, output.AsFloat32())
}

func TestConv2D_TemporalKernelKeepsNodesApart(t *testing.T) {
	backend := newTestBackend()

	// [1, 1, T=4, N=2]; node 0 holds 1..4, node 1 holds 10..40.
	input := rawFromSlice(t, []float32{1, 10, 2, 20, 3, 30, 4, 40}, tensor.Shape{1, 1, 4, 2})
	// Kernel (3, 1) summing over time.
	kernel := rawFromSlice(t, []float32{1, 1, 1}, tensor.Shape{1, 1, 3, 1})

	output := backend.Conv2D(input, kernel, [2]int{1, 1}, [2]int{1, 0})

	assert.Equal(t, tensor.Shape{1, 1, 4, 2}, output.Shape())
	// t=0: x0+x1, t=1: x0+x1+x2, t=2: x1+x2+x3, t=3: x2+x3
	assertClose(t, []float32{3, 30, 6, 60, 9, 90, 7, 70}, output.AsFloat32())
}

func TestConv2D_TemporalStride(t *testing.T) {
	backend := newTestBackend()

	input := rawFromSlice(t, []float32{1, 2, 3, 4, 5}, tensor.Shape{1, 1, 5, 1})
	kernel := rawFromSlice(t, []float32{1}, tensor.Shape{1, 1, 1, 1})

	output := backend.Conv2D(input, kernel, [2]int{2, 1}, [2]int{0, 0})
	assert.Equal(t, tensor.Shape{1, 1, 3, 1}, output.Shape())
	assertClose(t, []float32{1, 3, 5}, output.AsFloat32())
}

func TestConv2D_ChannelMixingBatched(t *testing.T) {
	for name, backend := range map[string]*CPUBackend{
		"default":    New(),
		"sequential": NewWithConfig(parallel.Sequential()),
		"parallel":   NewWithConfig(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}),
	} {
		t.Run(name, func(t *testing.T) {
			// [B=2, C=2, 1, 2]
			input := rawFromSlice(t, []float32{
				1, 2, 3, 4, // batch 0: c0=[1,2], c1=[3,4]
				5, 6, 7, 8, // batch 1: c0=[5,6], c1=[7,8]
			}, tensor.Shape{2, 2, 1, 2})
			// 1x1 kernel [C_out=3, C_in=2]: sum, difference, c1 only.
			kernel := rawFromSlice(t, []float32{1, 1, 1, -1, 0, 1}, tensor.Shape{3, 2, 1, 1})

			output := backend.Conv2D(input, kernel, [2]int{1, 1}, [2]int{0, 0})

			assert.Equal(t, tensor.Shape{2, 3, 1, 2}, output.Shape())
			assertClose(t, []float32{
				4, 6, -2, -2, 3, 4,
				12, 14, -2, -2, 7, 8,
			}, output.AsFloat32())
		})
	}
}

func TestConv2D_InvalidInputsPanic(t *testing.T) {
	backend := newTestBackend()
	input := rawFromSlice(t, make([]float32, 9), tensor.Shape{1, 1, 3, 3})

	wrongChannels := rawFromSlice(t, make([]float32, 8), tensor.Shape{1, 2, 2, 2})
	assert.Panics(t, func() { backend.Conv2D(input, wrongChannels, [2]int{1, 1}, [2]int{0, 0}) })

	tooLarge := rawFromSlice(t, make([]float32, 16), tensor.Shape{1, 1, 4, 4})
	assert.Panics(t, func() { backend.Conv2D(input, tooLarge, [2]int{1, 1}, [2]int{0, 0}) })

	kernel := rawFromSlice(t, make([]float32, 1), tensor.Shape{1, 1, 1, 1})
	assert.Panics(t, func() { backend.Conv2D(input, kernel, [2]int{0, 1}, [2]int{0, 0}) })
	assert.Panics(t, func() { backend.Conv2D(input, kernel, [2]int{1, 1}, [2]int{-1, 0}) })
}
