package tensor

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend satisfies Backend for creation helpers that only need Device.
type stubBackend struct{ Backend }

func (stubBackend) Device() Device { return CPU }

func TestDataTypeSize(t *testing.T) {
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 8, Float64.Size())
	assert.Equal(t, "float32", Float32.String())
	assert.Equal(t, "float64", Float64.String())
}

func TestShape_NumElementsAndStrides(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.True(t, s.Equal(s.Clone()))
	assert.False(t, s.Equal(Shape{2, 3}))
}

func TestShape_Validate(t *testing.T) {
	require.NoError(t, Shape{1, 2}.Validate())
	require.Error(t, Shape{1, 0}.Validate())
	require.Error(t, Shape{-1}.Validate())
}

func TestShape_NormalizeDim(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 2, s.NormalizeDim(-1))
	assert.Equal(t, 0, s.NormalizeDim(0))
	assert.Panics(t, func() { s.NormalizeDim(3) })
	assert.Panics(t, func() { s.NormalizeDim(-4) })
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{"same", Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{"column", Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"rank", Shape{5}, Shape{2, 3, 5}, Shape{2, 3, 5}, true, false},
		{"channel bias", Shape{2, 4, 8, 3}, Shape{1, 4, 1, 1}, Shape{2, 4, 8, 3}, true, false},
		{"incompatible", Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("BroadcastShapes mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.broadcast, broadcast)
		})
	}
}

func TestRawTensor_CloneIsDeep(t *testing.T) {
	raw, err := NewRaw(Shape{2, 2}, Float32, CPU)
	require.NoError(t, err)
	raw.AsFloat32()[0] = 1

	clone := raw.Clone()
	clone.AsFloat32()[0] = 7

	assert.Equal(t, float32(1), raw.AsFloat32()[0])
	assert.Equal(t, float32(7), clone.AsFloat32()[0])
}

func TestRawTensor_WithShapeSharesBuffer(t *testing.T) {
	raw, err := NewRaw(Shape{2, 3}, Float32, CPU)
	require.NoError(t, err)

	view, err := raw.WithShape(Shape{3, 2})
	require.NoError(t, err)
	view.AsFloat32()[5] = 9

	assert.Equal(t, float32(9), raw.AsFloat32()[5])
	assert.Equal(t, []int{2, 1}, view.Strides())

	_, err = raw.WithShape(Shape{4, 2})
	require.Error(t, err)
}

func TestRawTensor_WrongDTypePanics(t *testing.T) {
	raw, err := NewRaw(Shape{2}, Float32, CPU)
	require.NoError(t, err)
	assert.Panics(t, func() { raw.AsFloat64() })
}

func TestFromSlice(t *testing.T) {
	b := stubBackend{}
	x, err := FromSlice[float32]([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, b)
	require.NoError(t, err)
	assert.Equal(t, float32(6), x.At(1, 2))
	assert.Equal(t, float32(2), x.At(0, 1))

	x.Set(10, 1, 0)
	assert.Equal(t, []float32{1, 2, 3, 10, 5, 6}, x.Data())

	_, err = FromSlice[float32]([]float32{1, 2, 3}, Shape{2, 2}, b)
	require.Error(t, err)
}

func TestCreation(t *testing.T) {
	b := stubBackend{}

	assert.Equal(t, []float64{0, 0, 0}, Zeros[float64](Shape{3}, b).Data())
	assert.Equal(t, []float32{1, 1}, Ones[float32](Shape{2}, b).Data())
	assert.Equal(t, []float32{0.5, 0.5}, Full[float32](Shape{2}, 0.5, b).Data())
	assert.Equal(t, []float32{1, 0, 0, 1}, Eye[float32](2, b).Data())

	u := Uniform[float32](Shape{1000}, 0.1, rand.New(rand.NewSource(1)), b)
	for _, v := range u.Data() {
		assert.LessOrEqual(t, v, float32(0.1))
		assert.GreaterOrEqual(t, v, float32(-0.1))
	}
}

func TestUniform_SeededIsReproducible(t *testing.T) {
	b := stubBackend{}
	a := Uniform[float32](Shape{16}, 1, rand.New(rand.NewSource(42)), b)
	c := Uniform[float32](Shape{16}, 1, rand.New(rand.NewSource(42)), b)
	assert.Equal(t, a.Data(), c.Data())
}
