package initializer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/imperative/internal/tensor"
)

func TestFanInNormal(t *testing.T) {
	n := FanInNormal(3 * 3 * 3)
	assert.Equal(t, "gaussian_random", n.OpType())
	assert.InDelta(t, math.Sqrt(2.0/27.0), n.Std, 1e-12)
	assert.Zero(t, n.Mean)

	attrs := n.Attrs(tensor.Shape{16, 3, 3, 3}, tensor.Float32)
	assert.Equal(t, []int{16, 3, 3, 3}, attrs["shape"])
	assert.Equal(t, "float32", attrs["dtype"])
	assert.Equal(t, 0, attrs["seed"])
}

func TestXavierBound(t *testing.T) {
	u := Xavier(784, 128)
	bound := math.Sqrt(6.0 / float64(784+128))
	assert.InDelta(t, -bound, u.Low, 1e-12)
	assert.InDelta(t, bound, u.High, 1e-12)
	assert.Equal(t, "uniform_random", u.OpType())
}

func TestConstantRounding(t *testing.T) {
	tests := []struct {
		name  string
		dtype tensor.DataType
		value float64
		want  float64
	}{
		{"fp64 exact", tensor.Float64, 0.1, 0.1},
		{"fp32", tensor.Float32, 0.1, float64(float32(0.1))},
		{"fp16", tensor.Float16, 0.1, 0.0999755859375},
		{"bf16", tensor.BFloat16, 1.0, 1.0},
		{"int", tensor.Int64, 2.9, 2},
		{"bool", tensor.Bool, 0.5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := Constant{Value: tt.value}.Attrs(tensor.Shape{4}, tt.dtype)
			require.Contains(t, attrs, "value")
			assert.InDelta(t, tt.want, attrs["value"], 1e-12)
		})
	}
}

func TestBFloat16LosesMantissa(t *testing.T) {
	got := RoundTo(1.0+1.0/512, tensor.BFloat16)
	assert.NotEqual(t, 1.0+1.0/512, got)
	assert.InDelta(t, 1.0, got, 1.0/128)
}
