package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPair(t *testing.T) {
	tests := []struct {
		in       []int
		expected Pair
	}{
		{[]int{3}, Pair{3, 3}},
		{[]int{0}, Pair{0, 0}},
		{[]int{3, 5}, Pair{3, 5}},
		{[]int{-1, 2}, Pair{-1, 2}},
	}
	for _, tt := range tests {
		p, err := ToPair("conv2d", "stride", tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, p)

		// Normalizing a normalized pair is a no-op
		again, err := ToPair("conv2d", "stride", p.Slice())
		require.NoError(t, err)
		assert.Equal(t, p, again)
	}
}

func TestToPair_Invalid(t *testing.T) {
	for _, in := range [][]int{nil, {}, {1, 2, 3}} {
		_, err := ToPair("pool2d", "pool_stride", in)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "pool_stride", cfgErr.Arg)
	}
}

func TestPairOr(t *testing.T) {
	p, err := pairOr("conv2d", "dilation", nil, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, Pair{1, 1}, p)

	_, err = pairOr("conv2d", "dilation", []int{1, 0}, 1, 1)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "dilation", cfgErr.Arg)
}

func TestPair_String(t *testing.T) {
	assert.Equal(t, "(2, 3)", Pair{2, 3}.String())
	assert.Equal(t, []int{2, 3}, Pair{2, 3}.Slice())
}
