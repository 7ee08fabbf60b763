// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/imperative/graph"
	"github.com/born-ml/imperative/nn"
	"github.com/born-ml/imperative/tensor"
)

// TestPublicAPI tests that the public aliases compose into a model.
func TestPublicAPI(t *testing.T) {
	prog := graph.NewProgram()
	image, err := prog.Data("image", tensor.Shape{tensor.Unknown, 3, 32, 32}, tensor.Float32)
	require.NoError(t, err)

	conv, err := nn.NewConv2D(prog, nn.Conv2DConfig{NumChannels: 3, NumFilters: 16, FilterSize: []int{3}, Act: "relu"})
	require.NoError(t, err)
	pool, err := nn.NewPool2D(prog, nn.Pool2DConfig{PoolSize: []int{2}, PoolStride: []int{2}})
	require.NoError(t, err)
	fc, err := nn.NewFC(prog, nn.FCConfig{SizeIn: tensor.Unknown, SizeOut: 10})
	require.NoError(t, err)

	var model nn.Layer = nn.NewSequential(conv, pool, fc)
	out, err := model.Apply(image)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{tensor.Unknown, 10}, out.Shape())
	assert.Len(t, model.Parameters(), 3)
}

func TestPublicErrors(t *testing.T) {
	prog := graph.NewProgram()

	_, err := nn.NewPool2D(prog, nn.Pool2DConfig{})
	var cfgErr *nn.ConfigError
	require.ErrorAs(t, err, &cfgErr)

	p, err := nn.ToPair("conv2d", "stride", []int{2})
	require.NoError(t, err)
	assert.Equal(t, nn.Pair{2, 2}, p)
}

func Example() {
	prog := graph.NewProgram()
	x, _ := prog.Data("x", tensor.Shape{tensor.Unknown, 4, 5}, tensor.Float32)

	fc, _ := nn.NewFC(prog, nn.FCConfig{SizeIn: tensor.Unknown, SizeOut: 10})
	fmt.Println(fc.Resolved())

	out, _ := fc.Apply(x)
	fmt.Println(fc.Weight().Shape(), out.Shape())
	// Output:
	// false
	// [20, 10] [?, 10]
}
