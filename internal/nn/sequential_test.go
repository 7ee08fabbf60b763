package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/imperative/internal/graph"
	"github.com/born-ml/imperative/internal/tensor"
)

func lenet(t *testing.T, prog *graph.Program) *Sequential {
	t.Helper()
	conv, err := NewConv2D(prog, Conv2DConfig{NumChannels: 3, NumFilters: 16, FilterSize: []int{3}, Act: "relu"})
	require.NoError(t, err)
	pool, err := NewPool2D(prog, Pool2DConfig{PoolSize: []int{2}, PoolStride: []int{2}})
	require.NoError(t, err)
	fc, err := NewFC(prog, FCConfig{SizeIn: tensor.Unknown, SizeOut: 10})
	require.NoError(t, err)
	return NewSequential(conv, pool, fc)
}

// TestSequential_Chain tests conv -> pool -> deferred fc.
func TestSequential_Chain(t *testing.T) {
	prog := graph.NewProgram()
	model := lenet(t, prog)
	require.Equal(t, 3, model.Len())
	assert.Len(t, model.Parameters(), 1, "only the conv filter exists before Apply")

	x := data(t, prog, "image", tensor.Unknown, 3, 32, 32)
	out, err := model.Apply(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{tensor.Unknown, 10}, out.Shape())

	params := model.Parameters()
	require.Len(t, params, 3)
	assert.Equal(t, tensor.Shape{16, 3, 3, 3}, params[0].Shape())
	assert.Equal(t, tensor.Shape{16}, params[1].Shape())
	assert.Equal(t, tensor.Shape{16 * 15 * 15, 10}, params[2].Shape())

	var types []string
	for _, op := range prog.Ops() {
		types = append(types, op.Type)
	}
	assert.Equal(t, []string{"conv2d", "elementwise_add", "relu", "pool2d", "mul", "sum"}, types)

	fc := model.Layer(2).(*FC)
	assert.True(t, fc.Resolved())
	assert.Equal(t, "uniform_random", prog.StartupOps()[2].Type, "fc weight defaults to xavier")
}

// TestSequential_ErrorIndex tests that a failing layer is reported by index.
func TestSequential_ErrorIndex(t *testing.T) {
	prog := graph.NewProgram()
	model := lenet(t, prog)

	x := data(t, prog, "image", tensor.Unknown, 3, 32, 32)
	_, err := model.Apply(x)
	require.NoError(t, err)

	// Same channels, different spatial size: the fc weight no longer fits
	y := data(t, prog, "small", tensor.Unknown, 3, 16, 16)
	_, err = model.Apply(y)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layer 2")

	var mismatch *ShapeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3600, mismatch.Expected)
	assert.Equal(t, 16*7*7, mismatch.Actual)
}

func TestSequential_Add(t *testing.T) {
	prog := graph.NewProgram()
	model := NewSequential()
	assert.Equal(t, "sequential", model.Name())

	fc, err := NewFC(prog, FCConfig{SizeIn: 4, SizeOut: 2})
	require.NoError(t, err)
	model.Add(fc)
	assert.Equal(t, 1, model.Len())
	assert.Same(t, fc, model.Layer(0))
	assert.Panics(t, func() { model.Layer(1) })
}

// TestParamAttr_SharedWeight tests that two layers naming the same
// parameter share it.
func TestParamAttr_SharedWeight(t *testing.T) {
	prog := graph.NewProgram()
	attr := ParamAttr{Name: "shared.w"}

	a, err := NewFC(prog, FCConfig{SizeIn: 4, SizeOut: 2, ParamAttr: attr})
	require.NoError(t, err)
	b, err := NewFC(prog, FCConfig{SizeIn: 4, SizeOut: 2, ParamAttr: attr})
	require.NoError(t, err)
	assert.Same(t, a.Weight(), b.Weight())
	assert.Len(t, prog.Parameters(), 1)

	_, err = NewFC(prog, FCConfig{SizeIn: 5, SizeOut: 2, ParamAttr: attr})
	require.ErrorIs(t, err, graph.ErrDuplicateVar)
}

func TestLayerNames(t *testing.T) {
	prog := graph.NewProgram()
	a, err := NewFC(prog, FCConfig{SizeIn: 4, SizeOut: 2})
	require.NoError(t, err)
	b, err := NewFC(prog, FCConfig{SizeIn: 4, SizeOut: 2})
	require.NoError(t, err)
	c, err := NewFC(prog, FCConfig{SizeIn: 4, SizeOut: 2, Name: "head"})
	require.NoError(t, err)

	assert.Equal(t, "fc_0", a.Name())
	assert.Equal(t, "fc_1", b.Name())
	assert.Equal(t, "head", c.Name())
	assert.Equal(t, "head.w_0", c.Weight().Name())
	assert.Equal(t, "FC(fc_0, size_in=4, size_out=2, num_flatten_dims=1)", a.String())
}

func TestComputeFans(t *testing.T) {
	in, out := computeFans(tensor.Shape{20, 10})
	assert.Equal(t, 20, in)
	assert.Equal(t, 10, out)

	in, out = computeFans(tensor.Shape{16, 3, 3, 3})
	assert.Equal(t, 27, in)
	assert.Equal(t, 144, out)
}
