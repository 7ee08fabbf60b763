package graph

import (
	"bytes"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/imperative/internal/tensor"
)

type constFill struct{ value float64 }

func (f constFill) OpType() string { return "fill_constant" }

func (f constFill) Attrs(shape tensor.Shape, dtype tensor.DataType) map[string]any {
	return map[string]any{"shape": []int(shape.Clone()), "value": f.value, "dtype": dtype.String()}
}

func TestUniqueName(t *testing.T) {
	p := NewProgram()
	assert.Equal(t, "fc_0", p.UniqueName("fc"))
	assert.Equal(t, "fc_1", p.UniqueName("fc"))
	assert.Equal(t, "conv2d_0", p.UniqueName("conv2d"))
}

func TestData(t *testing.T) {
	p := NewProgram()
	x, err := p.Data("x", tensor.Shape{tensor.Unknown, 3}, tensor.Float32)
	require.NoError(t, err)
	assert.Equal(t, "x", x.Name())
	assert.False(t, x.Persistable())
	assert.False(t, x.IsParameter())

	_, err = p.Data("x", tensor.Shape{1}, tensor.Float32)
	assert.ErrorIs(t, err, ErrDuplicateVar)

	_, err = p.Data("y", tensor.Shape{0, 3}, tensor.Float32)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestCreateParameter(t *testing.T) {
	p := NewProgram()
	w, err := p.CreateParameter(ParamSpec{
		Name:        "w",
		Shape:       tensor.Shape{4, 2},
		DType:       tensor.Float32,
		Initializer: constFill{value: 1},
		Trainable:   true,
	})
	require.NoError(t, err)
	assert.True(t, w.IsParameter())
	assert.True(t, w.Persistable())
	assert.True(t, w.Trainable())
	assert.False(t, w.IsBias())

	startup := p.StartupOps()
	require.Len(t, startup, 1)
	assert.Equal(t, "fill_constant", startup[0].Type)
	assert.Same(t, w, startup[0].Output("Out"))
	assert.Equal(t, []*Variable{w}, p.Parameters())

	// Same name, shape and dtype is shared
	again, err := p.CreateParameter(ParamSpec{Name: "w", Shape: tensor.Shape{4, 2}, DType: tensor.Float32})
	require.NoError(t, err)
	assert.Same(t, w, again)
	assert.Len(t, p.StartupOps(), 1)

	_, err = p.CreateParameter(ParamSpec{Name: "w", Shape: tensor.Shape{2, 4}, DType: tensor.Float32})
	assert.ErrorIs(t, err, ErrDuplicateVar)
}

func TestCreateParameter_UnresolvedShape(t *testing.T) {
	p := NewProgram()

	_, err := p.CreateParameter(ParamSpec{Name: "w", Shape: tensor.Shape{tensor.Unknown, 10}})
	require.ErrorIs(t, err, ErrUnresolvedShape)

	var allocErr *AllocationError
	require.ErrorAs(t, err, &allocErr)
	assert.Equal(t, "w", allocErr.Name)
	assert.Empty(t, p.Vars())

	_, err = p.CreateParameter(ParamSpec{Name: "w", Shape: tensor.Shape{0, 10}})
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestCreateParameter_GeneratedName(t *testing.T) {
	p := NewProgram()
	v, err := p.CreateParameter(ParamSpec{Shape: tensor.Shape{3}})
	require.NoError(t, err)
	assert.Equal(t, "param_0", v.Name())
	assert.Empty(t, p.StartupOps())
}

func TestRegisterPersistentSlot(t *testing.T) {
	p := NewProgram()
	require.NoError(t, p.RegisterPersistentSlot("cache", KindRaw))
	require.NoError(t, p.RegisterPersistentSlot("cache", KindRaw))

	vars := p.Vars()
	require.Len(t, vars, 1)
	assert.Equal(t, KindRaw, vars[0].Kind())
	assert.True(t, vars[0].Persistable())
	assert.Nil(t, vars[0].Shape())

	assert.ErrorIs(t, p.RegisterPersistentSlot("cache", KindTensor), ErrDuplicateVar)

	_, err := p.Data("x", tensor.Shape{1}, tensor.Float32)
	require.NoError(t, err)
	assert.ErrorIs(t, p.RegisterPersistentSlot("x", KindRaw), ErrDuplicateVar)
}

func TestAppendOp_Unregistered(t *testing.T) {
	p := NewProgram()
	x, _ := p.Data("x", tensor.Shape{2}, tensor.Float32)
	out := p.CreateScratch(tensor.Float32)

	err := p.AppendOp(OpDesc{
		Type:    "gelu",
		Inputs:  map[string][]*Variable{"X": In(x)},
		Outputs: map[string][]*Variable{"Out": In(out)},
	})
	require.ErrorIs(t, err, ErrUnregisteredOp)

	var gErr *GraphError
	require.ErrorAs(t, err, &gErr)
	assert.Equal(t, "gelu", gErr.OpType)
	assert.Empty(t, p.Ops())
}

func TestAppendOp_MalformedAttrs(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]any
	}{
		{"wrong type", map[string]any{"x_num_col_dims": "1", "y_num_col_dims": 1}},
		{"unknown attr", map[string]any{"x_num_col_dims": 1, "y_num_col_dims": 1, "transpose": true}},
		{"out of range", map[string]any{"x_num_col_dims": 0, "y_num_col_dims": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgram()
			x, _ := p.Data("x", tensor.Shape{2, 3}, tensor.Float32)
			w, _ := p.Data("w", tensor.Shape{3, 4}, tensor.Float32)
			out := p.CreateScratch(tensor.Float32)

			err := p.AppendOp(OpDesc{
				Type:    "mul",
				Inputs:  map[string][]*Variable{"X": In(x), "Y": In(w)},
				Outputs: map[string][]*Variable{"Out": In(out)},
				Attrs:   tt.attrs,
			})
			assert.ErrorIs(t, err, ErrMalformedAttr)
			assert.Empty(t, p.Ops())
		})
	}
}

func TestAppendOp_AttrsOnAttrlessOp(t *testing.T) {
	p := NewProgram()
	x, _ := p.Data("x", tensor.Shape{2}, tensor.Float32)
	out := p.CreateScratch(tensor.Float32)

	err := p.AppendOp(OpDesc{
		Type:    "relu",
		Inputs:  map[string][]*Variable{"X": In(x)},
		Outputs: map[string][]*Variable{"Out": In(out)},
		Attrs:   map[string]any{"alpha": 0.1},
	})
	assert.ErrorIs(t, err, ErrMalformedAttr)
}

func TestAppendOp_MissingSlot(t *testing.T) {
	p := NewProgram()
	x, _ := p.Data("x", tensor.Shape{2, 3}, tensor.Float32)
	out := p.CreateScratch(tensor.Float32)

	err := p.AppendOp(OpDesc{
		Type:    "mul",
		Inputs:  map[string][]*Variable{"X": In(x)},
		Outputs: map[string][]*Variable{"Out": In(out)},
		Attrs:   map[string]any{"x_num_col_dims": 1, "y_num_col_dims": 1},
	})
	require.ErrorIs(t, err, ErrMissingSlot)

	var gErr *GraphError
	require.ErrorAs(t, err, &gErr)
	assert.Equal(t, "Y", gErr.Attr)
}

func TestAppendOp_ForeignVariable(t *testing.T) {
	p := NewProgram()
	other := NewProgram()
	x, _ := other.Data("x", tensor.Shape{2}, tensor.Float32)
	out := p.CreateScratch(tensor.Float32)

	err := p.AppendOp(OpDesc{
		Type:    "relu",
		Inputs:  map[string][]*Variable{"X": In(x)},
		Outputs: map[string][]*Variable{"Out": In(out)},
	})
	assert.ErrorIs(t, err, ErrUnknownVar)
}

func TestAppendOp_ShapeInference(t *testing.T) {
	p := NewProgram()
	x, _ := p.Data("x", tensor.Shape{tensor.Unknown, 4, 5}, tensor.Float32)
	w, _ := p.Data("w", tensor.Shape{20, 3}, tensor.Float32)
	b, _ := p.Data("b", tensor.Shape{3}, tensor.Float32)
	h := p.CreateScratch(tensor.Float32)
	y := p.CreateScratch(tensor.Float32)
	z := p.CreateScratch(tensor.Float32)
	assert.Nil(t, h.Shape())

	require.NoError(t, p.AppendOp(OpDesc{
		Type:    "mul",
		Inputs:  map[string][]*Variable{"X": In(x), "Y": In(w)},
		Outputs: map[string][]*Variable{"Out": In(h)},
		Attrs:   map[string]any{"x_num_col_dims": 1, "y_num_col_dims": 1},
	}))
	assert.Equal(t, tensor.Shape{tensor.Unknown, 3}, h.Shape())

	require.NoError(t, p.AppendOp(OpDesc{
		Type:    "elementwise_add",
		Inputs:  map[string][]*Variable{"X": In(h), "Y": In(b)},
		Outputs: map[string][]*Variable{"Out": In(y)},
		Attrs:   map[string]any{"axis": 1},
	}))
	assert.Equal(t, tensor.Shape{tensor.Unknown, 3}, y.Shape())

	require.NoError(t, p.AppendOp(OpDesc{
		Type:    "softmax",
		Inputs:  map[string][]*Variable{"X": In(y)},
		Outputs: map[string][]*Variable{"Out": In(z)},
	}))
	assert.Equal(t, tensor.Shape{tensor.Unknown, 3}, z.Shape())

	// Flattened columns disagree with the weight rows
	bad, _ := p.Data("bad", tensor.Shape{2, 3, 5}, tensor.Float32)
	err := p.AppendOp(OpDesc{
		Type:    "mul",
		Inputs:  map[string][]*Variable{"X": In(bad), "Y": In(w)},
		Outputs: map[string][]*Variable{"Out": In(h)},
		Attrs:   map[string]any{"x_num_col_dims": 1, "y_num_col_dims": 1},
	})
	assert.ErrorIs(t, err, ErrShapeIncompatible)
	assert.Len(t, p.Ops(), 3)
}

func TestAppendOp_WindowLargerThanInput(t *testing.T) {
	p := NewProgram()
	x, _ := p.Data("x", tensor.Shape{1, 3, 2, 2}, tensor.Float32)
	f, _ := p.Data("f", tensor.Shape{4, 3, 5, 5}, tensor.Float32)
	out := p.CreateScratch(tensor.Float32)

	err := p.AppendOp(OpDesc{
		Type:    "conv2d",
		Inputs:  map[string][]*Variable{"Input": In(x), "Filter": In(f)},
		Outputs: map[string][]*Variable{"Output": In(out)},
		Attrs: map[string]any{
			"strides": []int{1, 1}, "paddings": []int{0, 0}, "dilations": []int{1, 1}, "groups": 1,
		},
	})
	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	assert.ErrorIs(t, err, ErrShapeIncompatible)
	assert.Equal(t, "conv2d", gerr.OpType)
	assert.Nil(t, out.Shape())

	// 3 - 4 truncates to 0 under stride 2; the window still does not fit
	small, _ := p.Data("small", tensor.Shape{1, 1, 3, 3}, tensor.Float32)
	err = p.AppendOp(OpDesc{
		Type:    "pool2d",
		Inputs:  map[string][]*Variable{"X": In(small)},
		Outputs: map[string][]*Variable{"Out": In(out)},
		Attrs: map[string]any{
			"pooling_type": "max", "ksize": []int{4, 4}, "strides": []int{2, 2}, "paddings": []int{0, 0},
		},
	})
	assert.ErrorIs(t, err, ErrShapeIncompatible)

	// Padding can make the window fit
	require.NoError(t, p.AppendOp(OpDesc{
		Type:    "pool2d",
		Inputs:  map[string][]*Variable{"X": In(small)},
		Outputs: map[string][]*Variable{"Out": In(out)},
		Attrs: map[string]any{
			"pooling_type": "max", "ksize": []int{4, 4}, "strides": []int{2, 2}, "paddings": []int{1, 1},
		},
	}))
	assert.Equal(t, tensor.Shape{1, 1, 1, 1}, out.Shape())
	assert.Len(t, p.Ops(), 1)
}

func TestVarsOrder(t *testing.T) {
	p := NewProgram()
	names := []string{"zeta", "alpha", "mid"}
	for _, n := range names {
		_, err := p.Data(n, tensor.Shape{1}, tensor.Float32)
		require.NoError(t, err)
	}
	tmp := p.CreateScratch(tensor.Float32)

	var got []string
	for _, v := range p.Vars() {
		got = append(got, v.Name())
	}
	assert.Equal(t, append(names, tmp.Name()), got)
}

func TestConcurrentAppend(t *testing.T) {
	p := NewProgram()
	x, _ := p.Data("x", tensor.Shape{2}, tensor.Float32)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := p.CreateScratch(tensor.Float32)
			assert.NoError(t, p.AppendOp(OpDesc{
				Type:    "relu",
				Inputs:  map[string][]*Variable{"X": In(x)},
				Outputs: map[string][]*Variable{"Out": In(out)},
			}))
		}()
	}
	wg.Wait()

	assert.Len(t, p.Ops(), 32)
	assert.Len(t, p.Vars(), 33)
}

func buildSmall(t *testing.T) *Program {
	t.Helper()
	p := NewProgram()
	x, err := p.Data("x", tensor.Shape{tensor.Unknown, 4}, tensor.Float32)
	require.NoError(t, err)
	w, err := p.CreateParameter(ParamSpec{
		Name: "fc_0.w_0", Shape: tensor.Shape{4, 2}, DType: tensor.Float32,
		Initializer: constFill{value: 0.5}, Trainable: true,
	})
	require.NoError(t, err)
	out := p.CreateScratch(tensor.Float32)
	require.NoError(t, p.AppendOp(OpDesc{
		Type:    "mul",
		Inputs:  map[string][]*Variable{"X": In(x), "Y": In(w)},
		Outputs: map[string][]*Variable{"Out": In(out)},
		Attrs:   map[string]any{"x_num_col_dims": 1, "y_num_col_dims": 1},
	}))
	require.NoError(t, p.RegisterPersistentSlot("cache", KindRaw))
	return p
}

func TestDesc(t *testing.T) {
	p := buildSmall(t)
	desc := p.Desc()

	assert.Equal(t, p.ID().String(), desc.ID)
	want := []VarDesc{
		{Name: "x", Kind: "tensor", DType: "float32", Shape: []int{-1, 4}},
		{Name: "fc_0.w_0", Kind: "tensor", DType: "float32", Shape: []int{4, 2},
			Persistable: true, Parameter: true, Trainable: true, Initializer: "fill_constant"},
		{Name: "tmp_0", Kind: "tensor", DType: "float32", Shape: []int{-1, 2}},
		{Name: "cache", Kind: "raw", DType: "float32", Persistable: true},
	}
	if diff := cmp.Diff(want, desc.Vars); diff != "" {
		t.Errorf("vars mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, desc.Main, 1)
	assert.Equal(t, map[string][]string{"X": {"x"}, "Y": {"fc_0.w_0"}}, desc.Main[0].Inputs)
	assert.Equal(t, map[string][]string{"Out": {"tmp_0"}}, desc.Main[0].Outputs)
	require.Len(t, desc.Startup, 1)
	assert.Equal(t, map[string][]string{"Out": {"fc_0.w_0"}}, desc.Startup[0].Outputs)
}

func TestWriteYAML(t *testing.T) {
	p := buildSmall(t)

	var buf bytes.Buffer
	require.NoError(t, p.WriteYAML(&buf))
	assert.Contains(t, buf.String(), "name: fc_0.w_0")
	assert.Contains(t, buf.String(), "shape: [4, 2]")

	var decoded ProgramDesc
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, p.ID().String(), decoded.ID)
	assert.Len(t, decoded.Vars, 4)
	require.Len(t, decoded.Main, 1)
	assert.Equal(t, "mul", decoded.Main[0].Type)
}

func TestMarshalCBOR(t *testing.T) {
	p := buildSmall(t)

	data, err := p.MarshalCBOR()
	require.NoError(t, err)

	// Deterministic encoding
	again, err := p.MarshalCBOR()
	require.NoError(t, err)
	assert.Equal(t, data, again)

	desc, err := DecodeDesc(data)
	require.NoError(t, err)
	want := p.Desc()
	if diff := cmp.Diff(want.Vars, desc.Vars); diff != "" {
		t.Errorf("vars mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, want.ID, desc.ID)
	require.Len(t, desc.Main, 1)
	assert.Equal(t, want.Main[0].Inputs, desc.Main[0].Inputs)

	_, err = DecodeDesc([]byte{0xff})
	assert.Error(t, err)
}

func TestSupportedOps(t *testing.T) {
	ops := NewRegistry().SupportedOps()
	for _, op := range []string{"conv2d", "depthwise_conv2d", "pool2d", "mul", "sum", "elementwise_add", "relu", "gaussian_random", "uniform_random", "fill_constant"} {
		assert.Contains(t, ops, op)
	}
	assert.IsIncreasing(t, ops)
}

func TestWithRegistry(t *testing.T) {
	r := &Registry{defs: map[string]*OpDef{}}
	r.Register(&OpDef{Type: "identity", Inputs: []string{"X"}, Outputs: []string{"Out"}, Infer: inferSameShape})
	p := NewProgram(WithRegistry(r))
	assert.Same(t, r, p.Registry())

	x, _ := p.Data("x", tensor.Shape{2}, tensor.Float32)
	out := p.CreateScratch(tensor.Float32)
	require.NoError(t, p.AppendOp(OpDesc{
		Type:    "identity",
		Inputs:  map[string][]*Variable{"X": In(x)},
		Outputs: map[string][]*Variable{"Out": In(out)},
	}))
	assert.Equal(t, tensor.Shape{2}, out.Shape())
}
