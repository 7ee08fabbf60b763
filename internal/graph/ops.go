package graph

import (
	"fmt"

	"github.com/born-ml/imperative/internal/tensor"
)

type conv2dAttrs struct {
	Strides   []int `attr:"strides"`
	Paddings  []int `attr:"paddings"`
	Dilations []int `attr:"dilations"`
	Groups    int   `attr:"groups"`
	UseCUDNN  bool  `attr:"use_cudnn"`
	UseMKLDNN bool  `attr:"use_mkldnn"`
}

func (a *conv2dAttrs) Validate() error {
	if err := checkPair("strides", a.Strides, 1); err != nil {
		return err
	}
	if err := checkPair("paddings", a.Paddings, 0); err != nil {
		return err
	}
	if err := checkPair("dilations", a.Dilations, 1); err != nil {
		return err
	}
	if a.Groups < 1 {
		return fmt.Errorf("groups must be >= 1, got %d", a.Groups)
	}
	return nil
}

type pool2dAttrs struct {
	PoolingType   string `attr:"pooling_type"`
	Ksize         []int  `attr:"ksize"`
	GlobalPooling bool   `attr:"global_pooling"`
	Strides       []int  `attr:"strides"`
	Paddings      []int  `attr:"paddings"`
	UseCUDNN      bool   `attr:"use_cudnn"`
	CeilMode      bool   `attr:"ceil_mode"`
	UseMKLDNN     bool   `attr:"use_mkldnn"`
	Exclusive     bool   `attr:"exclusive"`
}

func (a *pool2dAttrs) Validate() error {
	if a.PoolingType != "max" && a.PoolingType != "avg" {
		return fmt.Errorf("pooling_type must be max or avg, got %q", a.PoolingType)
	}
	if !a.GlobalPooling {
		if err := checkPair("ksize", a.Ksize, 1); err != nil {
			return err
		}
	}
	if err := checkPair("strides", a.Strides, 1); err != nil {
		return err
	}
	return checkPair("paddings", a.Paddings, 0)
}

type mulAttrs struct {
	XNumColDims int `attr:"x_num_col_dims"`
	YNumColDims int `attr:"y_num_col_dims"`
}

func (a *mulAttrs) Validate() error {
	if a.XNumColDims < 1 || a.YNumColDims < 1 {
		return fmt.Errorf("x_num_col_dims and y_num_col_dims must be >= 1, got %d and %d",
			a.XNumColDims, a.YNumColDims)
	}
	return nil
}

type sumAttrs struct {
	UseMKLDNN bool `attr:"use_mkldnn"`
}

func (a *sumAttrs) Validate() error { return nil }

type elementwiseAttrs struct {
	Axis int `attr:"axis"`
}

func (a *elementwiseAttrs) Validate() error {
	if a.Axis < -1 {
		return fmt.Errorf("axis must be >= -1, got %d", a.Axis)
	}
	return nil
}

func (r *Registry) registerNNOps() {
	conv := func(opType string) *OpDef {
		return &OpDef{
			Type:    opType,
			Inputs:  []string{"Input", "Filter"},
			Outputs: []string{"Output"},
			Attrs:   func() AttrSchema { return &conv2dAttrs{} },
			Infer:   inferConv2D,
		}
	}
	r.Register(conv("conv2d"))
	r.Register(conv("depthwise_conv2d"))

	r.Register(&OpDef{
		Type:    "pool2d",
		Inputs:  []string{"X"},
		Outputs: []string{"Out"},
		Attrs:   func() AttrSchema { return &pool2dAttrs{} },
		Infer:   inferPool2D,
	})
}

func (r *Registry) registerMathOps() {
	r.Register(&OpDef{
		Type:    "mul",
		Inputs:  []string{"X", "Y"},
		Outputs: []string{"Out"},
		Attrs:   func() AttrSchema { return &mulAttrs{} },
		Infer:   inferMul,
	})
	r.Register(&OpDef{
		Type:    "sum",
		Inputs:  []string{"X"},
		Outputs: []string{"Out"},
		Attrs:   func() AttrSchema { return &sumAttrs{} },
		Infer:   inferSum,
	})
	r.Register(&OpDef{
		Type:    "elementwise_add",
		Inputs:  []string{"X", "Y"},
		Outputs: []string{"Out"},
		Attrs:   func() AttrSchema { return &elementwiseAttrs{} },
		Infer:   inferElementwise,
	})
}

func (r *Registry) registerActivations() {
	for _, act := range []string{"relu", "sigmoid", "tanh", "softmax"} {
		r.Register(&OpDef{
			Type:    act,
			Inputs:  []string{"X"},
			Outputs: []string{"Out"},
			Infer:   inferSameShape,
		})
	}
}

// dims4 returns s when it has rank 4, a fully unknown rank-4 shape when s is
// unknown, or an error.
func dims4(op *Operator, slot string, s tensor.Shape) (tensor.Shape, error) {
	if s == nil {
		return tensor.Shape{tensor.Unknown, tensor.Unknown, tensor.Unknown, tensor.Unknown}, nil
	}
	if len(s) != 4 {
		return nil, &GraphError{OpType: op.Type, Attr: slot,
			Details: fmt.Sprintf("expected 4D [N,C,H,W], got %v", s), Err: ErrShapeIncompatible}
	}
	return s, nil
}

// windowOut computes one spatial output size of a sliding window. ok is
// false when the window does not fit in the padded input.
func windowOut(in, kernel, stride, pad, dilation int, ceil bool) (out int, ok bool) {
	if in == tensor.Unknown || kernel == tensor.Unknown {
		return tensor.Unknown, true
	}
	extent := dilation*(kernel-1) + 1
	span := in + 2*pad - extent
	if span < 0 {
		return 0, false
	}
	if ceil {
		span += stride - 1
	}
	return span/stride + 1, true
}

// spatialOut applies windowOut to both spatial axes of in.
func spatialOut(op *Operator, in tensor.Shape, ksize, strides, paddings, dilations []int, ceil bool) (h, w int, err error) {
	var ok bool
	if h, ok = windowOut(in[2], ksize[0], strides[0], paddings[0], dilations[0], ceil); ok {
		w, ok = windowOut(in[3], ksize[1], strides[1], paddings[1], dilations[1], ceil)
	}
	if !ok {
		return 0, 0, &GraphError{OpType: op.Type, Attr: "ksize",
			Details: fmt.Sprintf("window %v (dilations %v, paddings %v) larger than input %v", ksize, dilations, paddings, in),
			Err:     ErrShapeIncompatible}
	}
	return h, w, nil
}

func inferConv2D(op *Operator, schema AttrSchema) error {
	a := schema.(*conv2dAttrs)
	in, err := dims4(op, "Input", op.Input("Input").Shape())
	if err != nil {
		return err
	}
	filter, err := dims4(op, "Filter", op.Input("Filter").Shape())
	if err != nil {
		return err
	}
	if in[1] != tensor.Unknown && filter[1] != tensor.Unknown && in[1] != filter[1]*a.Groups {
		return &GraphError{OpType: op.Type, Attr: "Input",
			Details: fmt.Sprintf("input channels %d != filter channels %d * groups %d", in[1], filter[1], a.Groups),
			Err:     ErrShapeIncompatible}
	}

	h, w, err := spatialOut(op, in, []int{filter[2], filter[3]}, a.Strides, a.Paddings, a.Dilations, false)
	if err != nil {
		return err
	}
	op.Output("Output").setShape(tensor.Shape{in[0], filter[0], h, w})
	return nil
}

func inferPool2D(op *Operator, schema AttrSchema) error {
	a := schema.(*pool2dAttrs)
	in, err := dims4(op, "X", op.Input("X").Shape())
	if err != nil {
		return err
	}

	out := tensor.Shape{in[0], in[1], 1, 1}
	if !a.GlobalPooling {
		out[2], out[3], err = spatialOut(op, in, a.Ksize, a.Strides, a.Paddings, []int{1, 1}, a.CeilMode)
		if err != nil {
			return err
		}
	}
	op.Output("Out").setShape(out)
	return nil
}

func inferMul(op *Operator, schema AttrSchema) error {
	a := schema.(*mulAttrs)
	x := op.Input("X").Shape()
	y := op.Input("Y").Shape()
	if x == nil || y == nil {
		return nil
	}
	if len(x) < a.XNumColDims || len(y) < a.YNumColDims {
		return &GraphError{OpType: op.Type,
			Details: fmt.Sprintf("ranks of X %v and Y %v too small for num_col_dims %d/%d", x, y, a.XNumColDims, a.YNumColDims),
			Err:     ErrShapeIncompatible}
	}

	k := x.Flatten(a.XNumColDims)
	yk := y[:a.YNumColDims].NumElements()
	if k != tensor.Unknown && yk != tensor.Unknown && k != yk {
		return &GraphError{OpType: op.Type,
			Details: fmt.Sprintf("flattened X %v gives %d columns, Y %v has %d rows", x, k, y, yk),
			Err:     ErrShapeIncompatible}
	}

	out := make(tensor.Shape, 0, a.XNumColDims+len(y)-a.YNumColDims)
	out = append(out, x[:a.XNumColDims]...)
	out = append(out, y[a.YNumColDims:]...)
	op.Output("Out").setShape(out)
	return nil
}

func inferSum(op *Operator, _ AttrSchema) error {
	var out tensor.Shape
	for _, v := range op.Inputs["X"] {
		s := v.Shape()
		if s == nil {
			continue
		}
		if out != nil && s.Resolved() && out.Resolved() && !s.Equal(out) {
			return &GraphError{OpType: op.Type, Attr: "X",
				Details: fmt.Sprintf("summands disagree: %v vs %v", out, s), Err: ErrShapeIncompatible}
		}
		if out == nil {
			out = s
		}
	}
	op.Output("Out").setShape(out)
	return nil
}

func inferElementwise(op *Operator, schema AttrSchema) error {
	a := schema.(*elementwiseAttrs)
	x := op.Input("X").Shape()
	y := op.Input("Y").Shape()
	if x != nil && y != nil {
		axis := a.Axis
		if axis == -1 {
			axis = len(x) - len(y)
		}
		if axis < 0 || axis+len(y) > len(x) {
			return &GraphError{OpType: op.Type, Attr: "axis",
				Details: fmt.Sprintf("Y %v does not fit X %v at axis %d", y, x, a.Axis), Err: ErrShapeIncompatible}
		}
		for i, d := range y {
			xd := x[axis+i]
			if d != tensor.Unknown && xd != tensor.Unknown && d != xd && d != 1 {
				return &GraphError{OpType: op.Type, Attr: "Y",
					Details: fmt.Sprintf("Y %v does not broadcast to X %v at axis %d", y, x, axis), Err: ErrShapeIncompatible}
			}
		}
	}
	op.Output("Out").setShape(x)
	return nil
}

func inferSameShape(op *Operator, _ AttrSchema) error {
	op.Output("Out").setShape(op.Input("X").Shape())
	return nil
}
