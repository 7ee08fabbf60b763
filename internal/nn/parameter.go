package nn

import (
	"fmt"

	"github.com/born-ml/imperative/internal/graph"
	"github.com/born-ml/imperative/internal/initializer"
	"github.com/born-ml/imperative/internal/tensor"
)

// ParamAttr configures how a layer creates one of its parameters.
//
// The zero value means: generated name, the layer's default initializer,
// trainable.
//
// Example:
//
//	// Share a weight between two layers and freeze it
//	attr := nn.ParamAttr{Name: "shared.w", Frozen: true}
type ParamAttr struct {
	Name        string            // Explicit parameter name (reused if it already exists)
	Initializer graph.Initializer // Overrides the layer's default initializer
	Frozen      bool              // Excluded from gradient updates
	Disabled    bool              // Only meaningful for biases: no bias is created
}

// helper holds what every layer needs to talk to the builder.
type helper struct {
	name    string // Unique layer name, e.g. "fc_0"
	builder Builder
	dtype   tensor.DataType
}

func newHelper(b Builder, kind, name string, dtype tensor.DataType) *helper {
	if name == "" {
		name = b.UniqueName(kind)
	}
	return &helper{name: name, builder: b, dtype: dtype}
}

// createParameter creates a weight ("<layer>.w_<n>") or bias
// ("<layer>.b_<n>") parameter. Weights default to def, or Xavier when def
// is nil; biases default to zeros.
func (h *helper) createParameter(attr ParamAttr, shape tensor.Shape, isBias bool, def graph.Initializer) (*graph.Variable, error) {
	name := attr.Name
	if name == "" {
		suffix := ".w"
		if isBias {
			suffix = ".b"
		}
		name = h.builder.UniqueName(h.name + suffix)
	}

	fill := attr.Initializer
	switch {
	case fill != nil:
	case isBias:
		fill = initializer.Zeros()
	case def != nil:
		fill = def
	default:
		fanIn, fanOut := computeFans(shape)
		fill = initializer.Xavier(fanIn, fanOut)
	}

	return h.builder.CreateParameter(graph.ParamSpec{
		Name:        name,
		Shape:       shape,
		DType:       h.dtype,
		Initializer: fill,
		Trainable:   !attr.Frozen,
		IsBias:      isBias,
	})
}

// appendBias adds bias, broadcast along dimStart, to input and writes out.
// The bias shape is input.Shape()[dimStart:dimEnd]; *bias is created on the
// first call and reused afterwards.
func (h *helper) appendBias(attr ParamAttr, input, out *graph.Variable, dimStart, dimEnd int, bias **graph.Variable) (*graph.Variable, error) {
	if attr.Disabled {
		return input, nil
	}
	if *bias == nil {
		shape := input.Shape()
		if len(shape) < dimEnd {
			return nil, fmt.Errorf("%s: bias needs input rank >= %d, got %v: %w", h.name, dimEnd, shape, ErrUnresolvedInput)
		}
		b, err := h.createParameter(attr, shape[dimStart:dimEnd].Clone(), true, nil)
		if err != nil {
			return nil, err
		}
		*bias = b
	}

	err := h.builder.AppendOp(graph.OpDesc{
		Type:    "elementwise_add",
		Inputs:  map[string][]*graph.Variable{"X": graph.In(input), "Y": graph.In(*bias)},
		Outputs: map[string][]*graph.Variable{"Out": graph.In(out)},
		Attrs:   map[string]any{"axis": dimStart},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// appendActivation applies act to input, writing out. An empty act returns
// input unchanged.
func (h *helper) appendActivation(act string, input, out *graph.Variable) (*graph.Variable, error) {
	if act == "" {
		return input, nil
	}
	err := h.builder.AppendOp(graph.OpDesc{
		Type:    act,
		Inputs:  map[string][]*graph.Variable{"X": graph.In(input)},
		Outputs: map[string][]*graph.Variable{"Out": graph.In(out)},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// computeFans returns fan-in and fan-out for a weight shape: [in, out] for
// matrices, [out, in, k...] for convolution filters.
func computeFans(shape tensor.Shape) (int, int) {
	switch len(shape) {
	case 0:
		return 1, 1
	case 1:
		return shape[0], shape[0]
	case 2:
		return shape[0], shape[1]
	default:
		receptive := shape.Flatten(2)
		return shape[1] * receptive, shape[0] * receptive
	}
}

// activations lists the activation ops layers may name in Act.
var activations = map[string]bool{
	"":        true,
	"relu":    true,
	"sigmoid": true,
	"tanh":    true,
	"softmax": true,
}

func checkActivation(layer, act string) error {
	if !activations[act] {
		return &ConfigError{Layer: layer, Arg: "act", Value: act, Reason: "unsupported activation"}
	}
	return nil
}

func checkDType(layer string, dtype tensor.DataType) error {
	if !dtype.IsFloat() {
		return &ConfigError{Layer: layer, Arg: "dtype", Value: dtype, Reason: "layers require a floating point type"}
	}
	return nil
}
