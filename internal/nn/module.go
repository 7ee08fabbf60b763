// Package nn implements imperative layers that build a computation graph.
//
// A layer is constructed from static configuration and appends operators
// to a Builder each time Apply is called:
//   - Conv2D: convolution (or depthwise convolution), bias add, activation
//   - Pool2D: max or average pooling
//   - FC: fully connected layer whose weight shape can be deferred until the
//     first input arrives
//   - Sequential: container chaining layers
//
// Layers never compute values. They create parameters and placeholders
// through the Builder and wire them into operators.
package nn

import (
	"github.com/born-ml/imperative/internal/graph"
	"github.com/born-ml/imperative/internal/tensor"
)

// Builder is the graph a layer appends to. *graph.Program implements it.
type Builder interface {
	// UniqueName returns a fresh "<prefix>_<n>" name.
	UniqueName(prefix string) string

	// CreateParameter creates a learnable tensor. It fails with
	// *graph.AllocationError if the shape has unresolved dimensions.
	CreateParameter(spec graph.ParamSpec) (*graph.Variable, error)

	// CreateScratch creates a placeholder whose shape the graph infers
	// when an operator writes it.
	CreateScratch(dtype tensor.DataType) *graph.Variable

	// AppendOp appends an operator. It fails with *graph.GraphError if the
	// type is not registered or an attribute is malformed.
	AppendOp(op graph.OpDesc) error

	// RegisterPersistentSlot declares an opaque engine-side variable.
	// Registering the same slot twice is a no-op.
	RegisterPersistentSlot(name string, kind graph.VarKind) error
}

var _ Builder = (*graph.Program)(nil)

// Layer is the interface implemented by every layer.
//
// Apply appends the layer's operators for input and returns the variable
// holding the result. The first Apply may also create deferred parameters.
// All layers in this package serialize concurrent Apply calls internally, so
// deferred parameters are created exactly once.
type Layer interface {
	Apply(input *graph.Variable) (*graph.Variable, error)

	// Parameters returns the learnable parameters created so far.
	Parameters() []*graph.Variable

	// Name returns the unique layer name, e.g. "conv2d_0".
	Name() string
}
