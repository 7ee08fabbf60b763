package graph

import (
	"sync"

	"github.com/born-ml/imperative/internal/tensor"
)

// VarKind is the storage kind of a variable.
type VarKind int

// Variable kinds.
const (
	// KindTensor is a dense tensor.
	KindTensor VarKind = iota
	// KindRaw is an opaque engine-owned blob, e.g. a kernel algorithm cache.
	KindRaw
)

// String returns the kind name.
func (k VarKind) String() string {
	switch k {
	case KindTensor:
		return "tensor"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Initializer describes how the engine fills a parameter before training.
//
// The program records the initializer as an operator in its startup block;
// it never computes values itself.
type Initializer interface {
	// OpType is the startup operator that performs the fill.
	OpType() string
	// Attrs returns the operator attributes for a tensor of the given shape and dtype.
	Attrs(shape tensor.Shape, dtype tensor.DataType) map[string]any
}

// ParamSpec describes a learnable tensor to be created.
type ParamSpec struct {
	Name        string
	Shape       tensor.Shape
	DType       tensor.DataType
	Initializer Initializer
	Trainable   bool
	IsBias      bool
}

// Variable is an opaque handle to a tensor in a program.
//
// Layers pass variables by identity. The shape is filled in by the program's
// shape inference when the variable is written by an operator, so a scratch
// variable has a nil shape until then.
type Variable struct {
	name        string
	kind        VarKind
	dtype       tensor.DataType
	persistable bool
	param       *paramInfo

	mu    sync.RWMutex
	shape tensor.Shape
}

type paramInfo struct {
	trainable   bool
	isBias      bool
	initializer string
}

// Name returns the variable name, unique within its program.
func (v *Variable) Name() string {
	return v.name
}

// Kind returns the storage kind.
func (v *Variable) Kind() VarKind {
	return v.kind
}

// DType returns the element type.
func (v *Variable) DType() tensor.DataType {
	return v.dtype
}

// Shape returns a copy of the currently known shape.
func (v *Variable) Shape() tensor.Shape {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.shape.Clone()
}

func (v *Variable) setShape(s tensor.Shape) {
	v.mu.Lock()
	v.shape = s.Clone()
	v.mu.Unlock()
}

// Persistable reports whether the variable outlives a single run.
func (v *Variable) Persistable() bool {
	return v.persistable
}

// IsParameter reports whether the variable is a learnable parameter.
func (v *Variable) IsParameter() bool {
	return v.param != nil
}

// Trainable reports whether the parameter receives gradient updates.
func (v *Variable) Trainable() bool {
	return v.param != nil && v.param.trainable
}

// IsBias reports whether the parameter is a bias term.
func (v *Variable) IsBias() bool {
	return v.param != nil && v.param.isBias
}

// String returns "name[shape]".
func (v *Variable) String() string {
	return v.name + v.Shape().String()
}
