// Package graph implements the in-memory program that layers append to.
//
// A Program holds two blocks: the main block, which receives the operators
// layers emit on Apply, and the startup block, which receives one fill
// operator per parameter describing how the engine initializes it. The
// program validates every operator against its Registry and runs shape
// inference so that downstream layers see concrete output shapes.
//
// The program never executes anything. It is a description handed to an
// execution engine.
package graph

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/born-ml/imperative/internal/logutil"
	"github.com/born-ml/imperative/internal/tensor"
)

// Program is a graph under construction. It is safe for concurrent use.
type Program struct {
	id       uuid.UUID
	registry *Registry

	mu      sync.Mutex
	main    *Block
	startup *Block
	names   *nameGenerator
}

// Option configures a Program.
type Option func(*Program)

// WithRegistry replaces the built-in operator registry.
func WithRegistry(r *Registry) Option {
	return func(p *Program) {
		p.registry = r
	}
}

// NewProgram creates an empty program.
func NewProgram(opts ...Option) *Program {
	p := &Program{
		id:      uuid.New(),
		main:    newBlock(),
		startup: newBlock(),
		names:   newNameGenerator(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = NewRegistry()
	}
	return p
}

// ID returns the program's unique identifier.
func (p *Program) ID() uuid.UUID {
	return p.id
}

// Registry returns the operator registry used for validation.
func (p *Program) Registry() *Registry {
	return p.registry
}

// UniqueName returns a name of the form "<prefix>_<n>" not handed out before.
func (p *Program) UniqueName(prefix string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.names.next(prefix)
}

// Data declares a feed variable. Dimensions may be tensor.Unknown, which is
// the usual choice for the batch dimension.
func (p *Program) Data(name string, shape tensor.Shape, dtype tensor.DataType) (*Variable, error) {
	for _, dim := range shape {
		if dim <= 0 && dim != tensor.Unknown {
			return nil, &AllocationError{Name: name, Shape: shape, Err: ErrInvalidShape}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.main.lookup(name); ok {
		return nil, &AllocationError{Name: name, Shape: shape, Err: ErrDuplicateVar}
	}
	v := &Variable{name: name, kind: KindTensor, dtype: dtype, shape: shape.Clone()}
	p.main.add(v)
	return v, nil
}

// CreateParameter creates a persistable learnable variable and records its
// initializer in the startup block.
//
// Creating a parameter whose name already exists returns the existing
// variable when shape and dtype agree, which is how layers share weights.
func (p *Program) CreateParameter(spec ParamSpec) (*Variable, error) {
	if !spec.Shape.Resolved() {
		return nil, &AllocationError{Name: spec.Name, Shape: spec.Shape, Err: ErrUnresolvedShape}
	}
	if err := spec.Shape.Validate(); err != nil {
		return nil, &AllocationError{Name: spec.Name, Shape: spec.Shape, Err: fmt.Errorf("%w: %v", ErrInvalidShape, err)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if spec.Name == "" {
		spec.Name = p.names.next("param")
	}
	if v, ok := p.main.lookup(spec.Name); ok {
		if v.IsParameter() && v.dtype == spec.DType && v.Shape().Equal(spec.Shape) {
			return v, nil
		}
		return nil, &AllocationError{Name: spec.Name, Shape: spec.Shape, Err: ErrDuplicateVar}
	}

	v := &Variable{
		name:        spec.Name,
		kind:        KindTensor,
		dtype:       spec.DType,
		persistable: true,
		param:       &paramInfo{trainable: spec.Trainable, isBias: spec.IsBias},
		shape:       spec.Shape.Clone(),
	}

	if spec.Initializer != nil {
		desc := OpDesc{
			Type:    spec.Initializer.OpType(),
			Outputs: map[string][]*Variable{"Out": In(v)},
			Attrs:   spec.Initializer.Attrs(spec.Shape, spec.DType),
		}
		if _, err := p.appendLocked(p.startup, &desc); err != nil {
			return nil, err
		}
		v.param.initializer = desc.Type
	}

	p.main.add(v)
	p.startup.add(v)
	slog.Debug("created parameter", "name", v.name, "shape", spec.Shape, "dtype", spec.DType, "bias", spec.IsBias)
	return v, nil
}

// CreateScratch creates a temporary variable whose shape is filled in by
// the operator that writes it.
func (p *Program) CreateScratch(dtype tensor.DataType) *Variable {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := &Variable{name: p.names.next("tmp"), kind: KindTensor, dtype: dtype}
	p.main.add(v)
	return v
}

// RegisterPersistentSlot declares an engine-owned persistable variable.
// Registering the same name and kind again is a no-op.
func (p *Program) RegisterPersistentSlot(name string, kind VarKind) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.main.lookup(name); ok {
		if v.persistable && v.kind == kind && !v.IsParameter() {
			return nil
		}
		return &AllocationError{Name: name, Err: ErrDuplicateVar}
	}
	p.main.add(&Variable{name: name, kind: kind, persistable: true})
	return nil
}

// AppendOp validates op against the registry, runs shape inference and
// appends it to the main block.
func (p *Program) AppendOp(op OpDesc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	appended, err := p.appendLocked(p.main, &op)
	if err != nil {
		return err
	}
	logutil.Trace("appended operator", "type", appended.Type, "index", len(p.main.ops)-1)
	return nil
}

func (p *Program) appendLocked(b *Block, desc *OpDesc) (*Operator, error) {
	def, attrs, err := p.registry.check(desc)
	if err != nil {
		return nil, err
	}

	for _, slots := range []map[string][]*Variable{desc.Inputs, desc.Outputs} {
		for slot, vs := range slots {
			for _, v := range vs {
				if v == nil {
					return nil, &GraphError{OpType: desc.Type, Attr: slot, Details: "nil variable", Err: ErrMissingSlot}
				}
				// Parameters being initialized are not registered until their
				// fill operator is accepted.
				if b == p.startup {
					continue
				}
				if known, ok := p.main.lookup(v.name); !ok || known != v {
					return nil, &GraphError{OpType: desc.Type, Attr: slot,
						Details: fmt.Sprintf("variable %q does not belong to this program", v.name), Err: ErrUnknownVar}
				}
			}
		}
	}

	op := &Operator{
		Type:    desc.Type,
		Inputs:  cloneSlots(desc.Inputs),
		Outputs: cloneSlots(desc.Outputs),
		Attrs:   make(map[string]any, len(desc.Attrs)),
	}
	for k, v := range desc.Attrs {
		op.Attrs[k] = v
	}

	if def.Infer != nil {
		if err := def.Infer(op, attrs); err != nil {
			return nil, err
		}
	}

	b.ops = append(b.ops, op)
	return op, nil
}

// Var returns the variable with the given name.
func (p *Program) Var(name string) (*Variable, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.main.lookup(name)
}

// Vars returns all variables in creation order.
func (p *Program) Vars() []*Variable {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.main.variables()
}

// Parameters returns all learnable parameters in creation order.
func (p *Program) Parameters() []*Variable {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startup.variables()
}

// Ops returns the main block operators in append order.
func (p *Program) Ops() []*Operator {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.main.operators()
}

// StartupOps returns the parameter initialization operators.
func (p *Program) StartupOps() []*Operator {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startup.operators()
}
