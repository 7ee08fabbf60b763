package graph

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// AttrSchema is a typed view of an operator's attributes.
//
// Attributes are decoded into the schema strictly: unknown keys and values
// of the wrong type are rejected, then Validate checks value constraints.
type AttrSchema interface {
	Validate() error
}

// InferFunc sets the shapes of an operator's outputs from its inputs.
// attrs is the decoded schema returned by OpDef.Attrs, or nil.
type InferFunc func(op *Operator, attrs AttrSchema) error

// OpDef registers an operator type.
type OpDef struct {
	Type    string
	Inputs  []string          // Required input slots
	Outputs []string          // Required output slots
	Attrs   func() AttrSchema // Returns a fresh schema; nil if the op takes no attributes
	Infer   InferFunc         // Optional shape inference
}

// Registry maps operator types to their definitions.
type Registry struct {
	defs map[string]*OpDef
}

// NewRegistry creates a registry with all built-in operators.
func NewRegistry() *Registry {
	r := &Registry{
		defs: make(map[string]*OpDef),
	}

	r.registerNNOps()
	r.registerMathOps()
	r.registerActivations()
	r.registerInitializers()

	return r
}

// Register adds or replaces an operator definition.
func (r *Registry) Register(def *OpDef) {
	r.defs[def.Type] = def
}

// Get returns the definition for an operator type.
func (r *Registry) Get(opType string) (*OpDef, bool) {
	d, ok := r.defs[opType]
	return d, ok
}

// SupportedOps returns all registered operator types, sorted.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.defs))
	for op := range r.defs {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// check validates an operator request against its definition and returns
// the decoded attribute schema.
func (r *Registry) check(desc *OpDesc) (*OpDef, AttrSchema, error) {
	def, ok := r.defs[desc.Type]
	if !ok {
		return nil, nil, &GraphError{OpType: desc.Type, Err: ErrUnregisteredOp}
	}

	for _, slot := range def.Inputs {
		if !slotBound(desc.Inputs[slot]) {
			return nil, nil, &GraphError{OpType: desc.Type, Attr: slot, Details: "input not bound", Err: ErrMissingSlot}
		}
	}
	for _, slot := range def.Outputs {
		if !slotBound(desc.Outputs[slot]) {
			return nil, nil, &GraphError{OpType: desc.Type, Attr: slot, Details: "output not bound", Err: ErrMissingSlot}
		}
	}

	if def.Attrs == nil {
		if len(desc.Attrs) > 0 {
			return nil, nil, &GraphError{OpType: desc.Type, Details: "operator takes no attributes", Err: ErrMalformedAttr}
		}
		return def, nil, nil
	}

	schema := def.Attrs()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      schema,
		ErrorUnused: true,
		TagName:     "attr",
	})
	if err != nil {
		return nil, nil, err
	}
	if err := decoder.Decode(desc.Attrs); err != nil {
		return nil, nil, &GraphError{OpType: desc.Type, Details: err.Error(), Err: ErrMalformedAttr}
	}
	if err := schema.Validate(); err != nil {
		return nil, nil, &GraphError{OpType: desc.Type, Details: err.Error(), Err: ErrMalformedAttr}
	}

	return def, schema, nil
}

func slotBound(vs []*Variable) bool {
	if len(vs) == 0 {
		return false
	}
	for _, v := range vs {
		if v == nil {
			return false
		}
	}
	return true
}

func checkPair(name string, v []int, minVal int) error {
	if len(v) != 2 {
		return fmt.Errorf("%s must have 2 elements, got %v", name, v)
	}
	for _, x := range v {
		if x < minVal {
			return fmt.Errorf("%s must be >= %d, got %v", name, minVal, v)
		}
	}
	return nil
}
