package graph

import (
	"sort"
)

// OpDesc is a request to append an operator to a program.
//
// Inputs and Outputs map slot names (e.g. "Input", "Filter", "Out") to the
// variables bound to them. Most slots carry one variable; list slots such as
// the "X" input of sum carry several.
type OpDesc struct {
	Type    string
	Inputs  map[string][]*Variable
	Outputs map[string][]*Variable
	Attrs   map[string]any
}

// In is a shorthand for a single-variable slot.
func In(v *Variable) []*Variable {
	return []*Variable{v}
}

// Operator is an operator recorded in a block.
type Operator struct {
	Type    string
	Inputs  map[string][]*Variable
	Outputs map[string][]*Variable
	Attrs   map[string]any
}

// Input returns the first variable bound to slot, or nil.
func (op *Operator) Input(slot string) *Variable {
	if vs := op.Inputs[slot]; len(vs) > 0 {
		return vs[0]
	}
	return nil
}

// Output returns the first variable bound to slot, or nil.
func (op *Operator) Output(slot string) *Variable {
	if vs := op.Outputs[slot]; len(vs) > 0 {
		return vs[0]
	}
	return nil
}

// AttrInt returns an integer attribute or the default value.
func (op *Operator) AttrInt(name string, defaultVal int) int {
	if v, ok := op.Attrs[name].(int); ok {
		return v
	}
	return defaultVal
}

// AttrInts returns an integer list attribute.
func (op *Operator) AttrInts(name string) []int {
	v, _ := op.Attrs[name].([]int)
	return v
}

// AttrBool returns a boolean attribute or the default value.
func (op *Operator) AttrBool(name string, defaultVal bool) bool {
	if v, ok := op.Attrs[name].(bool); ok {
		return v
	}
	return defaultVal
}

// AttrString returns a string attribute or the default value.
func (op *Operator) AttrString(name, defaultVal string) string {
	if v, ok := op.Attrs[name].(string); ok {
		return v
	}
	return defaultVal
}

// AttrNames returns the attribute names in sorted order.
func (op *Operator) AttrNames() []string {
	names := make([]string, 0, len(op.Attrs))
	for name := range op.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedSlots(m map[string][]*Variable) []string {
	slots := make([]string, 0, len(m))
	for slot := range m {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}

func cloneSlots(m map[string][]*Variable) map[string][]*Variable {
	out := make(map[string][]*Variable, len(m))
	for slot, vs := range m {
		out[slot] = append([]*Variable(nil), vs...)
	}
	return out
}
