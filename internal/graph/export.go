package graph

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// VarDesc is the serializable form of a Variable.
type VarDesc struct {
	Name        string `yaml:"name" cbor:"1,keyasint"`
	Kind        string `yaml:"kind" cbor:"2,keyasint"`
	DType       string `yaml:"dtype" cbor:"3,keyasint"`
	Shape       []int  `yaml:"shape,flow,omitempty" cbor:"4,keyasint,omitempty"`
	Persistable bool   `yaml:"persistable,omitempty" cbor:"5,keyasint,omitempty"`
	Parameter   bool   `yaml:"parameter,omitempty" cbor:"6,keyasint,omitempty"`
	Trainable   bool   `yaml:"trainable,omitempty" cbor:"7,keyasint,omitempty"`
	Initializer string `yaml:"initializer,omitempty" cbor:"8,keyasint,omitempty"`
}

// OpDescRecord is the serializable form of an Operator. Slots reference
// variables by name.
type OpDescRecord struct {
	Type    string              `yaml:"type" cbor:"1,keyasint"`
	Inputs  map[string][]string `yaml:"inputs,omitempty" cbor:"2,keyasint,omitempty"`
	Outputs map[string][]string `yaml:"outputs,omitempty" cbor:"3,keyasint,omitempty"`
	Attrs   map[string]any      `yaml:"attrs,omitempty" cbor:"4,keyasint,omitempty"`
}

// ProgramDesc is the serializable description of a Program.
//
// It carries structure only. Parameter values are produced by the engine
// running the startup operators.
type ProgramDesc struct {
	ID      string         `yaml:"id" cbor:"1,keyasint"`
	Vars    []VarDesc      `yaml:"vars" cbor:"2,keyasint"`
	Startup []OpDescRecord `yaml:"startup" cbor:"3,keyasint"`
	Main    []OpDescRecord `yaml:"main" cbor:"4,keyasint"`
}

// Desc snapshots the program into its serializable form.
func (p *Program) Desc() *ProgramDesc {
	p.mu.Lock()
	defer p.mu.Unlock()

	desc := &ProgramDesc{ID: p.id.String()}
	for _, v := range p.main.variables() {
		vd := VarDesc{
			Name:        v.name,
			Kind:        v.kind.String(),
			DType:       v.dtype.String(),
			Shape:       v.Shape(),
			Persistable: v.persistable,
			Parameter:   v.IsParameter(),
			Trainable:   v.Trainable(),
		}
		if v.param != nil {
			vd.Initializer = v.param.initializer
		}
		desc.Vars = append(desc.Vars, vd)
	}
	for _, op := range p.startup.ops {
		desc.Startup = append(desc.Startup, recordOp(op))
	}
	for _, op := range p.main.ops {
		desc.Main = append(desc.Main, recordOp(op))
	}
	return desc
}

func recordOp(op *Operator) OpDescRecord {
	names := func(m map[string][]*Variable) map[string][]string {
		if len(m) == 0 {
			return nil
		}
		out := make(map[string][]string, len(m))
		for _, slot := range sortedSlots(m) {
			for _, v := range m[slot] {
				out[slot] = append(out[slot], v.name)
			}
		}
		return out
	}
	rec := OpDescRecord{
		Type:    op.Type,
		Inputs:  names(op.Inputs),
		Outputs: names(op.Outputs),
	}
	if len(op.Attrs) > 0 {
		rec.Attrs = make(map[string]any, len(op.Attrs))
		for k, v := range op.Attrs {
			rec.Attrs[k] = v
		}
	}
	return rec
}

// WriteYAML writes the program description as YAML.
func (p *Program) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p.Desc()); err != nil {
		return fmt.Errorf("encode program: %w", err)
	}
	return enc.Close()
}

// MarshalCBOR encodes the program description with deterministic CBOR.
func (p *Program) MarshalCBOR() ([]byte, error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(p.Desc())
}

// DecodeDesc decodes a description produced by MarshalCBOR.
func DecodeDesc(data []byte) (*ProgramDesc, error) {
	var desc ProgramDesc
	if err := cbor.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	return &desc, nil
}
