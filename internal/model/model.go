// Package model builds a Program from a YAML model description.
//
// A description names one input and a list of layers applied in order:
//
//	name: lenet
//	input:
//	  name: image
//	  shape: [-1, 3, 32, 32]
//	layers:
//	  - type: conv2d
//	    num_channels: 3
//	    num_filters: 16
//	    filter_size: 3
//	    act: relu
//	  - type: pool2d
//	    pool_size: 2
//	    pool_stride: 2
//	  - type: fc
//	    size_out: 10
//
// Layer attributes are those accepted by nn.FromAttrs. A -1 in the input
// shape is an unknown dimension.
package model

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/imperative/internal/graph"
	"github.com/born-ml/imperative/internal/nn"
	"github.com/born-ml/imperative/internal/tensor"
)

// ErrNoLayers is returned for a description without layers.
var ErrNoLayers = errors.New("model has no layers")

// Input declares the program's feed variable.
type Input struct {
	Name  string `yaml:"name"`
	Shape []int  `yaml:"shape,flow"`
	DType string `yaml:"dtype,omitempty"`
}

// File is a decoded model description.
type File struct {
	Name   string           `yaml:"name"`
	DType  string           `yaml:"dtype,omitempty"`
	Input  Input            `yaml:"input"`
	Layers []map[string]any `yaml:"layers"`
}

// Parse decodes a model description. Unknown top-level fields are errors.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if len(f.Layers) == 0 {
		return nil, ErrNoLayers
	}
	if f.Input.Name == "" {
		f.Input.Name = "input"
	}
	return &f, nil
}

// Load reads and parses a model description from path.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	f, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Model is a built description.
type Model struct {
	Program *graph.Program
	Layers  *nn.Sequential
	Input   *graph.Variable
	Output  *graph.Variable
}

// Build constructs every layer on a new program and applies them to the
// input. opts supplies defaults the description leaves out; a top-level
// dtype overrides opts.DType.
func (f *File) Build(opts nn.DecodeOptions) (*Model, error) {
	if f.DType != "" {
		dt, err := tensor.ParseDataType(f.DType)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", f.Name, err)
		}
		opts.DType = dt
	}
	inputType := opts.DType
	if f.Input.DType != "" {
		dt, err := tensor.ParseDataType(f.Input.DType)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", f.Input.Name, err)
		}
		inputType = dt
	}

	prog := graph.NewProgram()
	input, err := prog.Data(f.Input.Name, tensor.Shape(f.Input.Shape), inputType)
	if err != nil {
		return nil, err
	}

	seq := nn.NewSequential()
	for i, spec := range f.Layers {
		kind, attrs, err := splitType(spec)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layer, err := nn.FromAttrs(prog, kind, attrs, opts)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		seq.Add(layer)
	}

	output, err := seq.Apply(input)
	if err != nil {
		return nil, err
	}

	slog.Debug("built model", "name", f.Name, "program", prog.ID(), "layers", seq.Len(),
		"ops", len(prog.Ops()), "output", output.Shape())
	return &Model{Program: prog, Layers: seq, Input: input, Output: output}, nil
}

// splitType removes the "type" key from a layer entry.
func splitType(spec map[string]any) (string, map[string]any, error) {
	kind, ok := spec["type"].(string)
	if !ok {
		return "", nil, fmt.Errorf("missing or non-string type %v", spec["type"])
	}
	attrs := make(map[string]any, len(spec)-1)
	for k, v := range spec {
		if k != "type" {
			attrs[k] = v
		}
	}
	return kind, attrs, nil
}
