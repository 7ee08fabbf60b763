package nn

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/born-ml/imperative/internal/graph"
	"github.com/born-ml/imperative/internal/tensor"
)

// FCConfig is the static configuration of an FC layer.
type FCConfig struct {
	// SizeIn is the weight's leading dimension. tensor.Unknown defers it to
	// the first Apply, where it becomes the product of the input dimensions
	// from NumFlattenDims onward.
	SizeIn  int
	SizeOut int
	// NumFlattenDims leading input dimensions are kept as batch dimensions;
	// the rest are flattened into one. Zero means 1.
	NumFlattenDims int
	ParamAttr      ParamAttr
	Name           string
	DType          tensor.DataType
}

type fcState int

const (
	fcUnresolved fcState = iota // Weight not created yet
	fcResolved                  // Weight created, leading dim fixed
)

// FC is a fully connected layer.
//
// Performs: out = sum(mul(flatten(input), W))
//
// where flatten keeps the first NumFlattenDims input dimensions and
// multiplies the rest together, and W has shape [size_in, size_out].
//
// FC is a two-state machine. Constructed with SizeIn = tensor.Unknown it
// starts Unresolved and creates W on the first Apply from the input's
// shape; otherwise it starts Resolved. Once resolved, W's leading
// dimension never changes and inputs that flatten to a different size
// fail with *ShapeMismatchError.
//
// Example:
//
//	fc, err := nn.NewFC(prog, nn.FCConfig{SizeIn: tensor.Unknown, SizeOut: 10})
//	out, err := fc.Apply(x) // x: [N, 4, 5] -> W: [20, 10], out: [N, 10]
type FC struct {
	h   *helper
	cfg FCConfig

	tmp *graph.Variable
	out *graph.Variable

	mu     sync.Mutex
	state  fcState
	sizeIn int
	weight *graph.Variable // [size_in, size_out]
}

// NewFC validates cfg and, when SizeIn is known, creates the weight.
func NewFC(b Builder, cfg FCConfig) (*FC, error) {
	const kind = "fc"

	if cfg.SizeOut <= 0 {
		return nil, &ConfigError{Layer: kind, Arg: "size_out", Value: cfg.SizeOut, Reason: "must be > 0"}
	}
	if cfg.SizeIn <= 0 && cfg.SizeIn != tensor.Unknown {
		return nil, &ConfigError{Layer: kind, Arg: "size_in", Value: cfg.SizeIn, Reason: "must be > 0 or unknown (-1)"}
	}
	if cfg.NumFlattenDims < 0 {
		return nil, &ConfigError{Layer: kind, Arg: "num_flatten_dims", Value: cfg.NumFlattenDims, Reason: "must be >= 1"}
	}
	if cfg.NumFlattenDims == 0 {
		cfg.NumFlattenDims = 1
	}
	if err := checkDType(kind, cfg.DType); err != nil {
		return nil, err
	}

	f := &FC{
		h:      newHelper(b, kind, cfg.Name, cfg.DType),
		cfg:    cfg,
		state:  fcUnresolved,
		sizeIn: cfg.SizeIn,
	}
	if cfg.SizeIn != tensor.Unknown {
		if err := f.createWeight(cfg.SizeIn); err != nil {
			return nil, err
		}
	}
	f.tmp = b.CreateScratch(cfg.DType)
	f.out = b.CreateScratch(cfg.DType)
	return f, nil
}

func (f *FC) createWeight(sizeIn int) error {
	w, err := f.h.createParameter(f.cfg.ParamAttr, tensor.Shape{sizeIn, f.cfg.SizeOut}, false, nil)
	if err != nil {
		return err
	}
	f.weight = w
	f.sizeIn = sizeIn
	f.state = fcResolved
	return nil
}

// flattened returns the input's size past the batch dimensions.
func (f *FC) flattened(shape tensor.Shape) (int, error) {
	if len(shape) < f.cfg.NumFlattenDims {
		return 0, fmt.Errorf("%s: input %v has fewer than num_flatten_dims=%d dimensions: %w",
			f.h.name, shape, f.cfg.NumFlattenDims, ErrUnresolvedInput)
	}
	for _, d := range shape[f.cfg.NumFlattenDims:] {
		if d == tensor.Unknown {
			return 0, fmt.Errorf("%s: input %v: %w", f.h.name, shape, ErrUnresolvedInput)
		}
		if d <= 0 {
			return 0, fmt.Errorf("%s: input %v: %w", f.h.name, shape, graph.ErrInvalidShape)
		}
	}
	return shape.Flatten(f.cfg.NumFlattenDims), nil
}

// resolve moves the layer to the Resolved state, creating the weight from
// the input shape. It is a no-op once resolved.
func (f *FC) resolve(shape tensor.Shape, k int) error {
	if f.state == fcResolved {
		return nil
	}
	if err := f.createWeight(k); err != nil {
		return err
	}
	slog.Debug("resolved deferred weight", "layer", f.h.name, "input", shape, "weight", f.weight.Shape())
	return nil
}

// Apply appends the mul and sum operators, creating the weight first if it
// was deferred.
func (f *FC) Apply(input *graph.Variable) (*graph.Variable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	shape := input.Shape()
	k, err := f.flattened(shape)
	if err != nil {
		return nil, err
	}
	if err := f.resolve(shape, k); err != nil {
		return nil, fmt.Errorf("%s: %w", f.h.name, err)
	}
	if k != f.sizeIn {
		return nil, &ShapeMismatchError{Layer: f.h.name, Input: shape, Expected: f.sizeIn, Actual: k}
	}

	err = f.h.builder.AppendOp(graph.OpDesc{
		Type: "mul",
		Inputs: map[string][]*graph.Variable{
			"X": graph.In(input),
			"Y": graph.In(f.weight),
		},
		Outputs: map[string][]*graph.Variable{"Out": graph.In(f.tmp)},
		Attrs: map[string]any{
			"x_num_col_dims": f.cfg.NumFlattenDims,
			"y_num_col_dims": 1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.h.name, err)
	}

	err = f.h.builder.AppendOp(graph.OpDesc{
		Type:    "sum",
		Inputs:  map[string][]*graph.Variable{"X": {f.tmp}},
		Outputs: map[string][]*graph.Variable{"Out": graph.In(f.out)},
		Attrs:   map[string]any{"use_mkldnn": false},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.h.name, err)
	}
	return f.out, nil
}

// Resolved reports whether the weight has been created.
func (f *FC) Resolved() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == fcResolved
}

// Weight returns the weight parameter, or nil while unresolved.
func (f *FC) Weight() *graph.Variable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.weight
}

// Parameters returns the weight once it exists.
func (f *FC) Parameters() []*graph.Variable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.weight == nil {
		return nil
	}
	return []*graph.Variable{f.weight}
}

// Name returns the layer name.
func (f *FC) Name() string {
	return f.h.name
}

// String returns a string representation of the layer.
func (f *FC) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	in := "?"
	if f.state == fcResolved {
		in = fmt.Sprint(f.sizeIn)
	}
	return fmt.Sprintf("FC(%s, size_in=%s, size_out=%d, num_flatten_dims=%d)",
		f.h.name, in, f.cfg.SizeOut, f.cfg.NumFlattenDims)
}
