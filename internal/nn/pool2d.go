package nn

import (
	"fmt"
	"sync"

	"github.com/born-ml/imperative/internal/graph"
	"github.com/born-ml/imperative/internal/tensor"
)

// Pooling types.
const (
	PoolMax = "max"
	PoolAvg = "avg"
)

// Pool2DConfig is the static configuration of a Pool2D layer.
//
// PoolSize, PoolStride and PoolPadding take one or two elements.
// PoolSize is required unless GlobalPooling is set. PoolType defaults to
// max, PoolStride to 1 and PoolPadding to 0.
//
// Exclusive is false in the zero value, so a config built in Go must set it
// to get the default of FromAttrs, which decodes a missing exclusive as true.
type Pool2DConfig struct {
	PoolSize      []int
	PoolType      string
	PoolStride    []int
	PoolPadding   []int
	GlobalPooling bool
	UseCUDNN      bool
	CeilMode      bool
	Exclusive     bool // Average pooling ignores padded elements
	Name          string
	DType         tensor.DataType
}

// Pool2D is a 2D pooling layer. It has no learnable parameters; Apply
// appends a single pool2d operator.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_h, out_w], or [batch, channels, 1, 1]
// with global pooling.
//
// Example:
//
//	pool, err := nn.NewPool2D(prog, nn.Pool2DConfig{PoolSize: []int{2}, PoolStride: []int{2}})
//	out, err := pool.Apply(x) // [N, C, H/2, W/2]
type Pool2D struct {
	h       *helper
	cfg     Pool2DConfig
	size    Pair
	stride  Pair
	padding Pair

	mu  sync.Mutex
	out *graph.Variable
}

// NewPool2D validates cfg and creates the output placeholder. Invalid
// configuration fails before anything is added to the builder.
func NewPool2D(b Builder, cfg Pool2DConfig) (*Pool2D, error) {
	const kind = "pool2d"

	if cfg.PoolType == "" {
		cfg.PoolType = PoolMax
	}
	if cfg.PoolType != PoolMax && cfg.PoolType != PoolAvg {
		return nil, &ConfigError{Layer: kind, Arg: "pool_type", Value: cfg.PoolType, Reason: "must be max or avg"}
	}

	size := Pair{-1, -1}
	switch {
	case len(cfg.PoolSize) > 0:
		var err error
		if size, err = pairOr(kind, "pool_size", cfg.PoolSize, 0, 1); err != nil {
			return nil, err
		}
	case !cfg.GlobalPooling:
		return nil, &ConfigError{Layer: kind, Arg: "pool_size", Value: -1,
			Reason: "must be passed and be a valid value when global_pooling is false"}
	}

	stride, err := pairOr(kind, "pool_stride", cfg.PoolStride, 1, 1)
	if err != nil {
		return nil, err
	}
	padding, err := pairOr(kind, "pool_padding", cfg.PoolPadding, 0, 0)
	if err != nil {
		return nil, err
	}
	if err := checkDType(kind, cfg.DType); err != nil {
		return nil, err
	}

	p := &Pool2D{
		h:       newHelper(b, kind, cfg.Name, cfg.DType),
		cfg:     cfg,
		size:    size,
		stride:  stride,
		padding: padding,
	}
	p.out = b.CreateScratch(cfg.DType)
	return p, nil
}

// Apply appends the pool2d operator.
func (p *Pool2D) Apply(input *graph.Variable) (*graph.Variable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.h.builder.AppendOp(graph.OpDesc{
		Type:    "pool2d",
		Inputs:  map[string][]*graph.Variable{"X": graph.In(input)},
		Outputs: map[string][]*graph.Variable{"Out": graph.In(p.out)},
		Attrs: map[string]any{
			"pooling_type":   p.cfg.PoolType,
			"ksize":          p.size.Slice(),
			"global_pooling": p.cfg.GlobalPooling,
			"strides":        p.stride.Slice(),
			"paddings":       p.padding.Slice(),
			"use_cudnn":      p.cfg.UseCUDNN,
			"ceil_mode":      p.cfg.CeilMode,
			"use_mkldnn":     false,
			"exclusive":      p.cfg.Exclusive,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.h.name, err)
	}
	return p.out, nil
}

// Parameters returns nil; pooling has no learnable parameters.
func (p *Pool2D) Parameters() []*graph.Variable {
	return nil
}

// Name returns the layer name.
func (p *Pool2D) Name() string {
	return p.h.name
}

// PoolSize returns the normalized window size, (-1, -1) for global pooling
// without an explicit size.
func (p *Pool2D) PoolSize() Pair {
	return p.size
}

// String returns a string representation of the layer.
func (p *Pool2D) String() string {
	return fmt.Sprintf("Pool2D(%s, type=%s, size=%v, stride=%v, padding=%v, global=%v)",
		p.h.name, p.cfg.PoolType, p.size, p.stride, p.padding, p.cfg.GlobalPooling)
}
