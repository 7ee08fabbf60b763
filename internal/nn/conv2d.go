package nn

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/born-ml/imperative/internal/graph"
	"github.com/born-ml/imperative/internal/initializer"
	"github.com/born-ml/imperative/internal/tensor"
)

// Persistent slots registered by Conv2D layers that select kernels through
// cuDNN. The engine stores its algorithm search results there.
const (
	SlotCUDNNFwdAlgoCache       = "kCUDNNFwdAlgoCache"
	SlotCUDNNBwdDataAlgoCache   = "kCUDNNBwdDataAlgoCache"
	SlotCUDNNBwdFilterAlgoCache = "kCUDNNBwdFilterAlgoCache"
)

// Conv2DConfig is the static configuration of a Conv2D layer.
//
// FilterSize, Stride, Padding and Dilation take one element (used for both
// height and width) or two. Stride and Dilation default to 1, Padding to 0.
type Conv2DConfig struct {
	NumChannels int
	NumFilters  int
	FilterSize  []int
	Stride      []int
	Padding     []int
	Dilation    []int
	Groups      int  // 0 means no grouping
	UseCUDNN    bool // Let the engine pick kernels through cuDNN
	Act         string
	ParamAttr   ParamAttr
	BiasAttr    ParamAttr
	Name        string
	DType       tensor.DataType
}

// Conv2D is a 2D convolutional layer.
//
// Apply appends: convolution (input, filter) -> bias add -> activation.
//
// Input shape:  [batch, num_channels, height, width]
// Filter shape: [num_filters, num_channels/groups, filter_h, filter_w]
// Bias shape:   [num_filters]
// Output shape: [batch, num_filters, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding_h - (dilation_h*(filter_h-1) + 1)) / stride_h + 1
//
// The filter is created at construction with a fan-in normal initializer,
// std = sqrt(2 / (filter_h * filter_w * num_channels)). The bias is created
// on the first Apply.
//
// Example:
//
//	conv, err := nn.NewConv2D(prog, nn.Conv2DConfig{
//	    NumChannels: 3, NumFilters: 16, FilterSize: []int{3}, Act: "relu",
//	})
//	out, err := conv.Apply(image) // [N, 16, H-2, W-2]
type Conv2D struct {
	h        *helper
	cfg      Conv2DConfig
	opType   string
	filter   Pair
	stride   Pair
	padding  Pair
	dilation Pair
	groups   int

	weight  *graph.Variable // [num_filters, num_channels/groups, filter_h, filter_w]
	preBias *graph.Variable

	mu     sync.Mutex
	built  bool
	bias   *graph.Variable // [num_filters] or nil
	preAct *graph.Variable
	out    *graph.Variable
}

// NewConv2D validates cfg and creates the layer's filter parameter.
func NewConv2D(b Builder, cfg Conv2DConfig) (*Conv2D, error) {
	const kind = "conv2d"

	if cfg.NumChannels <= 0 {
		return nil, &ConfigError{Layer: kind, Arg: "num_channels", Value: cfg.NumChannels, Reason: "must be > 0"}
	}
	if cfg.NumFilters <= 0 {
		return nil, &ConfigError{Layer: kind, Arg: "num_filters", Value: cfg.NumFilters, Reason: "must be > 0"}
	}
	if cfg.Groups < 0 {
		return nil, &ConfigError{Layer: kind, Arg: "groups", Value: cfg.Groups, Reason: "must be >= 0"}
	}
	if cfg.Groups > 0 && cfg.NumChannels%cfg.Groups != 0 {
		return nil, &ConfigError{Layer: kind, Arg: "groups", Value: cfg.Groups,
			Reason: fmt.Sprintf("num_channels %d must be divisible by groups", cfg.NumChannels)}
	}
	if len(cfg.FilterSize) == 0 {
		return nil, &ConfigError{Layer: kind, Arg: "filter_size", Value: cfg.FilterSize, Reason: "is required"}
	}
	filter, err := pairOr(kind, "filter_size", cfg.FilterSize, 0, 1)
	if err != nil {
		return nil, err
	}
	stride, err := pairOr(kind, "stride", cfg.Stride, 1, 1)
	if err != nil {
		return nil, err
	}
	padding, err := pairOr(kind, "padding", cfg.Padding, 0, 0)
	if err != nil {
		return nil, err
	}
	dilation, err := pairOr(kind, "dilation", cfg.Dilation, 1, 1)
	if err != nil {
		return nil, err
	}
	if err := checkActivation(kind, cfg.Act); err != nil {
		return nil, err
	}
	if err := checkDType(kind, cfg.DType); err != nil {
		return nil, err
	}

	c := &Conv2D{
		cfg:      cfg,
		opType:   selectConvOp(cfg),
		filter:   filter,
		stride:   stride,
		padding:  padding,
		dilation: dilation,
		groups:   1,
	}
	filterChannels := cfg.NumChannels
	if cfg.Groups > 0 {
		c.groups = cfg.Groups
		filterChannels = cfg.NumChannels / cfg.Groups
	}

	c.h = newHelper(b, kind, cfg.Name, cfg.DType)

	shape := tensor.Shape{cfg.NumFilters, filterChannels, filter[0], filter[1]}
	fanIn := filter[0] * filter[1] * cfg.NumChannels
	c.weight, err = c.h.createParameter(cfg.ParamAttr, shape, false, initializer.FanInNormal(fanIn))
	if err != nil {
		return nil, err
	}
	c.preBias = b.CreateScratch(cfg.DType)

	return c, nil
}

// selectConvOp picks depthwise_conv2d when every input channel is its own
// group, the filter count is a multiple of the channel count and cuDNN is
// not in use.
func selectConvOp(cfg Conv2DConfig) string {
	if cfg.NumChannels == cfg.Groups && cfg.NumFilters%cfg.NumChannels == 0 && !cfg.UseCUDNN {
		return "depthwise_conv2d"
	}
	return "conv2d"
}

// Apply appends the convolution, bias and activation operators.
func (c *Conv2D) Apply(input *graph.Variable) (*graph.Variable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.built {
		if c.cfg.UseCUDNN {
			for _, slot := range []string{SlotCUDNNFwdAlgoCache, SlotCUDNNBwdDataAlgoCache, SlotCUDNNBwdFilterAlgoCache} {
				if err := c.h.builder.RegisterPersistentSlot(slot, graph.KindRaw); err != nil {
					return nil, err
				}
			}
		}
		c.preAct = c.h.builder.CreateScratch(c.cfg.DType)
		c.out = c.h.builder.CreateScratch(c.cfg.DType)
		c.built = true
		slog.Debug("built layer", "layer", c.h.name, "op", c.opType, "filter", c.weight.Shape())
	}

	err := c.h.builder.AppendOp(graph.OpDesc{
		Type: c.opType,
		Inputs: map[string][]*graph.Variable{
			"Input":  graph.In(input),
			"Filter": graph.In(c.weight),
		},
		Outputs: map[string][]*graph.Variable{"Output": graph.In(c.preBias)},
		Attrs: map[string]any{
			"strides":    c.stride.Slice(),
			"paddings":   c.padding.Slice(),
			"dilations":  c.dilation.Slice(),
			"groups":     c.groups,
			"use_cudnn":  c.cfg.UseCUDNN,
			"use_mkldnn": false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.h.name, err)
	}

	preAct, err := c.h.appendBias(c.cfg.BiasAttr, c.preBias, c.preAct, 1, 2, &c.bias)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.h.name, err)
	}
	out, err := c.h.appendActivation(c.cfg.Act, preAct, c.out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.h.name, err)
	}
	return out, nil
}

// Parameters returns the filter and, once created, the bias.
func (c *Conv2D) Parameters() []*graph.Variable {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bias != nil {
		return []*graph.Variable{c.weight, c.bias}
	}
	return []*graph.Variable{c.weight}
}

// Name returns the layer name.
func (c *Conv2D) Name() string {
	return c.h.name
}

// OpType returns the selected convolution operator.
func (c *Conv2D) OpType() string {
	return c.opType
}

// Weight returns the filter parameter.
func (c *Conv2D) Weight() *graph.Variable {
	return c.weight
}

// Stride returns the normalized stride.
func (c *Conv2D) Stride() Pair {
	return c.stride
}

// Padding returns the normalized padding.
func (c *Conv2D) Padding() Pair {
	return c.padding
}

// Dilation returns the normalized dilation.
func (c *Conv2D) Dilation() Pair {
	return c.dilation
}

// String returns a string representation of the layer.
func (c *Conv2D) String() string {
	return fmt.Sprintf("Conv2D(%s, num_channels=%d, num_filters=%d, filter_size=%v, stride=%v, padding=%v, dilation=%v, groups=%d, op=%s)",
		c.h.name, c.cfg.NumChannels, c.cfg.NumFilters, c.filter, c.stride, c.padding, c.dilation, c.groups, c.opType)
}
