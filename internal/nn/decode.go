package nn

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/born-ml/imperative/internal/graph"
	"github.com/born-ml/imperative/internal/initializer"
	"github.com/born-ml/imperative/internal/tensor"
)

// DecodeOptions holds defaults for attributes a layer description omits.
type DecodeOptions struct {
	DType    tensor.DataType
	UseCUDNN bool
}

type initSpec struct {
	Type  string  `mapstructure:"type"`
	Mean  float64 `mapstructure:"mean"`
	Std   float64 `mapstructure:"std"`
	Low   float64 `mapstructure:"low"`
	High  float64 `mapstructure:"high"`
	Value float64 `mapstructure:"value"`
	Seed  int     `mapstructure:"seed"`
}

type paramAttrSpec struct {
	Name        string    `mapstructure:"name"`
	Trainable   *bool     `mapstructure:"trainable"`
	Initializer *initSpec `mapstructure:"initializer"`
}

type conv2DSpec struct {
	NumChannels int            `mapstructure:"num_channels"`
	NumFilters  int            `mapstructure:"num_filters"`
	FilterSize  []int          `mapstructure:"filter_size"`
	Stride      []int          `mapstructure:"stride"`
	Padding     []int          `mapstructure:"padding"`
	Dilation    []int          `mapstructure:"dilation"`
	Groups      int            `mapstructure:"groups"`
	UseCUDNN    bool           `mapstructure:"use_cudnn"`
	Act         string         `mapstructure:"act"`
	Bias        *bool          `mapstructure:"bias"`
	ParamAttr   *paramAttrSpec `mapstructure:"param_attr"`
	BiasAttr    *paramAttrSpec `mapstructure:"bias_attr"`
	Name        string         `mapstructure:"name"`
	DType       string         `mapstructure:"dtype"`
}

type pool2DSpec struct {
	PoolSize      []int  `mapstructure:"pool_size"`
	PoolType      string `mapstructure:"pool_type"`
	PoolStride    []int  `mapstructure:"pool_stride"`
	PoolPadding   []int  `mapstructure:"pool_padding"`
	GlobalPooling bool   `mapstructure:"global_pooling"`
	UseCUDNN      bool   `mapstructure:"use_cudnn"`
	CeilMode      bool   `mapstructure:"ceil_mode"`
	Exclusive     bool   `mapstructure:"exclusive"`
	Name          string `mapstructure:"name"`
	DType         string `mapstructure:"dtype"`
}

type fcSpec struct {
	SizeIn         int            `mapstructure:"size_in"`
	SizeOut        int            `mapstructure:"size_out"`
	NumFlattenDims int            `mapstructure:"num_flatten_dims"`
	ParamAttr      *paramAttrSpec `mapstructure:"param_attr"`
	Name           string         `mapstructure:"name"`
	DType          string         `mapstructure:"dtype"`
}

// boolFlags lists the attributes that must be booleans, per layer kind.
var boolFlags = map[string][]string{
	"conv2d": {"use_cudnn", "bias"},
	"pool2d": {"use_cudnn", "global_pooling", "ceil_mode", "exclusive"},
	"fc":     nil,
}

// FromAttrs builds a layer of the given kind ("conv2d", "pool2d" or "fc")
// from an attribute map such as one decoded from YAML. Scalars are accepted
// wherever a pair is expected. Unknown keys, wrongly typed values and
// non-boolean flags fail with *ConfigError.
func FromAttrs(b Builder, kind string, attrs map[string]any, opts DecodeOptions) (Layer, error) {
	flags, ok := boolFlags[kind]
	if !ok {
		return nil, &ConfigError{Layer: kind, Arg: "type", Value: kind, Reason: "unknown layer type"}
	}
	for _, flag := range flags {
		if v, ok := attrs[flag]; ok {
			if _, isBool := v.(bool); !isBool {
				return nil, &ConfigError{Layer: kind, Arg: flag, Value: v, Reason: "must be true or false"}
			}
		}
	}

	switch kind {
	case "conv2d":
		spec := conv2DSpec{UseCUDNN: opts.UseCUDNN}
		if err := decodeSpec(kind, attrs, &spec); err != nil {
			return nil, err
		}
		return spec.build(b, opts)
	case "pool2d":
		spec := pool2DSpec{UseCUDNN: opts.UseCUDNN, Exclusive: true}
		if err := decodeSpec(kind, attrs, &spec); err != nil {
			return nil, err
		}
		return spec.build(b, opts)
	default:
		spec := fcSpec{SizeIn: tensor.Unknown, NumFlattenDims: 1}
		if err := decodeSpec(kind, attrs, &spec); err != nil {
			return nil, err
		}
		return spec.build(b, opts)
	}
}

func decodeSpec(kind string, attrs map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  scalarToSliceHook,
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(attrs); err != nil {
		return &ConfigError{Layer: kind, Arg: "attributes", Value: attrs, Reason: err.Error()}
	}
	return nil
}

// scalarToSliceHook lets a single integer stand for a pair.
func scalarToSliceHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf([]int(nil)) {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return []int{int(reflect.ValueOf(data).Int())}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return []int{int(reflect.ValueOf(data).Uint())}, nil
	}
	return data, nil
}

func parseDType(kind, s string, def tensor.DataType) (tensor.DataType, error) {
	if s == "" {
		return def, nil
	}
	dt, err := tensor.ParseDataType(s)
	if err != nil {
		return dt, &ConfigError{Layer: kind, Arg: "dtype", Value: s, Reason: err.Error()}
	}
	return dt, nil
}

func (s *paramAttrSpec) attr(kind, arg string) (ParamAttr, error) {
	if s == nil {
		return ParamAttr{}, nil
	}
	attr := ParamAttr{Name: s.Name}
	if s.Trainable != nil {
		attr.Frozen = !*s.Trainable
	}
	if s.Initializer != nil {
		fill, err := s.Initializer.initializer()
		if err != nil {
			return attr, &ConfigError{Layer: kind, Arg: arg + ".initializer", Value: s.Initializer.Type, Reason: err.Error()}
		}
		attr.Initializer = fill
	}
	return attr, nil
}

func (s *initSpec) initializer() (graph.Initializer, error) {
	switch s.Type {
	case "normal":
		if s.Std <= 0 {
			return nil, fmt.Errorf("std must be > 0")
		}
		return initializer.Normal{Mean: s.Mean, Std: s.Std, Seed: s.Seed}, nil
	case "uniform":
		if s.Low >= s.High {
			return nil, fmt.Errorf("low must be < high")
		}
		return initializer.Uniform{Low: s.Low, High: s.High, Seed: s.Seed}, nil
	case "constant":
		return initializer.Constant{Value: s.Value}, nil
	default:
		return nil, fmt.Errorf("unknown initializer type")
	}
}

func (s *conv2DSpec) build(b Builder, opts DecodeOptions) (Layer, error) {
	const kind = "conv2d"
	dtype, err := parseDType(kind, s.DType, opts.DType)
	if err != nil {
		return nil, err
	}
	paramAttr, err := s.ParamAttr.attr(kind, "param_attr")
	if err != nil {
		return nil, err
	}
	biasAttr, err := s.BiasAttr.attr(kind, "bias_attr")
	if err != nil {
		return nil, err
	}
	if s.Bias != nil && !*s.Bias {
		biasAttr.Disabled = true
	}
	layer, err := NewConv2D(b, Conv2DConfig{
		NumChannels: s.NumChannels,
		NumFilters:  s.NumFilters,
		FilterSize:  s.FilterSize,
		Stride:      s.Stride,
		Padding:     s.Padding,
		Dilation:    s.Dilation,
		Groups:      s.Groups,
		UseCUDNN:    s.UseCUDNN,
		Act:         s.Act,
		ParamAttr:   paramAttr,
		BiasAttr:    biasAttr,
		Name:        s.Name,
		DType:       dtype,
	})
	if err != nil {
		return nil, err
	}
	return layer, nil
}

func (s *pool2DSpec) build(b Builder, opts DecodeOptions) (Layer, error) {
	const kind = "pool2d"
	dtype, err := parseDType(kind, s.DType, opts.DType)
	if err != nil {
		return nil, err
	}
	poolSize := s.PoolSize
	if len(poolSize) == 1 && poolSize[0] == -1 {
		poolSize = nil
	}
	layer, err := NewPool2D(b, Pool2DConfig{
		PoolSize:      poolSize,
		PoolType:      s.PoolType,
		PoolStride:    s.PoolStride,
		PoolPadding:   s.PoolPadding,
		GlobalPooling: s.GlobalPooling,
		UseCUDNN:      s.UseCUDNN,
		CeilMode:      s.CeilMode,
		Exclusive:     s.Exclusive,
		Name:          s.Name,
		DType:         dtype,
	})
	if err != nil {
		return nil, err
	}
	return layer, nil
}

func (s *fcSpec) build(b Builder, opts DecodeOptions) (Layer, error) {
	const kind = "fc"
	dtype, err := parseDType(kind, s.DType, opts.DType)
	if err != nil {
		return nil, err
	}
	paramAttr, err := s.ParamAttr.attr(kind, "param_attr")
	if err != nil {
		return nil, err
	}
	layer, err := NewFC(b, FCConfig{
		SizeIn:         s.SizeIn,
		SizeOut:        s.SizeOut,
		NumFlattenDims: s.NumFlattenDims,
		ParamAttr:      paramAttr,
		Name:           s.Name,
		DType:          dtype,
	})
	if err != nil {
		return nil, err
	}
	return layer, nil
}
