// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/imperative/internal/nn"
)

// Builder is the graph-construction surface layers append to.
// *graph.Program implements it.
type Builder = nn.Builder

// Layer is the interface shared by all layers.
type Layer = nn.Layer

// ParamAttr configures how a layer creates one of its parameters.
type ParamAttr = nn.ParamAttr

// Pair is a (height, width) argument such as a stride or kernel size.
type Pair = nn.Pair

// ToPair normalizes a scalar-or-pair argument.
func ToPair(layer, arg string, v []int) (Pair, error) {
	return nn.ToPair(layer, arg, v)
}

// Layers

// Conv2D represents a 2D convolutional layer.
type Conv2D = nn.Conv2D

// Conv2DConfig is the static configuration of a Conv2D layer.
type Conv2DConfig = nn.Conv2DConfig

// NewConv2D creates a 2D convolutional layer and its filter parameter.
//
// Example:
//
//	prog := graph.NewProgram()
//	conv, err := nn.NewConv2D(prog, nn.Conv2DConfig{
//	    NumChannels: 3, NumFilters: 16, FilterSize: []int{3}, Act: "relu",
//	})
func NewConv2D(b Builder, cfg Conv2DConfig) (*Conv2D, error) {
	return nn.NewConv2D(b, cfg)
}

// Persistent slots registered by Conv2D layers that use cuDNN.
const (
	SlotCUDNNFwdAlgoCache       = nn.SlotCUDNNFwdAlgoCache
	SlotCUDNNBwdDataAlgoCache   = nn.SlotCUDNNBwdDataAlgoCache
	SlotCUDNNBwdFilterAlgoCache = nn.SlotCUDNNBwdFilterAlgoCache
)

// Pool2D represents a 2D pooling layer.
type Pool2D = nn.Pool2D

// Pool2DConfig is the static configuration of a Pool2D layer.
type Pool2DConfig = nn.Pool2DConfig

// Pooling types.
const (
	PoolMax = nn.PoolMax
	PoolAvg = nn.PoolAvg
)

// NewPool2D creates a 2D pooling layer.
//
// Example:
//
//	pool, err := nn.NewPool2D(prog, nn.Pool2DConfig{PoolSize: []int{2}, PoolStride: []int{2}})
func NewPool2D(b Builder, cfg Pool2DConfig) (*Pool2D, error) {
	return nn.NewPool2D(b, cfg)
}

// FC represents a fully connected layer with an optionally deferred weight.
type FC = nn.FC

// FCConfig is the static configuration of an FC layer.
type FCConfig = nn.FCConfig

// NewFC creates a fully connected layer. With SizeIn = tensor.Unknown the
// weight is created on the first Apply.
//
// Example:
//
//	fc, err := nn.NewFC(prog, nn.FCConfig{SizeIn: tensor.Unknown, SizeOut: 10})
func NewFC(b Builder, cfg FCConfig) (*FC, error) {
	return nn.NewFC(b, cfg)
}

// Containers

// Sequential chains layers together.
type Sequential = nn.Sequential

// NewSequential creates a Sequential container.
func NewSequential(layers ...Layer) *Sequential {
	return nn.NewSequential(layers...)
}

// Decoding

// DecodeOptions holds defaults for attributes a layer description omits.
type DecodeOptions = nn.DecodeOptions

// FromAttrs builds a layer of the given kind from an attribute map.
func FromAttrs(b Builder, kind string, attrs map[string]any, opts DecodeOptions) (Layer, error) {
	return nn.FromAttrs(b, kind, attrs, opts)
}

// Errors

// ConfigError reports invalid static layer configuration.
type ConfigError = nn.ConfigError

// ShapeMismatchError reports an input incompatible with a fixed weight.
type ShapeMismatchError = nn.ShapeMismatchError

// ErrUnresolvedInput is returned when a layer needs a concrete input
// dimension the input does not have yet.
var ErrUnresolvedInput = nn.ErrUnresolvedInput
