// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides imperative layer wrappers that build a computation
// graph.
//
// # Overview
//
// This package contains:
//   - Layers: Conv2D, Pool2D, FC
//   - Utilities: Sequential, Layer interface, ParamAttr
//   - Decoding: FromAttrs for attribute maps such as YAML model files
//
// Layers never compute anything. Apply appends operators to a Builder,
// normally a *graph.Program, and returns the output variable.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/imperative/graph"
//	    "github.com/born-ml/imperative/nn"
//	    "github.com/born-ml/imperative/tensor"
//	)
//
//	func main() {
//	    prog := graph.NewProgram()
//	    image, _ := prog.Data("image", tensor.Shape{tensor.Unknown, 3, 32, 32}, tensor.Float32)
//
//	    conv, _ := nn.NewConv2D(prog, nn.Conv2DConfig{NumChannels: 3, NumFilters: 16, FilterSize: []int{3}, Act: "relu"})
//	    pool, _ := nn.NewPool2D(prog, nn.Pool2DConfig{PoolSize: []int{2}, PoolStride: []int{2}})
//	    fc, _ := nn.NewFC(prog, nn.FCConfig{SizeIn: tensor.Unknown, SizeOut: 10})
//
//	    out, err := nn.NewSequential(conv, pool, fc).Apply(image)
//	}
//
// # Layers
//
// Conv2D: creates its filter at construction, its bias on the first Apply.
// Picks depthwise_conv2d when every channel is its own group and cuDNN is off.
//
// Pool2D: max or average pooling, optionally global. No parameters.
//
// FC: flattens the input past NumFlattenDims and multiplies by a
// [size_in, size_out] weight. A deferred size_in is taken from the first
// input; later inputs must flatten to the same size.
//
// # Concurrency
//
// Layers are safe for concurrent use. A deferred FC weight is created
// exactly once even when the first calls to Apply race.
package nn
