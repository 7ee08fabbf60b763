// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the shape and data type descriptors of graph
// variables.
//
// # Overview
//
// Variables in a program never hold data, only a description:
//   - Shape: dimensions, where tensor.Unknown marks a size not known yet
//   - DataType: element type (float32, float16, bfloat16, ...)
//
// # Basic Usage
//
//	shape := tensor.Shape{tensor.Unknown, 4, 5}
//	shape.Flatten(1)   // 20
//	shape.Resolved()   // false
//	shape.String()     // "[?, 4, 5]"
//
//	dt, err := tensor.ParseDataType("bf16") // tensor.BFloat16
package tensor
