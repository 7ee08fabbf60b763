// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/imperative/internal/tensor"
)

// Type aliases for public API

// Shape represents the dimensions of a variable.
type Shape = tensor.Shape

// Unknown marks a dimension whose size is not known yet.
const Unknown = tensor.Unknown

// DataType represents the element type of a variable.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32  DataType = tensor.Float32
	Float64  DataType = tensor.Float64
	Float16  DataType = tensor.Float16
	BFloat16 DataType = tensor.BFloat16
	Int32    DataType = tensor.Int32
	Int64    DataType = tensor.Int64
	Uint8    DataType = tensor.Uint8
	Bool     DataType = tensor.Bool
)

// ParseDataType maps a data type name such as "float32" or "bf16" to its
// DataType.
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}
