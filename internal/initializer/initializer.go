// Package initializer describes how parameters are filled before training.
//
// Initializers never produce values. Each one lowers to a fill operator
// (gaussian_random, uniform_random or fill_constant) recorded in a program's
// startup block, which the execution engine runs once.
package initializer

import (
	"math"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/born-ml/imperative/internal/tensor"
)

// Normal draws values from N(Mean, Std²).
type Normal struct {
	Mean float64
	Std  float64
	Seed int
}

// OpType returns "gaussian_random".
func (n Normal) OpType() string { return "gaussian_random" }

// Attrs returns the gaussian_random attributes.
func (n Normal) Attrs(shape tensor.Shape, dtype tensor.DataType) map[string]any {
	return map[string]any{
		"shape": []int(shape.Clone()),
		"mean":  n.Mean,
		"std":   n.Std,
		"seed":  n.Seed,
		"dtype": dtype.String(),
	}
}

// FanInNormal is the He-style normal initializer N(0, 2/fanIn) used for
// convolution filters.
func FanInNormal(fanIn int) Normal {
	return Normal{Mean: 0, Std: math.Sqrt(2.0 / float64(fanIn)), Seed: 0}
}

// Uniform draws values from U(Low, High).
type Uniform struct {
	Low  float64
	High float64
	Seed int
}

// OpType returns "uniform_random".
func (u Uniform) OpType() string { return "uniform_random" }

// Attrs returns the uniform_random attributes.
func (u Uniform) Attrs(shape tensor.Shape, dtype tensor.DataType) map[string]any {
	return map[string]any{
		"shape": []int(shape.Clone()),
		"min":   u.Low,
		"max":   u.High,
		"seed":  u.Seed,
		"dtype": dtype.String(),
	}
}

// Xavier (Glorot) initialization for weights.
//
// Values are drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// This initialization helps maintain variance of activations across layers.
func Xavier(fanIn, fanOut int) Uniform {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return Uniform{Low: -bound, High: bound}
}

// Constant fills every element with Value.
type Constant struct {
	Value float64
}

// OpType returns "fill_constant".
func (c Constant) OpType() string { return "fill_constant" }

// Attrs returns the fill_constant attributes. The value is rounded to what
// dtype can represent so the description matches what the engine stores.
func (c Constant) Attrs(shape tensor.Shape, dtype tensor.DataType) map[string]any {
	return map[string]any{
		"shape": []int(shape.Clone()),
		"value": RoundTo(c.Value, dtype),
		"dtype": dtype.String(),
	}
}

// Zeros is the default bias initializer.
func Zeros() Constant {
	return Constant{Value: 0}
}

// RoundTo returns v as stored in dtype, widened back to float64.
func RoundTo(v float64, dtype tensor.DataType) float64 {
	switch dtype {
	case tensor.Float32:
		return float64(float32(v))
	case tensor.Float16:
		return float64(float16.Fromfloat32(float32(v)).Float32())
	case tensor.BFloat16:
		return float64(bfloat16.DecodeFloat32(bfloat16.EncodeFloat32([]float32{float32(v)}))[0])
	case tensor.Int32, tensor.Int64, tensor.Uint8:
		return math.Trunc(v)
	case tensor.Bool:
		if v != 0 {
			return 1
		}
		return 0
	default:
		return v
	}
}
