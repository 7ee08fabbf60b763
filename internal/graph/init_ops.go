package graph

import (
	"fmt"

	"github.com/born-ml/imperative/internal/tensor"
)

type gaussianAttrs struct {
	Shape []int   `attr:"shape"`
	Mean  float64 `attr:"mean"`
	Std   float64 `attr:"std"`
	Seed  int     `attr:"seed"`
	DType string  `attr:"dtype"`
}

func (a *gaussianAttrs) Validate() error {
	if a.Std <= 0 {
		return fmt.Errorf("std must be > 0, got %v", a.Std)
	}
	return validateFill(a.Shape, a.DType)
}

type uniformAttrs struct {
	Shape []int   `attr:"shape"`
	Min   float64 `attr:"min"`
	Max   float64 `attr:"max"`
	Seed  int     `attr:"seed"`
	DType string  `attr:"dtype"`
}

func (a *uniformAttrs) Validate() error {
	if a.Min >= a.Max {
		return fmt.Errorf("min %v must be < max %v", a.Min, a.Max)
	}
	return validateFill(a.Shape, a.DType)
}

type fillConstantAttrs struct {
	Shape []int   `attr:"shape"`
	Value float64 `attr:"value"`
	DType string  `attr:"dtype"`
}

func (a *fillConstantAttrs) Validate() error {
	return validateFill(a.Shape, a.DType)
}

func validateFill(shape []int, dtype string) error {
	if err := tensor.Shape(shape).Validate(); err != nil {
		return err
	}
	_, err := tensor.ParseDataType(dtype)
	return err
}

// registerInitializers registers the startup-block fill operators that
// parameter initializers lower to.
func (r *Registry) registerInitializers() {
	fill := func(opType string, attrs func() AttrSchema) *OpDef {
		return &OpDef{
			Type:    opType,
			Outputs: []string{"Out"},
			Attrs:   attrs,
		}
	}
	r.Register(fill("gaussian_random", func() AttrSchema { return &gaussianAttrs{} }))
	r.Register(fill("uniform_random", func() AttrSchema { return &uniformAttrs{} }))
	r.Register(fill("fill_constant", func() AttrSchema { return &fillConstantAttrs{} }))
}
