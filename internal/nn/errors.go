package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/imperative/internal/tensor"
)

// ErrUnresolvedInput is returned when a layer needs a concrete input
// dimension that the input variable does not have yet.
var ErrUnresolvedInput = errors.New("input shape has unresolved dimensions")

// ConfigError reports invalid static layer configuration. It is only
// returned by constructors, never by Apply.
type ConfigError struct {
	Layer  string // Layer kind, e.g. "conv2d"
	Arg    string // Offending argument
	Value  any    // Received value
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: invalid %s %v: %s", e.Layer, e.Arg, e.Value, e.Reason)
}

// ShapeMismatchError reports an input whose flattened dimension disagrees
// with a parameter shape fixed by an earlier Apply.
type ShapeMismatchError struct {
	Layer    string       // Layer name
	Input    tensor.Shape // Offending input shape
	Expected int          // Flattened dimension the parameter was built for
	Actual   int          // Flattened dimension of this input
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: input %v flattens to %d, weight expects %d",
		e.Layer, e.Input, e.Actual, e.Expected)
}
