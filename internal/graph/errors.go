package graph

import (
	"errors"
	"fmt"

	"github.com/born-ml/imperative/internal/tensor"
)

// Common errors.
var (
	ErrUnresolvedShape   = errors.New("shape has unresolved dimensions")
	ErrInvalidShape      = errors.New("shape has non-positive dimensions")
	ErrDuplicateVar      = errors.New("variable already exists with a different definition")
	ErrUnregisteredOp    = errors.New("operator type is not registered")
	ErrMalformedAttr     = errors.New("malformed operator attribute")
	ErrMissingSlot       = errors.New("missing operator input or output")
	ErrShapeIncompatible = errors.New("incompatible operand shapes")
	ErrUnknownVar        = errors.New("variable does not belong to the program")
)

// AllocationError reports a tensor that the program refused to create.
type AllocationError struct {
	Name  string       // Variable name
	Shape tensor.Shape // Requested shape
	Err   error        // Underlying cause (one of the sentinel errors)
}

// Error implements the error interface.
func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocate %q with shape %v: %v", e.Name, e.Shape, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AllocationError) Unwrap() error {
	return e.Err
}

// GraphError reports an operator that could not be appended.
type GraphError struct {
	OpType  string // Operator type
	Attr    string // Offending attribute or slot, if any
	Details string // Additional details
	Err     error  // Underlying cause (one of the sentinel errors)
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	msg := fmt.Sprintf("append %s: %v", e.OpType, e.Err)
	if e.Attr != "" {
		msg += fmt.Sprintf(" (%s)", e.Attr)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *GraphError) Unwrap() error {
	return e.Err
}
