package tensor

import "fmt"

// Unknown marks a dimension whose size is not known until a real input
// arrives (typically the batch dimension, or a deferred parameter dim).
const Unknown = -1

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
// Returns Unknown if any dimension is unresolved.
func (s Shape) NumElements() int {
	return s.Flatten(0)
}

// Flatten multiplies the dimensions from index start onward into one size.
// The product of an empty range is 1. Returns Unknown if any multiplied
// dimension is unresolved.
func (s Shape) Flatten(start int) int {
	if start < 0 {
		start = 0
	}
	n := 1
	for i := start; i < len(s); i++ {
		if s[i] == Unknown {
			return Unknown
		}
		n *= s[i]
	}
	return n
}

// Resolved reports whether every dimension is concrete.
func (s Shape) Resolved() bool {
	for _, dim := range s {
		if dim == Unknown {
			return false
		}
	}
	return true
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// String renders the shape with "?" for unresolved dimensions.
func (s Shape) String() string {
	b := make([]byte, 0, 2+4*len(s))
	b = append(b, '[')
	for i, dim := range s {
		if i > 0 {
			b = append(b, ", "...)
		}
		if dim == Unknown {
			b = append(b, '?')
			continue
		}
		b = fmt.Appendf(b, "%d", dim)
	}
	return string(append(b, ']'))
}
