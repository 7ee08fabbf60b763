package nn

import "fmt"

// Pair is a (height, width) argument such as a stride or kernel size.
type Pair [2]int

// Slice returns the pair as a two-element slice, the form operator
// attributes use.
func (p Pair) Slice() []int {
	return []int{p[0], p[1]}
}

// String returns "(h, w)".
func (p Pair) String() string {
	return fmt.Sprintf("(%d, %d)", p[0], p[1])
}

// ToPair normalizes a scalar-or-pair argument: one element is repeated,
// two elements are kept as given. Normalizing an already normalized pair
// returns it unchanged.
func ToPair(layer, arg string, v []int) (Pair, error) {
	switch len(v) {
	case 1:
		return Pair{v[0], v[0]}, nil
	case 2:
		return Pair{v[0], v[1]}, nil
	default:
		return Pair{}, &ConfigError{Layer: layer, Arg: arg, Value: v, Reason: "expected 1 or 2 elements"}
	}
}

// pairOr is ToPair with a default used when v is empty, and a lower bound
// on every element.
func pairOr(layer, arg string, v []int, def, minVal int) (Pair, error) {
	if len(v) == 0 {
		return Pair{def, def}, nil
	}
	p, err := ToPair(layer, arg, v)
	if err != nil {
		return p, err
	}
	if p[0] < minVal || p[1] < minVal {
		return Pair{}, &ConfigError{Layer: layer, Arg: arg, Value: v, Reason: fmt.Sprintf("elements must be >= %d", minVal)}
	}
	return p, nil
}
