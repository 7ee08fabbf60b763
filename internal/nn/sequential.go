package nn

import (
	"fmt"

	"github.com/born-ml/imperative/internal/graph"
)

// Sequential is a container layer that chains multiple layers together.
//
// Each layer's output becomes the next layer's input.
//
// Example:
//
//	model := nn.NewSequential(conv, pool, fc)
//	out, err := model.Apply(image)
//
// This is equivalent to:
//
//	h1, _ := conv.Apply(image)
//	h2, _ := pool.Apply(h1)
//	out, _ := fc.Apply(h2)
type Sequential struct {
	layers []Layer
}

// NewSequential creates a new Sequential container.
func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{
		layers: layers,
	}
}

// Apply applies all layers in sequence and returns the last output.
// The first failing layer's error is returned with its index.
func (s *Sequential) Apply(input *graph.Variable) (*graph.Variable, error) {
	output := input

	for i, layer := range s.layers {
		var err error
		if output, err = layer.Apply(output); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}

	return output, nil
}

// Parameters returns all parameters created so far by all layers.
func (s *Sequential) Parameters() []*graph.Variable {
	var params []*graph.Variable

	for _, layer := range s.layers {
		params = append(params, layer.Parameters()...)
	}

	return params
}

// Name returns "sequential".
func (s *Sequential) Name() string {
	return "sequential"
}

// Add appends a layer to the sequence.
func (s *Sequential) Add(layer Layer) {
	s.layers = append(s.layers, layer)
}

// Len returns the number of layers in the sequence.
func (s *Sequential) Len() int {
	return len(s.layers)
}

// Layer returns the layer at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential) Layer(index int) Layer {
	if index < 0 || index >= len(s.layers) {
		panic("Sequential.Layer: index out of bounds")
	}
	return s.layers[index]
}
