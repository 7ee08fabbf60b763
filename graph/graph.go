// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph provides the program that layers append operators to.
//
// A Program has a main block, receiving operators on every layer Apply,
// and a startup block holding one initializer operator per parameter.
// Every operator is validated against a Registry and shape-inferred when
// appended. Programs export to YAML and deterministic CBOR.
//
// Example:
//
//	prog := graph.NewProgram()
//	x, err := prog.Data("x", tensor.Shape{tensor.Unknown, 784}, tensor.Float32)
//	// ... apply layers ...
//	err = prog.WriteYAML(os.Stdout)
package graph

import (
	"github.com/born-ml/imperative/internal/graph"
)

// Program is a graph under construction.
type Program = graph.Program

// Option configures a Program.
type Option = graph.Option

// NewProgram creates an empty program.
func NewProgram(opts ...Option) *Program {
	return graph.NewProgram(opts...)
}

// WithRegistry replaces the built-in operator registry.
func WithRegistry(r *Registry) Option {
	return graph.WithRegistry(r)
}

// Variable is a named, typed value slot in a program.
type Variable = graph.Variable

// VarKind is the storage kind of a variable.
type VarKind = graph.VarKind

// Variable kinds.
const (
	KindTensor = graph.KindTensor
	KindRaw    = graph.KindRaw
)

// ParamSpec describes a parameter to create.
type ParamSpec = graph.ParamSpec

// Initializer describes how the engine fills a parameter.
type Initializer = graph.Initializer

// OpDesc is a request to append an operator.
type OpDesc = graph.OpDesc

// Operator is an appended operator.
type Operator = graph.Operator

// In wraps a single variable as a slot binding.
func In(v *Variable) []*Variable {
	return graph.In(v)
}

// Registry maps operator types to their definitions.
type Registry = graph.Registry

// OpDef registers an operator type.
type OpDef = graph.OpDef

// NewRegistry creates a registry with all built-in operators.
func NewRegistry() *Registry {
	return graph.NewRegistry()
}

// ProgramDesc is the serializable description of a Program.
type ProgramDesc = graph.ProgramDesc

// DecodeDesc decodes a description produced by Program.MarshalCBOR.
func DecodeDesc(data []byte) (*ProgramDesc, error) {
	return graph.DecodeDesc(data)
}

// Errors returned while building a program.
var (
	ErrUnresolvedShape   = graph.ErrUnresolvedShape
	ErrInvalidShape      = graph.ErrInvalidShape
	ErrDuplicateVar      = graph.ErrDuplicateVar
	ErrUnregisteredOp    = graph.ErrUnregisteredOp
	ErrMalformedAttr     = graph.ErrMalformedAttr
	ErrMissingSlot       = graph.ErrMissingSlot
	ErrShapeIncompatible = graph.ErrShapeIncompatible
	ErrUnknownVar        = graph.ErrUnknownVar
)

// AllocationError reports a failure to create a variable.
type AllocationError = graph.AllocationError

// GraphError reports an operator the program rejected.
type GraphError = graph.GraphError
