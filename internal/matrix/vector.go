package matrix

import (
	"fmt"
	"strings"

	"github.com/roach88/memoracle/internal/ir"
)

// Vector is one fully-instantiated configuration: exactly one value per
// declared dimension.
//
// Vectors are immutable. With returns a modified copy, so several trials can
// derive overrides from the same base vector without affecting each other.
type Vector struct {
	names  []string // declaration order, shared between vectors and never mutated
	values map[string]ir.IRValue
}

// NewVector builds a vector from parallel name and value slices.
// Used by tests and by callers that construct a single configuration
// without a matrix.
func NewVector(names []string, values []ir.IRValue) (Vector, error) {
	if len(names) != len(values) {
		return Vector{}, fmt.Errorf("vector: %d names but %d values", len(names), len(values))
	}

	v := Vector{
		names:  make([]string, len(names)),
		values: make(map[string]ir.IRValue, len(names)),
	}
	copy(v.names, names)
	for i, name := range names {
		if _, exists := v.values[name]; exists {
			return Vector{}, fmt.Errorf("vector: %w: %q", ErrDuplicateDimension, name)
		}
		if !ir.IsScalar(values[i]) {
			return Vector{}, fmt.Errorf("vector: %w: %q has type %T", ErrInvalidValue, name, values[i])
		}
		v.values[name] = values[i]
	}
	return v, nil
}

// Get returns the value of a dimension.
func (v Vector) Get(name string) (ir.IRValue, bool) {
	val, ok := v.values[name]
	return val, ok
}

// GetString returns the value of a dimension rendered as a string, or "" if
// the dimension is absent.
func (v Vector) GetString(name string) string {
	val, ok := v.values[name]
	if !ok {
		return ""
	}
	return ir.Format(val)
}

// Names returns the dimension names in declaration order.
func (v Vector) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Len returns the number of dimensions in the vector.
func (v Vector) Len() int {
	return len(v.names)
}

// With returns a copy of the vector with one dimension overridden.
// The key set is fixed: overriding an undeclared dimension fails with
// ErrUnknownDimension.
func (v Vector) With(name string, value ir.IRValue) (Vector, error) {
	if _, ok := v.values[name]; !ok {
		return Vector{}, fmt.Errorf("override %q: %w", name, ErrUnknownDimension)
	}
	if !ir.IsScalar(value) {
		return Vector{}, fmt.Errorf("override %q: %w: %T", name, ErrInvalidValue, value)
	}

	values := make(map[string]ir.IRValue, len(v.values))
	for k, val := range v.values {
		values[k] = val
	}
	values[name] = value
	return Vector{names: v.names, values: values}, nil
}

// Entries returns the vector as an IRObject.
func (v Vector) Entries() ir.IRObject {
	obj := make(ir.IRObject, len(v.values))
	for k, val := range v.values {
		obj[k] = val
	}
	return obj
}

// ID returns the content-addressed id of the vector.
func (v Vector) ID() string {
	// Vector values are always scalar, so canonical marshaling cannot fail.
	return ir.MustVectorID(v.Entries())
}

// Options renders the vector as executor options.
func (v Vector) Options() map[string]string {
	opts := make(map[string]string, len(v.values))
	for k, val := range v.values {
		opts[k] = ir.Format(val)
	}
	return opts
}

// String renders the vector as "name=value" pairs in declaration order.
func (v Vector) String() string {
	parts := make([]string, 0, len(v.names))
	for _, name := range v.names {
		parts = append(parts, name+"="+ir.Format(v.values[name]))
	}
	return strings.Join(parts, " ")
}
