package matrix

import (
	"fmt"
	"iter"
	"slices"

	"github.com/roach88/memoracle/internal/ir"
)

// Dimension is an independent axis of configuration with a discrete,
// ordered value set.
type Dimension struct {
	Name   string
	Values []ir.IRValue
}

// NewDimension creates a dimension from its values.
func NewDimension(name string, values ...ir.IRValue) Dimension {
	return Dimension{Name: name, Values: values}
}

// Strategy selects how aggressively a matrix is pruned.
type Strategy string

const (
	// StrategyCore applies every constraint.
	StrategyCore Strategy = "core"

	// StrategyExhaustive skips CoreOnly constraints.
	StrategyExhaustive Strategy = "exhaustive"
)

// ParseStrategy validates a strategy name. The empty string means core.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyCore:
		return StrategyCore, nil
	case StrategyExhaustive:
		return StrategyExhaustive, nil
	default:
		return "", fmt.Errorf("invalid exploration strategy %q: must be %q or %q", s, StrategyCore, StrategyExhaustive)
	}
}

// Builder collects dimensions and constraints for a matrix.
// A Builder is not safe for concurrent use; the Matrix it builds is.
type Builder struct {
	dims        []Dimension
	index       map[string]int
	constraints []Constraint
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// AddDimension registers a dimension.
// Fails with ErrDuplicateDimension if the name is already registered,
// ErrEmptyDimension if it has no values and ErrInvalidValue if a value is
// not a scalar or appears twice.
func (b *Builder) AddDimension(d Dimension) error {
	if d.Name == "" {
		return fmt.Errorf("add dimension: name is required")
	}
	if _, exists := b.index[d.Name]; exists {
		return fmt.Errorf("add dimension %q: %w", d.Name, ErrDuplicateDimension)
	}
	if len(d.Values) == 0 {
		return fmt.Errorf("add dimension %q: %w", d.Name, ErrEmptyDimension)
	}

	values := make([]ir.IRValue, len(d.Values))
	seen := make(map[ir.IRValue]bool, len(d.Values))
	for i, v := range d.Values {
		if !ir.IsScalar(v) {
			return fmt.Errorf("add dimension %q: %w: values[%d] has type %T", d.Name, ErrInvalidValue, i, v)
		}
		if seen[v] {
			return fmt.Errorf("add dimension %q: %w: %s repeated", d.Name, ErrInvalidValue, ir.Format(v))
		}
		seen[v] = true
		values[i] = v
	}

	b.index[d.Name] = len(b.dims)
	b.dims = append(b.dims, Dimension{Name: d.Name, Values: values})
	return nil
}

// AddConstraint registers a constraint. Constraints are conjunctive.
// The dimensions a constraint reads may be added later; they are checked by
// Build.
func (b *Builder) AddConstraint(c Constraint) error {
	if c.Accept == nil {
		return fmt.Errorf("add constraint %q: %w: predicate is required", c.Name, ErrInvalidConstraint)
	}
	c.Dimensions = append([]string(nil), c.Dimensions...)
	b.constraints = append(b.constraints, c)
	return nil
}

// Build freezes the builder into a Matrix.
// Fails with ErrUnknownDimension if any constraint names a dimension that
// was never added.
func (b *Builder) Build(strategy Strategy) (*Matrix, error) {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}

	for _, c := range b.constraints {
		for _, dim := range c.Dimensions {
			if _, ok := b.index[dim]; !ok {
				return nil, fmt.Errorf("constraint %q: %w: %q", c.Name, ErrUnknownDimension, dim)
			}
		}
	}

	m := &Matrix{
		dims:     make([]Dimension, len(b.dims)),
		names:    make([]string, len(b.dims)),
		strategy: strategy,
	}
	copy(m.dims, b.dims)
	for i, d := range b.dims {
		m.names[i] = d.Name
	}
	for _, c := range b.constraints {
		if c.CoreOnly && strategy == StrategyExhaustive {
			continue
		}
		m.constraints = append(m.constraints, c)
	}
	return m, nil
}

// Matrix is an immutable set of dimensions and constraints.
type Matrix struct {
	dims        []Dimension
	names       []string
	constraints []Constraint
	strategy    Strategy
}

// Dimensions returns a copy of the dimensions in declaration order.
// Mutating the result does not affect the matrix.
func (m *Matrix) Dimensions() []Dimension {
	out := make([]Dimension, len(m.dims))
	for i, d := range m.dims {
		out[i] = Dimension{Name: d.Name, Values: slices.Clone(d.Values)}
	}
	return out
}

// Constraints returns the constraints in effect for the matrix strategy.
func (m *Matrix) Constraints() []Constraint {
	out := make([]Constraint, len(m.constraints))
	copy(out, m.constraints)
	return out
}

// Strategy returns the exploration strategy the matrix was built with.
func (m *Matrix) Strategy() Strategy {
	return m.strategy
}

// Size returns the size of the unfiltered cross product.
func (m *Matrix) Size() int {
	size := 1
	for _, d := range m.dims {
		size *= len(d.Values)
	}
	return size
}

// Generate returns the valid vectors of the matrix.
//
// The sequence is the cross product in dimension-declaration order (the first
// dimension varies slowest), filtered by every constraint. Vectors are built
// one at a time as the caller pulls them. The sequence is deterministic and
// can be ranged over any number of times.
//
// A matrix without dimensions yields a single empty vector.
func (m *Matrix) Generate() iter.Seq[Vector] {
	return func(yield func(Vector) bool) {
		idx := make([]int, len(m.dims))
		for {
			v := m.vectorAt(idx)
			if m.accepts(v) && !yield(v) {
				return
			}
			if !m.advance(idx) {
				return
			}
		}
	}
}

// Count returns the number of vectors Generate yields.
func (m *Matrix) Count() int {
	n := 0
	for range m.Generate() {
		n++
	}
	return n
}

func (m *Matrix) vectorAt(idx []int) Vector {
	values := make(map[string]ir.IRValue, len(m.dims))
	for i, d := range m.dims {
		values[d.Name] = d.Values[idx[i]]
	}
	return Vector{names: m.names, values: values}
}

func (m *Matrix) accepts(v Vector) bool {
	for _, c := range m.constraints {
		if !c.Accept(v) {
			return false
		}
	}
	return true
}

// advance steps idx like an odometer, last dimension fastest.
// Returns false once every combination has been visited.
func (m *Matrix) advance(idx []int) bool {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < len(m.dims[i].Values) {
			return true
		}
		idx[i] = 0
	}
	return false
}
