package matrix

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/memoracle/internal/ir"
)

// Predicate reports whether a finished vector is a valid combination.
// Predicates must be pure: they read the vector and nothing else.
type Predicate func(Vector) bool

// Constraint excludes invalid combinations from a matrix.
// A vector is kept only if every constraint accepts it.
type Constraint struct {
	// Name identifies the constraint in errors and listings.
	Name string

	// Dimensions lists the dimensions Accept reads.
	// Build rejects constraints naming dimensions the matrix lacks.
	Dimensions []string

	// Accept is the predicate.
	Accept Predicate

	// CoreOnly marks a constraint that prunes core runs only and is
	// skipped under StrategyExhaustive.
	CoreOnly bool
}

// In accepts vectors whose dimension value is one of values.
func In(dim string, values ...ir.IRValue) Constraint {
	return Constraint{
		Name:       fmt.Sprintf("%s in %s", dim, formatValues(values)),
		Dimensions: []string{dim},
		Accept: func(v Vector) bool {
			val, ok := v.Get(dim)
			return ok && slices.Contains(values, val)
		},
	}
}

// NotIn accepts vectors whose dimension value is none of values.
func NotIn(dim string, values ...ir.IRValue) Constraint {
	return Constraint{
		Name:       fmt.Sprintf("%s not in %s", dim, formatValues(values)),
		Dimensions: []string{dim},
		Accept: func(v Vector) bool {
			val, ok := v.Get(dim)
			return ok && !slices.Contains(values, val)
		},
	}
}

// HasPrefix accepts vectors whose dimension value, rendered as a string,
// starts with one of prefixes. Table formats are written "file/codec", so
// HasPrefix("table_format", "parquet/") keeps every parquet variant.
func HasPrefix(dim string, prefixes ...string) Constraint {
	return Constraint{
		Name:       fmt.Sprintf("%s has prefix [%s]", dim, strings.Join(prefixes, ", ")),
		Dimensions: []string{dim},
		Accept: func(v Vector) bool {
			val, ok := v.Get(dim)
			if !ok {
				return false
			}
			s := ir.Format(val)
			for _, p := range prefixes {
				if strings.HasPrefix(s, p) {
					return true
				}
			}
			return false
		},
	}
}

// Core returns a copy of c marked CoreOnly.
func Core(c Constraint) Constraint {
	c.CoreOnly = true
	return c
}

func formatValues(values []ir.IRValue) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = ir.Format(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
