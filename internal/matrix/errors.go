package matrix

import "errors"

var (
	// ErrDuplicateDimension is returned when a dimension name is registered twice.
	ErrDuplicateDimension = errors.New("duplicate dimension")

	// ErrEmptyDimension is returned for a dimension without values.
	ErrEmptyDimension = errors.New("dimension has no values")

	// ErrUnknownDimension is returned when a constraint or an override names
	// a dimension the matrix does not declare.
	ErrUnknownDimension = errors.New("unknown dimension")

	// ErrInvalidValue is returned for non-scalar or repeated dimension values.
	ErrInvalidValue = errors.New("invalid dimension value")

	// ErrInvalidConstraint is returned for a constraint without a predicate.
	ErrInvalidConstraint = errors.New("invalid constraint")
)
