// Package matrix builds the configuration matrix a suite runs against.
//
// A matrix is the cross product of independent dimensions (for example
// table_format and mem_limit), pruned by constraints. Generation is lazy:
// Matrix.Generate yields one Vector at a time in dimension-declaration order,
// so a large cross product is never materialised while expensive trials run.
//
// # Constraint Policy
//
// Constraints declare the dimensions they read and may be registered before
// those dimensions are added. Builder.Build checks that every referenced
// dimension exists and fails with ErrUnknownDimension otherwise, so a typo in
// a constraint is caught before the first trial. Constraints are pure
// functions of the finished vector and are evaluated at generation time.
//
// # Exploration Strategy
//
// Constraints marked CoreOnly prune the matrix for everyday (core) runs and
// are skipped when the matrix is built with StrategyExhaustive.
package matrix
