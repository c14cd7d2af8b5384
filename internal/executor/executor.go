// Package executor defines the boundary to the query engine under test.
//
// The harness treats the engine as a black box: it opens one Session per
// trial, sends a query with a set of string options, and gets back either a
// result set or a failure carrying a human-readable message. Resource-limit
// failures are recognised by substring match against MemLimitExceeded, which
// is part of the engine's contract.
package executor

import (
	"context"
	"errors"
	"strings"
)

// MemLimitExceeded is the message fragment the engine uses for queries that
// ran out of their memory budget.
const MemLimitExceeded = "Memory limit exceeded"

// OptionMemLimit is the option carrying the per-query memory limit
// ("145m", "-1").
const OptionMemLimit = "mem_limit"

// Request is one query execution.
type Request struct {
	QueryText string
	Options   map[string]string
}

// ResultSet summarises a successful query. Result contents are not checked.
type ResultSet struct {
	Columns []string
	Rows    int64
}

// ExecError is a failure reported by the engine.
// Message is surfaced verbatim in trial reports.
type ExecError struct {
	Message string
	Err     error
}

func (e *ExecError) Error() string {
	return e.Message
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsMemLimitExceeded reports whether err is an engine failure whose message
// identifies a memory limit violation.
func IsMemLimitExceeded(err error) bool {
	if err == nil {
		return false
	}
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return strings.Contains(execErr.Message, MemLimitExceeded)
	}
	return strings.Contains(err.Error(), MemLimitExceeded)
}

// Session is a connection scoped to a single trial.
// Options passed to Execute apply to that call only.
type Session interface {
	Execute(ctx context.Context, req Request) (*ResultSet, error)
	Close() error
}

// Executor opens sessions against the engine under test.
type Executor interface {
	Name() string
	Open(ctx context.Context) (Session, error)
}
