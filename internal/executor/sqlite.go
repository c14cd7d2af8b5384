package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/memoracle/internal/oracle"
)

// SQLite runs workloads against a SQLite database file.
//
// The mem_limit option maps to SQLite's hard heap limit. The heap limit is
// process wide, so only one session may be open at a time; Open blocks until
// the previous session is closed or ctx is done. Close clears the limit, so
// nothing carries over into the next session or into other SQLite handles in
// the process.
type SQLite struct {
	path string
	sem  chan struct{}
}

// NewSQLite creates an executor for the database at path.
func NewSQLite(path string) *SQLite {
	return &SQLite{path: path, sem: make(chan struct{}, 1)}
}

// Name implements Executor.
func (s *SQLite) Name() string { return "sqlite" }

// Open implements Executor.
func (s *SQLite) Open(ctx context.Context) (Session, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		<-s.sem
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// PRAGMA state is per connection; keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		<-s.sem
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &sqliteSession{db: db, release: func() { <-s.sem }}, nil
}

type sqliteSession struct {
	db      *sql.DB
	release func()
	closed  bool
}

func (ss *sqliteSession) Execute(ctx context.Context, req Request) (*ResultSet, error) {
	if ss.closed {
		return nil, fmt.Errorf("sqlite: session closed")
	}

	limit := oracle.Unbounded
	if raw, ok := req.Options[OptionMemLimit]; ok {
		parsed, err := oracle.ParseMegabytes(raw)
		if err != nil {
			return nil, &ExecError{Message: fmt.Sprintf("Invalid query option: %s: %v", OptionMemLimit, err), Err: err}
		}
		limit = parsed
	}
	setHardHeapLimit(heapLimitBytes(limit))

	rows, err := ss.db.QueryContext(ctx, req.QueryText)
	if err != nil {
		return nil, classifySQLiteError(ctx, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, classifySQLiteError(ctx, err)
	}
	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		rs.Rows++
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLiteError(ctx, err)
	}
	return rs, nil
}

func (ss *sqliteSession) Close() error {
	if ss.closed {
		return nil
	}
	ss.closed = true
	defer ss.release()

	setHardHeapLimit(0)
	return ss.db.Close()
}

// classifySQLiteError maps driver errors onto the executor contract.
// Out-of-memory becomes a MemLimitExceeded failure; context errors pass
// through so the caller can tell a timeout from an engine failure.
func classifySQLiteError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrNomem {
		return &ExecError{Message: fmt.Sprintf("%s: %s", MemLimitExceeded, sqlErr.Error()), Err: err}
	}
	return &ExecError{Message: err.Error(), Err: err}
}
