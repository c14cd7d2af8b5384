package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/memoracle/internal/harness"
)

// WriteResult records a run and all its trials in one transaction.
// Uses ON CONFLICT DO NOTHING for idempotency - writing the same run twice
// is silently ignored.
func (s *Store) WriteResult(ctx context.Context, res *harness.Result, executorName string) error {
	run, trials, err := RecordsFromResult(res, executorName)
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write result: begin: %w", err)
	}
	defer tx.Rollback()

	if err := writeRun(ctx, tx, run); err != nil {
		return err
	}
	for _, t := range trials {
		if err := writeTrial(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write result: commit: %w", err)
	}
	return nil
}

// WriteRun inserts a run record.
func (s *Store) WriteRun(ctx context.Context, run RunRecord) error {
	return writeRun(ctx, s.db, run)
}

// WriteTrial inserts a trial record. The run must exist (foreign key).
func (s *Store) WriteTrial(ctx context.Context, trial TrialRecord) error {
	return writeTrial(ctx, s.db, trial)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeRun(ctx context.Context, db execer, run RunRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO runs
		(id, suite, kind, mode, strategy, executor, harness_version, pass, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Suite,
		run.Kind,
		run.Mode,
		run.Strategy,
		run.Executor,
		run.HarnessVersion,
		boolToInt(run.Pass),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

func writeTrial(ctx context.Context, db execer, t TrialRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO trials
		(id, run_id, seq, workload, vector_id, vector, limit_mb, predicted, verdict, message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		t.ID,
		t.RunID,
		t.Seq,
		t.Workload,
		t.VectorID,
		t.Vector,
		t.LimitMB,
		t.Predicted,
		t.Verdict,
		t.Message,
		t.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("write trial %d: %w", t.Seq, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
