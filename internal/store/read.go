package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a run id is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// ReadRun returns a run record.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, suite, kind, mode, strategy, executor, harness_version, pass, started_at, duration_ms
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first. An empty suite lists
// every suite. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, suite string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, suite, kind, mode, strategy, executor, harness_version, pass, started_at, duration_ms
		FROM runs
		WHERE ? = '' OR suite = ?
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, suite, suite, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadTrials returns the trials of a run ordered by seq.
// Returns an empty slice (not nil) if the run has no trials.
func (s *Store) ReadTrials(ctx context.Context, runID string) ([]TrialRecord, error) {
	return s.readTrials(ctx, runID, false)
}

// ReadFailedTrials returns the trials of a run that did not pass.
func (s *Store) ReadFailedTrials(ctx context.Context, runID string) ([]TrialRecord, error) {
	return s.readTrials(ctx, runID, true)
}

func (s *Store) readTrials(ctx context.Context, runID string, failedOnly bool) ([]TrialRecord, error) {
	query := `
		SELECT id, run_id, seq, workload, vector_id, vector, limit_mb, predicted, verdict, message, duration_ms
		FROM trials
		WHERE run_id = ?`
	if failedOnly {
		query += ` AND verdict != 'pass'`
	}
	query += `
		ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	trials := []TrialRecord{}
	for rows.Next() {
		var t TrialRecord
		var durationMS int64
		if err := rows.Scan(&t.ID, &t.RunID, &t.Seq, &t.Workload, &t.VectorID, &t.Vector,
			&t.LimitMB, &t.Predicted, &t.Verdict, &t.Message, &durationMS); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		t.Duration = time.Duration(durationMS) * time.Millisecond
		trials = append(trials, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trials: %w", err)
	}
	return trials, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var run RunRecord
	var pass int
	var startedAt string
	var durationMS int64
	if err := row.Scan(&run.ID, &run.Suite, &run.Kind, &run.Mode, &run.Strategy, &run.Executor,
		&run.HarnessVersion, &pass, &startedAt, &durationMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, err
		}
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("scan run %s: started_at: %w", run.ID, err)
	}
	run.Pass = pass == 1
	run.StartedAt = t
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}
