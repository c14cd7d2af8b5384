package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/memoracle/internal/executor"
	"github.com/roach88/memoracle/internal/harness"
	"github.com/roach88/memoracle/internal/ir"
	"github.com/roach88/memoracle/internal/matrix"
	"github.com/roach88/memoracle/internal/oracle"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func limitVector(t *testing.T, limit string) matrix.Vector {
	t.Helper()
	v, err := matrix.NewVector([]string{harness.LimitDimension}, []ir.IRValue{ir.IRString(limit)})
	if err != nil {
		t.Fatalf("NewVector() failed: %v", err)
	}
	return v
}

// createTestResult builds a three-trial result: a pass, an unexpected
// failure and a prediction mismatch.
func createTestResult(t *testing.T, runID string) *harness.Result {
	t.Helper()
	res := harness.NewResult(runID, "low_mem")
	res.Kind = harness.KindThreshold
	res.Mode = harness.ModeStrict
	res.Strategy = matrix.StrategyCore
	res.StartedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res.Duration = 1500 * time.Millisecond
	res.Pass = false

	syntaxErr := &executor.ExecError{Message: "Syntax error: unexpected FROM"}
	res.Trials = []harness.Trial{
		{
			ID: runID + "-1", Seq: 1, Workload: "Q1", Vector: limitVector(t, "100m"), Limit: 100,
			Predicted: oracle.PredictFails,
			Outcome:   harness.ExpectedFailure(harness.KindMemLimitExceeded, &executor.ExecError{Message: executor.MemLimitExceeded}),
			Duration:  20 * time.Millisecond,
		},
		{
			ID: runID + "-2", Seq: 2, Workload: "Q2", Vector: limitVector(t, "175m"), Limit: 175,
			Predicted: oracle.PredictSucceeds,
			Outcome:   harness.UnexpectedFailure(harness.KindError, syntaxErr),
			Err: &harness.TrialError{
				Code: harness.CodeUnexpectedFailure, Workload: "Q2", Vector: "mem_limit=175m",
				Predicted: "succeeds", Observed: syntaxErr.Message, Err: syntaxErr,
			},
			Duration: 5 * time.Millisecond,
		},
		{
			ID: runID + "-3", Seq: 3, Workload: "Q1", Vector: limitVector(t, "150m"), Limit: 150,
			Predicted: oracle.PredictFails,
			Outcome:   harness.Success(),
			Err: &harness.TrialError{
				Code: harness.CodePredictionMismatch, Workload: "Q1", Vector: "mem_limit=150m", Predicted: "fails",
			},
			Duration: 30 * time.Millisecond,
		},
	}
	return res
}
