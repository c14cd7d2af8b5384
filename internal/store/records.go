package store

import (
	"fmt"
	"time"

	"github.com/roach88/memoracle/internal/harness"
	"github.com/roach88/memoracle/internal/ir"
)

// RunRecord is one suite run in the ledger.
type RunRecord struct {
	ID             string
	Suite          string
	Kind           string
	Mode           string
	Strategy       string
	Executor       string
	HarnessVersion string
	Pass           bool
	StartedAt      time.Time
	Duration       time.Duration
}

// TrialRecord is the reconciled verdict of one trial.
// The raw outcome is not kept; Message holds the trial error, if any.
type TrialRecord struct {
	ID        string
	RunID     string
	Seq       int64
	Workload  string
	VectorID  string
	Vector    string // canonical JSON
	LimitMB   int64
	Predicted string
	Verdict   string
	Message   string
	Duration  time.Duration
}

// Passed reports whether the trial passed.
func (t TrialRecord) Passed() bool {
	return t.Verdict == "pass"
}

// RecordsFromResult converts a harness result into ledger records.
func RecordsFromResult(res *harness.Result, executorName string) (RunRecord, []TrialRecord, error) {
	run := RunRecord{
		ID:             res.RunID,
		Suite:          res.Suite,
		Kind:           string(res.Kind),
		Mode:           string(res.Mode),
		Strategy:       string(res.Strategy),
		Executor:       executorName,
		HarnessVersion: ir.HarnessVersion,
		Pass:           res.Pass,
		StartedAt:      res.StartedAt,
		Duration:       res.Duration,
	}

	trials := make([]TrialRecord, 0, len(res.Trials))
	for _, t := range res.Trials {
		vector, err := ir.MarshalCanonical(t.Vector.Entries())
		if err != nil {
			return RunRecord{}, nil, fmt.Errorf("trial %d: marshal vector: %w", t.Seq, err)
		}
		rec := TrialRecord{
			ID:        t.ID,
			RunID:     res.RunID,
			Seq:       t.Seq,
			Workload:  t.Workload,
			VectorID:  t.Vector.ID(),
			Vector:    string(vector),
			LimitMB:   int64(t.Limit),
			Predicted: t.Predicted.String(),
			Verdict:   harness.Verdict(t.Err),
			Duration:  t.Duration,
		}
		if t.Err != nil {
			rec.Message = t.Err.Error()
		}
		trials = append(trials, rec)
	}
	return run, trials, nil
}
