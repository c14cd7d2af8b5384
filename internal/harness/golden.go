package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/memoracle/internal/ir"
)

// TraceSnapshot captures the verdicts of a run.
// Run ids, trial ids and timings are left out so that repeated runs of a
// deterministic executor produce byte-identical snapshots.
type TraceSnapshot struct {
	Suite    string        `json:"suite"`
	Kind     string        `json:"kind"`
	Mode     string        `json:"mode"`
	Strategy string        `json:"strategy"`
	Pass     bool          `json:"pass"`
	Trials   []TrialRecord `json:"trials"`
}

// TrialRecord is one trial in a snapshot.
type TrialRecord struct {
	Seq       int64       `json:"seq"`
	Workload  string      `json:"workload"`
	Vector    ir.IRObject `json:"vector"`
	Predicted string      `json:"predicted"`
	Observed  string      `json:"observed"`
	Kind      string      `json:"kind,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	Verdict   string      `json:"verdict"`
}

// NewSnapshot builds a snapshot of a result.
func NewSnapshot(r *Result) TraceSnapshot {
	s := TraceSnapshot{
		Suite:    r.Suite,
		Kind:     string(r.Kind),
		Mode:     string(r.Mode),
		Strategy: string(r.Strategy),
		Pass:     r.Pass,
		Trials:   make([]TrialRecord, len(r.Trials)),
	}
	for i, t := range r.Trials {
		s.Trials[i] = TrialRecord{
			Seq:       t.Seq,
			Workload:  t.Workload,
			Vector:    t.Vector.Entries(),
			Predicted: t.Predicted.String(),
			Observed:  t.Outcome.Status.String(),
			Kind:      string(t.Outcome.Kind),
			Detail:    t.Outcome.Detail,
			Verdict:   Verdict(t.Err),
		}
	}
	return s
}

// Verdict renders a trial verdict: "pass", a TrialError code, or "error"
// for harness configuration problems.
func Verdict(err error) string {
	switch {
	case err == nil:
		return "pass"
	case IsUnexpectedFailure(err):
		return string(CodeUnexpectedFailure)
	case IsPredictionMismatch(err):
		return string(CodePredictionMismatch)
	default:
		return "error"
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trials := make([]any, len(s.Trials))
	for i, t := range s.Trials {
		m := map[string]any{
			"seq":       t.Seq,
			"workload":  t.Workload,
			"vector":    t.Vector,
			"predicted": t.Predicted,
			"observed":  t.Observed,
			"verdict":   t.Verdict,
		}
		if t.Kind != "" {
			m["kind"] = t.Kind
		}
		if t.Detail != "" {
			m["detail"] = t.Detail
		}
		trials[i] = m
	}
	return map[string]any{
		"suite":    s.Suite,
		"kind":     s.Kind,
		"mode":     s.Mode,
		"strategy": s.Strategy,
		"pass":     s.Pass,
		"trials":   trials,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// AssertGolden compares a result's snapshot against a golden file.
// The golden file is stored in testdata/golden/{name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot := NewSnapshot(result)
	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
