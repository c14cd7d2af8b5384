package harness

import (
	"time"

	"github.com/roach88/memoracle/internal/matrix"
	"github.com/roach88/memoracle/internal/oracle"
)

// Status is the polarity of an observed outcome.
type Status int

const (
	// StatusSuccess means the query completed.
	StatusSuccess Status = iota + 1

	// StatusExpectedFailure means the query failed for a recognised reason:
	// the memory limit was exceeded, or a trial predicted to fail timed out.
	StatusExpectedFailure

	// StatusUnexpectedFailure means the query failed for any other reason.
	StatusUnexpectedFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusExpectedFailure:
		return "expected_failure"
	case StatusUnexpectedFailure:
		return "unexpected_failure"
	default:
		return "unknown"
	}
}

// FailureKind classifies a failed trial.
type FailureKind string

const (
	KindMemLimitExceeded FailureKind = "mem_limit_exceeded"
	KindTimeout          FailureKind = "timeout"
	KindError            FailureKind = "error"
)

// Outcome is what a single trial observed.
// It is produced once per trial and consumed by Reconcile.
type Outcome struct {
	Status Status
	Kind   FailureKind // empty on success
	Detail string      // executor message, verbatim

	// Err is the executor error for failed trials.
	Err error
}

// Success returns a successful outcome.
func Success() Outcome {
	return Outcome{Status: StatusSuccess}
}

// ExpectedFailure returns a failure of a recognised kind.
func ExpectedFailure(kind FailureKind, err error) Outcome {
	return Outcome{Status: StatusExpectedFailure, Kind: kind, Detail: errorDetail(err), Err: err}
}

// UnexpectedFailure returns a failure of any other kind.
func UnexpectedFailure(kind FailureKind, err error) Outcome {
	return Outcome{Status: StatusUnexpectedFailure, Kind: kind, Detail: errorDetail(err), Err: err}
}

// Failed reports whether the trial failed.
func (o Outcome) Failed() bool {
	return o.Status == StatusExpectedFailure || o.Status == StatusUnexpectedFailure
}

func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Trial is one execution of a workload under one configuration vector.
type Trial struct {
	ID       string
	Seq      int64
	Workload string
	Vector   matrix.Vector
	Limit    oracle.Megabytes

	Predicted oracle.Prediction
	Outcome   Outcome

	// Err is the reconciliation verdict. nil means the trial passed.
	// Otherwise it is a *TrialError or a harness configuration error.
	Err error

	Duration time.Duration
}

// Passed reports whether the observed outcome agreed with the prediction.
func (t Trial) Passed() bool {
	return t.Err == nil
}

// Result is the outcome of running a suite.
type Result struct {
	RunID    string
	Suite    string
	Kind     SuiteKind
	Mode     Mode
	Strategy matrix.Strategy

	// Pass is true iff every trial passed.
	Pass bool

	// Trials are in generation order regardless of parallelism.
	Trials []Trial

	StartedAt time.Time
	Duration  time.Duration
}

// NewResult creates a passing result with no trials.
func NewResult(runID, suite string) *Result {
	return &Result{RunID: runID, Suite: suite, Pass: true, Trials: []Trial{}}
}

// Failures returns the trials that did not pass.
func (r *Result) Failures() []Trial {
	var out []Trial
	for _, t := range r.Trials {
		if !t.Passed() {
			out = append(out, t)
		}
	}
	return out
}

// Summary counts trials by verdict.
type Summary struct {
	Total              int `json:"total"`
	Passed             int `json:"passed"`
	UnexpectedFailures int `json:"unexpected_failures"`
	Mismatches         int `json:"prediction_mismatches"`
}

// Summary counts the trials of the result.
func (r *Result) Summary() Summary {
	s := Summary{Total: len(r.Trials)}
	for _, t := range r.Trials {
		switch {
		case t.Passed():
			s.Passed++
		case IsPredictionMismatch(t.Err):
			s.Mismatches++
		default:
			s.UnexpectedFailures++
		}
	}
	return s
}
