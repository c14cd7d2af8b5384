package harness

import (
	"errors"
	"fmt"
)

// ErrInvalidMode is returned when a reconciliation mode is missing or unknown.
var ErrInvalidMode = errors.New("invalid reconciliation mode")

// TrialErrorCode identifies why a trial failed reconciliation.
type TrialErrorCode string

const (
	// CodeUnexpectedFailure means the executor failed for a reason other
	// than the predicted memory limit, or failed when success was predicted.
	CodeUnexpectedFailure TrialErrorCode = "UNEXPECTED_FAILURE"

	// CodePredictionMismatch means a trial predicted to fail succeeded
	// under strict reconciliation.
	CodePredictionMismatch TrialErrorCode = "PREDICTION_MISMATCH"
)

// TrialError is a failed trial.
// It carries enough context to tell an oracle error from a regression in the
// system under test.
type TrialError struct {
	Code      TrialErrorCode
	Workload  string
	Vector    string
	Predicted string
	Observed  string

	// Err is the executor error, unchanged. nil for prediction mismatches.
	Err error
}

func (e *TrialError) Error() string {
	observed := e.Observed
	if observed == "" {
		observed = "success"
	}
	if e.Workload == "" {
		return fmt.Sprintf("%s: predicted %s, observed: %s", e.Code, e.Predicted, observed)
	}
	return fmt.Sprintf("%s: workload %s [%s]: predicted %s, observed: %s",
		e.Code, e.Workload, e.Vector, e.Predicted, observed)
}

func (e *TrialError) Unwrap() error {
	return e.Err
}

// IsUnexpectedFailure reports whether err is an UNEXPECTED_FAILURE trial error.
func IsUnexpectedFailure(err error) bool {
	var te *TrialError
	return errors.As(err, &te) && te.Code == CodeUnexpectedFailure
}

// IsPredictionMismatch reports whether err is a PREDICTION_MISMATCH trial error.
func IsPredictionMismatch(err error) bool {
	var te *TrialError
	return errors.As(err, &te) && te.Code == CodePredictionMismatch
}
