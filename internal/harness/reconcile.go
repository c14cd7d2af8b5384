package harness

import (
	"fmt"

	"github.com/roach88/memoracle/internal/oracle"
)

// Mode controls how a trial predicted to fail may be observed to succeed.
// There is no default: callers choose one explicitly.
type Mode string

const (
	// ModeStrict requires a trial predicted to fail to actually fail.
	ModeStrict Mode = "strict"

	// ModeLoose accepts a trial predicted to fail that succeeds anyway, since
	// the threshold table records a floor rather than an exact boundary.
	ModeLoose Mode = "loose"
)

// ParseMode validates a mode name. The empty string is rejected.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStrict, ModeLoose:
		return Mode(s), nil
	case "":
		return "", fmt.Errorf("%w: mode is required (%q or %q)", ErrInvalidMode, ModeStrict, ModeLoose)
	default:
		return "", fmt.Errorf("%w: %q (must be %q or %q)", ErrInvalidMode, s, ModeStrict, ModeLoose)
	}
}

// Reconcile compares an observed outcome with the oracle's prediction.
// It returns nil if the trial passes and a *TrialError otherwise.
//
//	predicted  observed            verdict
//	succeeds   success             pass
//	succeeds   any failure         UNEXPECTED_FAILURE, executor error unchanged
//	fails      success             pass (loose) / PREDICTION_MISMATCH (strict)
//	fails      expected failure    pass
//	fails      unexpected failure  UNEXPECTED_FAILURE
func Reconcile(mode Mode, predicted oracle.Prediction, observed Outcome) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	mismatch := func(code TrialErrorCode) error {
		return &TrialError{
			Code:      code,
			Predicted: predicted.String(),
			Observed:  observed.Detail,
			Err:       observed.Err,
		}
	}

	switch predicted {
	case oracle.PredictSucceeds:
		if observed.Status == StatusSuccess {
			return nil
		}
		return mismatch(CodeUnexpectedFailure)

	case oracle.PredictFails:
		switch observed.Status {
		case StatusSuccess:
			if mode == ModeLoose {
				return nil
			}
			return mismatch(CodePredictionMismatch)
		case StatusExpectedFailure:
			return nil
		default:
			return mismatch(CodeUnexpectedFailure)
		}

	default:
		return fmt.Errorf("reconcile: invalid prediction %d", predicted)
	}
}
