package oracle

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownWorkload is returned when a workload is not in the reference table.
var ErrUnknownWorkload = errors.New("unknown workload")

// DefaultMargin absorbs run-to-run variance in memory consumption.
// Observed as +-30 MB for the TPC-H reference data depending on how many
// scanner threads run.
const DefaultMargin Megabytes = 30

// Prediction is the oracle's expectation for a trial.
type Prediction int

const (
	// PredictSucceeds means the limit is sufficient for the workload.
	PredictSucceeds Prediction = iota + 1

	// PredictFails means the limit is below the workload's threshold plus
	// margin. It is a floor, not an exact boundary: the workload may still
	// succeed.
	PredictFails
)

// String returns "succeeds", "fails" or "unknown".
func (p Prediction) String() string {
	switch p {
	case PredictSucceeds:
		return "succeeds"
	case PredictFails:
		return "fails"
	default:
		return "unknown"
	}
}

// Workload is a named query and the minimum memory it needs.
type Workload struct {
	ID    string
	MinMB Megabytes
	Query string
}

// Table maps workload ids to their reference data.
// A Table is read-only after construction and safe for concurrent use.
type Table struct {
	workloads map[string]Workload
}

// NewTable builds a table. Ids must be unique and thresholds non-negative.
func NewTable(workloads ...Workload) (*Table, error) {
	t := &Table{workloads: make(map[string]Workload, len(workloads))}
	for _, w := range workloads {
		if w.ID == "" {
			return nil, fmt.Errorf("reference table: workload id is required")
		}
		if _, exists := t.workloads[w.ID]; exists {
			return nil, fmt.Errorf("reference table: duplicate workload %q", w.ID)
		}
		if w.MinMB < 0 {
			return nil, fmt.Errorf("reference table: workload %q: min_mb must be non-negative, got %d", w.ID, w.MinMB)
		}
		t.workloads[w.ID] = w
	}
	return t, nil
}

// Workload returns the reference entry for id.
func (t *Table) Workload(id string) (Workload, error) {
	w, ok := t.workloads[id]
	if !ok {
		return Workload{}, fmt.Errorf("%w %q", ErrUnknownWorkload, id)
	}
	return w, nil
}

// MinimumRequired returns the minimum sufficient memory for a workload.
func (t *Table) MinimumRequired(id string) (Megabytes, error) {
	w, err := t.Workload(id)
	if err != nil {
		return 0, err
	}
	return w.MinMB, nil
}

// IDs returns the workload ids, shorter ids first so that Q2 sorts before
// Q18.
func (t *Table) IDs() []string {
	ids := make([]string, 0, len(t.workloads))
	for id := range t.workloads {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})
	return ids
}

// Len returns the number of workloads.
func (t *Table) Len() int {
	return len(t.workloads)
}

// Classify predicts the outcome of running a workload under limit.
//
// The workload is predicted to succeed iff limit >= minimum + margin (the
// boundary is inclusive) or limit is unbounded. Unknown workloads fail with
// ErrUnknownWorkload even when the limit is unbounded, since they indicate a
// harness configuration bug.
func (t *Table) Classify(id string, limit, margin Megabytes) (Prediction, error) {
	minMB, err := t.MinimumRequired(id)
	if err != nil {
		return 0, err
	}
	if margin < 0 {
		return 0, fmt.Errorf("classify %q: margin must be non-negative, got %d", id, margin)
	}
	if limit.IsUnbounded() || limit >= minMB+margin {
		return PredictSucceeds, nil
	}
	return PredictFails, nil
}
