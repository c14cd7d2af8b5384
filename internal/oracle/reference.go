package oracle

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

// Reference is a loaded reference data file: the threshold table, the
// default margin and the limits to sweep.
type Reference struct {
	Source   string
	MarginMB Megabytes
	LimitsMB []Megabytes
	Table    *Table
}

// referenceFile mirrors #Reference for decoding.
type referenceFile struct {
	MarginMB  int64                    `json:"margin_mb"`
	LimitsMB  []int64                  `json:"limits_mb"`
	Workloads map[string]workloadEntry `json:"workloads"`
}

type workloadEntry struct {
	MinMB int64  `json:"min_mb"`
	Query string `json:"query"`
}

// LoadReference reads and validates a CUE reference data file.
func LoadReference(path string) (*Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference file: %w", err)
	}
	return ParseReference(path, data)
}

// ParseReference validates CUE source against the embedded #Reference
// schema. Unknown fields, negative thresholds, fractional megabytes and
// empty query text are rejected.
func ParseReference(filename string, src []byte) (*Reference, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile reference schema: %w", err)
	}

	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("parse reference %s: %w", filename, err)
	}

	if err := rejectUnknownFields(data); err != nil {
		return nil, fmt.Errorf("invalid reference %s: %w", filename, err)
	}

	value := schema.LookupPath(cue.ParsePath("#Reference")).Unify(data)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid reference %s: %w", filename, err)
	}

	var file referenceFile
	if err := value.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode reference %s: %w", filename, err)
	}

	workloads := make([]Workload, 0, len(file.Workloads))
	for id, entry := range file.Workloads {
		workloads = append(workloads, Workload{
			ID:    id,
			MinMB: Megabytes(entry.MinMB),
			Query: entry.Query,
		})
	}
	table, err := NewTable(workloads...)
	if err != nil {
		return nil, fmt.Errorf("invalid reference %s: %w", filename, err)
	}

	limits := make([]Megabytes, len(file.LimitsMB))
	for i, l := range file.LimitsMB {
		limits[i] = Megabytes(l)
	}

	return &Reference{
		Source:   filename,
		MarginMB: Megabytes(file.MarginMB),
		LimitsMB: limits,
		Table:    table,
	}, nil
}

// rejectUnknownFields catches typos such as "workload:" for "workloads:"
// with a clearer message than closedness errors give.
func rejectUnknownFields(data cue.Value) error {
	raw, err := data.MarshalJSON()
	if err != nil {
		// Non-concrete input is reported by Validate.
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var file referenceFile
	if err := dec.Decode(&file); err != nil {
		return err
	}
	return nil
}
