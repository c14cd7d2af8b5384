package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/memoracle/internal/ir"
	"github.com/roach88/memoracle/internal/matrix"
	"github.com/roach88/memoracle/internal/oracle"
)

// LimitDimension is the dimension carrying the per-query memory limit.
// Its values are rendered the way the executor expects them ("145m", "-1").
const LimitDimension = "mem_limit"

// SuiteKind selects how predictions are made.
type SuiteKind string

const (
	// KindThreshold predicts outcomes with the threshold oracle.
	KindThreshold SuiteKind = "threshold"

	// KindExpectSuccess predicts success for every trial.
	KindExpectSuccess SuiteKind = "expect_success"
)

// Suite defines a matrix of trials.
type Suite struct {
	// Name uniquely identifies this suite.
	Name string `yaml:"name"`

	// Description explains what this suite validates.
	Description string `yaml:"description"`

	// Reference is the path to the CUE reference data.
	// Relative paths are resolved against the suite file's directory.
	Reference string `yaml:"reference"`

	// Kind is threshold or expect_success. Defaults to threshold.
	Kind SuiteKind `yaml:"kind,omitempty"`

	// Mode is the reconciliation mode. Required for threshold suites.
	Mode Mode `yaml:"mode,omitempty"`

	// MarginMB overrides the reference margin.
	MarginMB *int64 `yaml:"margin_mb,omitempty"`

	// Workloads lists the reference workloads to run. Empty means all of them.
	Workloads []string `yaml:"workloads,omitempty"`

	// Limits are the memory limits to sweep ("100m", "1g", -1).
	// Empty means the reference data's limits_mb.
	Limits []string `yaml:"limits,omitempty"`

	// Dimensions are additional configuration axes.
	Dimensions []DimensionSpec `yaml:"dimensions,omitempty"`

	// Constraints prune the cross product.
	Constraints []ConstraintSpec `yaml:"constraints,omitempty"`

	// ExecOptions are base options sent with every query.
	// Vector values override them per trial.
	ExecOptions map[string]string `yaml:"exec_options,omitempty"`

	// Timeout bounds a single trial. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Parallelism is the number of trials run concurrently. Defaults to 1.
	Parallelism int `yaml:"parallelism,omitempty"`

	// Path is the file the suite was loaded from.
	Path string `yaml:"-"`
}

// DimensionSpec is a configuration axis in a suite file.
type DimensionSpec struct {
	Name   string `yaml:"name"`
	Values []any  `yaml:"values"`
}

// ConstraintSpec is a declarative constraint in a suite file.
// Exactly one of In, NotIn and Prefix must be set.
type ConstraintSpec struct {
	Name      string   `yaml:"name"`
	Dimension string   `yaml:"dimension"`
	In        []any    `yaml:"in,omitempty"`
	NotIn     []any    `yaml:"not_in,omitempty"`
	Prefix    []string `yaml:"prefix,omitempty"`

	// CoreOnly constraints are skipped by exhaustive runs.
	CoreOnly bool `yaml:"core_only,omitempty"`
}

// LoadSuite reads and parses a suite YAML file.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields or is missing required fields.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	return ParseSuite(data, filepath.Dir(path), path)
}

// ParseSuite parses suite YAML, resolving the reference path against baseDir.
func ParseSuite(data []byte, baseDir, path string) (*Suite, error) {
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	suite.Path = path

	if suite.Reference != "" && !filepath.IsAbs(suite.Reference) && baseDir != "" {
		suite.Reference = filepath.Join(baseDir, suite.Reference)
	}
	if suite.Kind == "" {
		suite.Kind = KindThreshold
	}

	if err := validateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return &suite, nil
}

// validateSuite checks that required fields are present and valid.
func validateSuite(s *Suite) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Reference == "" {
		return fmt.Errorf("reference is required")
	}
	if _, err := os.Stat(s.Reference); os.IsNotExist(err) {
		return fmt.Errorf("reference file not found: %s", s.Reference)
	}

	switch s.Kind {
	case KindThreshold:
		if _, err := ParseMode(string(s.Mode)); err != nil {
			return err
		}
	case KindExpectSuccess:
		if s.Mode != "" {
			if _, err := ParseMode(string(s.Mode)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown kind %q (must be %q or %q)", s.Kind, KindThreshold, KindExpectSuccess)
	}

	if s.MarginMB != nil && *s.MarginMB < 0 {
		return fmt.Errorf("margin_mb must be non-negative, got %d", *s.MarginMB)
	}
	for i, raw := range s.Limits {
		if _, err := oracle.ParseMegabytes(raw); err != nil {
			return fmt.Errorf("limits[%d]: %w", i, err)
		}
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %s", s.Timeout)
	}
	if s.Parallelism < 0 {
		return fmt.Errorf("parallelism must be non-negative, got %d", s.Parallelism)
	}

	for i, d := range s.Dimensions {
		if d.Name == "" {
			return fmt.Errorf("dimensions[%d]: name is required", i)
		}
		if d.Name == LimitDimension {
			return fmt.Errorf("dimensions[%d]: %q is reserved, use limits", i, LimitDimension)
		}
		if len(d.Values) == 0 {
			return fmt.Errorf("dimensions[%d]: values list is required and must be non-empty", i)
		}
	}

	for i, c := range s.Constraints {
		if c.Name == "" {
			return fmt.Errorf("constraints[%d]: name is required", i)
		}
		if c.Dimension == "" {
			return fmt.Errorf("constraints[%d]: dimension is required", i)
		}
		set := 0
		for _, present := range []bool{len(c.In) > 0, len(c.NotIn) > 0, len(c.Prefix) > 0} {
			if present {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("constraints[%d]: exactly one of in, not_in and prefix is required", i)
		}
	}
	return nil
}

// LimitValues returns the limits the suite sweeps: its own list, or the
// reference list when the suite has none.
func (s *Suite) LimitValues(ref *oracle.Reference) ([]oracle.Megabytes, error) {
	if len(s.Limits) == 0 {
		if len(ref.LimitsMB) == 0 {
			return nil, fmt.Errorf("suite %q: no limits in suite or reference data", s.Name)
		}
		out := make([]oracle.Megabytes, len(ref.LimitsMB))
		copy(out, ref.LimitsMB)
		return out, nil
	}

	out := make([]oracle.Megabytes, 0, len(s.Limits))
	for i, raw := range s.Limits {
		mb, err := oracle.ParseMegabytes(raw)
		if err != nil {
			return nil, fmt.Errorf("suite %q: limits[%d]: %w", s.Name, i, err)
		}
		out = append(out, mb)
	}
	return out, nil
}

// Margin returns the suite's margin, falling back to the reference margin.
func (s *Suite) Margin(ref *oracle.Reference) oracle.Megabytes {
	if s.MarginMB != nil {
		return oracle.Megabytes(*s.MarginMB)
	}
	return ref.MarginMB
}

// WorkloadIDs returns the workloads to run, checked against the reference.
func (s *Suite) WorkloadIDs(ref *oracle.Reference) ([]string, error) {
	if len(s.Workloads) == 0 {
		return ref.Table.IDs(), nil
	}
	seen := make(map[string]bool, len(s.Workloads))
	for _, id := range s.Workloads {
		if _, err := ref.Table.Workload(id); err != nil {
			return nil, fmt.Errorf("suite %q: %w", s.Name, err)
		}
		if seen[id] {
			return nil, fmt.Errorf("suite %q: workload %q listed twice", s.Name, id)
		}
		seen[id] = true
	}
	out := make([]string, len(s.Workloads))
	copy(out, s.Workloads)
	return out, nil
}

// BuildMatrix builds the suite's configuration matrix. The suite's own
// dimensions come first in declaration order, followed by the memory limit
// dimension.
func (s *Suite) BuildMatrix(ref *oracle.Reference, strategy matrix.Strategy) (*matrix.Matrix, error) {
	b := matrix.NewBuilder()

	for _, d := range s.Dimensions {
		values := make([]ir.IRValue, 0, len(d.Values))
		for i, raw := range d.Values {
			v, err := ir.FromAny(raw)
			if err != nil {
				return nil, fmt.Errorf("dimension %q: values[%d]: %w", d.Name, i, err)
			}
			values = append(values, v)
		}
		if err := b.AddDimension(matrix.NewDimension(d.Name, values...)); err != nil {
			return nil, err
		}
	}

	limits, err := s.LimitValues(ref)
	if err != nil {
		return nil, err
	}
	limitValues := make([]ir.IRValue, len(limits))
	for i, l := range limits {
		limitValues[i] = ir.IRString(l.String())
	}
	if err := b.AddDimension(matrix.NewDimension(LimitDimension, limitValues...)); err != nil {
		return nil, err
	}

	for _, cs := range s.Constraints {
		c, err := cs.constraint()
		if err != nil {
			return nil, err
		}
		if err := b.AddConstraint(c); err != nil {
			return nil, err
		}
	}

	return b.Build(strategy)
}

func (cs ConstraintSpec) constraint() (matrix.Constraint, error) {
	var c matrix.Constraint
	switch {
	case len(cs.In) > 0:
		values, err := irValues(cs.In)
		if err != nil {
			return matrix.Constraint{}, fmt.Errorf("constraint %q: in: %w", cs.Name, err)
		}
		c = matrix.In(cs.Dimension, values...)
	case len(cs.NotIn) > 0:
		values, err := irValues(cs.NotIn)
		if err != nil {
			return matrix.Constraint{}, fmt.Errorf("constraint %q: not_in: %w", cs.Name, err)
		}
		c = matrix.NotIn(cs.Dimension, values...)
	default:
		c = matrix.HasPrefix(cs.Dimension, cs.Prefix...)
	}
	c.Name = cs.Name
	if cs.CoreOnly {
		c = matrix.Core(c)
	}
	return c, nil
}

func irValues(raw []any) ([]ir.IRValue, error) {
	out := make([]ir.IRValue, 0, len(raw))
	for i, r := range raw {
		v, err := ir.FromAny(r)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
