package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/memoracle/internal/harness"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Suites []SuiteInfo       `json:"suites,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// SuiteInfo summarizes a suite that loaded cleanly.
type SuiteInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	Mode      string `json:"mode,omitempty"`
	Workloads int    `json:"workloads"`
	Trials    int    `json:"trials"`
}

// ValidationError is one problem found in a suite or reference file.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <suite.yaml|dir>...",
		Short: "Validate suites without running them",
		Long: `Validate suite files and the reference data they name.

Every suite is parsed, its reference data is checked against the schema and
its matrix and workloads are resolved, so every configuration error a run
would hit is reported up front. All files are checked; errors are collected.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	paths, err := ExpandSuitePaths(args)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Error(), nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	formatter.VerboseLog("Found %d suite file(s)", len(paths))

	loaded, loadErrors := LoadSuites(paths, LoadModeCollectAll)

	result := ValidationResult{Valid: len(loadErrors) == 0}
	for _, ls := range loaded {
		plan, err := harness.NewPlan(ls.Suite, ls.Reference, "")
		if err != nil {
			// LoadSuites already resolved the plan.
			continue
		}
		formatter.VerboseLog("Validated suite %s (%d trials)", ls.Suite.Name, plan.Trials())
		result.Suites = append(result.Suites, SuiteInfo{
			Name:      ls.Suite.Name,
			Path:      ls.Suite.Path,
			Kind:      string(ls.Suite.Kind),
			Mode:      string(ls.Suite.Mode),
			Workloads: len(plan.Workloads),
			Trials:    plan.Trials(),
		})
	}
	for _, err := range loadErrors {
		ve := ValidationError{Code: ErrCodeGeneric, Message: err.Error()}
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			ve = ValidationError{Code: loadErr.Code, Message: loadErr.Message, Path: loadErr.Path}
		}
		result.Errors = append(result.Errors, ve)
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	st := newStyles(formatter.Writer)
	for _, s := range result.Suites {
		fmt.Fprintf(formatter.Writer, "%s %s %s\n", st.pass.Render("\u2713"), s.Name,
			st.dim.Render(fmt.Sprintf("(%s, %d workloads, %d trials)", s.Kind, s.Workloads, s.Trials)))
	}
	fmt.Fprintln(formatter.Writer, "\u2713 All suites valid")
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Path errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	st := newStyles(formatter.Writer)
	fmt.Fprintln(formatter.Writer, st.fail.Render("\u2717 Validation failed"))
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Path != "" {
			fmt.Fprintln(formatter.Writer, err.Path)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
