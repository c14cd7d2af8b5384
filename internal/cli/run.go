package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/memoracle/internal/executor"
	"github.com/roach88/memoracle/internal/harness"
	"github.com/roach88/memoracle/internal/matrix"
	"github.com/roach88/memoracle/internal/oracle"
	"github.com/roach88/memoracle/internal/store"
)

// Executor names accepted by --executor.
const (
	ExecutorSimulated = "sim"
	ExecutorSQLite    = "sqlite"
)

// Golden comparison states reported per suite.
const (
	GoldenNone     = ""
	GoldenMatch    = "match"
	GoldenMismatch = "mismatch"
	GoldenUpdated  = "updated"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Executor string
	TargetDB string // database the sqlite executor queries
	Database string // ledger path; empty disables the ledger
	Strategy string
	Parallel int
	JitterMB int64
	Seed     uint64
	Update   bool // regenerate golden files

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs harness.RunIDGenerator
}

// SuiteReport is the outcome of one suite in a run.
type SuiteReport struct {
	Name       string          `json:"name"`
	Path       string          `json:"path"`
	RunID      string          `json:"run_id"`
	Pass       bool            `json:"pass"`
	Summary    harness.Summary `json:"summary"`
	Golden     string          `json:"golden,omitempty"`
	Failures   []FailureReport `json:"failures,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// FailureReport is one failed trial.
type FailureReport struct {
	Seq      int64  `json:"seq"`
	Workload string `json:"workload"`
	Vector   string `json:"vector"`
	Verdict  string `json:"verdict"`
	Message  string `json:"message"`
}

// RunReport holds the overall run result.
type RunReport struct {
	Suites []SuiteReport `json:"suites"`
	Passed int           `json:"passed"`
	Failed int           `json:"failed"`
	Total  int           `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <suite.yaml|dir>...",
		Short: "Run suites against an executor",
		Long: `Run memory-limit suites and reconcile every trial with the oracle.

Each suite sweeps its workloads over its configuration matrix. Every trial
is predicted from the reference thresholds, executed, and reconciled. If a
golden file exists next to a suite (golden/<suite-file>.golden) the run's
snapshot must match it byte for byte.

Exit codes:
  0 - All trials passed
  1 - One or more trials failed or a golden file did not match
  2 - Command error (invalid paths, invalid suites, ledger errors, etc.)

Examples:
  memoracle run suites/tpch
  memoracle run suites/tpch/mem_limit_error.yaml --strategy exhaustive
  memoracle run suites/tpch --executor sqlite --target-db tpch.db --db ledger.db
  memoracle run suites/tpch --update`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Executor, "executor", ExecutorSimulated, "executor to run trials on (sim|sqlite)")
	cmd.Flags().StringVar(&opts.TargetDB, "target-db", "", "SQLite database queried by the sqlite executor")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the run ledger (SQLite); empty disables it")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", string(matrix.StrategyCore), "exploration strategy (core|exhaustive)")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 0, "trials run concurrently (overrides the suite)")
	cmd.Flags().Int64Var(&opts.JitterMB, "jitter", 0, "simulated peak memory jitter in MB")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "seed for simulated jitter")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")

	return cmd
}

func runSuites(opts *RunOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	strategy, err := matrix.ParseStrategy(opts.Strategy)
	if err != nil {
		return commandError(formatter, ErrCodeInvalidArgument, err.Error(), err)
	}
	if err := validateExecutorFlags(opts); err != nil {
		return commandError(formatter, ErrCodeInvalidArgument, err.Error(), err)
	}

	paths, err := ExpandSuitePaths(args)
	if err != nil {
		return commandError(formatter, loadErrorCode(err), err.Error(), err)
	}
	loaded, loadErrs := LoadSuites(paths, LoadModeFailFast)
	if len(loadErrs) > 0 {
		return commandError(formatter, loadErrorCode(loadErrs[0]), loadErrs[0].Error(), loadErrs[0])
	}

	var ledger *store.Store
	if opts.Database != "" {
		ledger, err = store.Open(opts.Database)
		if err != nil {
			return commandError(formatter, ErrCodeLedger, fmt.Sprintf("failed to open ledger: %v", err), err)
		}
		defer ledger.Close()
		formatter.VerboseLog("Ledger: %s", opts.Database)
	}

	// Cancel in-flight trials on interrupt
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(opts.RootOptions, formatter.diagWriter())
	defer func() { _ = logger.Sync() }()

	report := RunReport{Suites: make([]SuiteReport, 0, len(loaded))}
	for _, ls := range loaded {
		formatter.VerboseLog("Running suite %s (%s)", ls.Suite.Name, ls.Suite.Path)

		sr, err := runSuite(ctx, opts, ls, strategy, ledger, logger)
		if err != nil {
			code := ErrCodeRunFailed
			if errors.Is(err, errLedger) {
				code = ErrCodeLedger
			}
			return commandError(formatter, code, fmt.Sprintf("suite %s: %v", ls.Suite.Name, err), err)
		}

		report.Suites = append(report.Suites, sr)
		report.Total++
		if sr.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	if opts.Format == "json" {
		return outputRunJSON(cmd, report)
	}
	return outputRunText(cmd, report)
}

var errLedger = errors.New("ledger write failed")

func runSuite(ctx context.Context, opts *RunOptions, ls LoadedSuite, strategy matrix.Strategy, ledger *store.Store, logger *zap.Logger) (SuiteReport, error) {
	exec := newExecutor(opts, ls.Reference)

	res, err := harness.Run(ctx, ls.Suite, ls.Reference, harness.Config{
		Executor:    exec,
		Strategy:    strategy,
		Parallelism: opts.Parallel,
		RunIDs:      opts.RunIDs,
		Logger:      logger,
	})
	if err != nil {
		return SuiteReport{}, err
	}

	sr := SuiteReport{
		Name:       res.Suite,
		Path:       ls.Suite.Path,
		RunID:      res.RunID,
		Pass:       res.Pass,
		Summary:    res.Summary(),
		DurationMS: res.Duration.Milliseconds(),
	}
	for _, t := range res.Failures() {
		sr.Failures = append(sr.Failures, FailureReport{
			Seq:      t.Seq,
			Workload: t.Workload,
			Vector:   t.Vector.String(),
			Verdict:  harness.Verdict(t.Err),
			Message:  t.Err.Error(),
		})
	}

	sr.Golden, err = checkGolden(ls.Suite.Path, res, opts.Update)
	if err != nil {
		return SuiteReport{}, err
	}
	if sr.Golden == GoldenMismatch {
		sr.Pass = false
	}

	if ledger != nil {
		if err := ledger.WriteResult(ctx, res, exec.Name()); err != nil {
			return SuiteReport{}, fmt.Errorf("%w: %v", errLedger, err)
		}
	}
	return sr, nil
}

func validateExecutorFlags(opts *RunOptions) error {
	switch opts.Executor {
	case ExecutorSimulated:
		if opts.JitterMB < 0 {
			return fmt.Errorf("--jitter must be non-negative, got %d", opts.JitterMB)
		}
	case ExecutorSQLite:
		if opts.TargetDB == "" {
			return fmt.Errorf("--target-db is required with --executor %s", ExecutorSQLite)
		}
		if _, err := os.Stat(opts.TargetDB); err != nil {
			return fmt.Errorf("target database: %w", err)
		}
	default:
		return fmt.Errorf("invalid executor %q: must be %q or %q", opts.Executor, ExecutorSimulated, ExecutorSQLite)
	}
	if opts.Parallel < 0 {
		return fmt.Errorf("--parallel must be non-negative, got %d", opts.Parallel)
	}
	return nil
}

// newExecutor builds the executor for one suite. The simulated executor
// models the suite's own reference data.
func newExecutor(opts *RunOptions, ref *oracle.Reference) executor.Executor {
	if opts.Executor == ExecutorSQLite {
		return executor.NewSQLite(opts.TargetDB)
	}
	return executor.NewSimulatedFromReference(ref, oracle.Megabytes(opts.JitterMB), opts.Seed)
}

// goldenFilePath returns the path to the golden file for a suite.
func goldenFilePath(suiteFile string) string {
	dir := filepath.Dir(suiteFile)
	base := filepath.Base(suiteFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// checkGolden compares a result with the suite's golden file, or rewrites
// the golden file when update is set. Suites without a golden file are not
// compared.
func checkGolden(suiteFile string, res *harness.Result, update bool) (string, error) {
	snapshot := harness.NewSnapshot(res)
	current, err := snapshot.MarshalCanonical()
	if err != nil {
		return GoldenNone, fmt.Errorf("failed to marshal trace: %w", err)
	}

	goldenPath := goldenFilePath(suiteFile)
	if update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
			return GoldenNone, fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(goldenPath, current, 0644); err != nil {
			return GoldenNone, fmt.Errorf("failed to write golden file: %w", err)
		}
		return GoldenUpdated, nil
	}

	golden, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		return GoldenNone, nil
	}
	if err != nil {
		return GoldenNone, fmt.Errorf("failed to read golden file: %w", err)
	}
	if bytes.Equal(bytes.TrimSpace(golden), current) {
		return GoldenMatch, nil
	}
	return GoldenMismatch, nil
}

// commandError reports a command-level error (exit code 2).
func commandError(formatter *OutputFormatter, code, message string, err error) error {
	_ = formatter.Error(code, message, nil)
	return WrapExitError(ExitCommandError, code, err)
}

// outputRunJSON outputs the run report as JSON.
func outputRunJSON(cmd *cobra.Command, report RunReport) error {
	response := CLIResponse{
		Status: "ok",
		Data:   report,
	}

	if report.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTrialsFailed,
			Message: fmt.Sprintf("%d suite(s) failed", report.Failed),
		}
		for _, s := range report.Suites {
			if s.Golden == GoldenMismatch {
				response.Error.Code = ErrCodeGoldenMismatch
				break
			}
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if report.Failed > 0 {
		// Trial failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d suite(s) failed", report.Failed))
	}
	return nil
}

// outputRunText outputs the run report as text.
func outputRunText(cmd *cobra.Command, report RunReport) error {
	w := cmd.OutOrStdout()
	st := newStyles(w)

	for _, s := range report.Suites {
		fmt.Fprintf(w, "%s %s %s\n", st.mark(s.Pass), s.Name,
			st.dim.Render(fmt.Sprintf("(%d/%d trials passed, %s, run %s)",
				s.Summary.Passed, s.Summary.Total, time.Duration(s.DurationMS)*time.Millisecond, s.RunID)))
		for _, f := range s.Failures {
			fmt.Fprintf(w, "  %s\n", f.Message)
		}
		switch s.Golden {
		case GoldenMismatch:
			fmt.Fprintln(w, "  Golden file mismatch (run with --update to regenerate)")
		case GoldenUpdated:
			fmt.Fprintln(w, "  golden updated")
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Suite Summary: %d passed, %d failed, %d total\n", report.Passed, report.Failed, report.Total)

	if report.Failed > 0 {
		// Trial failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d suite(s) failed", report.Failed))
	}

	fmt.Fprintln(w, st.pass.Render("\u2713 All suites passed"))
	return nil
}
