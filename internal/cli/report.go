package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/memoracle/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
	Failed   bool   // only failed trials
	Suite    string // filter for run listings
	Limit    int
}

// RunDetail is a run read back from the ledger.
type RunDetail struct {
	Run    RunInfo     `json:"run"`
	Trials []TrialInfo `json:"trials"`
}

// RunInfo is the JSON form of a ledger run.
type RunInfo struct {
	ID             string    `json:"id"`
	Suite          string    `json:"suite"`
	Kind           string    `json:"kind"`
	Mode           string    `json:"mode"`
	Strategy       string    `json:"strategy"`
	Executor       string    `json:"executor"`
	HarnessVersion string    `json:"harness_version"`
	Pass           bool      `json:"pass"`
	StartedAt      time.Time `json:"started_at"`
	DurationMS     int64     `json:"duration_ms"`
}

// TrialInfo is the JSON form of a ledger trial.
type TrialInfo struct {
	Seq       int64  `json:"seq"`
	Workload  string `json:"workload"`
	Vector    string `json:"vector"`
	LimitMB   int64  `json:"limit_mb"`
	Predicted string `json:"predicted"`
	Verdict   string `json:"verdict"`
	Message   string `json:"message,omitempty"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Show runs recorded in the ledger",
		Long: `Show the verdicts of a run recorded in the ledger.

Without a run id, lists the most recent runs.

Examples:
  memoracle report --db ledger.db
  memoracle report --db ledger.db --suite mem_limit_error --limit 5
  memoracle report 019a3f2e-... --db ledger.db --failed`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListRuns(opts, cmd)
			}
			return runReport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the run ledger (required)")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "show failed trials only")
	cmd.Flags().StringVar(&opts.Suite, "suite", "", "list runs of this suite only")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 for all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// openLedger opens an existing ledger. Report never creates one.
func openLedger(formatter *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, commandError(formatter, ErrCodeNotFound, fmt.Sprintf("ledger not found: %s", path), err)
	}
	ledger, err := store.Open(path)
	if err != nil {
		return nil, commandError(formatter, ErrCodeLedger, fmt.Sprintf("failed to open ledger: %v", err), err)
	}
	return ledger, nil
}

func runReport(opts *ReportOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	ledger, err := openLedger(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer ledger.Close()

	ctx := cmd.Context()
	run, err := ledger.ReadRun(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return commandError(formatter, ErrCodeRunNotFound, err.Error(), err)
	}
	if err != nil {
		return commandError(formatter, ErrCodeLedger, err.Error(), err)
	}

	var trials []store.TrialRecord
	if opts.Failed {
		trials, err = ledger.ReadFailedTrials(ctx, runID)
	} else {
		trials, err = ledger.ReadTrials(ctx, runID)
	}
	if err != nil {
		return commandError(formatter, ErrCodeLedger, err.Error(), err)
	}

	detail := RunDetail{Run: runInfo(run), Trials: make([]TrialInfo, len(trials))}
	for i, t := range trials {
		detail.Trials[i] = TrialInfo{
			Seq:       t.Seq,
			Workload:  t.Workload,
			Vector:    t.Vector,
			LimitMB:   t.LimitMB,
			Predicted: t.Predicted,
			Verdict:   t.Verdict,
			Message:   t.Message,
		}
	}

	if opts.Format == "json" {
		return formatter.Success(detail)
	}

	w := formatter.Writer
	st := newStyles(w)
	fmt.Fprintf(w, "%s %s %s\n", st.mark(run.Pass), st.head.Render(run.Suite),
		st.dim.Render(fmt.Sprintf("run %s, %s, %s/%s/%s, %s", run.ID, run.StartedAt.UTC().Format(time.RFC3339),
			run.Kind, run.Mode, run.Strategy, run.Executor)))
	for _, t := range detail.Trials {
		fmt.Fprintf(w, "%4d  %s  %-4s %s  predicted %s\n", t.Seq, st.mark(t.Verdict == "pass"), t.Workload, t.Vector, t.Predicted)
		if t.Message != "" {
			fmt.Fprintf(w, "      %s\n", t.Message)
		}
	}
	return nil
}

func runListRuns(opts *ReportOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	ledger, err := openLedger(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.ListRuns(cmd.Context(), opts.Suite, opts.Limit)
	if err != nil {
		return commandError(formatter, ErrCodeLedger, err.Error(), err)
	}

	infos := make([]RunInfo, len(runs))
	for i, r := range runs {
		infos[i] = runInfo(r)
	}
	if opts.Format == "json" {
		return formatter.Success(infos)
	}

	w := formatter.Writer
	if len(infos) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}
	st := newStyles(w)
	for _, r := range infos {
		fmt.Fprintf(w, "%s  %s  %s  %s\n", st.mark(r.Pass), r.ID, r.Suite,
			st.dim.Render(r.StartedAt.UTC().Format(time.RFC3339)))
	}
	return nil
}

func runInfo(r store.RunRecord) RunInfo {
	return RunInfo{
		ID:             r.ID,
		Suite:          r.Suite,
		Kind:           r.Kind,
		Mode:           r.Mode,
		Strategy:       r.Strategy,
		Executor:       r.Executor,
		HarnessVersion: r.HarnessVersion,
		Pass:           r.Pass,
		StartedAt:      r.StartedAt,
		DurationMS:     r.Duration.Milliseconds(),
	}
}
