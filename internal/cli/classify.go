package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/memoracle/internal/oracle"
)

// ClassifyOptions holds flags for the classify command.
type ClassifyOptions struct {
	*RootOptions
	MarginMB int64 // negative means the reference margin
}

// Classification is the oracle's answer for one workload and limit.
type Classification struct {
	Workload   string `json:"workload"`
	Limit      string `json:"limit"`
	MinMB      int64  `json:"min_mb"`
	MarginMB   int64  `json:"margin_mb"`
	Prediction string `json:"prediction"`
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClassifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "classify <reference.cue> <workload> <limit>",
		Short: "Predict whether a workload succeeds under a memory limit",
		Long: `Ask the threshold oracle whether a workload is expected to succeed.

A workload is predicted to succeed when the limit is at least its recorded
minimum plus the safety margin, or when the limit is unbounded (-1; pass it
after "--" so it is not read as a flag).

Examples:
  memoracle classify suites/tpch/reference.cue Q1 175m
  memoracle classify suites/tpch/reference.cue Q18 1g --margin 0
  memoracle classify suites/tpch/reference.cue Q21 -- -1`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.MarginMB, "margin", -1, "safety margin in MB (default: the reference margin)")

	return cmd
}

func runClassify(opts *ClassifyOptions, refPath, workload, rawLimit string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	limit, err := oracle.ParseMegabytes(rawLimit)
	if err != nil {
		return commandError(formatter, ErrCodeInvalidArgument, err.Error(), err)
	}

	ref, err := LoadReference(refPath)
	if err != nil {
		return commandError(formatter, loadErrorCode(err), err.Error(), err)
	}

	margin := ref.MarginMB
	if opts.MarginMB >= 0 {
		margin = oracle.Megabytes(opts.MarginMB)
	}

	minMB, err := ref.Table.MinimumRequired(workload)
	if err != nil {
		return commandError(formatter, ErrCodeInvalidArgument, err.Error(), err)
	}
	prediction, err := ref.Table.Classify(workload, limit, margin)
	if err != nil {
		return commandError(formatter, ErrCodeInvalidArgument, err.Error(), err)
	}
	formatter.VerboseLog("%s needs %s, margin %s", workload, minMB, margin)

	result := Classification{
		Workload:   workload,
		Limit:      limit.String(),
		MinMB:      int64(minMB),
		MarginMB:   int64(margin),
		Prediction: prediction.String(),
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	st := newStyles(formatter.Writer)
	verdict := st.pass.Render(result.Prediction)
	if prediction == oracle.PredictFails {
		verdict = st.fail.Render(result.Prediction)
	}
	fmt.Fprintf(formatter.Writer, "%s under mem_limit=%s: %s %s\n", workload, result.Limit, verdict,
		st.dim.Render(fmt.Sprintf("(min %dMB + margin %dMB)", result.MinMB, result.MarginMB)))
	return nil
}
