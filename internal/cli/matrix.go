package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/memoracle/internal/harness"
	"github.com/roach88/memoracle/internal/ir"
	"github.com/roach88/memoracle/internal/matrix"
)

// MatrixOptions holds flags for the matrix command.
type MatrixOptions struct {
	*RootOptions
	Strategy string
}

// MatrixListing describes the configurations a suite would run.
type MatrixListing struct {
	Suite      string          `json:"suite"`
	Strategy   string          `json:"strategy"`
	Dimensions []DimensionInfo `json:"dimensions"`
	Size       int             `json:"size"`
	Vectors    []VectorInfo    `json:"vectors"`
	Workloads  []string        `json:"workloads"`
	Trials     int             `json:"trials"`
}

// DimensionInfo is one matrix dimension.
type DimensionInfo struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// VectorInfo is one generated configuration vector.
type VectorInfo struct {
	ID     string            `json:"id"`
	Values map[string]string `json:"values"`
}

// NewMatrixCommand creates the matrix command.
func NewMatrixCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatrixOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "matrix <suite.yaml>",
		Short: "List the configuration vectors of a suite",
		Long: `List the configuration vectors a suite generates, in run order.

The cross product of the suite's dimensions is filtered by its constraints.
With --strategy exhaustive, core-only constraints are skipped.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatrix(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Strategy, "strategy", string(matrix.StrategyCore), "exploration strategy (core|exhaustive)")

	return cmd
}

func runMatrix(opts *MatrixOptions, suitePath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	strategy, err := matrix.ParseStrategy(opts.Strategy)
	if err != nil {
		return commandError(formatter, ErrCodeInvalidArgument, err.Error(), err)
	}

	loaded, errs := LoadSuites([]string{suitePath}, LoadModeFailFast)
	if len(errs) > 0 {
		return commandError(formatter, loadErrorCode(errs[0]), errs[0].Error(), errs[0])
	}
	ls := loaded[0]

	plan, err := harness.NewPlan(ls.Suite, ls.Reference, strategy)
	if err != nil {
		return commandError(formatter, ErrCodePlanInvalid, err.Error(), err)
	}

	listing := MatrixListing{
		Suite:     ls.Suite.Name,
		Strategy:  string(plan.Matrix.Strategy()),
		Size:      plan.Matrix.Size(),
		Vectors:   []VectorInfo{},
		Workloads: plan.Workloads,
		Trials:    plan.Trials(),
	}
	for _, d := range plan.Matrix.Dimensions() {
		info := DimensionInfo{Name: d.Name, Values: make([]string, len(d.Values))}
		for i, v := range d.Values {
			info.Values[i] = ir.Format(v)
		}
		listing.Dimensions = append(listing.Dimensions, info)
	}
	for v := range plan.Matrix.Generate() {
		listing.Vectors = append(listing.Vectors, VectorInfo{ID: v.ID(), Values: v.Options()})
	}

	if opts.Format == "json" {
		return formatter.Success(listing)
	}

	w := formatter.Writer
	st := newStyles(w)
	fmt.Fprintln(w, st.head.Render(fmt.Sprintf("Matrix %s", listing.Suite)))
	for _, d := range listing.Dimensions {
		fmt.Fprintf(w, "  %s: %s\n", d.Name, strings.Join(d.Values, ", "))
	}
	fmt.Fprintln(w)

	names := make([]string, len(listing.Dimensions))
	for i, d := range listing.Dimensions {
		names[i] = d.Name
	}
	for i, v := range listing.Vectors {
		parts := make([]string, len(names))
		for j, name := range names {
			parts[j] = name + "=" + v.Values[name]
		}
		fmt.Fprintf(w, "%4d  %s  %s\n", i+1, strings.Join(parts, " "), st.dim.Render(v.ID[:12]))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d of %d vectors (%s), %d workload(s), %d trial(s)\n",
		len(listing.Vectors), listing.Size, listing.Strategy, len(listing.Workloads), listing.Trials)
	return nil
}
