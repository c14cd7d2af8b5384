package harness

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/memoracle/internal/executor"
	"github.com/roach88/memoracle/internal/matrix"
	"github.com/roach88/memoracle/internal/oracle"
)

// Config configures a suite run.
type Config struct {
	Executor executor.Executor

	// Strategy selects core or exhaustive exploration. Empty means core.
	Strategy matrix.Strategy

	// Parallelism overrides the suite's parallelism when positive.
	Parallelism int

	// RunIDs generates the run id. Defaults to UUIDv7Generator.
	RunIDs RunIDGenerator

	Logger *zap.Logger
}

// Plan is a suite resolved against its reference data.
type Plan struct {
	Suite     *Suite
	Reference *oracle.Reference
	Matrix    *matrix.Matrix
	Workloads []string
}

// NewPlan builds the matrix and resolves the workloads of a suite.
// Every configuration error surfaces here, before any trial runs.
func NewPlan(suite *Suite, ref *oracle.Reference, strategy matrix.Strategy) (*Plan, error) {
	if strategy == "" {
		strategy = matrix.StrategyCore
	}
	m, err := suite.BuildMatrix(ref, strategy)
	if err != nil {
		return nil, fmt.Errorf("suite %q: %w", suite.Name, err)
	}
	workloads, err := suite.WorkloadIDs(ref)
	if err != nil {
		return nil, err
	}
	return &Plan{Suite: suite, Reference: ref, Matrix: m, Workloads: workloads}, nil
}

// Trials returns the number of trials the plan runs.
func (p *Plan) Trials() int {
	return len(p.Workloads) * p.Matrix.Count()
}

// Run executes every trial of a suite and returns the result.
//
// Trials are generated workload by workload, each workload sweeping the
// matrix in generation order. With parallelism 1 (the default) trials run
// sequentially; otherwise up to n run at once, each with its own session,
// and results are slotted back into generation order.
//
// Trial failures are reported in the result, not returned. The error is
// non-nil only for configuration problems and cancellation.
func Run(ctx context.Context, suite *Suite, ref *oracle.Reference, cfg Config) (*Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runIDs := cfg.RunIDs
	if runIDs == nil {
		runIDs = UUIDv7Generator{}
	}

	plan, err := NewPlan(suite, ref, cfg.Strategy)
	if err != nil {
		return nil, err
	}

	runID := runIDs.Generate()
	driver, err := NewDriver(cfg.Executor, ref.Table, DriverConfig{
		Suite:       suite.Name,
		RunID:       runID,
		Kind:        suite.Kind,
		Mode:        suite.Mode,
		Margin:      suite.Margin(ref),
		BaseOptions: suite.ExecOptions,
		Timeout:     suite.Timeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("suite %q: %w", suite.Name, err)
	}

	parallelism := suite.Parallelism
	if cfg.Parallelism > 0 {
		parallelism = cfg.Parallelism
	}
	if parallelism < 1 {
		parallelism = 1
	}

	result := NewResult(runID, suite.Name)
	result.Kind = suite.Kind
	result.Mode = driver.cfg.Mode
	result.Strategy = plan.Matrix.Strategy()
	result.StartedAt = time.Now()

	logger.Info("suite started",
		zap.String("suite", suite.Name),
		zap.String("run_id", runID),
		zap.String("executor", cfg.Executor.Name()),
		zap.Int("trials", plan.Trials()),
		zap.Int("parallelism", parallelism),
	)

	if parallelism == 1 {
		result.Trials, err = runSequential(ctx, plan, driver)
	} else {
		result.Trials, err = runParallel(ctx, plan, driver, parallelism)
	}
	if err != nil {
		return nil, fmt.Errorf("suite %q: %w", suite.Name, err)
	}

	for _, t := range result.Trials {
		if !t.Passed() {
			result.Pass = false
			break
		}
	}
	result.Duration = time.Since(result.StartedAt)

	s := result.Summary()
	logger.Info("suite finished",
		zap.String("suite", suite.Name),
		zap.String("run_id", runID),
		zap.Bool("pass", result.Pass),
		zap.Int("passed", s.Passed),
		zap.Int("failed", s.Total-s.Passed),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func runSequential(ctx context.Context, plan *Plan, driver *Driver) ([]Trial, error) {
	trials := make([]Trial, 0, plan.Trials())
	for _, w := range plan.Workloads {
		for v := range plan.Matrix.Generate() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			trials = append(trials, driver.runTrial(ctx, driver.seq.next(), w, v))
		}
	}
	return trials, nil
}

func runParallel(ctx context.Context, plan *Plan, driver *Driver, n int) ([]Trial, error) {
	trials := make([]Trial, plan.Trials())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n)

	idx := 0
generate:
	for _, w := range plan.Workloads {
		for v := range plan.Matrix.Generate() {
			if gctx.Err() != nil {
				break generate
			}
			slot, n := idx, driver.seq.next()
			g.Go(func() error {
				trials[slot] = driver.runTrial(gctx, n, w, v)
				return nil
			})
			idx++
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return trials, nil
}
