package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/memoracle/internal/executor"
	"github.com/roach88/memoracle/internal/ir"
	"github.com/roach88/memoracle/internal/matrix"
	"github.com/roach88/memoracle/internal/oracle"
)

// DriverConfig configures a Driver.
type DriverConfig struct {
	Suite string
	RunID string
	Kind  SuiteKind

	// Mode is required for threshold suites. Expect-success suites
	// reconcile strictly when it is empty.
	Mode Mode

	Margin oracle.Megabytes

	// BaseOptions are sent with every request. The vector overrides them.
	BaseOptions map[string]string

	// Timeout bounds each trial. Zero means no timeout.
	Timeout time.Duration

	Logger *zap.Logger
}

// Driver runs single trials against an executor.
//
// A Driver is safe for concurrent use as long as the executor is: every
// trial opens its own session and builds its own request.
type Driver struct {
	exec   executor.Executor
	table  *oracle.Table
	cfg    DriverConfig
	base   map[string]string
	seq    sequence
	logger *zap.Logger
}

// NewDriver creates a driver.
func NewDriver(exec executor.Executor, table *oracle.Table, cfg DriverConfig) (*Driver, error) {
	if exec == nil {
		return nil, fmt.Errorf("driver: executor is required")
	}
	if table == nil {
		return nil, fmt.Errorf("driver: reference table is required")
	}
	if cfg.Kind == "" {
		cfg.Kind = KindThreshold
	}
	switch cfg.Kind {
	case KindThreshold:
		if _, err := ParseMode(string(cfg.Mode)); err != nil {
			return nil, fmt.Errorf("driver: %w", err)
		}
	case KindExpectSuccess:
		if cfg.Mode == "" {
			cfg.Mode = ModeStrict
		}
		if _, err := ParseMode(string(cfg.Mode)); err != nil {
			return nil, fmt.Errorf("driver: %w", err)
		}
	default:
		return nil, fmt.Errorf("driver: unknown suite kind %q", cfg.Kind)
	}
	if cfg.Margin < 0 {
		return nil, fmt.Errorf("driver: margin must be non-negative, got %d", cfg.Margin)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	base := make(map[string]string, len(cfg.BaseOptions))
	for k, v := range cfg.BaseOptions {
		base[k] = v
	}

	return &Driver{
		exec:   exec,
		table:  table,
		cfg:    cfg,
		base:   base,
		logger: logger.With(zap.String("suite", cfg.Suite), zap.String("run_id", cfg.RunID)),
	}, nil
}

// Predict returns the expected outcome of a workload under limit.
func (d *Driver) Predict(workload string, limit oracle.Megabytes) (oracle.Prediction, error) {
	if d.cfg.Kind == KindExpectSuccess {
		if _, err := d.table.Workload(workload); err != nil {
			return 0, err
		}
		return oracle.PredictSucceeds, nil
	}
	return d.table.Classify(workload, limit, d.cfg.Margin)
}

// Request builds the execution request for a trial.
//
// Options are a fresh copy of the base options overlaid with the vector, so
// no trial can observe another trial's configuration. The memory limit is
// normalised to "<n>m" or "-1".
func (d *Driver) Request(workload string, v matrix.Vector) (executor.Request, oracle.Megabytes, error) {
	w, err := d.table.Workload(workload)
	if err != nil {
		return executor.Request{}, 0, err
	}

	limit := oracle.Unbounded
	if raw := v.GetString(LimitDimension); raw != "" {
		limit, err = oracle.ParseMegabytes(raw)
		if err != nil {
			return executor.Request{}, 0, fmt.Errorf("vector %s: %w", v, err)
		}
	}

	opts := make(map[string]string, len(d.base)+v.Len()+1)
	for k, val := range d.base {
		opts[k] = val
	}
	for k, val := range v.Options() {
		opts[k] = val
	}
	opts[executor.OptionMemLimit] = limit.String()

	return executor.Request{QueryText: w.Query, Options: opts}, limit, nil
}

// RunTrial executes one workload under one vector and reconciles the
// outcome. It never retries.
func (d *Driver) RunTrial(ctx context.Context, workload string, v matrix.Vector) Trial {
	return d.runTrial(ctx, d.seq.next(), workload, v)
}

func (d *Driver) runTrial(ctx context.Context, seq int64, workload string, v matrix.Vector) Trial {
	start := time.Now()
	trial := Trial{Seq: seq, Workload: workload, Vector: v}

	id, err := ir.TrialID(d.cfg.RunID, d.cfg.Suite, workload, v.ID(), seq)
	if err != nil {
		trial.Err = err
		return trial
	}
	trial.ID = id

	req, limit, err := d.Request(workload, v)
	if err != nil {
		trial.Err = err
		return trial
	}
	trial.Limit = limit

	predicted, err := d.Predict(workload, limit)
	if err != nil {
		trial.Err = err
		return trial
	}
	trial.Predicted = predicted

	trial.Outcome = d.execute(ctx, req, predicted)
	trial.Err = Reconcile(d.cfg.Mode, predicted, trial.Outcome)

	var te *TrialError
	if errors.As(trial.Err, &te) {
		te.Workload = workload
		te.Vector = v.String()
	}
	trial.Duration = time.Since(start)

	fields := []zap.Field{
		zap.Int64("seq", seq),
		zap.String("workload", workload),
		zap.Stringer("vector", v),
		zap.Stringer("predicted", predicted),
		zap.Stringer("observed", trial.Outcome.Status),
		zap.Duration("duration", trial.Duration),
	}
	if trial.Err != nil {
		d.logger.Warn("trial failed", append(fields, zap.Error(trial.Err))...)
	} else {
		d.logger.Debug("trial passed", fields...)
	}
	return trial
}

// execute runs req in a fresh session and classifies the result.
func (d *Driver) execute(ctx context.Context, req executor.Request, predicted oracle.Prediction) Outcome {
	tctx := ctx
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	sess, err := d.exec.Open(tctx)
	if err != nil {
		return classify(ctx, fmt.Errorf("open session: %w", err), predicted)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			d.logger.Warn("failed to close session", zap.Error(err))
		}
	}()

	if _, err := sess.Execute(tctx, req); err != nil {
		return classify(ctx, err, predicted)
	}
	return Success()
}

// classify extracts the failure kind from an executor error.
// A deadline hit while the parent context is still live is a trial timeout.
// Timeouts and memory-limit errors are expected only when a failure was
// predicted; anything else is unexpected.
func classify(parent context.Context, err error, predicted oracle.Prediction) Outcome {
	var kind FailureKind
	switch {
	case errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil:
		kind = KindTimeout
	case executor.IsMemLimitExceeded(err):
		kind = KindMemLimitExceeded
	default:
		return UnexpectedFailure(KindError, err)
	}
	if predicted == oracle.PredictFails {
		return ExpectedFailure(kind, err)
	}
	return UnexpectedFailure(kind, err)
}
