package harness

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/memoracle/internal/executor"
	"github.com/roach88/memoracle/internal/matrix"
	"github.com/roach88/memoracle/internal/testutil"
)

func lowMemSuite(mode Mode) *Suite {
	return &Suite{
		Name:        "low_mem",
		Description: "Q1 and Q2 under a memory sweep",
		Kind:        KindThreshold,
		Mode:        mode,
		Workloads:   []string{"Q1", "Q2"},
		Limits:      []string{"100m", "150m", "175m"},
	}
}

func runConfig(exec executor.Executor) Config {
	return Config{
		Executor: exec,
		RunIDs:   testutil.NewFixedRunIDGenerator("run-fixed"),
		Logger:   zap.NewNop(),
	}
}

func TestRun_SequentialOrderAndVerdicts(t *testing.T) {
	sim := testExecutor()
	result, err := Run(context.Background(), lowMemSuite(ModeLoose), testReference(t), runConfig(sim))
	require.NoError(t, err)

	assert.Equal(t, "run-fixed", result.RunID)
	assert.Equal(t, ModeLoose, result.Mode)
	assert.Equal(t, matrix.StrategyCore, result.Strategy)
	require.Len(t, result.Trials, 6)

	type row struct {
		Seq      int64
		Workload string
		Limit    string
		Verdict  string
	}
	var got []row
	for _, tr := range result.Trials {
		got = append(got, row{tr.Seq, tr.Workload, tr.Vector.GetString(LimitDimension), Verdict(tr.Err)})
	}
	want := []row{
		{1, "Q1", "100m", "pass"},
		{2, "Q1", "150m", "pass"},
		{3, "Q1", "175m", "pass"},
		{4, "Q2", "100m", "UNEXPECTED_FAILURE"},
		{5, "Q2", "150m", "UNEXPECTED_FAILURE"},
		{6, "Q2", "175m", "UNEXPECTED_FAILURE"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("trials mismatch (-want +got):\n%s", diff)
	}

	assert.False(t, result.Pass)
	assert.Len(t, result.Failures(), 3)
	assert.Equal(t, Summary{Total: 6, Passed: 3, UnexpectedFailures: 3}, result.Summary())
	assert.Equal(t, 0, sim.OpenSessions())
}

func TestRun_StrictModeReportsMismatch(t *testing.T) {
	suite := lowMemSuite(ModeStrict)
	suite.Workloads = []string{"Q1"}

	result, err := Run(context.Background(), suite, testReference(t), runConfig(testExecutor()))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, Summary{Total: 3, Passed: 2, Mismatches: 1}, result.Summary())
	assert.True(t, IsPredictionMismatch(result.Trials[1].Err))
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	suite := lowMemSuite(ModeLoose)
	suite.Workloads = []string{"Q1", "Q2", "Q6"}
	suite.Dimensions = []DimensionSpec{{Name: "file_format", Values: []any{"parquet", "text"}}}

	seq, err := Run(context.Background(), suite, testReference(t), runConfig(testExecutor()))
	require.NoError(t, err)

	cfg := runConfig(testExecutor())
	cfg.Parallelism = 4
	par, err := Run(context.Background(), suite, testReference(t), cfg)
	require.NoError(t, err)

	require.Len(t, par.Trials, 3*2*3)
	if diff := cmp.Diff(NewSnapshot(seq), NewSnapshot(par)); diff != "" {
		t.Errorf("parallel run differs from sequential (-seq +par):\n%s", diff)
	}
	for i, tr := range par.Trials {
		assert.Equal(t, int64(i+1), tr.Seq)
		assert.Equal(t, seq.Trials[i].ID, tr.ID)
	}
}

func TestRun_ExpectSuccessSuite(t *testing.T) {
	suite := &Suite{
		Name:        "mem_usage_scaling",
		Description: "Q1 succeeds at every sufficient limit",
		Kind:        KindExpectSuccess,
		Workloads:   []string{"Q1"},
		Limits:      []string{"-1", "400m", "150m"},
	}

	result, err := Run(context.Background(), suite, testReference(t), runConfig(testExecutor()))
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Equal(t, ModeStrict, result.Mode)
	assert.Len(t, result.Trials, 3)
}

func TestRun_ConfigurationErrorsRunNoTrials(t *testing.T) {
	sim := testExecutor()

	suite := lowMemSuite(ModeLoose)
	suite.Constraints = []ConstraintSpec{{Name: "c", Dimension: "table_format", Prefix: []string{"parquet/"}}}
	_, err := Run(context.Background(), suite, testReference(t), runConfig(sim))
	assert.ErrorIs(t, err, matrix.ErrUnknownDimension)

	suite = lowMemSuite("")
	_, err = Run(context.Background(), suite, testReference(t), runConfig(sim))
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = Run(context.Background(), lowMemSuite(ModeLoose), testReference(t), Config{})
	assert.Error(t, err)

	assert.Empty(t, sim.Requests())
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, lowMemSuite(ModeLoose), testReference(t), runConfig(testExecutor()))
	assert.ErrorIs(t, err, context.Canceled)

	cfg := runConfig(testExecutor())
	cfg.Parallelism = 3
	_, err = Run(ctx, lowMemSuite(ModeLoose), testReference(t), cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_LogsFailedTrials(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cfg := runConfig(testExecutor())
	cfg.Logger = zap.New(core)

	_, err := Run(context.Background(), lowMemSuite(ModeLoose), testReference(t), cfg)
	require.NoError(t, err)

	failed := logs.FilterMessage("trial failed").All()
	require.Len(t, failed, 3)
	assert.Equal(t, "Q2", failed[0].ContextMap()["workload"])
	assert.Len(t, logs.FilterMessage("trial passed").All(), 3)
	assert.Len(t, logs.FilterMessage("suite finished").All(), 1)
}
