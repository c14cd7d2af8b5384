package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/memoracle/internal/store"
	"github.com/roach88/memoracle/internal/testutil"
)

// runResponse mirrors CLIResponse with a typed payload.
type runResponse struct {
	Status string    `json:"status"`
	Data   RunReport `json:"data"`
	Error  *CLIError `json:"error"`
}

func decodeRunResponse(t *testing.T, out string) runResponse {
	t.Helper()
	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func TestRunMissingArgs(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	_, _, err := execute(t, cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestRunNonExistentPath(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	out, _, err := execute(t, cmd, "/nonexistent/suite.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "path not found")
}

func TestRunLooseSuitePasses(t *testing.T) {
	dir := suiteDir(t, map[string]string{"loose.yaml": looseSuiteYAML})

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	out, _, err := execute(t, cmd, filepath.Join(dir, "loose.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "PASS low_mem_loose")
	assert.Contains(t, out, "6/6 trials passed")
	assert.Contains(t, out, "Suite Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "All suites passed")
}

func TestRunStrictSuiteFails(t *testing.T) {
	dir := suiteDir(t, map[string]string{"strict.yaml": strictSuiteYAML})

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	out, _, err := execute(t, cmd, filepath.Join(dir, "strict.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "FAIL low_mem_strict")
	assert.Contains(t, out, "2/3 trials passed")
	assert.Contains(t, out, "PREDICTION_MISMATCH: workload Q1 [mem_limit=150m]: predicted fails, observed: success")
	assert.Contains(t, out, "Suite Summary: 0 passed, 1 failed, 1 total")
}

func TestRunJSON(t *testing.T) {
	dir := suiteDir(t, map[string]string{"strict.yaml": strictSuiteYAML})

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "json"},
		RunIDs:      testutil.NewFixedRunIDGenerator("run-json"),
	}
	out, _, err := execute(t, newRunCommand(opts), filepath.Join(dir, "strict.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeRunResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTrialsFailed, resp.Error.Code)

	require.Len(t, resp.Data.Suites, 1)
	sr := resp.Data.Suites[0]
	assert.Equal(t, "low_mem_strict", sr.Name)
	assert.Equal(t, "run-json", sr.RunID)
	assert.False(t, sr.Pass)
	assert.Equal(t, 3, sr.Summary.Total)
	assert.Equal(t, 1, sr.Summary.Mismatches)

	require.Len(t, sr.Failures, 1)
	assert.Equal(t, int64(2), sr.Failures[0].Seq)
	assert.Equal(t, "Q1", sr.Failures[0].Workload)
	assert.Equal(t, "mem_limit=150m", sr.Failures[0].Vector)
	assert.Equal(t, "PREDICTION_MISMATCH", sr.Failures[0].Verdict)
}

func TestRunDirectory(t *testing.T) {
	dir := suiteDir(t, map[string]string{
		"loose.yaml":  looseSuiteYAML,
		"strict.yaml": strictSuiteYAML,
	})

	cmd := NewRunCommand(&RootOptions{Format: "json"})
	out, _, err := execute(t, cmd, dir)
	require.Error(t, err)

	resp := decodeRunResponse(t, out)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Suites, 2)
	assert.Equal(t, "low_mem_loose", resp.Data.Suites[0].Name)
	assert.Equal(t, "low_mem_strict", resp.Data.Suites[1].Name)
}

func TestRunStrategy(t *testing.T) {
	dir := suiteDir(t, map[string]string{"spill.yaml": exhaustiveSuiteYAML})
	suite := filepath.Join(dir, "spill.yaml")

	tests := []struct {
		strategy string
		trials   int
	}{
		{"core", 2},
		{"exhaustive", 4},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			cmd := NewRunCommand(&RootOptions{Format: "json"})
			out, _, err := execute(t, cmd, suite, "--strategy", tt.strategy, "--parallel", "2")
			require.NoError(t, err)

			resp := decodeRunResponse(t, out)
			require.Len(t, resp.Data.Suites, 1)
			assert.Equal(t, tt.trials, resp.Data.Suites[0].Summary.Total)
			assert.True(t, resp.Data.Suites[0].Pass)
		})
	}
}

func TestRunInvalidFlags(t *testing.T) {
	dir := suiteDir(t, map[string]string{"loose.yaml": looseSuiteYAML})
	suite := filepath.Join(dir, "loose.yaml")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"strategy", []string{"--strategy", "random"}, "invalid exploration strategy"},
		{"executor", []string{"--executor", "impala"}, "invalid executor"},
		{"sqlite_without_target", []string{"--executor", "sqlite"}, "--target-db is required"},
		{"negative_jitter", []string{"--jitter", "-5"}, "--jitter must be non-negative"},
		{"negative_parallel", []string{"--parallel", "-1"}, "--parallel must be non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRunCommand(&RootOptions{Format: "text"})
			out, _, err := execute(t, cmd, append([]string{suite}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, ErrCodeInvalidArgument)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestRunInvalidSuite(t *testing.T) {
	dir := suiteDir(t, map[string]string{"bad.yaml": `
name: no_mode
description: threshold suite without a mode
reference: reference.cue
`})

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	out, _, err := execute(t, cmd, filepath.Join(dir, "bad.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeSuiteInvalid)
	assert.Contains(t, out, "mode is required")
}

func TestRunUnknownWorkload(t *testing.T) {
	dir := suiteDir(t, map[string]string{"bad.yaml": `
name: unknown_workload
description: names a workload the reference lacks
reference: reference.cue
mode: strict
workloads: [Q99]
`})

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	out, _, err := execute(t, cmd, filepath.Join(dir, "bad.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodePlanInvalid)
	assert.Contains(t, out, "Q99")
}

func TestRunGolden(t *testing.T) {
	dir := suiteDir(t, map[string]string{"loose.yaml": looseSuiteYAML})
	suite := filepath.Join(dir, "loose.yaml")
	goldenPath := filepath.Join(dir, "golden", "loose.golden")

	// No golden file: nothing to compare
	out, _, err := execute(t, NewRunCommand(&RootOptions{Format: "json"}), suite)
	require.NoError(t, err)
	assert.Equal(t, GoldenNone, decodeRunResponse(t, out).Data.Suites[0].Golden)

	// --update writes the golden file
	out, _, err = execute(t, NewRunCommand(&RootOptions{Format: "text"}), suite, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"suite":"low_mem_loose"`)

	// A second run matches byte for byte
	out, _, err = execute(t, NewRunCommand(&RootOptions{Format: "json"}), suite)
	require.NoError(t, err)
	assert.Equal(t, GoldenMatch, decodeRunResponse(t, out).Data.Suites[0].Golden)

	// Drift fails the suite even though every trial passed
	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"suite":"stale"}`), 0644))
	out, _, err = execute(t, NewRunCommand(&RootOptions{Format: "json"}), suite)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeRunResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeGoldenMismatch, resp.Error.Code)
	assert.Equal(t, GoldenMismatch, resp.Data.Suites[0].Golden)
	assert.Equal(t, 6, resp.Data.Suites[0].Summary.Passed)
}

func TestRunGoldenIgnoresRunID(t *testing.T) {
	dir := suiteDir(t, map[string]string{"strict.yaml": strictSuiteYAML})
	suite := filepath.Join(dir, "strict.yaml")

	first := &RunOptions{RootOptions: &RootOptions{Format: "json"}, RunIDs: testutil.NewFixedRunIDGenerator("run-a")}
	_, _, err := execute(t, newRunCommand(first), suite, "--update")
	require.NoError(t, err)

	second := &RunOptions{RootOptions: &RootOptions{Format: "json"}, RunIDs: testutil.NewFixedRunIDGenerator("run-b")}
	out, _, err := execute(t, newRunCommand(second), suite)
	require.Error(t, err)

	// The trial failure is reported, but the snapshot still matches.
	resp := decodeRunResponse(t, out)
	assert.Equal(t, GoldenMatch, resp.Data.Suites[0].Golden)
	assert.Equal(t, ErrCodeTrialsFailed, resp.Error.Code)
}

func TestRunWritesLedger(t *testing.T) {
	dir := suiteDir(t, map[string]string{"strict.yaml": strictSuiteYAML})
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		RunIDs:      testutil.NewFixedRunIDGenerator("run-ledger"),
	}
	_, _, err := execute(t, newRunCommand(opts), filepath.Join(dir, "strict.yaml"), "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	ledger, err := store.Open(dbPath)
	require.NoError(t, err)
	defer ledger.Close()

	ctx := context.Background()
	run, err := ledger.ReadRun(ctx, "run-ledger")
	require.NoError(t, err)
	assert.Equal(t, "low_mem_strict", run.Suite)
	assert.Equal(t, "simulated", run.Executor)
	assert.Equal(t, "strict", run.Mode)
	assert.False(t, run.Pass)

	trials, err := ledger.ReadTrials(ctx, "run-ledger")
	require.NoError(t, err)
	assert.Len(t, trials, 3)

	failed, err := ledger.ReadFailedTrials(ctx, "run-ledger")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "PREDICTION_MISMATCH", failed[0].Verdict)
	assert.Equal(t, int64(150), failed[0].LimitMB)
}

func TestRunSQLiteExecutor(t *testing.T) {
	target := filepath.Join(t.TempDir(), "target.db")
	db, err := sql.Open("sqlite3", target)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE lineitem (l_orderkey INTEGER, l_quantity INTEGER);
		INSERT INTO lineitem VALUES (1, 17), (1, 36), (2, 38), (3, 45), (3, 49);
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	dir := t.TempDir()
	writeFile(t, dir, "reference.cue", `
workloads: {
	count: {min_mb: 1, query: "select count(*) from lineitem"}
	big:   {min_mb: 1, query: "select l_orderkey, sum(l_quantity) from lineitem group by l_orderkey"}
}
`)
	suite := writeFile(t, dir, "unbounded.yaml", `
name: unbounded
description: every workload succeeds without a limit
reference: reference.cue
kind: expect_success
limits: ["-1"]
`)

	cmd := NewRunCommand(&RootOptions{Format: "json"})
	out, _, err := execute(t, cmd, suite, "--executor", "sqlite", "--target-db", target)
	require.NoError(t, err)

	resp := decodeRunResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Suites, 1)
	assert.Equal(t, 2, resp.Data.Suites[0].Summary.Passed)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("suites", "tpch", "golden", "mem_limit_error.golden"),
		goldenFilePath(filepath.Join("suites", "tpch", "mem_limit_error.yaml")))
}

func TestRunShippedSuites(t *testing.T) {
	suitesDir := filepath.Join("..", "..", "suites", "tpch")

	if _, err := os.Stat(suitesDir); os.IsNotExist(err) {
		t.Skip("suites/tpch directory not found")
	}

	// The simulated executor peaks exactly at each recorded threshold, so
	// every suite must pass.
	cmd := NewRunCommand(&RootOptions{Format: "json"})
	out, _, err := execute(t, cmd, suitesDir, "--parallel", "4")
	require.NoError(t, err, out)

	resp := decodeRunResponse(t, out)
	assert.Equal(t, 3, resp.Data.Passed)
	for _, s := range resp.Data.Suites {
		assert.Empty(t, s.Failures, s.Name)
	}
}
