package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Regenerate with: go test ./internal/harness -run TestGolden -update
func TestGolden_LowMemLoose(t *testing.T) {
	result, err := Run(context.Background(), lowMemSuite(ModeLoose), testReference(t), runConfig(testExecutor()))
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "low_mem_loose", result))
}

func TestGolden_ParallelRunMatchesSameFile(t *testing.T) {
	cfg := runConfig(testExecutor())
	cfg.Parallelism = 3
	result, err := Run(context.Background(), lowMemSuite(ModeLoose), testReference(t), cfg)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "low_mem_loose", result))
}

func TestSnapshot_IsDeterministic(t *testing.T) {
	first, err := Run(context.Background(), lowMemSuite(ModeStrict), testReference(t), runConfig(testExecutor()))
	require.NoError(t, err)
	second, err := Run(context.Background(), lowMemSuite(ModeStrict), testReference(t), runConfig(testExecutor()))
	require.NoError(t, err)

	a := NewSnapshot(first)
	b := NewSnapshot(second)
	aJSON, err := a.MarshalCanonical()
	require.NoError(t, err)
	bJSON, err := b.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, string(aJSON), string(bJSON))
	assert.Contains(t, string(aJSON), `"verdict":"PREDICTION_MISMATCH"`)
}

func TestVerdict(t *testing.T) {
	assert.Equal(t, "pass", Verdict(nil))
	assert.Equal(t, "UNEXPECTED_FAILURE", Verdict(&TrialError{Code: CodeUnexpectedFailure}))
	assert.Equal(t, "PREDICTION_MISMATCH", Verdict(&TrialError{Code: CodePredictionMismatch}))
	assert.Equal(t, "error", Verdict(ErrInvalidMode))
}
