package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/memoracle/internal/executor"
	"github.com/roach88/memoracle/internal/ir"
	"github.com/roach88/memoracle/internal/matrix"
	"github.com/roach88/memoracle/internal/oracle"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	queryQ1     = "select l_returnflag, sum(l_quantity) from lineitem group by l_returnflag"
	queryQ6     = "select sum(l_extendedprice * l_discount) from lineitem"
	queryBroken = "selec sum(l_quantity) form lineitem"
	querySlow   = "select * from lineitem, orders"
)

const testReferenceCUE = `
margin_mb: 30
limits_mb: [100, 150, 175]
workloads: {
	Q1: {min_mb: 145, query: "select l_returnflag, sum(l_quantity) from lineitem group by l_returnflag"}
	Q6: {min_mb: 25, query: "select sum(l_extendedprice * l_discount) from lineitem"}
}
`

// testReference returns reference data with Q1 (145MB), Q2 (105MB, always a
// syntax error), Q6 (25MB) and Q9 (145MB, slow).
func testReference(t *testing.T) *oracle.Reference {
	t.Helper()
	table, err := oracle.NewTable(
		oracle.Workload{ID: "Q1", MinMB: 145, Query: queryQ1},
		oracle.Workload{ID: "Q2", MinMB: 105, Query: queryBroken},
		oracle.Workload{ID: "Q6", MinMB: 25, Query: queryQ6},
		oracle.Workload{ID: "Q9", MinMB: 145, Query: querySlow},
	)
	require.NoError(t, err)
	return &oracle.Reference{
		Source:   "test",
		MarginMB: oracle.DefaultMargin,
		LimitsMB: []oracle.Megabytes{100, 150, 175},
		Table:    table,
	}
}

// testExecutor models the reference workloads without jitter.
func testExecutor() *executor.Simulated {
	return executor.NewSimulated(1, map[string]executor.SimulatedWorkload{
		queryQ1:     {PeakMB: 145},
		queryQ6:     {PeakMB: 25},
		queryBroken: {FailWith: "Syntax error: unexpected FROM"},
		querySlow:   {PeakMB: 145, Latency: 5 * time.Second},
	})
}

func limitVector(t *testing.T, limit string) matrix.Vector {
	t.Helper()
	v, err := matrix.NewVector([]string{LimitDimension}, []ir.IRValue{ir.IRString(limit)})
	require.NoError(t, err)
	return v
}

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
