package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testReferenceCUE = `
margin_mb: 30
limits_mb: [100, 150, 175]
workloads: {
	Q1: {min_mb: 145, query: "select l_returnflag, sum(l_quantity) from lineitem group by l_returnflag"}
	Q6: {min_mb: 25, query: "select sum(l_extendedprice * l_discount) from lineitem"}
}
`

// looseSuiteYAML passes with the simulated executor: Q1 at 150m is predicted
// to fail but succeeds, which loose mode accepts.
const looseSuiteYAML = `
name: low_mem_loose
description: Q1 and Q6 around the Q1 threshold
reference: reference.cue
mode: loose
workloads: [Q1, Q6]
`

// strictSuiteYAML fails once with the simulated executor: Q1 at 150m.
const strictSuiteYAML = `
name: low_mem_strict
description: Q1 around its threshold, strict
reference: reference.cue
mode: strict
workloads: [Q1]
`

const exhaustiveSuiteYAML = `
name: spill
description: spill toggles
reference: reference.cue
mode: loose
workloads: [Q6]
limits: ["-1", 200m]
dimensions:
  - name: spill
    values: [true, false]
constraints:
  - name: spill_needs_limit
    dimension: mem_limit
    not_in: ["-1"]
    core_only: true
`

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// suiteDir writes the reference data and the given suites into a temp dir.
func suiteDir(t *testing.T, suites map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "reference.cue", testReferenceCUE)
	for name, content := range suites {
		writeFile(t, dir, name, content)
	}
	return dir
}

// execute runs a command and returns its stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
