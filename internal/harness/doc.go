// Package harness runs memory-limit verification suites.
//
// A suite sweeps a set of workloads across a configuration matrix whose
// dimensions always include the memory limit. For every (workload, vector)
// pair the driver asks the threshold oracle whether the query should fit,
// executes it once in a fresh executor session, and reconciles the observed
// outcome against the prediction.
//
// # Suite Format
//
//	name: mem_limit_error
//	description: "TPC-H queries fail cleanly below their memory threshold"
//	reference: reference.cue
//	kind: threshold          # or expect_success
//	mode: loose              # strict or loose, required for threshold
//	margin_mb: 30            # overrides the reference margin
//	workloads: [Q1, Q6]      # empty means every reference workload
//	limits: ["100m", "1g"]   # empty means the reference limits_mb
//	dimensions:
//	  - name: file_format
//	    values: [parquet, text]
//	constraints:
//	  - name: parquet_only
//	    dimension: file_format
//	    in: [parquet]
//	    core_only: true
//	exec_options: { num_nodes: "1" }
//	timeout: 5m
//	parallelism: 1
//
// # Reconciliation
//
// A trial predicted to succeed must succeed. A trial predicted to fail must
// fail with the executor's "Memory limit exceeded" message (or time out);
// any other failure is an UNEXPECTED_FAILURE, because the prediction is
// about the cause and not only the polarity. Whether a trial predicted to
// fail may succeed anyway depends on the mode: loose accepts it, strict
// reports PREDICTION_MISMATCH.
//
// # Deterministic Testing
//
// Trial sequence numbers come from the driver's dispatch counter and trial
// ids are content-addressed, so a run with a fixed run id and the simulated
// executor produces byte-identical snapshots for golden comparison.
package harness
