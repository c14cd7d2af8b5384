// Package oracle predicts whether a workload should fit in a memory budget.
//
// The prediction is driven by a static reference table mapping each workload
// to the minimum memory (in whole megabytes) it was observed to need. The
// table is ground truth and is never computed at runtime.
//
// A multi-threaded executor's consumption varies run to run with the degree
// of intra-operator parallelism (about 30 MB for the TPC-H reference data),
// so Classify adds a margin to the threshold: a limit below
// minimum+margin is predicted to fail. Without the margin, trials near the
// boundary would flap between outcomes.
//
// Reference data is written in CUE and validated against an embedded schema
// when loaded:
//
//	margin_mb: 30
//	limits_mb: [100, 150, 180, 420]
//	workloads: {
//	    Q1: {min_mb: 145, query: "select ..."}
//	}
package oracle
