// Package store provides the SQLite run ledger.
//
// The ledger keeps one row per suite run and one row per trial with the
// reconciled verdict (pass, UNEXPECTED_FAILURE or PREDICTION_MISMATCH) and
// the trial error message. Raw outcomes are not persisted.
//
// Trials are always read ORDER BY seq ASC, id ASC COLLATE BINARY so reports
// list them in generation order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
