// Package ir provides the value types shared by every memoracle package.
//
// Configuration vectors carry scalar values (IRString, IRInt, IRBool). Trial
// traces and ledger rows are serialised through MarshalCanonical so that
// vector and trial ids are stable across runs and machines.
//
// Key design constraints:
//   - NO float types anywhere - memory limits are whole megabytes
//   - All JSON tags use snake_case
//   - ir imports nothing internal
package ir
