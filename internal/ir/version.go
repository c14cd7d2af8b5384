package ir

// Version constants for trial records and golden traces.
const (
	// TraceVersion is the trial trace schema version.
	TraceVersion = "1"

	// HarnessVersion is the memoracle harness version.
	HarnessVersion = "0.1.0"
)
