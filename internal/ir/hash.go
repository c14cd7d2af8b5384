package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainVector = "memoracle/vector/v1"
	DomainTrial  = "memoracle/trial/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// VectorID computes the content-addressed id of a configuration vector.
// Two vectors with the same entries have the same id regardless of how
// they were produced.
func VectorID(entries IRObject) (string, error) {
	canonical, err := MarshalCanonical(entries)
	if err != nil {
		return "", fmt.Errorf("VectorID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainVector, canonical), nil
}

// TrialID computes the content-addressed id of one trial within a run.
// The run id is included so that repeated runs of a suite get distinct ids.
func TrialID(runID, suite, workload, vectorID string, seq int64) (string, error) {
	obj := IRObject{
		"run_id":    IRString(runID),
		"suite":     IRString(suite),
		"workload":  IRString(workload),
		"vector_id": IRString(vectorID),
		"seq":       IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("TrialID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrial, canonical), nil
}

// MustVectorID is like VectorID but panics on error.
// Use only in tests or when entries are known to be scalar.
func MustVectorID(entries IRObject) string {
	id, err := VectorID(entries)
	if err != nil {
		panic(err)
	}
	return id
}
