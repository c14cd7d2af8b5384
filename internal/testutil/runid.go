// Package testutil provides fixed id sources for tests that need
// reproducible run and trial ids.
package testutil

// FixedRunIDGenerator returns the same run id every time.
//
// Trial ids hash the run id, so a fixed run id makes them reproducible for
// golden comparison and ledger tests.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator that always returns id.
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
