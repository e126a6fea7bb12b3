package testutil

// FixedRunIDGenerator returns the same run ID every time.
//
// Unlike analysis.FixedGenerator, which returns IDs in sequence, this
// generator never runs out, so a test can execute any number of runs and
// still produce byte-identical reports.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a fixed run ID generator. An empty id
// becomes "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run ID.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
