package ir

// Version constants for the persisted request encoding and the engine.
const (
	// IRVersion is the request encoding version stored next to cached metrics.
	IRVersion = "1"

	// EngineVersion is the verity engine version.
	EngineVersion = "0.1.0"
)
