// Package store persists computed metric values across analysis runs.
//
// A metric value is addressed by (dataset ID, request key). Dataset IDs are
// content fingerprints, so a cached value is only ever served for the exact
// content it was computed from.
//
// Implementations:
//   - Memory: process-lifetime map, for tests and one-shot runs
//   - Store: SQLite file (this package)
//   - badgerstore.Store: Badger key-value directory (subpackage)
//
// All implementations tolerate concurrent writes of the same key;
// the last write wins. Since values are deterministic in the dataset
// content, every write of a key carries the same value.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Request keys are computed by ir.Request.Key using RFC 8785 canonical JSON
// and SHA-256 with domain separation.
package store
