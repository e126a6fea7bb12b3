// Package analysis resolves batches of metric requests into an immutable
// Context that checks are evaluated against.
//
// A run deduplicates its requests, serves what it can from a MetricStore,
// hands the rest to an Engine in one batch, writes the new values back and
// merges everything into a Context together with the dataset metadata.
// Runs are all-or-nothing: an unsupported request or an engine failure
// aborts the run and no Context is returned.
//
// Value-level problems do not abort a run. A request the engine could not
// give a value (for example the mean of an empty column) is stored in the
// Context as a ValueNone and surfaces later as a constraint failure.
package analysis
