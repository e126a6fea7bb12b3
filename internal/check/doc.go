// Package check declares data-quality checks and evaluates them against
// resolved metrics.
//
// A Check is built fluently and is immutable: every builder method returns
// a new Check, so a base check can be extended in several directions
// without interference.
//
//	c := check.New(check.LevelException, "orders").
//		IsComplete("id").
//		IsUnique("id").
//		HasCompleteness("email", check.AtLeast(0.9)).Where("country = 'DE'")
//
// Where rewrites the row filter of the constraint appended last.
//
// Evaluation is read-only. Every required metric is looked up in a
// MetricSource (normally an analysis.Context built from the union of
// RequiredRequests across all checks of a run). A constraint whose metric is
// missing or has no value fails with a distinct reason instead of
// panicking, and so does an assertion that panics.
//
// LEVEL AGGREGATION:
//
//	all constraints succeed           → StatusSuccess
//	any failure, level LevelWarning   → StatusWarning
//	any failure, level LevelException → StatusError
package check
