// Package engine computes metric values over SQL tables.
//
// SQLEngine answers a batch of metric requests for one dataset with as few
// passes over the data as the plan allows:
//
//  1. Requests are validated and planned into scans (internal/queryir)
//  2. Each scan is compiled to SQL for the configured dialect (internal/querysql)
//  3. Scans run concurrently, bounded by the configured parallelism
//  4. Request values are derived from the scan results
//
// A batch is all-or-nothing: if any scan fails the whole batch fails with a
// ComputationFailure and no values are returned. Requests that are well
// formed but have nothing to measure (the mean of an empty column, the
// standard deviation of one value) resolve to ir.ValueNone with a reason.
//
// Value semantics:
//   - Fractions (completeness, uniqueness, distinctness, pattern match,
//     compliance) are over the rows passing the filter
//   - Minimum, maximum, mean and sum are over non-null values
//   - Standard deviation is the sample deviation (N-1 denominator)
//   - Quantiles come from a Greenwald–Khanna summary (internal/quantile)
//   - NULLs compare equal to each other for uniqueness and distinctness
package engine
