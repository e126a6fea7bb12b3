// Package quantile implements the Greenwald–Khanna streaming quantile summary.
//
// A Summary answers rank queries over a stream of float64 values using space
// proportional to (1/ε)·log(εN). For any interior rank r the returned value's
// true rank lies within ±ε·N of the target rank; ranks 0 and 1 return the
// exact minimum and maximum.
//
// The summary is not safe for concurrent use. One summary serves every rank
// requested for the same column and filter.
package quantile
