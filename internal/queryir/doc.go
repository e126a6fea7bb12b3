// Package queryir plans metric requests into physical scans.
//
// The scan plan is the abstraction boundary between metric requests and a
// backend query language. Backends (see internal/querysql) compile each scan
// independently; the engine executes them and derives request values from
// the scan results.
//
// SCAN SHAPES:
//
//	AggregateScan  one pass per filter; every count, fraction and simple
//	               aggregate requested under that filter shares it
//	GroupScan      one pass per (filter, column tuple); serves both
//	               uniqueness and distinctness
//	ColumnScan     streamed non-null values of one column under one
//	               filter; serves every quantile rank and the standard
//	               deviation of that column
//
// SEALED INTERFACES:
//
// Scan is a sealed interface using the marker method pattern, so backends
// can switch exhaustively over scan types:
//
//	switch s := scan.(type) {
//	case *AggregateScan:
//	case *GroupScan:
//	case *ColumnScan:
//	}
//
// Filters are backend expressions (SQL for the SQL backends) and are passed
// through unchanged. Two requests share a scan only when their filter strings
// are equal after trimming.
package queryir
