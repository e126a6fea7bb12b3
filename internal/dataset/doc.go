// Package dataset loads tabular data into SQL tables the engine can scan.
//
// Loading infers a declared type per column (BIGINT, DOUBLE or VARCHAR),
// creates the table, inserts every row in one transaction and returns a
// Dataset whose ID is a content fingerprint. Equal content always yields
// the same ID, which is what lets cached metrics be reused across runs.
package dataset
