// Package ir provides the shared data model for verity.
//
// All other internal packages import ir; ir imports nothing internal. It
// defines metric requests (what to compute), metric values (what was
// computed), dataset identity and metadata, and the canonical encoding used
// to derive content-addressed keys.
//
// Key design constraints:
//   - Request is a comparable value and is its own deduplication key
//   - Canonical JSON carries no floats; quantile ranks are encoded as strings
//   - Persistent keys use SHA-256 with domain separation (see hash.go)
package ir
