package store

import (
	"context"
	"time"

	"github.com/roach88/verity/internal/ir"
)

// MetricStore is a repository of computed values keyed by dataset and request.
type MetricStore interface {
	// Get returns the stored value. ok is false when the key is absent.
	Get(ctx context.Context, dataset ir.DatasetID, req ir.Request) (v ir.Value, ok bool, err error)

	// Put stores v under (dataset, v.Request), replacing any previous value.
	Put(ctx context.Context, dataset ir.DatasetID, v ir.Value) error
}

// Lister is implemented by stores that can enumerate their contents.
type Lister interface {
	// List returns the entries of one dataset, or of every dataset when
	// dataset is empty. Entries are ordered by dataset, then request.
	List(ctx context.Context, dataset ir.DatasetID) ([]Entry, error)
}

// Entry is one stored value.
type Entry struct {
	Dataset       ir.DatasetID
	Value         ir.Value
	EngineVersion string
	ComputedAt    time.Time
}

// compareEntries orders entries by dataset, then by request.
func compareEntries(a, b Entry) int {
	switch {
	case a.Dataset < b.Dataset:
		return -1
	case a.Dataset > b.Dataset:
		return 1
	}
	return ir.CompareRequests(a.Value.Request, b.Value.Request)
}
