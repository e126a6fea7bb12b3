package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/roach88/verity/internal/ir"
)

type memoryKey struct {
	dataset ir.DatasetID
	req     ir.Request
}

// Memory is an in-process MetricStore.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[memoryKey]Entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[memoryKey]Entry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, dataset ir.DatasetID, req ir.Request) (ir.Value, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[memoryKey{dataset, req}]
	return e.Value, ok, nil
}

func (m *Memory) Put(_ context.Context, dataset ir.DatasetID, v ir.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memoryKey{dataset, v.Request}] = Entry{
		Dataset:       dataset,
		Value:         v,
		EngineVersion: ir.EngineVersion,
		ComputedAt:    m.now().UTC(),
	}
	return nil
}

func (m *Memory) List(_ context.Context, dataset ir.DatasetID) ([]Entry, error) {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.entries))
	for k, e := range m.entries {
		if dataset == "" || k.dataset == dataset {
			out = append(out, e)
		}
	}
	m.mu.RUnlock()
	slices.SortFunc(out, compareEntries)
	return out, nil
}

// Len returns the number of stored values.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
