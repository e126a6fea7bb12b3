// Package badgerstore is a MetricStore backed by a BadgerDB directory.
//
// Values are JSON records under keys of the form
//
//	metric/<dataset>/<request key>
//
// so the values of one dataset are a contiguous key range.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/verity/internal/ir"
	"github.com/roach88/verity/internal/store"
)

const keyPrefix = "metric/"

// Config holds configuration for a Badger metric store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64

	// Now stamps computed_at. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns defaults for a persistent store at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration for tests: no disk I/O and no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a MetricStore over BadgerDB.
//
// Thread-safety: Store is safe for concurrent use.
type Store struct {
	db  *badger.DB
	now func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ store.MetricStore = (*Store)(nil)
	_ store.Lister      = (*Store)(nil)
)

// Open opens the store described by cfg. Caller must call Close.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db, now: cfg.Now}
	if s.now == nil {
		s.now = time.Now
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// runGC triggers value log GC until Close.
func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			// repeat until badger reports nothing left to rewrite
			for {
				if err := s.db.RunValueLogGC(ratio); err != nil {
					break
				}
			}
		}
	}
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.stop != nil {
			close(s.stop)
			<-s.done
		}
		err = s.db.Close()
	})
	return err
}

func datasetPrefix(dataset ir.DatasetID) []byte {
	return []byte(keyPrefix + string(dataset) + "/")
}

func key(dataset ir.DatasetID, req ir.Request) []byte {
	return append(datasetPrefix(dataset), req.Key()...)
}

func (s *Store) Get(_ context.Context, dataset ir.DatasetID, req ir.Request) (ir.Value, bool, error) {
	var entry store.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(dataset, req))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			entry, err = store.UnmarshalEntry(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ir.Value{}, false, nil
	}
	if err != nil {
		return ir.Value{}, false, fmt.Errorf("get metric %s: %w", req, err)
	}
	return entry.Value, true, nil
}

func (s *Store) Put(_ context.Context, dataset ir.DatasetID, v ir.Value) error {
	data, err := store.MarshalEntry(store.Entry{
		Dataset:       dataset,
		Value:         v,
		EngineVersion: ir.EngineVersion,
		ComputedAt:    s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", v.Request, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(dataset, v.Request), data)
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", v.Request, err)
	}
	return nil
}

// List returns the entries of dataset, or all entries when dataset is empty.
func (s *Store) List(_ context.Context, dataset ir.DatasetID) ([]store.Entry, error) {
	prefix := []byte(keyPrefix)
	if dataset != "" {
		prefix = datasetPrefix(dataset)
	}

	entries := []store.Entry{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				e, err := store.UnmarshalEntry(val)
				if err != nil {
					return err
				}
				// "metric/a/" is also a prefix of dataset "a/b"
				if dataset == "" || e.Dataset == dataset {
					entries = append(entries, e)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}

	slices.SortFunc(entries, func(a, b store.Entry) int {
		if a.Dataset != b.Dataset {
			if a.Dataset < b.Dataset {
				return -1
			}
			return 1
		}
		return ir.CompareRequests(a.Value.Request, b.Value.Request)
	})
	return entries, nil
}

// Purge removes every value of dataset and returns how many were removed.
func (s *Store) Purge(ctx context.Context, dataset ir.DatasetID) (int64, error) {
	entries, err := s.List(ctx, dataset)
	if err != nil {
		return 0, fmt.Errorf("purge dataset %s: %w", dataset, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			if err := txn.Delete(key(dataset, e.Value.Request)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge dataset %s: %w", dataset, err)
	}
	return int64(len(entries)), nil
}
