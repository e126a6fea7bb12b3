package cli

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/verity/internal/dataset"
	"github.com/roach88/verity/internal/engine"
	"github.com/roach88/verity/internal/ir"
	"github.com/roach88/verity/internal/querysql"
	"github.com/roach88/verity/internal/store"
	"github.com/roach88/verity/internal/store/badgerstore"
)

// SourceOptions select the dataset and the metric store of a run.
type SourceOptions struct {
	Data      string // CSV file
	DSN       string // Postgres connection string
	Table     string // table for DSN
	DatasetID string // overrides the content fingerprint
	StoreOptions
}

// StoreOptions select the metric store. With neither set, metrics live
// for one run only.
type StoreOptions struct {
	Cache  string // SQLite file
	Badger string // Badger directory
}

func addSourceFlags(cmd *cobra.Command, o *SourceOptions) {
	cmd.Flags().StringVar(&o.Data, "data", "", "CSV file to verify")
	cmd.Flags().StringVar(&o.DSN, "dsn", "", "Postgres connection string (instead of --data)")
	cmd.Flags().StringVar(&o.Table, "table", "", "table to verify (with --dsn)")
	cmd.Flags().StringVar(&o.DatasetID, "dataset-id", "", "dataset identity for cached metrics (default: content fingerprint, or postgres:<table>)")
	addStoreFlags(cmd, &o.StoreOptions)
}

func addStoreFlags(cmd *cobra.Command, o *StoreOptions) {
	cmd.Flags().StringVar(&o.Cache, "cache", "", "SQLite metric store file")
	cmd.Flags().StringVar(&o.Badger, "badger", "", "Badger metric store directory")
}

// newLogger builds the command logger. Logs go to w (stderr) so they never
// mix with JSON output.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// session holds everything one command needs to resolve metrics.
type session struct {
	engine  *engine.SQLEngine
	dataset ir.DatasetID
	store   store.MetricStore
	closers []func() error
}

func openSession(ctx context.Context, o *SourceOptions, verbose bool, logger *slog.Logger) (*session, error) {
	s := &session{}
	if err := s.open(ctx, o, verbose, logger); err != nil {
		s.Close(logger)
		return nil, err
	}
	return s, nil
}

func (s *session) open(ctx context.Context, o *SourceOptions, verbose bool, logger *slog.Logger) error {
	switch {
	case o.Data != "" && o.DSN != "":
		return NewExitError(ExitCommandError, "--data and --dsn are mutually exclusive")

	case o.Data != "":
		db, err := dataset.OpenMemory()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open dataset database", err)
		}
		s.closers = append(s.closers, db.Close)

		logger.Info("loading dataset", "path", o.Data)
		ds, err := dataset.LoadFile(ctx, db, dataset.TableName(o.Data), o.Data)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load data", err)
		}
		s.dataset = ds.ID
		if o.DatasetID != "" {
			s.dataset = ir.DatasetID(o.DatasetID)
		}
		s.engine = engine.New(db, querysql.DialectSQLite, engine.WithLogger(logger))
		s.engine.Attach(s.dataset, ds.Table)
		logger.Info("dataset loaded", "dataset", s.dataset, "rows", ds.RowCount, "columns", len(ds.Columns))

	case o.DSN != "":
		if o.Table == "" {
			return NewExitError(ExitCommandError, "--table is required with --dsn")
		}
		db, err := sql.Open(querysql.DialectPostgres.DriverName(), o.DSN)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		s.closers = append(s.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to database", err)
		}
		s.dataset = ir.DatasetID("postgres:" + o.Table)
		if o.DatasetID != "" {
			s.dataset = ir.DatasetID(o.DatasetID)
		}
		s.engine = engine.New(db, querysql.DialectPostgres, engine.WithLogger(logger))
		s.engine.Attach(s.dataset, o.Table)

	default:
		return NewExitError(ExitCommandError, "one of --data or --dsn is required")
	}

	st, closeStore, err := openStore(&o.StoreOptions, verbose, logger)
	if err != nil {
		return err
	}
	s.store = st
	if closeStore != nil {
		s.closers = append(s.closers, closeStore)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (s *session) Close(logger *slog.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Error("error closing resource", "error", err)
		}
	}
	s.closers = nil
}

// openStore opens the selected metric store. The close func is nil for the
// in-memory store.
func openStore(o *StoreOptions, verbose bool, logger *slog.Logger) (store.MetricStore, func() error, error) {
	switch {
	case o.Cache != "" && o.Badger != "":
		return nil, nil, NewExitError(ExitCommandError, "--cache and --badger are mutually exclusive")

	case o.Cache != "":
		st, err := store.Open(o.Cache)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open metric store", err)
		}
		return st, st.Close, nil

	case o.Badger != "":
		cfg := badgerstore.DefaultConfig(o.Badger)
		if verbose {
			cfg.Logger = logger
		}
		st, err := badgerstore.Open(cfg)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open metric store", err)
		}
		return st, st.Close, nil
	}
	return store.NewMemory(), nil, nil
}

// engineErrorCode maps a run error to a CLI error code.
func engineErrorCode(err error) string {
	var e *engine.Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	return ErrCodeGeneric
}
