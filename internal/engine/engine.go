package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/verity/internal/ir"
	"github.com/roach88/verity/internal/quantile"
	"github.com/roach88/verity/internal/queryir"
	"github.com/roach88/verity/internal/querysql"
)

// DefaultParallelism is the default number of scans run concurrently.
const DefaultParallelism = 4

// SQLEngine computes metrics by running SQL against tables reachable through
// a *sql.DB. Datasets are bound to tables with Attach.
//
// Thread-safety: SQLEngine is safe for concurrent use.
type SQLEngine struct {
	db          *sql.DB
	dialect     querysql.Dialect
	epsilon     float64
	parallelism int
	logger      *slog.Logger

	mu     sync.RWMutex
	tables map[ir.DatasetID]string
}

// Option configures an SQLEngine.
type Option func(*SQLEngine)

// WithEpsilon sets the relative rank error of quantile summaries.
//
// Default: quantile.DefaultEpsilon (0.01)
func WithEpsilon(eps float64) Option {
	return func(e *SQLEngine) {
		e.epsilon = eps
	}
}

// WithParallelism bounds the number of scans run concurrently.
//
// Default: 4 (DefaultParallelism). Values below 1 are treated as 1.
func WithParallelism(n int) Option {
	return func(e *SQLEngine) {
		if n < 1 {
			n = 1
		}
		e.parallelism = n
	}
}

// WithLogger sets the logger used for scan diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *SQLEngine) {
		e.logger = l
	}
}

// New creates an SQLEngine over db using the given dialect.
func New(db *sql.DB, dialect querysql.Dialect, opts ...Option) *SQLEngine {
	e := &SQLEngine{
		db:          db,
		dialect:     dialect,
		epsilon:     quantile.DefaultEpsilon,
		parallelism: DefaultParallelism,
		logger:      slog.Default(),
		tables:      make(map[ir.DatasetID]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Attach binds a dataset identity to a table. Re-attaching replaces the
// previous binding.
func (e *SQLEngine) Attach(id ir.DatasetID, table string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tables[id] = table
}

// Table returns the table bound to a dataset.
func (e *SQLEngine) Table(id ir.DatasetID) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[id]
	return t, ok
}

// Compute executes requests against dataset and returns one value per
// distinct request. It either returns every value or an error.
func (e *SQLEngine) Compute(ctx context.Context, dataset ir.DatasetID, requests []ir.Request) (map[ir.Request]ir.Value, error) {
	table, ok := e.Table(dataset)
	if !ok {
		return nil, NewComputationError(dataset, "dataset is not attached to a table", nil)
	}

	for _, r := range requests {
		if err := r.Validate(); err != nil {
			return nil, NewUnsupportedError(r, err)
		}
		if err := queryir.Check(r); err != nil {
			return nil, NewUnsupportedError(r, err)
		}
	}

	plan, err := queryir.Build(requests)
	if err != nil {
		return nil, &Error{Code: ErrCodeRequestUnsupported, Message: "plan requests", Dataset: dataset, Err: err}
	}

	compiler := querysql.NewSQLCompiler(e.dialect, table)
	results := newScanResults()
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for _, scan := range plan.Scans() {
		g.Go(func() error {
			return e.runScan(gctx, compiler, scan, results)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, NewComputationError(dataset, "scan failed", err)
	}

	values := make(map[ir.Request]ir.Value, len(requests))
	for _, r := range requests {
		values[r] = results.derive(r)
	}

	e.logger.Debug("metrics computed",
		"dataset", dataset,
		"requests", len(values),
		"scans", len(plan.Scans()),
		"duration", time.Since(start))
	return values, nil
}

func (e *SQLEngine) runScan(ctx context.Context, c *querysql.SQLCompiler, scan queryir.Scan, res *scanResults) error {
	query, params, err := c.Compile(scan)
	if err != nil {
		return err
	}
	e.logger.Debug("running scan", "sql", query)

	switch s := scan.(type) {
	case *queryir.AggregateScan:
		return e.runAggregate(ctx, query, params, s, res)
	case *queryir.GroupScan:
		return e.runGroup(ctx, query, params, s, res)
	case *queryir.ColumnScan:
		return e.runColumn(ctx, query, params, s, res)
	}
	return fmt.Errorf("unsupported scan type: %T", scan)
}

func (e *SQLEngine) runAggregate(ctx context.Context, query string, params []any, s *queryir.AggregateScan, res *scanResults) error {
	dest := make([]any, len(s.Aggregates))
	ptrs := make([]any, len(dest))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := e.db.QueryRowContext(ctx, query, params...).Scan(ptrs...); err != nil {
		return fmt.Errorf("aggregate scan (filter %q): %w", s.Where, err)
	}

	row := make(map[queryir.Aggregate]any, len(dest))
	for i, a := range s.Aggregates {
		row[a] = dest[i]
	}
	res.setAggregates(s.Where, row)
	return nil
}

func (e *SQLEngine) runGroup(ctx context.Context, query string, params []any, s *queryir.GroupScan, res *scanResults) error {
	var groups, singles, rows any
	if err := e.db.QueryRowContext(ctx, query, params...).Scan(&groups, &singles, &rows); err != nil {
		return fmt.Errorf("group scan %v (filter %q): %w", s.Columns, s.Where, err)
	}
	counts := groupCounts{}
	var err error
	if counts.groups, err = cast.ToInt64E(normalize(groups)); err != nil {
		return fmt.Errorf("group scan %v: %w", s.Columns, err)
	}
	if counts.singles, err = cast.ToInt64E(normalize(singles)); err != nil {
		return fmt.Errorf("group scan %v: %w", s.Columns, err)
	}
	if counts.rows, err = cast.ToInt64E(normalize(rows)); err != nil {
		return fmt.Errorf("group scan %v: %w", s.Columns, err)
	}
	res.setGroup(s.Where, s.Columns, counts)
	return nil
}

func (e *SQLEngine) runColumn(ctx context.Context, query string, params []any, s *queryir.ColumnScan, res *scanResults) error {
	rows, err := e.db.QueryContext(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("column scan %s (filter %q): %w", s.Column, s.Where, err)
	}
	defer rows.Close()

	stats := newColumnStats(e.epsilon)
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return fmt.Errorf("column scan %s: %w", s.Column, err)
		}
		if stats.nonNumeric != "" {
			continue
		}
		f, err := cast.ToFloat64E(normalize(v))
		if err != nil {
			stats.nonNumeric = cast.ToString(normalize(v))
			continue
		}
		stats.add(f)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("column scan %s: %w", s.Column, err)
	}
	res.setColumn(s.Where, s.Column, stats)
	return nil
}

// normalize turns driver byte slices into strings so cast can parse them.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// Metadata reports the row count and declared schema of a dataset.
func (e *SQLEngine) Metadata(ctx context.Context, dataset ir.DatasetID) (ir.Metadata, error) {
	table, ok := e.Table(dataset)
	if !ok {
		return ir.Metadata{}, NewComputationError(dataset, "dataset is not attached to a table", nil)
	}
	c := querysql.NewSQLCompiler(e.dialect, table)

	md := ir.Metadata{Schema: map[string]string{}}
	query, params := c.CompileRowCount()
	if err := e.db.QueryRowContext(ctx, query, params...).Scan(&md.RowCount); err != nil {
		return ir.Metadata{}, NewComputationError(dataset, "count rows", err)
	}

	query, params = c.CompileSchema()
	rows, err := e.db.QueryContext(ctx, query, params...)
	if err != nil {
		return ir.Metadata{}, NewComputationError(dataset, "read schema", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return ir.Metadata{}, NewComputationError(dataset, "read schema", err)
		}
		md.Columns = append(md.Columns, name)
		md.Schema[name] = strings.ToUpper(typ)
	}
	if err := rows.Err(); err != nil {
		return ir.Metadata{}, NewComputationError(dataset, "read schema", err)
	}
	return md, nil
}
