package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/verity/internal/engine"
	"github.com/roach88/verity/internal/ir"
	"github.com/roach88/verity/internal/store"
)

// Engine computes metric values for a dataset.
//
// Compute must return a value for every request it was given or fail the
// whole batch.
type Engine interface {
	Compute(ctx context.Context, dataset ir.DatasetID, requests []ir.Request) (map[ir.Request]ir.Value, error)
	Metadata(ctx context.Context, dataset ir.DatasetID) (ir.Metadata, error)
}

// Requirer is anything that declares the metric requests it needs,
// such as a check.
type Requirer interface {
	RequiredRequests() []ir.Request
}

// RequiredRequests returns the deduplicated union of the requests of every
// requirer, in first-seen order. Running this union once lets every check
// share one computation per distinct request.
func RequiredRequests(requirers ...Requirer) []ir.Request {
	var all []ir.Request
	for _, r := range requirers {
		all = append(all, r.RequiredRequests()...)
	}
	return ir.Dedup(all)
}

// Runner resolves request batches against an engine and a metric store.
//
// Thread-safety: Runner is safe for concurrent use. Concurrent runs that
// need the identical missing batch of one dataset share a single engine call.
type Runner struct {
	engine  Engine
	store   store.MetricStore
	logger  *slog.Logger
	runIDs  RunIDGenerator
	metrics *Metrics
	flight  singleflight.Group
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithRunIDs sets the run ID generator.
//
// Default: UUIDv7Generator
func WithRunIDs(g RunIDGenerator) Option {
	return func(r *Runner) {
		r.runIDs = g
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// NewRunner creates a runner. A nil store disables caching.
func NewRunner(e Engine, s store.MetricStore, opts ...Option) *Runner {
	r := &Runner{
		engine: e,
		store:  s,
		logger: slog.Default(),
		runIDs: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run is shorthand for NewRunner(e, s).Run(ctx, dataset, requests).
func Run(ctx context.Context, e Engine, s store.MetricStore, dataset ir.DatasetID, requests []ir.Request) (*Context, error) {
	return NewRunner(e, s).Run(ctx, dataset, requests)
}

// Run resolves requests for dataset.
//
// Errors are engine errors: RequestUnsupported for an invalid request and
// ComputationFailure when the engine fails or breaks its contract.
func (r *Runner) Run(ctx context.Context, dataset ir.DatasetID, requests []ir.Request) (*Context, error) {
	runID := r.runIDs.Generate()
	log := r.logger.With("run_id", runID, "dataset", dataset)

	c, err := r.run(ctx, log, dataset, requests)
	r.recordRun(err)
	if err != nil {
		log.Error("analysis run failed", "error", err)
		return nil, err
	}
	c.runID = runID
	log.Info("analysis run complete",
		"requests", c.stats.Requested,
		"cached", c.stats.Cached,
		"computed", c.stats.Computed)
	return c, nil
}

func (r *Runner) run(ctx context.Context, log *slog.Logger, dataset ir.DatasetID, requests []ir.Request) (*Context, error) {
	unique := ir.Dedup(requests)
	for _, req := range unique {
		if err := req.Validate(); err != nil {
			return nil, engine.NewUnsupportedError(req, err)
		}
	}

	values := make(map[ir.Request]ir.Value, len(unique))
	var missing []ir.Request
	for _, req := range unique {
		v, ok := r.lookup(ctx, log, dataset, req)
		if ok {
			values[req] = v
			continue
		}
		missing = append(missing, req)
	}
	cached := len(values)

	if len(missing) > 0 {
		computed, err := r.compute(ctx, dataset, missing)
		if err != nil {
			return nil, err
		}
		for _, req := range missing {
			v := computed[req]
			values[req] = v
			if r.store == nil {
				continue
			}
			// the context is already complete; a failed write only costs a
			// recomputation next time
			if err := r.store.Put(ctx, dataset, v); err != nil {
				log.Warn("failed to store metric", "request", req.String(), "error", err)
			}
		}
	}

	md, err := r.engine.Metadata(ctx, dataset)
	if err != nil {
		return nil, asEngineError(dataset, "read metadata", err)
	}

	r.countRequests("cache", cached)
	r.countRequests("engine", len(missing))
	return &Context{
		dataset:  dataset,
		metadata: md,
		values:   values,
		stats:    Stats{Requested: len(unique), Cached: cached, Computed: len(missing)},
	}, nil
}

func (r *Runner) lookup(ctx context.Context, log *slog.Logger, dataset ir.DatasetID, req ir.Request) (ir.Value, bool) {
	if r.store == nil {
		return ir.Value{}, false
	}
	v, ok, err := r.store.Get(ctx, dataset, req)
	if err != nil {
		log.Warn("metric store read failed, recomputing", "request", req.String(), "error", err)
		return ir.Value{}, false
	}
	return v, ok
}

// compute runs one engine batch, coalescing identical concurrent batches.
// The shared batch outlives any single caller; each caller stops waiting
// when its own ctx is done.
func (r *Runner) compute(ctx context.Context, dataset ir.DatasetID, missing []ir.Request) (map[ir.Request]ir.Value, error) {
	batchCtx := context.WithoutCancel(ctx)
	ch := r.flight.DoChan(batchKey(dataset, missing), func() (interface{}, error) {
		start := time.Now()
		out, err := r.engine.Compute(batchCtx, dataset, missing)
		if r.metrics != nil {
			r.metrics.ComputeSeconds.Observe(time.Since(start).Seconds())
		}
		return out, err
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, engine.NewComputationError(dataset, "compute metrics", ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, asEngineError(dataset, "compute metrics", res.Err)
	}

	computed := res.Val.(map[ir.Request]ir.Value)
	out := make(map[ir.Request]ir.Value, len(missing))
	for _, req := range missing {
		v, ok := computed[req]
		if !ok {
			return nil, engine.NewComputationError(dataset,
				fmt.Sprintf("engine returned no value for %s", req), nil)
		}
		v.Request = req
		out[req] = v
	}
	return out, nil
}

// asEngineError passes engine errors through and wraps anything else as a
// computation failure.
func asEngineError(dataset ir.DatasetID, msg string, err error) error {
	var e *engine.Error
	if errors.As(err, &e) {
		return err
	}
	return engine.NewComputationError(dataset, msg, err)
}

func batchKey(dataset ir.DatasetID, reqs []ir.Request) string {
	keys := make([]string, len(reqs))
	for i, req := range reqs {
		keys[i] = req.Key()
	}
	slices.Sort(keys)
	return string(dataset) + "|" + strings.Join(keys, ",")
}

func (r *Runner) countRequests(source string, n int) {
	if r.metrics == nil || n == 0 {
		return
	}
	r.metrics.Requests.WithLabelValues(source).Add(float64(n))
}

func (r *Runner) recordRun(err error) {
	if r.metrics == nil {
		return
	}
	outcome := OutcomeSuccess
	switch {
	case engine.IsRequestUnsupported(err):
		outcome = OutcomeUnsupported
	case err != nil:
		outcome = OutcomeFailure
	}
	r.metrics.Runs.WithLabelValues(outcome).Inc()
}
