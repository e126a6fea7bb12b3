package analysis

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/verity/internal/engine"
	"github.com/roach88/verity/internal/ir"
	"github.com/roach88/verity/internal/store"
)

var testMetadata = ir.Metadata{
	RowCount: 6,
	Columns:  []string{"item", "att1"},
	Schema:   map[string]string{"item": "BIGINT", "att1": "BIGINT"},
}

// fakeEngine answers every request with 1.0 and records what it was asked.
type fakeEngine struct {
	mu       sync.Mutex
	calls    [][]ir.Request
	err      error
	mdErr    error
	drop     bool // omit the last value of every batch
	entered  chan struct{}
	release  chan struct{}
	computeN func(ir.Request) ir.Value
}

func (f *fakeEngine) Compute(ctx context.Context, _ ir.DatasetID, reqs []ir.Request) (map[ir.Request]ir.Value, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]ir.Request(nil), reqs...))
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[ir.Request]ir.Value, len(reqs))
	for _, r := range reqs {
		if f.computeN != nil {
			out[r] = f.computeN(r)
		} else {
			out[r] = ir.DoubleValue(r, 1)
		}
	}
	if f.drop && len(reqs) > 0 {
		delete(out, reqs[len(reqs)-1])
	}
	return out, nil
}

func (f *fakeEngine) Metadata(context.Context, ir.DatasetID) (ir.Metadata, error) {
	return testMetadata, f.mdErr
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, ir.DatasetID, ir.Request) (ir.Value, bool, error) {
	return ir.Value{}, false, errors.New("disk on fire")
}

func (failingStore) Put(context.Context, ir.DatasetID, ir.Value) error {
	return errors.New("disk on fire")
}

func TestRun_DeduplicatesRequests(t *testing.T) {
	eng := &fakeEngine{}
	r := NewRunner(eng, store.NewMemory(), WithRunIDs(NewFixedGenerator("run-1")))

	reqs := []ir.Request{
		ir.Completeness("att1"),
		ir.Completeness("att1"),
		ir.Mean("att1"),
		ir.Completeness("att1"),
		ir.Completeness("att1").WithFilter("item > 3"),
	}
	c, err := r.Run(context.Background(), "d", reqs)
	require.NoError(t, err)

	require.Equal(t, 1, eng.callCount())
	assert.Equal(t, []ir.Request{
		ir.Completeness("att1"),
		ir.Mean("att1"),
		ir.Completeness("att1").WithFilter("item > 3"),
	}, eng.calls[0])
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "run-1", c.RunID())
	assert.Equal(t, testMetadata, c.Metadata())
	assert.Equal(t, ir.DatasetID("d"), c.Dataset())
}

func TestRun_CacheIdempotence(t *testing.T) {
	eng := &fakeEngine{}
	s := store.NewMemory()
	r := NewRunner(eng, s)
	reqs := []ir.Request{ir.Size(), ir.Mean("att1"), ir.Quantile("att1", 0.5)}

	first, err := r.Run(context.Background(), "d", reqs)
	require.NoError(t, err)
	assert.Equal(t, Stats{Requested: 3, Cached: 0, Computed: 3}, first.Stats())
	assert.Equal(t, 3, s.Len())

	second, err := r.Run(context.Background(), "d", reqs)
	require.NoError(t, err)
	assert.Equal(t, Stats{Requested: 3, Cached: 3, Computed: 0}, second.Stats())
	assert.Equal(t, 1, eng.callCount(), "second run must not reach the engine")
	assert.Equal(t, first.Values(), second.Values())

	// a superset only computes the difference
	_, err = r.Run(context.Background(), "d", append(reqs, ir.Sum("att1")))
	require.NoError(t, err)
	require.Equal(t, 2, eng.callCount())
	assert.Equal(t, []ir.Request{ir.Sum("att1")}, eng.calls[1])
}

func TestRun_CacheIsScopedByDataset(t *testing.T) {
	eng := &fakeEngine{}
	r := NewRunner(eng, store.NewMemory())

	_, err := r.Run(context.Background(), "a", []ir.Request{ir.Size()})
	require.NoError(t, err)
	_, err = r.Run(context.Background(), "b", []ir.Request{ir.Size()})
	require.NoError(t, err)
	assert.Equal(t, 2, eng.callCount())
}

func TestRun_InvalidRequestIsUnsupported(t *testing.T) {
	eng := &fakeEngine{}
	r := NewRunner(eng, nil)

	_, err := r.Run(context.Background(), "d", []ir.Request{ir.Size(), ir.Quantile("att1", 2)})
	require.Error(t, err)
	assert.True(t, engine.IsRequestUnsupported(err))
	assert.Equal(t, 0, eng.callCount())
}

func TestRun_EngineFailureAbortsRun(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"plain error", errors.New("connection refused"), engine.IsComputationFailure},
		{"engine error", engine.NewUnsupportedError(ir.SchemaShape(), nil), engine.IsRequestUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemory()
			r := NewRunner(&fakeEngine{err: tt.err}, s)
			c, err := r.Run(context.Background(), "d", []ir.Request{ir.Size()})
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, tt.pred(err), "got %v", err)
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestRun_MissingEngineValueIsComputationFailure(t *testing.T) {
	r := NewRunner(&fakeEngine{drop: true}, nil)
	_, err := r.Run(context.Background(), "d", []ir.Request{ir.Size(), ir.Mean("att1")})
	require.Error(t, err)
	assert.True(t, engine.IsComputationFailure(err))
	assert.Contains(t, err.Error(), "Mean(att1)")
}

func TestRun_MetadataFailure(t *testing.T) {
	r := NewRunner(&fakeEngine{mdErr: errors.New("no such table")}, nil)
	_, err := r.Run(context.Background(), "d", nil)
	assert.True(t, engine.IsComputationFailure(err))
}

func TestRun_StoreFailuresAreNotFatal(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	eng := &fakeEngine{}
	r := NewRunner(eng, failingStore{}, WithLogger(logger))

	c, err := r.Run(context.Background(), "d", []ir.Request{ir.Size()})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	assert.Contains(t, logs.String(), "failed to store metric")
	assert.Contains(t, logs.String(), "metric store read failed")
}

func TestRun_NoValueIsNotAnError(t *testing.T) {
	eng := &fakeEngine{computeN: func(r ir.Request) ir.Value {
		return ir.NoValue(r, engine.ReasonNoValues)
	}}
	c, err := NewRunner(eng, nil).Run(context.Background(), "d", []ir.Request{ir.Mean("att1")})
	require.NoError(t, err)

	_, err = c.Lookup(ir.Mean("att1"))
	assert.True(t, engine.IsInsufficientData(err))
}

func TestRun_CoalescesConcurrentBatches(t *testing.T) {
	eng := &fakeEngine{entered: make(chan struct{}, 2), release: make(chan struct{})}
	r := NewRunner(eng, nil)
	reqs := []ir.Request{ir.Mean("att1"), ir.Size()}

	var wg sync.WaitGroup
	results := make([]*Context, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := r.Run(context.Background(), "d", reqs)
			assert.NoError(t, err)
			results[i] = c
		}()
		if i == 0 {
			<-eng.entered
		}
	}
	// give the second run time to join the in-flight batch
	time.Sleep(50 * time.Millisecond)
	close(eng.release)
	wg.Wait()

	assert.Equal(t, 1, eng.callCount())
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.Equal(t, results[0].Values(), results[1].Values())
}

func TestRun_CanceledCallerDoesNotFailSharedBatch(t *testing.T) {
	eng := &fakeEngine{entered: make(chan struct{}, 2), release: make(chan struct{})}
	r := NewRunner(eng, nil)
	reqs := []ir.Request{ir.Mean("att1"), ir.Size()}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx, "d", reqs)
		firstErr <- err
	}()
	<-eng.entered

	second := make(chan *Context, 1)
	go func() {
		c, err := r.Run(context.Background(), "d", reqs)
		assert.NoError(t, err)
		second <- c
	}()
	// give the second run time to join the in-flight batch
	time.Sleep(50 * time.Millisecond)

	cancel()
	err := <-firstErr
	require.Error(t, err)
	assert.True(t, engine.IsComputationFailure(err), "got %v", err)
	assert.ErrorIs(t, err, context.Canceled)

	close(eng.release)
	c := <-second
	require.NotNil(t, c)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, eng.callCount())
}

func TestRun_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := NewRunner(&fakeEngine{}, store.NewMemory(), WithMetrics(m))
	reqs := []ir.Request{ir.Size(), ir.Mean("att1")}

	_, err := r.Run(context.Background(), "d", reqs)
	require.NoError(t, err)
	_, err = r.Run(context.Background(), "d", reqs)
	require.NoError(t, err)
	_, err = r.Run(context.Background(), "d", []ir.Request{ir.Quantile("x", -1)})
	require.Error(t, err)

	assert.Equal(t, 2.0, promtest.ToFloat64(m.Requests.WithLabelValues("engine")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.Requests.WithLabelValues("cache")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.Runs.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Runs.WithLabelValues(OutcomeUnsupported)))
	assert.Equal(t, 1, promtest.CollectAndCount(m.ComputeSeconds))
}

type staticRequirer []ir.Request

func (s staticRequirer) RequiredRequests() []ir.Request { return s }

func TestRequiredRequests_Union(t *testing.T) {
	a := staticRequirer{ir.Size(), ir.Mean("x")}
	b := staticRequirer{ir.Mean("x"), ir.Completeness("y")}

	assert.Equal(t, []ir.Request{ir.Size(), ir.Mean("x"), ir.Completeness("y")}, RequiredRequests(a, b))
	assert.Empty(t, RequiredRequests())
}

func TestContext_Lookup(t *testing.T) {
	c := NewContext("d", testMetadata,
		ir.DoubleValue(ir.Mean("x"), 2.5),
		ir.IntValue(ir.Size(), 6),
	)

	f, err := c.Lookup(ir.Mean("x"))
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	f, err = c.Lookup(ir.Size())
	require.NoError(t, err)
	assert.Equal(t, 6.0, f)

	_, err = c.Lookup(ir.Sum("x"))
	assert.True(t, engine.IsMetricUnavailable(err))

	assert.Equal(t, []ir.Value{ir.DoubleValue(ir.Mean("x"), 2.5), ir.IntValue(ir.Size(), 6)}, c.Values())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
