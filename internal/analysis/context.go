package analysis

import (
	"slices"

	"github.com/roach88/verity/internal/engine"
	"github.com/roach88/verity/internal/ir"
)

// Stats describes where the values of a run came from.
type Stats struct {
	Requested int // distinct requests
	Cached    int // served from the store
	Computed  int // computed by the engine
}

// Context is the immutable result of a run: one value per resolved request
// plus dataset metadata.
//
// Thread-safety: Context is read-only after construction and safe for
// concurrent use.
type Context struct {
	runID    string
	dataset  ir.DatasetID
	metadata ir.Metadata
	values   map[ir.Request]ir.Value
	stats    Stats
}

// NewContext builds a context from already computed values.
func NewContext(dataset ir.DatasetID, md ir.Metadata, values ...ir.Value) *Context {
	m := make(map[ir.Request]ir.Value, len(values))
	for _, v := range values {
		m[v.Request] = v
	}
	return &Context{dataset: dataset, metadata: md, values: m, stats: Stats{Requested: len(m)}}
}

// Value returns the value resolved for req.
func (c *Context) Value(req ir.Request) (ir.Value, bool) {
	v, ok := c.values[req]
	return v, ok
}

// Lookup returns the numeric value of req. The error is a MetricUnavailable
// engine error when req was never resolved and an InsufficientData engine
// error when it resolved to no value.
func (c *Context) Lookup(req ir.Request) (float64, error) {
	v, ok := c.values[req]
	if !ok {
		return 0, engine.NewMetricUnavailableError(req)
	}
	f, ok := v.Float()
	if !ok {
		return 0, engine.NewInsufficientDataError(req, v.Reason)
	}
	return f, nil
}

func (c *Context) Metadata() ir.Metadata { return c.metadata }

func (c *Context) Dataset() ir.DatasetID { return c.dataset }

// RunID is empty for contexts built with NewContext.
func (c *Context) RunID() string { return c.runID }

func (c *Context) Stats() Stats { return c.stats }

// Len returns the number of resolved requests.
func (c *Context) Len() int { return len(c.values) }

// Values returns every value ordered by request.
func (c *Context) Values() []ir.Value {
	out := make([]ir.Value, 0, len(c.values))
	for _, v := range c.values {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b ir.Value) int {
		return ir.CompareRequests(a.Request, b.Request)
	})
	return out
}
