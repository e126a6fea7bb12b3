package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cast"

	"github.com/roach88/verity/internal/ir"
	"github.com/roach88/verity/internal/quantile"
	"github.com/roach88/verity/internal/queryir"
)

// Reasons attached to ir.ValueNone results.
const (
	ReasonNoRows        = "no rows match the filter"
	ReasonNoValues      = "no non-null values"
	ReasonTooFewValues  = "standard deviation needs at least two values"
	reasonNonNumericFmt = "non-numeric value "
)

type groupCounts struct {
	groups  int64
	singles int64
	rows    int64
}

// scanResults collects the output of concurrently running scans.
type scanResults struct {
	mu      sync.Mutex
	aggs    map[string]map[queryir.Aggregate]any
	groups  map[string]groupCounts
	columns map[string]*columnStats
}

func newScanResults() *scanResults {
	return &scanResults{
		aggs:    map[string]map[queryir.Aggregate]any{},
		groups:  map[string]groupCounts{},
		columns: map[string]*columnStats{},
	}
}

func scanKey(filter string, columns ...string) string {
	return filter + "\x00" + strings.Join(columns, "\x1f")
}

func (r *scanResults) setAggregates(filter string, row map[queryir.Aggregate]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggs[filter] = row
}

func (r *scanResults) setGroup(filter string, columns []string, c groupCounts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[scanKey(filter, columns...)] = c
}

func (r *scanResults) setColumn(filter, column string, s *columnStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.columns[scanKey(filter, column)] = s
}

// derive turns scan results into the value of one request. It runs after
// every scan finished, so no locking is needed.
func (r *scanResults) derive(req ir.Request) ir.Value {
	switch req.Kind.Name {
	case ir.KindUniqueness, ir.KindDistinctness:
		c := r.groups[scanKey(req.Filter, req.Columns()...)]
		if c.rows == 0 {
			return ir.NoValue(req, ReasonNoRows)
		}
		if req.Kind.Name == ir.KindUniqueness {
			return ir.DoubleValue(req, float64(c.singles)/float64(c.rows))
		}
		return ir.DoubleValue(req, float64(c.groups)/float64(c.rows))

	case ir.KindQuantile:
		stats := r.columns[scanKey(req.Filter, req.Columns()[0])]
		if stats.nonNumeric != "" {
			return ir.NoValue(req, reasonNonNumericFmt+quote(stats.nonNumeric))
		}
		v, err := stats.sketch.Query(req.Kind.Rank)
		if errors.Is(err, quantile.ErrEmpty) {
			return ir.NoValue(req, ReasonNoValues)
		}
		if err != nil {
			return ir.NoValue(req, err.Error())
		}
		return ir.DoubleValue(req, v)

	case ir.KindStandardDeviation:
		stats := r.columns[scanKey(req.Filter, req.Columns()[0])]
		if stats.nonNumeric != "" {
			return ir.NoValue(req, reasonNonNumericFmt+quote(stats.nonNumeric))
		}
		sd, ok := stats.moments.stddev()
		if !ok {
			return ir.NoValue(req, ReasonTooFewValues)
		}
		return ir.DoubleValue(req, sd)
	}

	aggs, err := queryir.AggregatesFor(req)
	if err != nil {
		return ir.NoValue(req, err.Error())
	}
	row := r.aggs[req.Filter]

	switch req.Kind.Name {
	case ir.KindSize:
		return ir.IntValue(req, cast.ToInt64(normalize(row[aggs[0]])))

	case ir.KindMinimum, ir.KindMaximum, ir.KindMean, ir.KindSum:
		if len(aggs) > 1 {
			if n := cast.ToInt64(normalize(row[aggs[1]])); n > 0 {
				return ir.NoValue(req, fmt.Sprintf("%d non-numeric value(s)", n))
			}
		}
		raw := normalize(row[aggs[0]])
		if raw == nil {
			return ir.NoValue(req, ReasonNoValues)
		}
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return ir.NoValue(req, reasonNonNumericFmt+quote(cast.ToString(raw)))
		}
		return ir.DoubleValue(req, f)

	case ir.KindDataType:
		matches := cast.ToInt64(normalize(row[aggs[0]]))
		nonNull := cast.ToInt64(normalize(row[aggs[1]]))
		if nonNull == 0 {
			return ir.NoValue(req, ReasonNoValues)
		}
		if req.Kind.Arg == ir.TypeString {
			matches = nonNull - matches
		}
		return ir.DoubleValue(req, float64(matches)/float64(nonNull))
	}

	// fractions over filtered rows: completeness, pattern match, compliance
	num := cast.ToInt64(normalize(row[aggs[0]]))
	den := cast.ToInt64(normalize(row[aggs[1]]))
	if den == 0 {
		return ir.NoValue(req, ReasonNoRows)
	}
	return ir.DoubleValue(req, float64(num)/float64(den))
}

func quote(s string) string {
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return `"` + s + `"`
}
