package queryir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/verity/internal/ir"
)

// ErrUnsupported is wrapped by planning errors for requests no scan can serve.
var ErrUnsupported = errors.New("unsupported metric request")

// Scan is one physical pass over the dataset.
//
// This is a sealed interface - only types in this package implement it.
type Scan interface {
	scanNode()
	// Filter returns the row filter ("" for the whole dataset).
	Filter() string
}

// AggFunc names an aggregate computed by an AggregateScan.
type AggFunc string

const (
	AggRowCount   AggFunc = "row_count" // rows passing the filter
	AggNonNull    AggFunc = "non_null"  // non-null values of Column
	AggMin        AggFunc = "min"
	AggMax        AggFunc = "max"
	AggAvg        AggFunc = "avg"
	AggSum        AggFunc = "sum"
	AggNonNumeric AggFunc = "non_numeric" // non-null values of Column that are not numbers
	AggMatches    AggFunc = "matches"     // non-null values of Column whose text matches Arg
	AggSatisfies  AggFunc = "satisfies"   // rows for which predicate Arg is true
)

// Aggregate is one aggregate expression. It is comparable so equal
// aggregates requested by different metrics are computed once.
type Aggregate struct {
	Func   AggFunc
	Column string
	Arg    string
}

// AggregateScan computes a list of aggregates over the rows matching Where.
type AggregateScan struct {
	Where      string
	Aggregates []Aggregate
}

func (*AggregateScan) scanNode()        {}
func (s *AggregateScan) Filter() string { return s.Where }

// GroupScan groups the rows matching Where by Columns and reports the number
// of groups, the number of groups holding exactly one row, and the row total.
// NULLs form a group of their own.
type GroupScan struct {
	Where   string
	Columns []string
}

func (*GroupScan) scanNode()        {}
func (s *GroupScan) Filter() string { return s.Where }

// ColumnScan streams the non-null values of Column for rows matching Where,
// in ascending order.
type ColumnScan struct {
	Where  string
	Column string
}

func (*ColumnScan) scanNode()        {}
func (s *ColumnScan) Filter() string { return s.Where }

// Plan is the set of scans needed to answer a batch of requests.
type Plan struct {
	Aggregates []*AggregateScan
	Groups     []*GroupScan
	Columns    []*ColumnScan
}

// Scans returns every scan in the plan.
func (p *Plan) Scans() []Scan {
	out := make([]Scan, 0, len(p.Aggregates)+len(p.Groups)+len(p.Columns))
	for _, s := range p.Aggregates {
		out = append(out, s)
	}
	for _, s := range p.Groups {
		out = append(out, s)
	}
	for _, s := range p.Columns {
		out = append(out, s)
	}
	return out
}

type groupKey struct {
	where   string
	columns string
}

type columnKey struct {
	where  string
	column string
}

// Build plans the scans for requests. Requests must be valid and distinct;
// duplicates are tolerated but planned once.
func Build(requests []ir.Request) (*Plan, error) {
	p := &Plan{}
	aggIdx := map[string]*AggregateScan{}
	aggSeen := map[string]map[Aggregate]bool{}
	groupSeen := map[groupKey]bool{}
	colSeen := map[columnKey]bool{}

	for _, r := range requests {
		switch r.Kind.Name {
		case ir.KindUniqueness, ir.KindDistinctness:
			cols := r.Columns()
			k := groupKey{where: r.Filter, columns: strings.Join(cols, "\x1f")}
			if !groupSeen[k] {
				groupSeen[k] = true
				p.Groups = append(p.Groups, &GroupScan{Where: r.Filter, Columns: cols})
			}
			continue
		case ir.KindQuantile, ir.KindStandardDeviation:
			k := columnKey{where: r.Filter, column: r.Columns()[0]}
			if !colSeen[k] {
				colSeen[k] = true
				p.Columns = append(p.Columns, &ColumnScan{Where: r.Filter, Column: k.column})
			}
			continue
		}

		aggs, err := AggregatesFor(r)
		if err != nil {
			return nil, err
		}
		scan, ok := aggIdx[r.Filter]
		if !ok {
			scan = &AggregateScan{Where: r.Filter}
			aggIdx[r.Filter] = scan
			aggSeen[r.Filter] = map[Aggregate]bool{}
			p.Aggregates = append(p.Aggregates, scan)
		}
		for _, a := range aggs {
			if aggSeen[r.Filter][a] {
				continue
			}
			aggSeen[r.Filter][a] = true
			scan.Aggregates = append(scan.Aggregates, a)
		}
	}
	return p, nil
}

// Check reports whether some scan can serve r.
func Check(r ir.Request) error {
	switch r.Kind.Name {
	case ir.KindUniqueness, ir.KindDistinctness, ir.KindQuantile, ir.KindStandardDeviation:
		if len(r.Columns()) == 0 {
			return fmt.Errorf("%w: %s has no columns", ErrUnsupported, r)
		}
		return nil
	}
	_, err := AggregatesFor(r)
	return err
}

// AggregatesFor returns the aggregates an aggregate-scan request depends on.
// The first aggregate is the numerator (or the value itself); the second, if
// present, is the denominator.
func AggregatesFor(r ir.Request) ([]Aggregate, error) {
	cols := r.Columns()
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s has no columns", ErrUnsupported, r)
	}
	col := cols[0]
	rows := Aggregate{Func: AggRowCount}

	switch r.Kind.Name {
	case ir.KindSize:
		return []Aggregate{rows}, nil
	case ir.KindCompleteness:
		return []Aggregate{{Func: AggNonNull, Column: col}, rows}, nil
	case ir.KindMinimum:
		return []Aggregate{{Func: AggMin, Column: col}}, nil
	case ir.KindMaximum:
		return []Aggregate{{Func: AggMax, Column: col}}, nil
	case ir.KindMean:
		return []Aggregate{{Func: AggAvg, Column: col}, {Func: AggNonNumeric, Column: col}}, nil
	case ir.KindSum:
		return []Aggregate{{Func: AggSum, Column: col}, {Func: AggNonNumeric, Column: col}}, nil
	case ir.KindPatternMatch:
		return []Aggregate{{Func: AggMatches, Column: col, Arg: r.Kind.Arg}, rows}, nil
	case ir.KindCompliance:
		return []Aggregate{{Func: AggSatisfies, Arg: r.Kind.Arg}, rows}, nil
	case ir.KindDataType:
		pattern, err := TypeClassPattern(r.Kind.Arg)
		if err != nil {
			return nil, err
		}
		return []Aggregate{{Func: AggMatches, Column: col, Arg: pattern}, {Func: AggNonNull, Column: col}}, nil
	case ir.KindSchemaShape:
		return nil, fmt.Errorf("%w: %s is answered from dataset metadata", ErrUnsupported, r)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, r)
}
