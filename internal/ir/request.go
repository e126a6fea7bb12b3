package ir

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// KindName identifies a metric kind.
type KindName string

const (
	KindSize              KindName = "Size"
	KindCompleteness      KindName = "Completeness"
	KindUniqueness        KindName = "Uniqueness"
	KindDistinctness      KindName = "Distinctness"
	KindMinimum           KindName = "Minimum"
	KindMaximum           KindName = "Maximum"
	KindMean              KindName = "Mean"
	KindStandardDeviation KindName = "StandardDeviation"
	KindSum               KindName = "Sum"
	KindQuantile          KindName = "Quantile"
	KindPatternMatch      KindName = "PatternMatch"
	KindCompliance        KindName = "Compliance"
	KindDataType          KindName = "DataType"
	KindSchemaShape       KindName = "SchemaShape"
)

var knownKinds = map[KindName]bool{
	KindSize: true, KindCompleteness: true, KindUniqueness: true,
	KindDistinctness: true, KindMinimum: true, KindMaximum: true,
	KindMean: true, KindStandardDeviation: true, KindSum: true,
	KindQuantile: true, KindPatternMatch: true, KindCompliance: true,
	KindDataType: true, KindSchemaShape: true,
}

// Type classes accepted by DataType requests.
const (
	TypeIntegral   = "Integral"
	TypeFractional = "Fractional"
	TypeNumeric    = "Numeric"
	TypeBoolean    = "Boolean"
	TypeString     = "String"
)

// AllColumns is the column marker for requests that are not column-scoped.
const AllColumns = "*"

// ErrInvalidRequest is wrapped by every error returned from Request.Validate.
var ErrInvalidRequest = errors.New("invalid metric request")

// Kind is a metric kind together with its parameter.
//
// Rank is used by Quantile only. Arg holds the regular expression for
// PatternMatch, the predicate for Compliance and the type class for DataType.
type Kind struct {
	Name KindName
	Rank float64
	Arg  string
}

func (k Kind) String() string {
	switch k.Name {
	case KindQuantile:
		return fmt.Sprintf("Quantile(%s)", formatRank(k.Rank))
	case KindPatternMatch, KindCompliance, KindDataType:
		return fmt.Sprintf("%s(%s)", k.Name, k.Arg)
	}
	return string(k.Name)
}

// columnSep joins column names inside a Request so the struct stays comparable.
const columnSep = "\x1f"

// Request asks for one scalar metric over some columns of a dataset,
// optionally restricted to the rows matching Filter.
//
// Request is comparable: two requests are equal exactly when kind, parameter,
// columns and filter are equal, which makes it usable as a map key.
// An empty Filter means the whole dataset.
type Request struct {
	Kind    Kind
	columns string
	Filter  string
}

// NewRequest builds a request. Column order is significant.
func NewRequest(kind Kind, columns ...string) Request {
	return Request{Kind: kind, columns: strings.Join(columns, columnSep)}
}

func Size() Request { return NewRequest(Kind{Name: KindSize}, AllColumns) }

func Completeness(column string) Request {
	return NewRequest(Kind{Name: KindCompleteness}, column)
}

func Uniqueness(columns ...string) Request {
	return NewRequest(Kind{Name: KindUniqueness}, columns...)
}

func Distinctness(columns ...string) Request {
	return NewRequest(Kind{Name: KindDistinctness}, columns...)
}

func Minimum(column string) Request { return NewRequest(Kind{Name: KindMinimum}, column) }

func Maximum(column string) Request { return NewRequest(Kind{Name: KindMaximum}, column) }

func Mean(column string) Request { return NewRequest(Kind{Name: KindMean}, column) }

func StandardDeviation(column string) Request {
	return NewRequest(Kind{Name: KindStandardDeviation}, column)
}

func Sum(column string) Request { return NewRequest(Kind{Name: KindSum}, column) }

// Quantile requests the approximate value at rank (0 ≤ rank ≤ 1).
func Quantile(column string, rank float64) Request {
	return NewRequest(Kind{Name: KindQuantile, Rank: rank}, column)
}

// PatternMatch requests the fraction of rows whose value matches pattern.
func PatternMatch(column, pattern string) Request {
	return NewRequest(Kind{Name: KindPatternMatch, Arg: pattern}, column)
}

// Compliance requests the fraction of rows satisfying predicate. The name is
// used as the request's single column so differently named rules stay apart.
func Compliance(name, predicate string) Request {
	return NewRequest(Kind{Name: KindCompliance, Arg: predicate}, name)
}

// DataType requests the fraction of non-null values that belong to class.
func DataType(column, class string) Request {
	return NewRequest(Kind{Name: KindDataType, Arg: class}, column)
}

func SchemaShape() Request { return NewRequest(Kind{Name: KindSchemaShape}, AllColumns) }

// Columns returns the request's columns in order.
func (r Request) Columns() []string {
	if r.columns == "" {
		return nil
	}
	return strings.Split(r.columns, columnSep)
}

// WithFilter returns a copy of r restricted to rows matching filter.
func (r Request) WithFilter(filter string) Request {
	r.Filter = strings.TrimSpace(filter)
	return r
}

// HasFilter reports whether the request is restricted to a subset of rows.
func (r Request) HasFilter() bool { return r.Filter != "" }

// Validate checks the request is well formed.
func (r Request) Validate() error {
	if !knownKinds[r.Kind.Name] {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, r.Kind.Name)
	}
	cols := r.Columns()
	if len(cols) == 0 {
		return fmt.Errorf("%w: %s: at least one column is required", ErrInvalidRequest, r.Kind)
	}
	for _, c := range cols {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("%w: %s: empty column name", ErrInvalidRequest, r.Kind)
		}
	}
	switch r.Kind.Name {
	case KindQuantile:
		if math.IsNaN(r.Kind.Rank) || r.Kind.Rank < 0 || r.Kind.Rank > 1 {
			return fmt.Errorf("%w: quantile rank %v outside [0, 1]", ErrInvalidRequest, r.Kind.Rank)
		}
	case KindPatternMatch, KindCompliance:
		if strings.TrimSpace(r.Kind.Arg) == "" {
			return fmt.Errorf("%w: %s requires an expression", ErrInvalidRequest, r.Kind.Name)
		}
	case KindDataType:
		switch r.Kind.Arg {
		case TypeIntegral, TypeFractional, TypeNumeric, TypeBoolean, TypeString:
		default:
			return fmt.Errorf("%w: unknown type class %q", ErrInvalidRequest, r.Kind.Arg)
		}
	}
	if r.Kind.Name != KindQuantile && r.Kind.Rank != 0 {
		return fmt.Errorf("%w: rank is only valid for quantiles", ErrInvalidRequest)
	}
	return nil
}

// String renders the request for logs and reports, e.g.
// "Completeness(att2) where item >= 3".
func (r Request) String() string {
	s := fmt.Sprintf("%s(%s)", r.Kind, strings.Join(r.Columns(), ","))
	if r.HasFilter() {
		s += " where " + r.Filter
	}
	return s
}

// Key returns the content-addressed key of the request, used by persistent
// metric stores.
func (r Request) Key() string {
	b, err := MarshalCanonical(r.canonical())
	if err != nil {
		// canonical() only produces strings and string slices
		panic(fmt.Sprintf("request key: %v", err))
	}
	return hashWithDomain(DomainRequest, b)
}

func (r Request) canonical() map[string]any {
	obj := map[string]any{
		"kind":    string(r.Kind.Name),
		"columns": r.Columns(),
	}
	if r.Kind.Name == KindQuantile {
		obj["rank"] = formatRank(r.Kind.Rank)
	}
	if r.Kind.Arg != "" {
		obj["arg"] = r.Kind.Arg
	}
	if r.Filter != "" {
		obj["filter"] = r.Filter
	}
	return obj
}

// MarshalJSON encodes the request as canonical JSON.
func (r Request) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(r.canonical())
}

type requestJSON struct {
	Kind    KindName `json:"kind"`
	Columns []string `json:"columns"`
	Rank    string   `json:"rank,omitempty"`
	Arg     string   `json:"arg,omitempty"`
	Filter  string   `json:"filter,omitempty"`
}

// UnmarshalJSON decodes a request produced by MarshalJSON.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw requestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind := Kind{Name: raw.Kind, Arg: raw.Arg}
	if raw.Rank != "" {
		rank, err := strconv.ParseFloat(raw.Rank, 64)
		if err != nil {
			return fmt.Errorf("decode rank %q: %w", raw.Rank, err)
		}
		kind.Rank = rank
	}
	*r = NewRequest(kind, raw.Columns...).WithFilter(raw.Filter)
	return nil
}

func formatRank(rank float64) string {
	return strconv.FormatFloat(rank, 'g', -1, 64)
}

// Dedup returns requests with structural duplicates removed, keeping the
// first occurrence of each.
func Dedup(requests []Request) []Request {
	seen := make(map[Request]struct{}, len(requests))
	out := make([]Request, 0, len(requests))
	for _, r := range requests {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// CompareRequests orders requests by their rendering, then by key.
func CompareRequests(a, b Request) int {
	if c := strings.Compare(a.String(), b.String()); c != 0 {
		return c
	}
	return strings.Compare(a.Key(), b.Key())
}
