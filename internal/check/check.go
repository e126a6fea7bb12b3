package check

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/verity/internal/ir"
	"github.com/roach88/verity/internal/querysql"
)

// Level is the severity of a failing check.
type Level int

const (
	LevelWarning Level = iota
	LevelException
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "Warning"
	case LevelException:
		return "Exception"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel accepts "warning", "error" and "exception", in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "warning", "warn":
		return LevelWarning, nil
	case "error", "exception":
		return LevelException, nil
	}
	return 0, fmt.Errorf("unknown check level %q", s)
}

// Status is the aggregated outcome of a check.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusWarning Status = "Warning"
	StatusError   Status = "Error"
)

func (s Status) severity() int {
	switch s {
	case StatusWarning:
		return 1
	case StatusError:
		return 2
	}
	return 0
}

// Result is the evaluated state of a check.
type Result struct {
	Description string
	Level       Level
	Status      Status
	Constraints []ConstraintResult
}

// Failures returns the failed constraint results.
func (r Result) Failures() []ConstraintResult {
	var out []ConstraintResult
	for _, c := range r.Constraints {
		if c.Status == ConstraintFailure {
			out = append(out, c)
		}
	}
	return out
}

// OverallStatus returns the most severe status of results.
func OverallStatus(results ...Result) Status {
	status := StatusSuccess
	for _, r := range results {
		if r.Status.severity() > status.severity() {
			status = r.Status
		}
	}
	return status
}

// Check is an immutable, ordered list of constraints sharing a level.
type Check struct {
	level       Level
	description string
	constraints []Constraint
}

// New creates an empty check.
func New(level Level, description string) *Check {
	return &Check{level: level, description: description}
}

func (c *Check) Level() Level { return c.level }

func (c *Check) Description() string { return c.description }

// Constraints returns a copy of the constraints in declaration order.
func (c *Check) Constraints() []Constraint { return slices.Clone(c.constraints) }

func (c *Check) add(con Constraint) *Check {
	n := *c
	n.constraints = append(slices.Clip(c.constraints), con)
	return &n
}

// Where restricts the constraint appended last to the rows matching filter.
// Filters are backend expressions, e.g. SQL "item < 3".
//
// Panics when the check has no constraints.
func (c *Check) Where(filter string) *Check {
	if len(c.constraints) == 0 {
		panic("check: Where called before any constraint was added")
	}
	n := *c
	n.constraints = slices.Clone(c.constraints)
	n.constraints[len(n.constraints)-1].filter = strings.TrimSpace(filter)
	return &n
}

// RequiredRequests returns the deduplicated requests of every constraint.
func (c *Check) RequiredRequests() []ir.Request {
	var all []ir.Request
	for _, con := range c.constraints {
		all = append(all, con.Requests()...)
	}
	return ir.Dedup(all)
}

// Evaluate evaluates every constraint against src and aggregates by level.
func (c *Check) Evaluate(src MetricSource) Result {
	res := Result{
		Description: c.description,
		Level:       c.level,
		Status:      StatusSuccess,
		Constraints: make([]ConstraintResult, 0, len(c.constraints)),
	}
	for _, con := range c.constraints {
		cr := con.Evaluate(src)
		res.Constraints = append(res.Constraints, cr)
		if cr.Status == ConstraintFailure {
			if c.level == LevelException {
				res.Status = StatusError
			} else {
				res.Status = StatusWarning
			}
		}
	}
	return res
}

// metric appends a constraint asserting on a single request.
func (c *Check) metric(req ir.Request, cfg constraintConfig) *Check {
	assertion := cfg.assertion
	return c.add(Constraint{
		name: req.String(),
		hint: cfg.hint,
		requests: func(filter string) []ir.Request {
			return []ir.Request{req.WithFilter(filter)}
		},
		evaluate: func(v []float64, _ ir.Metadata) (string, bool) {
			return formatValue(v[0]), assertion(v[0])
		},
	})
}

// HasSize asserts on the number of rows. Without a filter the row count is
// read from dataset metadata.
func (c *Check) HasSize(assertion Assertion, opts ...ConstraintOption) *Check {
	cfg := newConfig(assertion, opts)
	return c.add(Constraint{
		name: ir.Size().String(),
		hint: cfg.hint,
		requests: func(filter string) []ir.Request {
			if filter == "" {
				return nil
			}
			return []ir.Request{ir.Size().WithFilter(filter)}
		},
		evaluate: func(v []float64, md ir.Metadata) (string, bool) {
			size := float64(md.RowCount)
			if len(v) > 0 {
				size = v[0]
			}
			return formatValue(size), cfg.assertion(size)
		},
	})
}

// HasSchema asserts on the column→type mapping of the dataset. The
// assertion receives a copy. Filters do not apply.
func (c *Check) HasSchema(assertion func(schema map[string]string) bool, opts ...ConstraintOption) *Check {
	cfg := newConfig(nil, opts)
	return c.add(Constraint{
		name:         "Schema",
		hint:         cfg.hint,
		datasetLevel: true,
		evaluate: func(_ []float64, md ir.Metadata) (string, bool) {
			return formatSchema(md.Schema), assertion(maps.Clone(md.Schema))
		},
	})
}

func formatSchema(schema map[string]string) string {
	cols := slices.Sorted(maps.Keys(schema))
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = col + ": " + schema[col]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// IsComplete asserts column has no nulls.
func (c *Check) IsComplete(column string, opts ...ConstraintOption) *Check {
	return c.metric(ir.Completeness(column), newConfig(IsOne, opts))
}

// HasCompleteness asserts on the fraction of non-null values of column.
func (c *Check) HasCompleteness(column string, assertion Assertion, opts ...ConstraintOption) *Check {
	return c.metric(ir.Completeness(column), newConfig(assertion, opts))
}

// AreComplete asserts that no row has a null in any of columns.
func (c *Check) AreComplete(columns []string, opts ...ConstraintOption) *Check {
	conds := make([]string, len(columns))
	for i, col := range columns {
		conds[i] = querysql.QuoteIdent(col) + " IS NOT NULL"
	}
	name := "Combined Completeness(" + strings.Join(columns, ",") + ")"
	return c.metric(ir.Compliance(name, strings.Join(conds, " AND ")), newConfig(IsOne, opts))
}

// IsUnique asserts every value of column occurs exactly once.
func (c *Check) IsUnique(column string, opts ...ConstraintOption) *Check {
	return c.metric(ir.Uniqueness(column), newConfig(IsOne, opts))
}

// IsPrimaryKey asserts the combination of the given columns is unique.
func (c *Check) IsPrimaryKey(column string, more []string, opts ...ConstraintOption) *Check {
	return c.metric(ir.Uniqueness(append([]string{column}, more...)...), newConfig(IsOne, opts))
}

// HasUniqueness asserts on the fraction of rows whose value combination
// across columns is unique.
func (c *Check) HasUniqueness(columns []string, assertion Assertion, opts ...ConstraintOption) *Check {
	return c.metric(ir.Uniqueness(columns...), newConfig(assertion, opts))
}

// IsDistinct asserts every row of column holds a distinct value.
func (c *Check) IsDistinct(column string, opts ...ConstraintOption) *Check {
	return c.metric(ir.Distinctness(column), newConfig(IsOne, opts))
}

// HasDistinctness asserts on distinct value combinations per row.
func (c *Check) HasDistinctness(columns []string, assertion Assertion, opts ...ConstraintOption) *Check {
	return c.metric(ir.Distinctness(columns...), newConfig(assertion, opts))
}

func (c *Check) HasMin(column string, assertion Assertion, opts ...ConstraintOption) *Check {
	return c.metric(ir.Minimum(column), newConfig(assertion, opts))
}

func (c *Check) HasMax(column string, assertion Assertion, opts ...ConstraintOption) *Check {
	return c.metric(ir.Maximum(column), newConfig(assertion, opts))
}

func (c *Check) HasMean(column string, assertion Assertion, opts ...ConstraintOption) *Check {
	return c.metric(ir.Mean(column), newConfig(assertion, opts))
}

// HasStandardDeviation asserts on the sample standard deviation.
func (c *Check) HasStandardDeviation(column string, assertion Assertion, opts ...ConstraintOption) *Check {
	return c.metric(ir.StandardDeviation(column), newConfig(assertion, opts))
}

func (c *Check) HasSum(column string, assertion Assertion, opts ...ConstraintOption) *Check {
	return c.metric(ir.Sum(column), newConfig(assertion, opts))
}

// HasApproxQuantile asserts on the approximate quantile at rank.
func (c *Check) HasApproxQuantile(column string, rank float64, assertion Assertion, opts ...ConstraintOption) *Check {
	return c.metric(ir.Quantile(column, rank), newConfig(assertion, opts))
}

// HasApproxQuantiles asserts on several quantiles of one column at once.
// The assertion receives a rank→value map.
func (c *Check) HasApproxQuantiles(column string, ranks []float64, assertion func(map[float64]float64) bool, opts ...ConstraintOption) *Check {
	cfg := newConfig(nil, opts)
	ranks = slices.Clone(ranks)
	names := make([]string, len(ranks))
	for i, r := range ranks {
		names[i] = formatValue(r)
	}
	return c.add(Constraint{
		name: fmt.Sprintf("Quantiles(%s)(%s)", strings.Join(names, ","), column),
		hint: cfg.hint,
		requests: func(filter string) []ir.Request {
			reqs := make([]ir.Request, len(ranks))
			for i, r := range ranks {
				reqs[i] = ir.Quantile(column, r).WithFilter(filter)
			}
			return reqs
		},
		evaluate: func(v []float64, _ ir.Metadata) (string, bool) {
			m := make(map[float64]float64, len(ranks))
			parts := make([]string, len(ranks))
			for i, r := range ranks {
				m[r] = v[i]
				parts[i] = names[i] + ": " + formatValue(v[i])
			}
			return "{" + strings.Join(parts, ", ") + "}", assertion(m)
		},
	})
}

// Satisfies asserts on the fraction of rows for which predicate holds.
// name labels the rule in reports. Default assertion: IsOne.
func (c *Check) Satisfies(predicate, name string, opts ...ConstraintOption) *Check {
	return c.metric(ir.Compliance(name, predicate), newConfig(IsOne, opts))
}

// HasPattern asserts on the fraction of rows whose column matches pattern.
// Default assertion: IsOne.
func (c *Check) HasPattern(column, pattern string, opts ...ConstraintOption) *Check {
	return c.metric(ir.PatternMatch(column, pattern), newConfig(IsOne, opts))
}

func (c *Check) ContainsCreditCardNumber(column string, opts ...ConstraintOption) *Check {
	return c.HasPattern(column, PatternCreditCard, opts...)
}

func (c *Check) ContainsEmail(column string, opts ...ConstraintOption) *Check {
	return c.HasPattern(column, PatternEmail, opts...)
}

func (c *Check) ContainsURL(column string, opts ...ConstraintOption) *Check {
	return c.HasPattern(column, PatternURL, opts...)
}

func (c *Check) ContainsSocialSecurityNumber(column string, opts ...ConstraintOption) *Check {
	return c.HasPattern(column, PatternSocialSecurityNumberUS, opts...)
}

// IsNonNegative asserts column ≥ 0. Nulls pass.
func (c *Check) IsNonNegative(column string, opts ...ConstraintOption) *Check {
	pred := fmt.Sprintf("COALESCE(%s, 0) >= 0", querysql.QuoteIdent(column))
	return c.Satisfies(pred, column+" is non-negative", opts...)
}

// IsPositive asserts column > 0. Nulls pass.
func (c *Check) IsPositive(column string, opts ...ConstraintOption) *Check {
	pred := fmt.Sprintf("COALESCE(%s, 1) > 0", querysql.QuoteIdent(column))
	return c.Satisfies(pred, column+" is positive", opts...)
}

// IsContainedIn asserts every value of column is one of allowed. Nulls pass.
func (c *Check) IsContainedIn(column string, allowed []string, opts ...ConstraintOption) *Check {
	quoted := make([]string, len(allowed))
	for i, v := range allowed {
		quoted[i] = querysql.QuoteLiteral(v)
	}
	col := querysql.QuoteIdent(column)
	pred := fmt.Sprintf("%s IS NULL OR %s IN (%s)", col, col, strings.Join(quoted, ", "))
	name := fmt.Sprintf("%s contained in {%s}", column, strings.Join(allowed, ","))
	return c.Satisfies(pred, name, opts...)
}

// IsContainedInRange asserts every value of column lies between lower and
// upper. Bounds are inclusive unless ExclusiveLower or ExclusiveUpper is
// given. Nulls pass.
func (c *Check) IsContainedInRange(column string, lower, upper float64, opts ...ConstraintOption) *Check {
	cfg := newConfig(IsOne, opts)
	lowerOp, lowerBr := ">=", "["
	if !cfg.lowerBounded {
		lowerOp, lowerBr = ">", "("
	}
	upperOp, upperBr := "<=", "]"
	if !cfg.upperBounded {
		upperOp, upperBr = "<", ")"
	}
	col := querysql.QuoteIdent(column)
	pred := fmt.Sprintf("%s IS NULL OR (%s %s %s AND %s %s %s)",
		col, col, lowerOp, formatValue(lower), col, upperOp, formatValue(upper))
	name := fmt.Sprintf("%s in %s%s, %s%s", column, lowerBr, formatValue(lower), formatValue(upper), upperBr)
	return c.metric(ir.Compliance(name, pred), cfg)
}

// HasDataType asserts on the fraction of non-null values of column that
// belong to class (ir.TypeIntegral, ir.TypeFractional, ir.TypeNumeric,
// ir.TypeBoolean or ir.TypeString). Default assertion: IsOne.
func (c *Check) HasDataType(column, class string, opts ...ConstraintOption) *Check {
	return c.metric(ir.DataType(column, class), newConfig(IsOne, opts))
}
