package check

import (
	"fmt"
	"strconv"

	"github.com/roach88/verity/internal/ir"
)

// MetricSource is what constraints are evaluated against.
// analysis.Context implements it.
type MetricSource interface {
	Value(ir.Request) (ir.Value, bool)
	Metadata() ir.Metadata
}

// ConstraintStatus is the outcome of one constraint.
type ConstraintStatus string

const (
	ConstraintSuccess ConstraintStatus = "Success"
	ConstraintFailure ConstraintStatus = "Failure"
)

// FailureReason tells assertion failures apart from missing data.
type FailureReason string

const (
	ReasonNone              FailureReason = ""
	ReasonAssertion         FailureReason = "assertion"
	ReasonInsufficientData  FailureReason = "insufficient_data"
	ReasonMetricUnavailable FailureReason = "metric_unavailable"
	ReasonAssertionPanic    FailureReason = "assertion_panic"
)

// ConstraintResult is the evaluated state of one constraint.
type ConstraintResult struct {
	Constraint string
	Status     ConstraintStatus
	Reason     FailureReason
	Message    string
	// Metrics holds the values the constraint looked at, in request order.
	Metrics []ir.Value
}

func (r ConstraintResult) fail(reason FailureReason, msg string) ConstraintResult {
	r.Status = ConstraintFailure
	r.Reason = reason
	r.Message = msg
	return r
}

// evaluator receives the numeric value of every request, in order, plus the
// dataset metadata. It returns the observed value as rendered in messages.
type evaluator func(values []float64, md ir.Metadata) (observed string, ok bool)

// Constraint is one assertion of a check.
type Constraint struct {
	name   string
	filter string
	hint   string
	// datasetLevel constraints read metadata only and ignore the filter.
	datasetLevel bool
	requests     func(filter string) []ir.Request
	evaluate     evaluator
}

// Filter returns the row filter, "" for the whole dataset.
func (c Constraint) Filter() string { return c.filter }

// Hint returns the text appended to failure messages.
func (c Constraint) Hint() string { return c.hint }

func (c Constraint) String() string {
	if c.filter == "" || c.datasetLevel {
		return c.name
	}
	return c.name + " where " + c.filter
}

// Requests returns the metric requests the constraint needs.
func (c Constraint) Requests() []ir.Request {
	if c.requests == nil {
		return nil
	}
	return c.requests(c.filter)
}

// Evaluate resolves the constraint's metrics in src and applies its
// assertion. It never panics.
func (c Constraint) Evaluate(src MetricSource) (res ConstraintResult) {
	res = ConstraintResult{Constraint: c.String(), Status: ConstraintSuccess}

	reqs := c.Requests()
	values := make([]float64, len(reqs))
	for i, req := range reqs {
		v, ok := src.Value(req)
		if !ok {
			return res.fail(ReasonMetricUnavailable,
				fmt.Sprintf("Missing metric %s: it was not computed in this run", req))
		}
		res.Metrics = append(res.Metrics, v)
		f, ok := v.Float()
		if !ok {
			return res.fail(ReasonInsufficientData,
				fmt.Sprintf("Metric %s has no value: %s", req, v.Reason))
		}
		values[i] = f
	}

	defer func() {
		if p := recover(); p != nil {
			res = res.fail(ReasonAssertionPanic, fmt.Sprintf("Can't execute the assertion: %v!", p))
		}
	}()

	observed, ok := c.evaluate(values, src.Metadata())
	if !ok {
		msg := fmt.Sprintf("Value: %s does not meet the constraint requirement!", observed)
		if c.hint != "" {
			msg += " " + c.hint
		}
		return res.fail(ReasonAssertion, msg)
	}
	return res
}

func formatValue(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ConstraintOption customizes a constraint.
type ConstraintOption func(*constraintConfig)

type constraintConfig struct {
	assertion    Assertion
	hint         string
	lowerBounded bool // lower bound inclusive
	upperBounded bool // upper bound inclusive
}

func newConfig(def Assertion, opts []ConstraintOption) constraintConfig {
	cfg := constraintConfig{assertion: def, lowerBounded: true, upperBounded: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithAssertion replaces the constraint's assertion. Builders that default
// to IsOne use it to accept partial fractions.
func WithAssertion(a Assertion) ConstraintOption {
	return func(c *constraintConfig) {
		c.assertion = a
	}
}

// WithHint appends hint to the failure message.
func WithHint(hint string) ConstraintOption {
	return func(c *constraintConfig) {
		c.hint = hint
	}
}

// ExclusiveLower makes the lower bound of IsContainedInRange exclusive.
func ExclusiveLower() ConstraintOption {
	return func(c *constraintConfig) {
		c.lowerBounded = false
	}
}

// ExclusiveUpper makes the upper bound of IsContainedInRange exclusive.
func ExclusiveUpper() ConstraintOption {
	return func(c *constraintConfig) {
		c.upperBounded = false
	}
}
