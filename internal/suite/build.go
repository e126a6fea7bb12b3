package suite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/verity/internal/check"
	"github.com/roach88/verity/internal/ir"
)

// needs lists the fields a constraint type requires.
type needs uint16

const (
	needColumn needs = 1 << iota
	needColumns
	needColumnOrColumns
	needExpression
	needPattern
	needValues
	needRank
	needRanks
	needRange
	needDataType
	needSchema
	needAssert
)

// builder appends one constraint. a is nil when the suite gave no assert.
type builder func(c *check.Check, d Constraint, a check.Assertion, opts []check.ConstraintOption) *check.Check

type typeSpec struct {
	needs needs
	build builder
}

// withDefault passes a as an override to builders that default to IsOne.
func withDefault(a check.Assertion, opts []check.ConstraintOption) []check.ConstraintOption {
	if a == nil {
		return opts
	}
	return append(opts, check.WithAssertion(a))
}

var constraintTypes = map[string]typeSpec{
	"has_size": {needAssert, func(c *check.Check, _ Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.HasSize(a, o...)
	}},
	"has_schema": {needSchema, func(c *check.Check, d Constraint, _ check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.HasSchema(schemaAssertion(d.Columns, d.Schema), o...)
	}},
	"is_complete": {needColumn, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.IsComplete(d.Column, withDefault(a, o)...)
	}},
	"has_completeness": {needColumn | needAssert, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.HasCompleteness(d.Column, a, o...)
	}},
	"are_complete": {needColumns, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.AreComplete(d.Columns, withDefault(a, o)...)
	}},
	"is_unique": {needColumn, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.IsUnique(d.Column, withDefault(a, o)...)
	}},
	"is_primary_key": {needColumnOrColumns, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		cols := d.Columns
		if d.Column != "" {
			cols = append([]string{d.Column}, cols...)
		}
		return c.IsPrimaryKey(cols[0], cols[1:], withDefault(a, o)...)
	}},
	"has_uniqueness": {needColumns | needAssert, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.HasUniqueness(d.Columns, a, o...)
	}},
	"is_distinct": {needColumn, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.IsDistinct(d.Column, withDefault(a, o)...)
	}},
	"has_distinctness": {needColumns | needAssert, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.HasDistinctness(d.Columns, a, o...)
	}},
	"has_min": {needColumn | needAssert, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.HasMin(d.Column, a, o...)
	}},
	"has_max": {needColumn | needAssert, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.HasMax(d.Column, a, o...)
	}},
	"has_mean": {needColumn | needAssert, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.HasMean(d.Column, a, o...)
	}},
	"has_standard_deviation": {needColumn | needAssert, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.HasStandardDeviation(d.Column, a, o...)
	}},
	"has_sum": {needColumn | needAssert, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.HasSum(d.Column, a, o...)
	}},
	"has_approx_quantile": {needColumn | needRank | needAssert, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.HasApproxQuantile(d.Column, *d.Rank, a, o...)
	}},
	"has_approx_quantiles": {needColumn | needRanks | needAssert, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.HasApproxQuantiles(d.Column, d.Ranks, func(q map[float64]float64) bool {
			for _, v := range q {
				if !a(v) {
					return false
				}
			}
			return true
		}, o...)
	}},
	"satisfies": {needExpression, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		name := d.Name
		if name == "" {
			name = d.Expression
		}
		return c.Satisfies(d.Expression, name, withDefault(a, o)...)
	}},
	"has_pattern": {needColumn | needPattern, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.HasPattern(d.Column, d.Pattern, withDefault(a, o)...)
	}},
	"contains_credit_card_number": {needColumn, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.ContainsCreditCardNumber(d.Column, withDefault(a, o)...)
	}},
	"contains_email": {needColumn, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.ContainsEmail(d.Column, withDefault(a, o)...)
	}},
	"contains_url": {needColumn, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.ContainsURL(d.Column, withDefault(a, o)...)
	}},
	"contains_social_security_number": {needColumn, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.ContainsSocialSecurityNumber(d.Column, withDefault(a, o)...)
	}},
	"is_non_negative": {needColumn, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.IsNonNegative(d.Column, withDefault(a, o)...)
	}},
	"is_positive": {needColumn, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.IsPositive(d.Column, withDefault(a, o)...)
	}},
	"is_contained_in": {needColumn | needValues, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.IsContainedIn(d.Column, d.Values, withDefault(a, o)...)
	}},
	"is_contained_in_range": {needColumn | needRange, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		if d.ExclusiveMin {
			o = append(o, check.ExclusiveLower())
		}
		if d.ExclusiveMax {
			o = append(o, check.ExclusiveUpper())
		}
		return c.IsContainedInRange(d.Column, *d.Min, *d.Max, withDefault(a, o)...)
	}},
	"has_data_type": {needColumn | needDataType, func(c *check.Check, d Constraint, a check.Assertion, o []check.ConstraintOption) *check.Check {
		return c.HasDataType(d.Column, d.DataType, withDefault(a, o)...)
	}},
}

// schemaAssertion requires every listed column to exist and every column
// of want to have the given type (case-insensitive).
func schemaAssertion(columns []string, want map[string]string) func(map[string]string) bool {
	return func(got map[string]string) bool {
		for _, col := range columns {
			if _, ok := got[col]; !ok {
				return false
			}
		}
		for col, typ := range want {
			if !strings.EqualFold(got[col], typ) {
				return false
			}
		}
		return true
	}
}

// Build turns the suite into checks, in declaration order.
func (s *Suite) Build() ([]*check.Check, error) {
	if len(s.Checks) == 0 {
		return nil, &Error{Code: ErrCodeNoChecks, Field: "checks", Message: "at least one check is required"}
	}
	checks := make([]*check.Check, 0, len(s.Checks))
	for i, def := range s.Checks {
		c, err := buildCheck(fmt.Sprintf("checks[%d]", i), def)
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return checks, nil
}

func buildCheck(path string, def Check) (*check.Check, error) {
	level := check.LevelException
	if def.Level != "" {
		l, err := check.ParseLevel(def.Level)
		if err != nil {
			return nil, &Error{Code: ErrCodeLevel, Field: path + ".level", Message: err.Error()}
		}
		level = l
	}
	if len(def.Constraints) == 0 {
		return nil, &Error{Code: ErrCodeNoChecks, Field: path + ".constraints", Message: "at least one constraint is required"}
	}

	c := check.New(level, def.Description)
	for i, d := range def.Constraints {
		var err error
		c, err = buildConstraint(fmt.Sprintf("%s.constraints[%d]", path, i), c, d)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

func buildConstraint(path string, c *check.Check, d Constraint) (*check.Check, error) {
	spec, ok := constraintTypes[d.Type]
	if !ok {
		return nil, &Error{Code: ErrCodeType, Field: path + ".type", Message: fmt.Sprintf("unknown constraint type %q", d.Type)}
	}
	if err := checkFields(path, spec.needs, d); err != nil {
		return nil, err
	}

	var a check.Assertion
	if d.Assert != "" {
		if d.Type == "has_schema" {
			return nil, &Error{Code: ErrCodeInvalid, Field: path + ".assert", Message: "has_schema takes columns or schema, not assert"}
		}
		compiled, err := compileAssertion(d.Assert)
		if err != nil {
			return nil, &Error{Code: ErrCodeAssert, Field: path + ".assert", Message: err.Error()}
		}
		a = compiled
	}

	var opts []check.ConstraintOption
	if d.Hint != "" {
		opts = append(opts, check.WithHint(d.Hint))
	}
	c = spec.build(c, d, a, opts)
	if strings.TrimSpace(d.Where) != "" {
		c = c.Where(d.Where)
	}
	return c, nil
}

func checkFields(path string, n needs, d Constraint) error {
	missing := func(field string) error {
		return &Error{Code: ErrCodeMissing, Field: path + "." + field, Message: fmt.Sprintf("%s requires %s", d.Type, field)}
	}
	invalid := func(field, msg string) error {
		return &Error{Code: ErrCodeInvalid, Field: path + "." + field, Message: msg}
	}

	if n&needColumn != 0 && strings.TrimSpace(d.Column) == "" {
		return missing("column")
	}
	if n&needColumns != 0 && len(d.Columns) == 0 {
		return missing("columns")
	}
	if n&needColumnOrColumns != 0 && d.Column == "" && len(d.Columns) == 0 {
		return missing("column")
	}
	for i, col := range d.Columns {
		if strings.TrimSpace(col) == "" {
			return invalid(fmt.Sprintf("columns[%d]", i), "empty column name")
		}
	}
	if n&needExpression != 0 && strings.TrimSpace(d.Expression) == "" {
		return missing("expression")
	}
	if n&needPattern != 0 {
		if d.Pattern == "" {
			return missing("pattern")
		}
		if _, err := regexp.Compile(d.Pattern); err != nil {
			return invalid("pattern", err.Error())
		}
	}
	if n&needValues != 0 && len(d.Values) == 0 {
		return missing("values")
	}
	if n&needRank != 0 {
		if d.Rank == nil {
			return missing("rank")
		}
		if *d.Rank < 0 || *d.Rank > 1 {
			return invalid("rank", fmt.Sprintf("rank %v outside [0, 1]", *d.Rank))
		}
	}
	if n&needRanks != 0 {
		if len(d.Ranks) == 0 {
			return missing("ranks")
		}
		for i, r := range d.Ranks {
			if r < 0 || r > 1 {
				return invalid(fmt.Sprintf("ranks[%d]", i), fmt.Sprintf("rank %v outside [0, 1]", r))
			}
		}
	}
	if n&needRange != 0 {
		if d.Min == nil {
			return missing("min")
		}
		if d.Max == nil {
			return missing("max")
		}
		if *d.Min > *d.Max {
			return invalid("min", fmt.Sprintf("min %v is greater than max %v", *d.Min, *d.Max))
		}
	}
	if n&needDataType != 0 {
		switch d.DataType {
		case "":
			return missing("data_type")
		case ir.TypeIntegral, ir.TypeFractional, ir.TypeNumeric, ir.TypeBoolean, ir.TypeString:
		default:
			return invalid("data_type", fmt.Sprintf("unknown type class %q", d.DataType))
		}
	}
	if n&needSchema != 0 && len(d.Columns) == 0 && len(d.Schema) == 0 {
		return missing("columns")
	}
	if n&needAssert != 0 && strings.TrimSpace(d.Assert) == "" {
		return missing("assert")
	}
	return nil
}
