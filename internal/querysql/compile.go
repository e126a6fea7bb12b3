package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/verity/internal/queryir"
)

// Result column aliases for GroupScan queries.
const (
	GroupsAlias  = "n_groups"
	SinglesAlias = "n_singles"
	RowsAlias    = "n_rows"
)

// SQLCompiler compiles scans to parameterized SQL for one table.
//
// Patterns are always parameterized. Filters and compliance predicates are
// SQL expressions supplied by the check author and are embedded verbatim,
// wrapped in parentheses.
type SQLCompiler struct {
	Dialect Dialect
	Table   string
}

// NewSQLCompiler creates a compiler for table in the given dialect.
func NewSQLCompiler(dialect Dialect, table string) *SQLCompiler {
	return &SQLCompiler{Dialect: dialect, Table: table}
}

// Compile converts a scan to parameterized SQL.
// Returns (sql, params, error) tuple.
//
// AggregateScan results are one row with one column per aggregate, aliased
// a0, a1, ... in aggregate order. GroupScan results are one row with the
// GroupsAlias, SinglesAlias and RowsAlias columns. ColumnScan results are the
// non-null values of the column in no particular order.
func (c *SQLCompiler) Compile(s queryir.Scan) (string, []any, error) {
	if s == nil {
		return "", nil, fmt.Errorf("cannot compile nil scan")
	}
	if c.Table == "" {
		return "", nil, fmt.Errorf("table is required")
	}

	switch scan := s.(type) {
	case *queryir.AggregateScan:
		return c.compileAggregate(scan)
	case *queryir.GroupScan:
		return c.compileGroup(scan)
	case *queryir.ColumnScan:
		return c.compileColumn(scan)
	default:
		return "", nil, fmt.Errorf("unsupported scan type: %T", s)
	}
}

// AggregateAlias returns the result column alias of the i-th aggregate.
func AggregateAlias(i int) string {
	return fmt.Sprintf("a%d", i)
}

func (c *SQLCompiler) compileAggregate(s *queryir.AggregateScan) (string, []any, error) {
	if len(s.Aggregates) == 0 {
		return "", nil, fmt.Errorf("aggregate scan has no aggregates")
	}

	var params []any
	exprs := make([]string, len(s.Aggregates))
	for i, a := range s.Aggregates {
		expr, err := c.compileAggFunc(a, &params)
		if err != nil {
			return "", nil, err
		}
		exprs[i] = fmt.Sprintf("%s AS %s", expr, AggregateAlias(i))
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s",
		strings.Join(exprs, ", "),
		QuoteIdent(c.Table),
		whereClause(s.Where))
	return sql, params, nil
}

func (c *SQLCompiler) compileAggFunc(a queryir.Aggregate, params *[]any) (string, error) {
	col := QuoteIdent(a.Column)
	switch a.Func {
	case queryir.AggRowCount:
		return "COUNT(*)", nil
	case queryir.AggNonNull:
		return fmt.Sprintf("COUNT(%s)", col), nil
	case queryir.AggMin:
		return fmt.Sprintf("MIN(%s)", col), nil
	case queryir.AggMax:
		return fmt.Sprintf("MAX(%s)", col), nil
	case queryir.AggAvg:
		return fmt.Sprintf("AVG(%s)", c.Dialect.numeric(col)), nil
	case queryir.AggSum:
		return fmt.Sprintf("SUM(%s)", col), nil
	case queryir.AggNonNumeric:
		return fmt.Sprintf("COALESCE(SUM(CASE WHEN %s IS NOT NULL AND %s THEN 1 ELSE 0 END), 0)",
			col, c.Dialect.nonNumeric(col)), nil
	case queryir.AggMatches:
		*params = append(*params, a.Arg)
		match := c.Dialect.regexMatch(fmt.Sprintf("CAST(%s AS TEXT)", col), c.Dialect.placeholder(len(*params)))
		return fmt.Sprintf("COALESCE(SUM(CASE WHEN %s IS NULL THEN 0 WHEN %s THEN 1 ELSE 0 END), 0)", col, match), nil
	case queryir.AggSatisfies:
		return fmt.Sprintf("COALESCE(SUM(CASE WHEN (%s) THEN 1 ELSE 0 END), 0)", a.Arg), nil
	}
	return "", fmt.Errorf("unsupported aggregate: %s", a.Func)
}

func (c *SQLCompiler) compileGroup(s *queryir.GroupScan) (string, []any, error) {
	if len(s.Columns) == 0 {
		return "", nil, fmt.Errorf("group scan has no columns")
	}
	cols := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		cols[i] = QuoteIdent(col)
	}

	inner := fmt.Sprintf("SELECT COUNT(*) AS cnt FROM %s%s GROUP BY %s",
		QuoteIdent(c.Table),
		whereClause(s.Where),
		strings.Join(cols, ", "))

	sql := fmt.Sprintf("SELECT COUNT(*) AS %s, "+
		"COALESCE(SUM(CASE WHEN cnt = 1 THEN 1 ELSE 0 END), 0) AS %s, "+
		"COALESCE(SUM(cnt), 0) AS %s FROM (%s) grouped",
		GroupsAlias, SinglesAlias, RowsAlias, inner)
	return sql, nil, nil
}

// compileColumn streams the column in storage order. The sketch is fed
// unsorted input; its answers stay within the rank bound for any order.
func (c *SQLCompiler) compileColumn(s *queryir.ColumnScan) (string, []any, error) {
	if s.Column == "" {
		return "", nil, fmt.Errorf("column scan has no column")
	}
	col := QuoteIdent(s.Column)
	cond := fmt.Sprintf("%s IS NOT NULL", col)
	if s.Where != "" {
		cond = fmt.Sprintf("(%s) AND %s", s.Where, cond)
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s", col, QuoteIdent(c.Table), cond)
	return sql, nil, nil
}

// CompileRowCount returns the query for the table's total row count.
func (c *SQLCompiler) CompileRowCount() (string, []any) {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", QuoteIdent(c.Table)), nil
}

// CompileSchema returns the query listing (column name, declared type) in
// declaration order.
func (c *SQLCompiler) CompileSchema() (string, []any) {
	return c.Dialect.schemaQuery(), []any{c.Table}
}

func whereClause(filter string) string {
	if filter == "" {
		return ""
	}
	return " WHERE (" + filter + ")"
}

// QuoteIdent quotes an identifier with double quotes, doubling embedded
// quotes. Both SQLite and Postgres accept this form.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral quotes a string literal with single quotes.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
