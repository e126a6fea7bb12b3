package querysql

import (
	"fmt"
	"strings"
)

// Dialect selects the SQL flavour a compiler emits.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

func (d Dialect) String() string {
	switch d {
	case DialectSQLite:
		return "sqlite"
	case DialectPostgres:
		return "postgres"
	}
	return fmt.Sprintf("dialect(%d)", int(d))
}

// ParseDialect maps a dialect name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	}
	return 0, fmt.Errorf("unknown SQL dialect %q", name)
}

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == DialectPostgres {
		return DriverPostgres
	}
	return DriverSQLite
}

func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d Dialect) regexMatch(expr, pattern string) string {
	if d == DialectPostgres {
		return fmt.Sprintf("%s ~ %s", expr, pattern)
	}
	return fmt.Sprintf("%s REGEXP %s", expr, pattern)
}

// numeric widens integer columns so averages are never truncated.
func (d Dialect) numeric(col string) string {
	if d == DialectPostgres {
		return fmt.Sprintf("CAST(%s AS DOUBLE PRECISION)", col)
	}
	return fmt.Sprintf("CAST(%s AS REAL)", col)
}

// nonNumeric is true for a value that is not stored as a number. SQLite
// would otherwise coerce text to 0 inside SUM and AVG.
func (d Dialect) nonNumeric(col string) string {
	if d == DialectPostgres {
		return fmt.Sprintf("pg_typeof(%s)::text NOT IN "+
			"('smallint', 'integer', 'bigint', 'numeric', 'real', 'double precision')", col)
	}
	return fmt.Sprintf("typeof(%s) NOT IN ('integer', 'real')", col)
}

func (d Dialect) schemaQuery() string {
	if d == DialectPostgres {
		return "SELECT column_name, UPPER(data_type) FROM information_schema.columns " +
			"WHERE table_name = $1 AND table_schema = current_schema() ORDER BY ordinal_position"
	}
	return "SELECT name, type FROM pragma_table_info(?) ORDER BY cid"
}
