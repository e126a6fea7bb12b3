package querysql

import (
	"database/sql"
	"fmt"
	"regexp"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/mattn/go-sqlite3"
)

const (
	// DriverSQLite is go-sqlite3 with a REGEXP function backed by Go's
	// regexp package.
	DriverSQLite = "sqlite3_verity"

	// DriverPostgres is the pgx database/sql driver.
	DriverPostgres = "pgx"
)

var patternCache sync.Map // pattern -> *regexp.Regexp

func init() {
	sql.Register(DriverSQLite, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("regexp", regexpMatch, true)
		},
	})
}

// regexpMatch implements "value REGEXP pattern", which SQLite invokes as
// regexp(pattern, value). NULL values never match.
func regexpMatch(pattern string, value any) (bool, error) {
	var s string
	switch v := value.(type) {
	case nil:
		return false, nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	patternCache.Store(pattern, re)
	return re, nil
}
