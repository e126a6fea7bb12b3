package dataset

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/roach88/verity/internal/ir"
	"github.com/roach88/verity/internal/querysql"
)

// Declared column types.
const (
	TypeBigInt  = "BIGINT"
	TypeDouble  = "DOUBLE"
	TypeVarchar = "VARCHAR"
)

// Dataset describes a loaded table.
type Dataset struct {
	ID       ir.DatasetID
	Table    string
	Columns  []string
	Schema   map[string]string
	RowCount int64
}

// OpenMemory opens a private in-memory SQLite database with the REGEXP
// function registered.
//
// The pool is pinned to a single connection: every connection to
// ":memory:" is a separate database.
func OpenMemory() (*sql.DB, error) {
	db, err := sql.Open(querysql.DriverSQLite, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to in-memory database: %w", err)
	}
	return db, nil
}

// LoadFile loads a CSV file. The table is named after the file unless table
// is non-empty.
func LoadFile(ctx context.Context, db *sql.DB, table, path string) (*Dataset, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".csv" {
		return nil, fmt.Errorf("unsupported data file %q: only .csv is supported", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	if table == "" {
		table = TableName(path)
	}
	return LoadCSV(ctx, db, table, f)
}

// TableName derives a table name from a file path.
func TableName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	for _, r := range base {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "data"
	}
	return b.String()
}

// LoadCSV loads CSV data with a header row. Empty cells are NULL.
func LoadCSV(ctx context.Context, db *sql.DB, table string, r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows [][]any
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		row := make([]any, len(record))
		for i, cell := range record {
			if cell == "" {
				continue
			}
			row[i] = cell
		}
		rows = append(rows, row)
	}
	return LoadRecords(ctx, db, table, header, rows)
}

// LoadRecords creates table from in-memory rows. Cells may be nil (NULL),
// strings, integers, floats or booleans; each row must have one cell per
// column.
func LoadRecords(ctx context.Context, db *sql.DB, table string, columns []string, rows [][]any) (*Dataset, error) {
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if err := validateColumns(columns); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", i+1, len(row), len(columns))
		}
	}

	types := inferTypes(columns, rows)
	typed := make([][]any, len(rows))
	for i, row := range rows {
		out := make([]any, len(row))
		for j, cell := range row {
			v, err := convert(cell, types[j])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i+1, columns[j], err)
			}
			out[j] = v
		}
		typed[i] = out
	}

	id, err := fingerprint(columns, types, typed)
	if err != nil {
		return nil, fmt.Errorf("fingerprint dataset: %w", err)
	}

	if err := createTable(ctx, db, table, columns, types, typed); err != nil {
		return nil, err
	}

	schema := make(map[string]string, len(columns))
	for i, c := range columns {
		schema[c] = types[i]
	}
	return &Dataset{
		ID:       id,
		Table:    table,
		Columns:  append([]string(nil), columns...),
		Schema:   schema,
		RowCount: int64(len(rows)),
	}, nil
}

func validateColumns(columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("at least one column is required")
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("empty column name")
		}
		key := strings.ToLower(c)
		if seen[key] {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[key] = true
	}
	return nil
}

// inferTypes picks the narrowest type every non-null cell of a column fits.
// Columns with no values are VARCHAR.
func inferTypes(columns []string, rows [][]any) []string {
	types := make([]string, len(columns))
	for j := range columns {
		integral, numeric, seen := true, true, false
		for _, row := range rows {
			cell := row[j]
			if cell == nil {
				continue
			}
			seen = true
			switch v := cell.(type) {
			case int, int8, int16, int32, int64, uint8, uint16, uint32:
			case float32, float64:
				f := cast.ToFloat64(v)
				if f != math.Trunc(f) || math.IsInf(f, 0) {
					integral = false
				}
			case string:
				s := strings.TrimSpace(v)
				if _, err := strconv.ParseInt(s, 10, 64); err != nil {
					integral = false
					if _, err := strconv.ParseFloat(s, 64); err != nil {
						numeric = false
					}
				}
			default:
				integral, numeric = false, false
			}
		}
		switch {
		case !seen || !numeric:
			types[j] = TypeVarchar
		case integral:
			types[j] = TypeBigInt
		default:
			types[j] = TypeDouble
		}
	}
	return types
}

func convert(cell any, typ string) (any, error) {
	if cell == nil {
		return nil, nil
	}
	if s, ok := cell.(string); ok && typ != TypeVarchar {
		cell = strings.TrimSpace(s)
	}
	switch typ {
	case TypeBigInt:
		return cast.ToInt64E(cell)
	case TypeDouble:
		return cast.ToFloat64E(cell)
	}
	return cast.ToStringE(cell)
}

// fingerprint hashes the header, the declared types and every row.
func fingerprint(columns, types []string, rows [][]any) (ir.DatasetID, error) {
	f := ir.NewFingerprinter()
	if err := f.Add(columns); err != nil {
		return "", err
	}
	if err := f.Add(types); err != nil {
		return "", err
	}
	record := make([]any, len(columns))
	for _, row := range rows {
		for j, v := range row {
			switch x := v.(type) {
			case nil:
				record[j] = nil
			case int64:
				record[j] = x
			case float64:
				record[j] = strconv.FormatFloat(x, 'g', -1, 64)
			default:
				record[j] = cast.ToString(x)
			}
		}
		if err := f.Add(record); err != nil {
			return "", err
		}
	}
	return f.ID(), nil
}

func createTable(ctx context.Context, db *sql.DB, table string, columns, types []string, rows [][]any) error {
	defs := make([]string, len(columns))
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = querysql.QuoteIdent(c)
		defs[i] = quoted[i] + " " + types[i]
		marks[i] = "?"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+querysql.QuoteIdent(table)); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", querysql.QuoteIdent(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		querysql.QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}
	return nil
}
