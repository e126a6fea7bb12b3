// Package testutil provides deterministic helpers and shared datasets for
// tests.
//
// Fixtures are plain data so that any package can load them without an
// import cycle: tests hand Columns and Rows to dataset.LoadRecords.
package testutil

// Table is an in-memory fixture table. Rows hold nil for NULL.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Clone returns a deep copy of the table so tests may mutate rows.
func (t Table) Clone() Table {
	rows := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = append([]any(nil), r...)
	}
	return Table{Name: t.Name, Columns: append([]string(nil), t.Columns...), Rows: rows}
}

// NumericValues: item and att1 are 1..6, att2 is 0,0,0,5,6,7.
func NumericValues() Table {
	return Table{
		Name:    "numeric_values",
		Columns: []string{"item", "att1", "att2"},
		Rows: [][]any{
			{1, 1, 0},
			{2, 2, 0},
			{3, 3, 0},
			{4, 4, 5},
			{5, 5, 6},
			{6, 6, 7},
		},
	}
}

// CompleteAndIncomplete: att1 has no nulls, att2 has two.
func CompleteAndIncomplete() Table {
	return Table{
		Name:    "complete_and_incomplete",
		Columns: []string{"item", "att1", "att2"},
		Rows: [][]any{
			{1, "a", "f"},
			{2, "b", "d"},
			{3, "a", nil},
			{4, "a", "f"},
			{5, "b", nil},
			{6, "a", "f"},
		},
	}
}

// DistinctValues: att1 has values a,a,null,b,b,c.
func DistinctValues() Table {
	return Table{
		Name:    "distinct_values",
		Columns: []string{"att1", "att2"},
		Rows: [][]any{
			{"a", nil},
			{"a", nil},
			{nil, "x"},
			{"b", "x"},
			{"b", "x"},
			{"c", "y"},
		},
	}
}

// UniqueColumns covers every combination of unique, non-unique and null
// columns used by uniqueness tests.
func UniqueColumns() Table {
	return Table{
		Name: "unique_columns",
		Columns: []string{
			"uniqueCol",
			"nonUnique",
			"nonUniqueWithNulls",
			"uniqueWithNulls",
			"onlyUniqueWithOtherNonUnique",
			"halfUniqueCombinedWithNonUnique",
		},
		Rows: [][]any{
			{1, 0, 3, 1, 5, 0},
			{2, 0, 3, 2, 6, 0},
			{3, 0, 3, nil, 7, 0},
			{4, 5, nil, 3, 0, 4},
			{5, 6, nil, 4, 0, 5},
			{6, 7, nil, 5, 0, 6},
		},
	}
}

// Emails: one valid address, one without a top-level domain.
func Emails() Table {
	return Table{
		Name:    "emails",
		Columns: []string{"value", "type"},
		Rows: [][]any{
			{"someone@somewhere.org", "valid"},
			{"someone@else", "invalid"},
		},
	}
}

// URLs: one valid URL, one with a space after the scheme.
func URLs() Table {
	return Table{
		Name:    "urls",
		Columns: []string{"value", "type"},
		Rows: [][]any{
			{"https://www.example.com/foo/?bar=baz&inga=42&quux", "valid"},
			{"http:// shouldfail.com", "invalid"},
		},
	}
}

// CreditCards: one valid card number, one with an unknown issuer prefix.
func CreditCards() Table {
	return Table{
		Name:    "credit_cards",
		Columns: []string{"value", "type"},
		Rows: [][]any{
			{"4111 1111 1111 1111", "valid"},
			{"9999888877776666", "invalid"},
		},
	}
}

// SocialSecurityNumbers: one valid number, one without separators.
func SocialSecurityNumbers() Table {
	return Table{
		Name:    "ssns",
		Columns: []string{"value", "type"},
		Rows: [][]any{
			{"123-45-6789", "valid"},
			{"123456789", "invalid"},
		},
	}
}

// Patterns has a single column where half of the values are lowercase words.
func Patterns() Table {
	return Table{
		Name:    "patterns",
		Columns: []string{"someCol"},
		Rows: [][]any{
			{"abc"},
			{"def"},
			{"ghi"},
			{"ABC"},
			{"123"},
			{"a b"},
		},
	}
}

// Mixed holds columns of different data type classes.
func Mixed() Table {
	return Table{
		Name:    "mixed",
		Columns: []string{"ints", "fracs", "words", "mixed", "flags"},
		Rows: [][]any{
			{1, 1.5, "a", "1", "true"},
			{2, 2.25, "b", "2.5", "false"},
			{3, 3.0, "c", "x", "true"},
			{4, nil, nil, "true", nil},
		},
	}
}
