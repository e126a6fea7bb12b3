package suite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/verity/internal/analysis"
	"github.com/roach88/verity/internal/check"
	"github.com/roach88/verity/internal/dataset"
	"github.com/roach88/verity/internal/engine"
	"github.com/roach88/verity/internal/querysql"
	"github.com/roach88/verity/internal/testutil"
)

func evaluate(t *testing.T, checks []*check.Check) []check.Result {
	t.Helper()
	ctx := context.Background()
	db, err := dataset.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tbl := testutil.NumericValues()
	ds, err := dataset.LoadRecords(ctx, db, tbl.Name, tbl.Columns, tbl.Rows)
	require.NoError(t, err)
	eng := engine.New(db, querysql.DialectSQLite)
	eng.Attach(ds.ID, ds.Table)

	requirers := make([]analysis.Requirer, len(checks))
	for i, c := range checks {
		requirers[i] = c
	}
	src, err := analysis.Run(ctx, eng, nil, ds.ID, analysis.RequiredRequests(requirers...))
	require.NoError(t, err)

	results := make([]check.Result, len(checks))
	for i, c := range checks {
		results[i] = c.Evaluate(src)
	}
	return results
}

func TestLoad_YAMLAndCUEAgree(t *testing.T) {
	for _, file := range []string{"numeric.yaml", "numeric.cue"} {
		t.Run(file, func(t *testing.T) {
			s, err := Load(filepath.Join("testdata", file))
			require.NoError(t, err)
			assert.Equal(t, "numeric", s.Name)
			require.Len(t, s.Checks, 2)

			checks, err := s.Build()
			require.NoError(t, err)
			assert.Equal(t, check.LevelException, checks[0].Level())
			assert.Equal(t, check.LevelWarning, checks[1].Level())

			results := evaluate(t, checks)
			assert.Equal(t, check.StatusSuccess, results[0].Status, "%+v", results[0].Constraints)
			assert.Equal(t, check.StatusWarning, results[1].Status)

			failures := results[1].Failures()
			require.Len(t, failures, 1)
			assert.Contains(t, failures[0].Message, "att2 has zeros")
		})
	}
}

func TestParseYAML_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  string
		field string
	}{
		{"empty", "", ErrCodeNoChecks, ""},
		{"no checks", "name: x\n", ErrCodeNoChecks, "checks"},
		{"unknown field", `
checks:
  - description: a
    constraints:
      - type: is_complete
        colum: att1
`, ErrCodeParse, ""},
		{"unknown type", `
checks:
  - description: a
    constraints:
      - type: is_awesome
        column: att1
`, ErrCodeType, "checks[0].constraints[0].type"},
		{"missing column", `
checks:
  - description: a
    constraints:
      - type: is_complete
`, ErrCodeMissing, "checks[0].constraints[0].column"},
		{"missing assert", `
checks:
  - description: a
    constraints:
      - type: has_mean
        column: att1
`, ErrCodeMissing, "checks[0].constraints[0].assert"},
		{"bad level", `
checks:
  - description: a
    level: fatal
    constraints:
      - type: is_complete
        column: att1
`, ErrCodeLevel, "checks[0].level"},
		{"no constraints", `
checks:
  - description: a
`, ErrCodeNoChecks, "checks[0].constraints"},
		{"unresolved assert reference", `
checks:
  - description: a
    constraints:
      - type: has_size
        assert: size == 6
`, ErrCodeAssert, "checks[0].constraints[0].assert"},
		{"non-boolean assert", `
checks:
  - description: a
    constraints:
      - type: has_size
        assert: value + 1
`, ErrCodeAssert, "checks[0].constraints[0].assert"},
		{"bad pattern", `
checks:
  - description: a
    constraints:
      - type: has_pattern
        column: att1
        pattern: "[a-"
`, ErrCodeInvalid, "checks[0].constraints[0].pattern"},
		{"rank out of range", `
checks:
  - description: a
    constraints:
      - type: has_approx_quantile
        column: att1
        rank: 1.5
        assert: value > 0
`, ErrCodeInvalid, "checks[0].constraints[0].rank"},
		{"inverted range", `
checks:
  - description: a
    constraints:
      - type: is_contained_in_range
        column: att1
        min: 5
        max: 1
`, ErrCodeInvalid, "checks[0].constraints[0].min"},
		{"unknown data type", `
checks:
  - description: a
    constraints:
      - type: has_data_type
        column: att1
        data_type: Date
`, ErrCodeInvalid, "checks[0].constraints[0].data_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.input))
			require.Error(t, err)

			var se *Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code, se.Error())
			if tt.field != "" {
				assert.Equal(t, tt.field, se.Field)
			}
			assert.Equal(t, tt.code, CodeOf(err))
		})
	}
}

func TestParseCUE_ClosedSchema(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "typo.cue"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeSchema, CodeOf(err))
}

func TestParseCUE_SyntaxError(t *testing.T) {
	_, err := ParseCUE([]byte("checks: [{"), "broken.cue")
	require.Error(t, err)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeParse, se.Code)
	assert.Contains(t, se.Error(), "broken.cue")
}

func TestParseCUE_DefaultLevelIsError(t *testing.T) {
	s, err := ParseCUE([]byte(`checks: [{description: "d", constraints: [{type: "is_unique", column: "item"}]}]`), "inline.cue")
	require.NoError(t, err)
	assert.Equal(t, "error", s.Checks[0].Level)
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.Equal(t, ErrCodeNotFound, CodeOf(err))

	path := filepath.Join(t.TempDir(), "suite.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	_, err = Load(path)
	assert.Equal(t, ErrCodeFormat, CodeOf(err))

	assert.Equal(t, ErrCodeGeneric, CodeOf(os.ErrClosed))
}

func TestBuild_OverridesDefaultAssertion(t *testing.T) {
	s, err := ParseYAML([]byte(`
checks:
  - description: half positive
    constraints:
      - type: satisfies
        expression: att2 > 0
        assert: value == 0.5
      - type: is_primary_key
        columns: [item, att1]
      - type: has_schema
        columns: [item]
        schema:
          att1: bigint
`))
	require.NoError(t, err)
	checks, err := s.Build()
	require.NoError(t, err)

	results := evaluate(t, checks)
	assert.Equal(t, check.StatusSuccess, results[0].Status, "%+v", results[0].Constraints)
	assert.Equal(t, "Compliance(att2 > 0)(att2 > 0)", results[0].Constraints[0].Constraint)
}

func TestCompileAssertion(t *testing.T) {
	tests := []struct {
		expr string
		in   float64
		want bool
	}{
		{"value >= 0.9", 0.95, true},
		{"value >= 0.9", 0.5, false},
		{"value == 6", 6, true},
		{"value > 0 && value < 7", 3.5, true},
		{"value < 0 || value > 7", 3.5, false},
	}
	for _, tt := range tests {
		a, err := compileAssertion(tt.expr)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, a(tt.in), "%s with %v", tt.expr, tt.in)
	}
}

func TestCompileAssertion_RejectsNonBoolean(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr string
	}{
		{"arithmetic", "value + 1", "must be a boolean expression"},
		{"string", `"yes"`, "must be a boolean expression"},
		{"syntax", "value >=", "compile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileAssertion(tt.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
