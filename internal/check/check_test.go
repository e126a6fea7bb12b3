package check

import (
	"context"
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/verity/internal/analysis"
	"github.com/roach88/verity/internal/dataset"
	"github.com/roach88/verity/internal/engine"
	"github.com/roach88/verity/internal/querysql"
	"github.com/roach88/verity/internal/store"
	"github.com/roach88/verity/internal/testutil"
)

// runChecks loads tbl, resolves the union of the checks' requests once and
// returns the resulting context.
func runChecks(t *testing.T, tbl testutil.Table, checks ...*Check) *analysis.Context {
	t.Helper()
	ctx := context.Background()

	db, err := dataset.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ds, err := dataset.LoadRecords(ctx, db, tbl.Name, tbl.Columns, tbl.Rows)
	require.NoError(t, err)

	eng := engine.New(db, querysql.DialectSQLite)
	eng.Attach(ds.ID, ds.Table)

	requirers := make([]analysis.Requirer, len(checks))
	for i, c := range checks {
		requirers[i] = c
	}
	actx, err := analysis.Run(ctx, eng, store.NewMemory(), ds.ID, analysis.RequiredRequests(requirers...))
	require.NoError(t, err)
	return actx
}

func assertStatus(t *testing.T, c *Check, src MetricSource, want Status) {
	t.Helper()
	res := c.Evaluate(src)
	assert.Equal(t, want, res.Status, "check %q: %+v", c.Description(), res.Constraints)
}

func TestHasSchema(t *testing.T) {
	check1 := New(LevelException, "group-1").HasSchema(func(s map[string]string) bool {
		_, ok := s["item"]
		return ok
	})
	check2 := New(LevelException, "group-2").HasSchema(func(s map[string]string) bool {
		for _, col := range []string{"att1", "att2", "attr3"} {
			if _, ok := s[col]; !ok {
				return false
			}
		}
		return true
	})
	check3 := New(LevelException, "group-3").HasSchema(func(s map[string]string) bool {
		_, ok1 := s["att1"]
		_, ok2 := s["att2"]
		return ok1 && ok2
	})
	check4 := New(LevelException, "group-4").HasSchema(func(s map[string]string) bool {
		return maps.Equal(s, map[string]string{"item": "BIGINT", "att1": "VARCHAR", "att2": "VARCHAR"})
	})

	src := runChecks(t, testutil.CompleteAndIncomplete(), check1, check2, check3, check4)

	assertStatus(t, check1, src, StatusSuccess)
	assertStatus(t, check2, src, StatusError)
	assertStatus(t, check3, src, StatusSuccess)
	assertStatus(t, check4, src, StatusSuccess)
}

func TestHasSchema_AssertionGetsCopy(t *testing.T) {
	c := New(LevelException, "mutates").HasSchema(func(s map[string]string) bool {
		delete(s, "item")
		return true
	})
	src := runChecks(t, testutil.CompleteAndIncomplete(), c)

	c.Evaluate(src)
	assert.Contains(t, src.Metadata().Schema, "item")
}

func TestCompleteness(t *testing.T) {
	check1 := New(LevelException, "group-1").
		IsComplete("att1").
		HasCompleteness("att1", Equals(1))
	check2 := New(LevelException, "group-2-E").
		IsComplete("att2").
		HasCompleteness("att1", func(v float64) bool { return v > 0.8 })
	check3 := New(LevelWarning, "group-2-W").
		IsComplete("att2").
		HasCompleteness("att1", func(v float64) bool { return v > 0.8 })

	src := runChecks(t, testutil.CompleteAndIncomplete(), check1, check2, check3)

	assertStatus(t, check1, src, StatusSuccess)
	assertStatus(t, check2, src, StatusError)
	assertStatus(t, check3, src, StatusWarning)
}

func TestCompleteness_Where(t *testing.T) {
	check1 := New(LevelException, "group-1").
		IsComplete("att2").Where("item<3").
		HasCompleteness("att2", Equals(0.5)).Where("item>=3")
	check2 := New(LevelException, "group-2").
		IsComplete("att2").Where("item<3").
		HasCompleteness("att2", Equals(1)).Where("item<3")

	src := runChecks(t, testutil.CompleteAndIncomplete(), check1, check2)

	assertStatus(t, check1, src, StatusSuccess)
	assertStatus(t, check2, src, StatusSuccess)
}

func TestAreComplete(t *testing.T) {
	strict := New(LevelException, "strict").AreComplete([]string{"att1", "att2"})
	loose := New(LevelException, "loose").AreComplete([]string{"item", "att2"}, WithAssertion(Equals(4.0/6.0)))

	src := runChecks(t, testutil.CompleteAndIncomplete(), strict, loose)

	assertStatus(t, strict, src, StatusError)
	assertStatus(t, loose, src, StatusSuccess)
}

func TestHasSize(t *testing.T) {
	check1 := New(LevelException, "group-1").HasSize(Equals(6))
	check2 := New(LevelException, "group-2").HasSize(func(s float64) bool { return s > 6 })
	check3 := New(LevelException, "group-3").HasSize(Equals(3)).Where("item>3")

	src := runChecks(t, testutil.CompleteAndIncomplete(), check1, check2, check3)

	assertStatus(t, check1, src, StatusSuccess)
	assertStatus(t, check2, src, StatusError)
	assertStatus(t, check3, src, StatusSuccess)
}

func TestHasSize_Levels(t *testing.T) {
	const nrows = 6
	check1 := New(LevelException, "group-1-S-1").HasSize(Equals(nrows))
	check2 := New(LevelWarning, "group-1-S-2").HasSize(Equals(nrows))
	check3 := New(LevelException, "group-1-E").HasSize(func(r float64) bool { return r != nrows })
	check4 := New(LevelWarning, "group-1-W").HasSize(func(r float64) bool { return r != nrows })
	check5 := New(LevelWarning, "group-1-W-range").HasSize(func(r float64) bool { return r > 0 && r < nrows+1 })

	src := runChecks(t, testutil.NumericValues(), check1, check2, check3, check4, check5)

	assertStatus(t, check1, src, StatusSuccess)
	assertStatus(t, check2, src, StatusSuccess)
	assertStatus(t, check3, src, StatusError)
	assertStatus(t, check4, src, StatusWarning)
	assertStatus(t, check5, src, StatusSuccess)
}

func TestHasSize_UnfilteredNeedsNoRequest(t *testing.T) {
	c := New(LevelException, "size").HasSize(Equals(6))
	assert.Empty(t, c.RequiredRequests())

	filtered := c.Where("item > 3")
	require.Len(t, filtered.RequiredRequests(), 1)
	assert.Equal(t, "item > 3", filtered.RequiredRequests()[0].Filter)
}

func TestUniquenessAndDistinctness(t *testing.T) {
	uniqueItem := New(LevelException, "unique-item").IsUnique("item")
	uniqueAtt1 := New(LevelException, "unique-att1").IsUnique("att1")
	uniqueAtt1Where := New(LevelException, "unique-att1-where").IsUnique("att1").Where("item<3")
	distinctItem := New(LevelException, "distinct-item").IsDistinct("item")
	distinctAtt1 := New(LevelException, "distinct-att1").IsDistinct("att1")
	distinctAtt1Where := New(LevelException, "distinct-att1-where").IsDistinct("att1").Where("item<3")
	pk := New(LevelException, "pk").IsPrimaryKey("item", []string{"att1"})

	src := runChecks(t, testutil.CompleteAndIncomplete(),
		uniqueItem, uniqueAtt1, uniqueAtt1Where, distinctItem, distinctAtt1, distinctAtt1Where, pk)

	assertStatus(t, uniqueItem, src, StatusSuccess)
	assertStatus(t, uniqueAtt1, src, StatusError)
	assertStatus(t, uniqueAtt1Where, src, StatusSuccess)
	assertStatus(t, distinctItem, src, StatusSuccess)
	assertStatus(t, distinctAtt1, src, StatusError)
	assertStatus(t, distinctAtt1Where, src, StatusSuccess)
	assertStatus(t, pk, src, StatusSuccess)
}

func TestHasUniqueness(t *testing.T) {
	c := New(LevelException, "group-1-u").
		HasUniqueness([]string{"nonUnique"}, Equals(0.5)).
		HasUniqueness([]string{"nonUnique"}, func(f float64) bool { return f < 0.6 }).
		HasUniqueness([]string{"halfUniqueCombinedWithNonUnique", "nonUnique"}, Equals(0.5)).
		HasUniqueness([]string{"onlyUniqueWithOtherNonUnique", "nonUnique"}, IsOne).
		HasUniqueness([]string{"uniqueCol"}, IsOne).
		HasUniqueness([]string{"uniqueWithNulls"}, IsOne).
		HasUniqueness([]string{"nonUnique", "halfUniqueCombinedWithNonUnique"}, IsOne).Where("nonUnique > 0").
		HasUniqueness([]string{"nonUnique", "halfUniqueCombinedWithNonUnique"}, IsOne, WithHint("hint")).Where("nonUnique > 0").
		HasUniqueness([]string{"halfUniqueCombinedWithNonUnique"}, IsOne).Where("nonUnique > 0").
		HasUniqueness([]string{"halfUniqueCombinedWithNonUnique"}, IsOne, WithHint("hint")).Where("nonUnique > 0")

	src := runChecks(t, testutil.UniqueColumns(), c)
	res := c.Evaluate(src)

	assert.Equal(t, StatusSuccess, res.Status)
	require.Len(t, res.Constraints, 10)
	for i, cr := range res.Constraints {
		assert.Equal(t, ConstraintSuccess, cr.Status, "constraint %d (%s): %s", i, cr.Constraint, cr.Message)
	}
}

func TestHasUniqueness_DuplicateNullsAreNotUnique(t *testing.T) {
	c := New(LevelException, "nulls").HasUniqueness([]string{"nonUniqueWithNulls"}, Equals(0))

	src := runChecks(t, testutil.UniqueColumns(), c)

	assertStatus(t, c, src, StatusSuccess)
}

func TestBasicStats(t *testing.T) {
	base := New(LevelException, "a description")
	checks := []*Check{
		base.HasMin("att1", Equals(1)),
		base.HasMax("att1", Equals(6)),
		base.HasMean("att1", Equals(3.5)),
		base.HasStandardDeviation("att1", ApproxEquals(1.870829, 1e-6)),
		base.HasSum("att1", Equals(21)),
		base.HasApproxQuantile("att1", 0.5, Equals(4)),
		base.HasApproxQuantile("att1", 0.1, Equals(1)),
		base.HasApproxQuantile("att1", 0.9, Equals(6)),
	}

	src := runChecks(t, testutil.NumericValues(), checks...)

	for _, c := range checks {
		assertStatus(t, c, src, StatusSuccess)
	}
}

func TestHasApproxQuantiles(t *testing.T) {
	c := New(LevelException, "quantiles").HasApproxQuantiles("att1", []float64{0.1, 0.5, 0.9},
		func(q map[float64]float64) bool {
			return q[0.1] == 1 && q[0.5] == 4 && q[0.9] == 6
		})

	src := runChecks(t, testutil.NumericValues(), c)

	assert.Len(t, c.RequiredRequests(), 3)
	assertStatus(t, c, src, StatusSuccess)
}

func TestHasMean_Where(t *testing.T) {
	mean := New(LevelException, "a").HasMean("att1", Equals(3.5))
	filtered := New(LevelException, "a").HasMean("att1", Equals(5)).Where("att2 > 0")

	src := runChecks(t, testutil.NumericValues(), mean, filtered)

	assertStatus(t, mean, src, StatusSuccess)
	assertStatus(t, filtered, src, StatusSuccess)
}

func TestBasicStats_TextColumnHasNoValue(t *testing.T) {
	checks := []*Check{
		New(LevelException, "mean").HasMean("att1", Equals(0)),
		New(LevelException, "sum").HasSum("att1", Equals(0)),
	}

	src := runChecks(t, testutil.CompleteAndIncomplete(), checks...)

	for _, c := range checks {
		res := c.Evaluate(src)
		assert.Equal(t, StatusError, res.Status)
		require.Len(t, res.Constraints, 1)
		assert.Equal(t, ReasonInsufficientData, res.Constraints[0].Reason)
		assert.Contains(t, res.Constraints[0].Message, "6 non-numeric value(s)")
	}
}

func TestSatisfies(t *testing.T) {
	check1 := New(LevelException, "group-1").Satisfies("att1 > 0", "rule1")
	check2 := New(LevelException, "group-2-to-fail").Satisfies("att1 > 3", "rule2")
	check3 := New(LevelException, "group-2-to-succeed").Satisfies("att1 > 3", "rule3", WithAssertion(Equals(0.5)))

	src := runChecks(t, testutil.NumericValues(), check1, check2, check3)

	assertStatus(t, check1, src, StatusSuccess)
	assertStatus(t, check2, src, StatusError)
	assertStatus(t, check3, src, StatusSuccess)
}

func TestSatisfies_Where(t *testing.T) {
	succeed := New(LevelException, "group-1").Satisfies("att1 < att2", "rule1").Where("att1 > 3")
	fail := New(LevelException, "group-1").Satisfies("att2 > 0", "rule2").Where("att1 > 0")
	partial := New(LevelException, "group-1").
		Satisfies("att2 > 0", "rule3", WithAssertion(Equals(0.5))).Where("att1 > 0")

	src := runChecks(t, testutil.NumericValues(), succeed, fail, partial)

	assertStatus(t, succeed, src, StatusSuccess)
	assertStatus(t, fail, src, StatusError)
	assertStatus(t, partial, src, StatusSuccess)
}

func TestNonNegativeAndPositive(t *testing.T) {
	nn := New(LevelException, "a").IsNonNegative("att1")
	pos := New(LevelException, "a").IsPositive("att1")
	posAtt2 := New(LevelException, "a").IsPositive("att2")
	nnAtt2 := New(LevelException, "a").IsNonNegative("att2")

	src := runChecks(t, testutil.NumericValues(), nn, pos, posAtt2, nnAtt2)

	assertStatus(t, nn, src, StatusSuccess)
	assertStatus(t, pos, src, StatusSuccess)
	assertStatus(t, posAtt2, src, StatusError)
	assertStatus(t, nnAtt2, src, StatusSuccess)
}

func TestIsContainedIn(t *testing.T) {
	all := New(LevelException, "a").IsContainedIn("att1", []string{"a", "b", "c"})
	missing := New(LevelException, "a").IsContainedIn("att1", []string{"a", "b"})
	partial := New(LevelException, "a").IsContainedIn("att1", []string{"a"}, WithAssertion(Equals(0.5)))

	src := runChecks(t, testutil.DistinctValues(), all, missing, partial)

	assertStatus(t, all, src, StatusSuccess)
	assertStatus(t, missing, src, StatusError)
	assertStatus(t, partial, src, StatusSuccess)
}

func TestIsContainedIn_QuotesValues(t *testing.T) {
	tbl := testutil.Table{
		Name:    "quotes",
		Columns: []string{"name"},
		Rows:    [][]any{{"O'Brien"}, {"Smith"}},
	}
	c := New(LevelException, "quotes").IsContainedIn("name", []string{"O'Brien", "Smith"})

	src := runChecks(t, tbl, c)

	assertStatus(t, c, src, StatusSuccess)
}

func TestIsContainedInRange(t *testing.T) {
	tests := []struct {
		name  string
		lower float64
		upper float64
		opts  []ConstraintOption
		want  Status
	}{
		{"nr1", 0, 7, nil, StatusSuccess},
		{"nr2", 1, 7, nil, StatusError},
		{"nr3", 0, 6, nil, StatusError},
		{"nr4", 0, 7, []ConstraintOption{ExclusiveLower(), ExclusiveUpper()}, StatusError},
		{"nr5", -1, 8, []ConstraintOption{ExclusiveLower(), ExclusiveUpper()}, StatusSuccess},
		{"nr6", 0, 7, []ConstraintOption{ExclusiveUpper()}, StatusError},
		{"nr7", 0, 8, []ConstraintOption{ExclusiveUpper()}, StatusSuccess},
		{"nr8", 0, 7, []ConstraintOption{ExclusiveLower()}, StatusError},
		{"nr9", -1, 7, []ConstraintOption{ExclusiveLower()}, StatusSuccess},
	}

	checks := make([]*Check, len(tests))
	for i, tt := range tests {
		checks[i] = New(LevelException, tt.name).IsContainedInRange("att2", tt.lower, tt.upper, tt.opts...)
	}
	src := runChecks(t, testutil.NumericValues(), checks...)

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertStatus(t, checks[i], src, tt.want)
		})
	}
}

func TestHasPattern(t *testing.T) {
	emails := testutil.Emails()
	onlyValid := testutil.Table{Name: "valid_emails", Columns: emails.Columns, Rows: emails.Rows[:1]}

	valid := New(LevelException, "some description").HasPattern("value", PatternEmail)
	assertStatus(t, valid, runChecks(t, onlyValid, valid), StatusSuccess)

	mixed := New(LevelException, "some description").HasPattern("value", PatternEmail)
	half := New(LevelException, "some description").HasPattern("value", PatternEmail, WithAssertion(Equals(0.5)))
	filtered := New(LevelException, "some description").HasPattern("value", PatternEmail).Where("type == 'valid'")

	src := runChecks(t, emails, mixed, half, filtered)

	assertStatus(t, mixed, src, StatusError)
	assertStatus(t, half, src, StatusSuccess)
	assertStatus(t, filtered, src, StatusSuccess)
}

func TestContainsBuilders(t *testing.T) {
	tests := []struct {
		name  string
		table testutil.Table
		add   func(*Check, ...ConstraintOption) *Check
	}{
		{"credit card", testutil.CreditCards(), func(c *Check, o ...ConstraintOption) *Check {
			return c.ContainsCreditCardNumber("value", o...)
		}},
		{"email", testutil.Emails(), func(c *Check, o ...ConstraintOption) *Check {
			return c.ContainsEmail("value", o...)
		}},
		{"url", testutil.URLs(), func(c *Check, o ...ConstraintOption) *Check {
			return c.ContainsURL("value", o...)
		}},
		{"ssn", testutil.SocialSecurityNumbers(), func(c *Check, o ...ConstraintOption) *Check {
			return c.ContainsSocialSecurityNumber("value", o...)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			all := tt.add(New(LevelException, "all"))
			half := tt.add(New(LevelException, "half"), WithAssertion(Equals(0.5)))
			valid := tt.add(New(LevelException, "valid"), WithAssertion(Equals(1))).Where("type == 'valid'")

			src := runChecks(t, tt.table, all, half, valid)

			assertStatus(t, all, src, StatusError)
			assertStatus(t, half, src, StatusSuccess)
			assertStatus(t, valid, src, StatusSuccess)
		})
	}
}

func TestHasDataType(t *testing.T) {
	ints := New(LevelException, "ints").HasDataType("ints", "Integral")
	mixed := New(LevelException, "mixed").HasDataType("mixed", "Numeric", WithAssertion(Equals(0.5)))
	words := New(LevelException, "words").HasDataType("words", "Numeric")

	src := runChecks(t, testutil.Mixed(), ints, mixed, words)

	assertStatus(t, ints, src, StatusSuccess)
	assertStatus(t, mixed, src, StatusSuccess)
	assertStatus(t, words, src, StatusError)
}
