package quantile

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuerySmallExact(t *testing.T) {
	s := New(DefaultEpsilon)
	for _, v := range []float64{1, 2, 3, 4, 5, 6} {
		s.Insert(v)
	}

	tests := []struct {
		rank float64
		want float64
	}{
		{0, 1},
		{0.1, 1},
		{0.5, 4},
		{0.9, 6},
		{1, 6},
	}

	for _, tt := range tests {
		got, err := s.Query(tt.rank)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "rank %v", tt.rank)
	}
}

func TestQueryEmpty(t *testing.T) {
	s := New(0.01)

	_, err := s.Query(0.5)
	assert.ErrorIs(t, err, ErrEmpty)

	_, ok := s.Min()
	assert.False(t, ok)
}

func TestQueryRankOutOfRange(t *testing.T) {
	s := New(0.01)
	s.Insert(1)

	_, err := s.Query(1.5)
	assert.Error(t, err)
	_, err = s.Query(math.NaN())
	assert.Error(t, err)
}

func TestExtremesAreExact(t *testing.T) {
	s := New(0.05)
	r := rand.New(rand.NewSource(7))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < 5000; i++ {
		v := r.NormFloat64() * 100
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		s.Insert(v)
	}

	got, err := s.Query(0)
	require.NoError(t, err)
	assert.Equal(t, lo, got)

	got, err = s.Query(1)
	require.NoError(t, err)
	assert.Equal(t, hi, got)
}

func TestRankErrorBound(t *testing.T) {
	tests := []struct {
		name  string
		eps   float64
		n     int
		order string
	}{
		{"shuffled", 0.01, 10000, "shuffled"},
		{"ascending", 0.01, 10000, "asc"},
		{"descending", 0.01, 10000, "desc"},
		{"coarse", 0.05, 5000, "shuffled"},
		{"fine", 0.001, 20000, "shuffled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := make([]int, tt.n)
			for i := range values {
				values[i] = i + 1
			}
			switch tt.order {
			case "shuffled":
				r := rand.New(rand.NewSource(42))
				r.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
			case "desc":
				for l, r := 0, len(values)-1; l < r; l, r = l+1, r-1 {
					values[l], values[r] = values[r], values[l]
				}
			}

			s := New(tt.eps)
			for _, v := range values {
				s.Insert(float64(v))
			}
			require.Equal(t, int64(tt.n), s.Count())

			bound := tt.eps * float64(tt.n)
			for k := 1; k < 100; k++ {
				rank := float64(k) / 100
				got, err := s.Query(rank)
				require.NoError(t, err)

				// values are 1..n, so a value is its own true rank
				target := float64(targetRank(rank, int64(tt.n)))
				assert.LessOrEqual(t, math.Abs(got-target), bound, "rank %v", rank)
			}
		})
	}
}

func TestCompressionBoundsSpace(t *testing.T) {
	s := New(0.01)
	for i := 0; i < 100000; i++ {
		s.Insert(float64(i % 977))
	}

	assert.Less(t, s.Size(), 2000, "summary should hold far fewer tuples than values")
}

func TestDuplicateValues(t *testing.T) {
	s := New(0.01)
	for i := 0; i < 1000; i++ {
		s.Insert(5)
	}

	got, err := s.Query(0.5)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got)
}

func TestNaNIgnored(t *testing.T) {
	s := New(0.01)
	s.Insert(math.NaN())
	s.Insert(2)

	assert.Equal(t, int64(1), s.Count())
}

func TestNewFallsBackToDefaultEpsilon(t *testing.T) {
	assert.Equal(t, DefaultEpsilon, New(0).Epsilon())
	assert.Equal(t, DefaultEpsilon, New(-1).Epsilon())
	assert.Equal(t, 0.2, New(0.2).Epsilon())
}

func TestTargetRank(t *testing.T) {
	assert.Equal(t, int64(4), targetRank(0.5, 6))
	assert.Equal(t, int64(1), targetRank(0.1, 6))
	assert.Equal(t, int64(6), targetRank(0.9, 6))
	assert.Equal(t, int64(6), targetRank(1, 6))
}
