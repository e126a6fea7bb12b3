package quantile

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// DefaultEpsilon is the relative rank error used when none is configured.
const DefaultEpsilon = 0.01

// ErrEmpty is returned when a rank is queried before any value was inserted.
var ErrEmpty = errors.New("quantile summary is empty")

// tuple is one GK summary entry. g is the rank gap to the previous tuple and
// delta bounds the uncertainty of this tuple's maximum rank.
type tuple struct {
	v     float64
	g     int64
	delta int64
}

// Summary is a Greenwald–Khanna ε-approximate quantile summary.
type Summary struct {
	eps           float64
	tuples        []tuple
	n             int64
	min, max      float64
	compressEvery int64
	sinceCompress int64
}

// New creates a summary with relative rank error epsilon (0 < epsilon < 1).
// Non-positive values fall back to DefaultEpsilon.
func New(epsilon float64) *Summary {
	if epsilon <= 0 || epsilon >= 1 || math.IsNaN(epsilon) {
		epsilon = DefaultEpsilon
	}
	every := int64(math.Floor(1 / (2 * epsilon)))
	if every < 1 {
		every = 1
	}
	return &Summary{eps: epsilon, compressEvery: every}
}

// Epsilon returns the configured relative rank error.
func (s *Summary) Epsilon() float64 { return s.eps }

// Count returns the number of values inserted.
func (s *Summary) Count() int64 { return s.n }

// Size returns the number of tuples currently held.
func (s *Summary) Size() int { return len(s.tuples) }

// Min returns the exact minimum. ok is false when the summary is empty.
func (s *Summary) Min() (float64, bool) { return s.min, s.n > 0 }

// Max returns the exact maximum. ok is false when the summary is empty.
func (s *Summary) Max() (float64, bool) { return s.max, s.n > 0 }

// Insert adds v to the summary. NaN values are ignored.
func (s *Summary) Insert(v float64) {
	if math.IsNaN(v) {
		return
	}
	if s.n == 0 || v < s.min {
		s.min = v
	}
	if s.n == 0 || v > s.max {
		s.max = v
	}

	// first tuple with a strictly greater value; equal values go after
	i := sort.Search(len(s.tuples), func(i int) bool { return s.tuples[i].v > v })

	var delta int64
	if i > 0 && i < len(s.tuples) {
		delta = int64(math.Floor(2*s.eps*float64(s.n))) - 1
		if delta < 0 {
			delta = 0
		}
	}

	s.tuples = append(s.tuples, tuple{})
	copy(s.tuples[i+1:], s.tuples[i:])
	s.tuples[i] = tuple{v: v, g: 1, delta: delta}
	s.n++

	s.sinceCompress++
	if s.sinceCompress >= s.compressEvery {
		s.compress()
		s.sinceCompress = 0
	}
}

// compress merges adjacent tuples while every tuple keeps g+delta within
// ⌊2εN⌋. The first and last tuples (exact min and max) are never removed.
func (s *Summary) compress() {
	if len(s.tuples) < 3 {
		return
	}
	threshold := int64(math.Floor(2 * s.eps * float64(s.n)))
	out := make([]tuple, 0, len(s.tuples))
	// walk right to left, folding tuple i into its right neighbour
	last := s.tuples[len(s.tuples)-1]
	for i := len(s.tuples) - 2; i >= 1; i-- {
		cur := s.tuples[i]
		if cur.g+last.g+last.delta <= threshold {
			last.g += cur.g
			continue
		}
		out = append(out, last)
		last = cur
	}
	out = append(out, last, s.tuples[0])

	// out is reversed
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	s.tuples = out
}

// targetRank is the smallest rank strictly above rank·N, clamped to [1, N].
func targetRank(rank float64, n int64) int64 {
	t := int64(math.Floor(rank*float64(n))) + 1
	if t > n {
		t = n
	}
	if t < 1 {
		t = 1
	}
	return t
}

// Query returns the approximate value at rank (0 ≤ rank ≤ 1).
func (s *Summary) Query(rank float64) (float64, error) {
	if math.IsNaN(rank) || rank < 0 || rank > 1 {
		return 0, fmt.Errorf("rank %v outside [0, 1]", rank)
	}
	if s.n == 0 {
		return 0, ErrEmpty
	}
	if rank == 0 {
		return s.min, nil
	}
	if rank == 1 {
		return s.max, nil
	}

	target := float64(targetRank(rank, s.n))
	bound := s.eps * float64(s.n)

	var rmin int64
	for _, t := range s.tuples {
		rmin += t.g
		rmax := rmin + t.delta
		if target-float64(rmin) <= bound && float64(rmax)-target <= bound {
			return t.v, nil
		}
	}
	return s.max, nil
}
