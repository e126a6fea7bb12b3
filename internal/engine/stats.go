package engine

import (
	"math"

	"github.com/roach88/verity/internal/quantile"
)

// welford accumulates mean and variance in one numerically stable pass.
type welford struct {
	n    int64
	mean float64
	m2   float64
}

func (w *welford) add(x float64) {
	w.n++
	d := x - w.mean
	w.mean += d / float64(w.n)
	w.m2 += d * (x - w.mean)
}

// stddev returns the sample standard deviation. ok is false for n <= 1.
func (w *welford) stddev() (float64, bool) {
	if w.n <= 1 {
		return 0, false
	}
	return math.Sqrt(w.m2 / float64(w.n-1)), true
}

// columnStats is everything a ColumnScan yields.
type columnStats struct {
	moments welford
	sketch  *quantile.Summary
	// nonNumeric is the first value that could not be read as a number.
	nonNumeric string
}

func newColumnStats(epsilon float64) *columnStats {
	return &columnStats{sketch: quantile.New(epsilon)}
}

func (c *columnStats) add(x float64) {
	c.moments.add(x)
	c.sketch.Insert(x)
}
