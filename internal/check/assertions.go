package check

import "math"

// Assertion decides whether a metric value is acceptable.
type Assertion func(float64) bool

// IsOne accepts exactly 1.
func IsOne(v float64) bool { return v == 1 }

// Equals accepts exactly want.
func Equals(want float64) Assertion {
	return func(v float64) bool { return v == want }
}

// ApproxEquals accepts values within delta of want.
func ApproxEquals(want, delta float64) Assertion {
	return func(v float64) bool { return math.Abs(v-want) <= delta }
}

// AtLeast accepts values ≥ min.
func AtLeast(min float64) Assertion {
	return func(v float64) bool { return v >= min }
}

// AtMost accepts values ≤ max.
func AtMost(max float64) Assertion {
	return func(v float64) bool { return v <= max }
}

// Between accepts values in [lo, hi].
func Between(lo, hi float64) Assertion {
	return func(v float64) bool { return v >= lo && v <= hi }
}
