package ir

import (
	"fmt"
	"strconv"
)

// ValueType tags the scalar carried by a Value.
type ValueType string

const (
	ValueDouble ValueType = "double"
	ValueInt    ValueType = "int"
	// ValueNone marks a request that resolved to no value, e.g. the mean of
	// an empty column. Reason explains why.
	ValueNone ValueType = "none"
)

// Value is the computed result of one Request.
type Value struct {
	Request Request
	Type    ValueType
	Double  float64
	Int     int64
	Reason  string
}

func DoubleValue(r Request, v float64) Value {
	return Value{Request: r, Type: ValueDouble, Double: v}
}

func IntValue(r Request, v int64) Value {
	return Value{Request: r, Type: ValueInt, Int: v}
}

// NoValue records that r has no value for the given reason.
func NoValue(r Request, reason string) Value {
	return Value{Request: r, Type: ValueNone, Reason: reason}
}

// IsNone reports whether the value is absent.
func (v Value) IsNone() bool { return v.Type == ValueNone }

// Float returns the value as float64. ok is false for ValueNone.
func (v Value) Float() (f float64, ok bool) {
	switch v.Type {
	case ValueDouble:
		return v.Double, true
	case ValueInt:
		return float64(v.Int), true
	}
	return 0, false
}

func (v Value) String() string {
	switch v.Type {
	case ValueDouble:
		return strconv.FormatFloat(v.Double, 'g', -1, 64)
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	}
	return fmt.Sprintf("<none: %s>", v.Reason)
}
