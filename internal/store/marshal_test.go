package store

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/verity/internal/ir"
)

func TestMarshalRequest_Canonical(t *testing.T) {
	got, err := marshalRequest(ir.Quantile("att1", 0.5).WithFilter("item > 3"))
	if err != nil {
		t.Fatalf("marshalRequest() failed: %v", err)
	}
	expected := `{"columns":["att1"],"filter":"item > 3","kind":"Quantile","rank":"0.5"}`
	if got != expected {
		t.Errorf("marshalRequest() = %q, want %q", got, expected)
	}
}

func TestScalar_RoundTrip(t *testing.T) {
	req := ir.Mean("x")
	tests := []ir.Value{
		ir.DoubleValue(req, 0.1),
		ir.DoubleValue(req, 1e-300),
		ir.DoubleValue(req, math.Inf(-1)),
		ir.IntValue(req, math.MaxInt64),
		ir.NoValue(req, "no rows match the filter"),
	}
	for _, v := range tests {
		t.Run(v.String(), func(t *testing.T) {
			s, err := marshalScalar(v)
			require.NoError(t, err)
			got, err := unmarshalValue(req, string(v.Type), s, v.Reason)
			require.NoError(t, err)
			assert.Equal(t, v, got)
		})
	}
}

func TestScalar_NaN(t *testing.T) {
	req := ir.Mean("x")
	s, err := marshalScalar(ir.DoubleValue(req, math.NaN()))
	require.NoError(t, err)
	got, err := unmarshalValue(req, "double", s, "")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.Double))
}

func TestUnmarshalValue_Errors(t *testing.T) {
	req := ir.Mean("x")
	_, err := unmarshalValue(req, "double", "abc", "")
	assert.Error(t, err)
	_, err = unmarshalValue(req, "int", "1.5", "")
	assert.Error(t, err)
	_, err = unmarshalValue(req, "decimal", "1", "")
	assert.Error(t, err)
}

func TestEntry_RoundTrip(t *testing.T) {
	e := Entry{
		Dataset:       "sha256:abc",
		Value:         ir.DoubleValue(ir.Compliance("positive", "att1 > 0").WithFilter("item < 4"), 0.75),
		EngineVersion: ir.EngineVersion,
		ComputedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := MarshalEntry(e)
	require.NoError(t, err)

	got, err := UnmarshalEntry(data)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}
