package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/verity/internal/ir"
)

// marshalRequest converts a request to canonical JSON TEXT for storage.
func marshalRequest(req ir.Request) (string, error) {
	data, err := req.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	return string(data), nil
}

func unmarshalRequest(data string) (ir.Request, error) {
	var req ir.Request
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return ir.Request{}, fmt.Errorf("unmarshal request: %w", err)
	}
	return req, nil
}

// marshalScalar renders the scalar of v as text. Doubles use the shortest
// representation that round-trips, so NaN and infinities survive storage.
func marshalScalar(v ir.Value) (string, error) {
	switch v.Type {
	case ir.ValueDouble:
		return strconv.FormatFloat(v.Double, 'g', -1, 64), nil
	case ir.ValueInt:
		return strconv.FormatInt(v.Int, 10), nil
	case ir.ValueNone:
		return "", nil
	}
	return "", fmt.Errorf("marshal value: unknown value type %q", v.Type)
}

// unmarshalValue rebuilds a value from its stored columns.
func unmarshalValue(req ir.Request, typ, scalar, reason string) (ir.Value, error) {
	switch ir.ValueType(typ) {
	case ir.ValueDouble:
		f, err := strconv.ParseFloat(scalar, 64)
		if err != nil {
			return ir.Value{}, fmt.Errorf("unmarshal value %q: %w", scalar, err)
		}
		return ir.DoubleValue(req, f), nil
	case ir.ValueInt:
		n, err := strconv.ParseInt(scalar, 10, 64)
		if err != nil {
			return ir.Value{}, fmt.Errorf("unmarshal value %q: %w", scalar, err)
		}
		return ir.IntValue(req, n), nil
	case ir.ValueNone:
		return ir.NoValue(req, reason), nil
	}
	return ir.Value{}, fmt.Errorf("unmarshal value: unknown value type %q", typ)
}

// record is the JSON form of an Entry, used by key-value stores.
type record struct {
	Dataset       string          `json:"dataset"`
	Request       json.RawMessage `json:"request"`
	Type          string          `json:"type"`
	Value         string          `json:"value,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	EngineVersion string          `json:"engine_version"`
	ComputedAt    string          `json:"computed_at"`
}

// MarshalEntry encodes an entry as JSON.
func MarshalEntry(e Entry) ([]byte, error) {
	req, err := marshalRequest(e.Value.Request)
	if err != nil {
		return nil, err
	}
	scalar, err := marshalScalar(e.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(record{
		Dataset:       string(e.Dataset),
		Request:       json.RawMessage(req),
		Type:          string(e.Value.Type),
		Value:         scalar,
		Reason:        e.Value.Reason,
		EngineVersion: e.EngineVersion,
		ComputedAt:    formatTime(e.ComputedAt),
	})
}

// UnmarshalEntry decodes an entry produced by MarshalEntry.
func UnmarshalEntry(data []byte) (Entry, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Entry{}, fmt.Errorf("unmarshal entry: %w", err)
	}
	req, err := unmarshalRequest(string(rec.Request))
	if err != nil {
		return Entry{}, err
	}
	v, err := unmarshalValue(req, rec.Type, rec.Value, rec.Reason)
	if err != nil {
		return Entry{}, err
	}
	at, err := parseTime(rec.ComputedAt)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Dataset:       ir.DatasetID(rec.Dataset),
		Value:         v,
		EngineVersion: rec.EngineVersion,
		ComputedAt:    at,
	}, nil
}
