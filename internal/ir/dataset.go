package ir

// DatasetID identifies dataset content. Either a content fingerprint
// ("sha256:...") or a caller-supplied logical name.
type DatasetID string

// Metadata is what every engine can report about a dataset without
// computing a metric.
type Metadata struct {
	RowCount int64             `json:"row_count"`
	Columns  []string          `json:"columns"`
	Schema   map[string]string `json:"schema"`
}

// HasColumn reports whether the dataset has the named column.
func (m Metadata) HasColumn(name string) bool {
	_, ok := m.Schema[name]
	return ok
}
