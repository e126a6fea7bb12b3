package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/verity/internal/ir"
)

// Get returns the stored value of (dataset, req).
func (s *Store) Get(ctx context.Context, dataset ir.DatasetID, req ir.Request) (ir.Value, bool, error) {
	var typ, scalar, reason string
	err := s.db.QueryRowContext(ctx, `
		SELECT value_type, value, reason
		FROM metrics
		WHERE dataset_id = ? AND request_key = ?
	`, string(dataset), req.Key()).Scan(&typ, &scalar, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Value{}, false, nil
	}
	if err != nil {
		return ir.Value{}, false, fmt.Errorf("get metric %s: %w", req, err)
	}

	v, err := unmarshalValue(req, typ, scalar, reason)
	if err != nil {
		return ir.Value{}, false, fmt.Errorf("get metric %s: %w", req, err)
	}
	return v, true, nil
}

// List returns stored entries ordered by dataset, then request.
func (s *Store) List(ctx context.Context, dataset ir.DatasetID) ([]Entry, error) {
	query := `
		SELECT dataset_id, request, value_type, value, reason, engine_version, computed_at
		FROM metrics`
	var args []any
	if dataset != "" {
		query += ` WHERE dataset_id = ?`
		args = append(args, string(dataset))
	}
	query += ` ORDER BY dataset_id COLLATE BINARY ASC, request_key COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}

	slices.SortStableFunc(entries, compareEntries)
	return entries, nil
}

// ListDatasets returns the distinct dataset IDs with stored values.
func (s *Store) ListDatasets(ctx context.Context) ([]ir.DatasetID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT dataset_id FROM metrics ORDER BY dataset_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	ids := []ir.DatasetID{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		ids = append(ids, ir.DatasetID(id))
	}
	return ids, rows.Err()
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		dataset, reqJSON, typ, scalar, reason, version, at string
	)
	if err := rows.Scan(&dataset, &reqJSON, &typ, &scalar, &reason, &version, &at); err != nil {
		return Entry{}, fmt.Errorf("scan metric: %w", err)
	}
	req, err := unmarshalRequest(reqJSON)
	if err != nil {
		return Entry{}, err
	}
	v, err := unmarshalValue(req, typ, scalar, reason)
	if err != nil {
		return Entry{}, err
	}
	computedAt, err := parseTime(at)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Dataset:       ir.DatasetID(dataset),
		Value:         v,
		EngineVersion: version,
		ComputedAt:    computedAt,
	}, nil
}
