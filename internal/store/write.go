package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/verity/internal/ir"
)

// Put upserts a value. ON CONFLICT DO UPDATE makes concurrent writes of the
// same key last-write-wins.
func (s *Store) Put(ctx context.Context, dataset ir.DatasetID, v ir.Value) error {
	reqJSON, err := marshalRequest(v.Request)
	if err != nil {
		return fmt.Errorf("put metric: %w", err)
	}
	scalar, err := marshalScalar(v)
	if err != nil {
		return fmt.Errorf("put metric: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO metrics
		(dataset_id, request_key, request, value_type, value, reason, engine_version, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dataset_id, request_key) DO UPDATE SET
			value_type = excluded.value_type,
			value = excluded.value,
			reason = excluded.reason,
			engine_version = excluded.engine_version,
			computed_at = excluded.computed_at
	`,
		string(dataset),
		v.Request.Key(),
		reqJSON,
		string(v.Type),
		scalar,
		v.Reason,
		ir.EngineVersion,
		formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("put metric %s: %w", v.Request, err)
	}
	return nil
}

// Purge removes every value of a dataset and returns how many were removed.
func (s *Store) Purge(ctx context.Context, dataset ir.DatasetID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM metrics WHERE dataset_id = ?`, string(dataset))
	if err != nil {
		return 0, fmt.Errorf("purge dataset %s: %w", dataset, err)
	}
	return res.RowsAffected()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse computed_at %q: %w", s, err)
	}
	return t, nil
}
