package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore wraps a database already migrated by db.OpenSQLite.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Load(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT device_id, token_hash, created_at_ms FROM devices ORDER BY created_at_ms, device_id;`)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	out := []Device{}
	for rows.Next() {
		var (
			d         Device
			createdMS int64
		)
		if err := rows.Scan(&d.ID, &d.TokenHash, &createdMS); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		d.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate devices: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Add(ctx context.Context, d Device) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO devices(device_id, token_hash, created_at_ms) VALUES(?, ?, ?);`,
		d.ID, d.TokenHash, d.CreatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
