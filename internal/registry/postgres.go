package registry

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps a pool whose schema has been migrated by db.OpenPostgres.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Load(ctx context.Context) ([]Device, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT device_id, token_hash, created_at FROM devices ORDER BY created_at, device_id`)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}

	devices, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Device, error) {
		var d Device
		err := row.Scan(&d.ID, &d.TokenHash, &d.CreatedAt)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan devices: %w", err)
	}
	return devices, nil
}

func (s *PostgresStore) Add(ctx context.Context, d Device) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO devices (device_id, token_hash, created_at) VALUES ($1, $2, $3)`,
		d.ID, d.TokenHash, d.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
