package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DefaultSchema   = "public"
	DefaultMaxConns = 4
)

var ErrMissingURL = errors.New("database url is not configured")

type Config struct {
	Url      string `mapstructure:"url" json:"-"`
	Schema   string `mapstructure:"schema"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (c Config) schema() string {
	if c.Schema == "" {
		return DefaultSchema
	}
	return c.Schema
}

// OpenPostgres migrates the configured schema and returns a pool whose
// connections all resolve tables in it.
func OpenPostgres(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.Url == "" {
		return nil, ErrMissingURL
	}
	schema := cfg.schema()

	if err := RunMigrations(ctx, cfg.Url, schema); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	if poolConfig.MaxConns <= 0 {
		poolConfig.MaxConns = DefaultMaxConns
	}
	poolConfig.MinConns = 1

	sanitized := pgx.Identifier{schema}.Sanitize()
	poolConfig.ConnConfig.RuntimeParams["search_path"] = schema
	// Poolers may reset session settings between transactions.
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "SET search_path TO "+sanitized); err != nil {
			slog.Warn("Failed to pin search_path", "schema", schema, "error", err)
			return err
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("Connected to PostgreSQL", "schema", schema, "max_conns", poolConfig.MaxConns)
	return pool, nil
}
