package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/EternisAI/claude-watch/internal/db"
)

const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver string    `mapstructure:"driver"`
	Path   string    `mapstructure:"path"`
	DB     db.Config `mapstructure:"db"`
}

// Open builds the store selected by cfg.Driver. Relative paths resolve
// against stateDir.
func Open(ctx context.Context, cfg Config, stateDir string) (Store, error) {
	switch cfg.Driver {
	case "", DriverFile:
		path := resolvePath(cfg.Path, stateDir, DevicesFileName)
		slog.Info("Using file credential registry", "path", path)
		return NewFileStore(path), nil

	case DriverSQLite:
		path := resolvePath(cfg.Path, stateDir, "devices.db")
		conn, err := db.OpenSQLite(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite registry: %w", err)
		}
		slog.Info("Using sqlite credential registry", "path", path)
		return NewSQLiteStore(conn), nil

	case DriverPostgres:
		pool, err := db.OpenPostgres(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("open postgres registry: %w", err)
		}
		return NewPostgresStore(pool), nil

	default:
		return nil, fmt.Errorf("unknown registry driver %q", cfg.Driver)
	}
}

func resolvePath(path, stateDir, fallback string) string {
	if path == "" {
		return filepath.Join(stateDir, fallback)
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(stateDir, path)
}
