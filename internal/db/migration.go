package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// RunMigrations applies the postgres migrations inside schema, creating it
// first when needed.
func RunMigrations(ctx context.Context, dbURL string, schema string) error {
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	// search_path is per connection
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := useSchema(ctx, db, schema); err != nil {
		return fmt.Errorf("prepare schema %s: %w", schema, err)
	}

	if err := up(db, "postgres", "migrations/postgres"); err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}

	slog.Info("Registry migrations applied", "dialect", "postgres", "schema", schema)
	return nil
}

// RunSQLiteMigrations runs all pending sqlite migrations on an open database.
func RunSQLiteMigrations(db *sql.DB) error {
	if err := up(db, "sqlite3", "migrations/sqlite"); err != nil {
		return fmt.Errorf("sqlite migrations: %w", err)
	}
	return nil
}

func up(db *sql.DB, dialect, dir string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.Up(db, dir)
}

func useSchema(ctx context.Context, db *sql.DB, schema string) error {
	ident := pgx.Identifier{schema}.Sanitize()
	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+ident); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, "SET search_path TO "+ident)
	return err
}
