package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	image      = "postgres:17-alpine"
	credential = "watch"
)

// Registry is a throwaway postgres instance backing the credential registry.
type Registry struct {
	container *postgres.PostgresContainer
	URL       string
}

// StartRegistry runs a postgres container and resolves its connection URL.
func StartRegistry(ctx context.Context) (*Registry, error) {
	container, err := postgres.Run(ctx,
		image,
		postgres.WithUsername(credential),
		postgres.WithPassword(credential),
		postgres.WithDatabase("claude_watch"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("start registry container: %w", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("registry connection string: %w", err)
	}

	return &Registry{container: container, URL: url}, nil
}

// Schema names an isolated schema so suites sharing one container do not see
// each other's devices.
func (r *Registry) Schema(n int) string {
	return fmt.Sprintf("systemtest_%d", n)
}

func (r *Registry) Stop(ctx context.Context) error {
	if err := r.container.Terminate(ctx); err != nil {
		return fmt.Errorf("terminate registry container: %w", err)
	}
	return nil
}
