package registry

import (
	"context"
	"time"
)

// Device is a paired device as stored at rest. The bearer token itself is
// never stored, only its hash.
type Device struct {
	ID        string
	TokenHash string
	CreatedAt time.Time
}

// Store is the durable credential registry.
type Store interface {
	Load(ctx context.Context) ([]Device, error)
	Add(ctx context.Context, d Device) error
	Close() error
}
