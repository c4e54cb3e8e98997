package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Subscription is one open Subscribe stream.
type Subscription struct {
	ID          string
	Peer        string
	ConnectedAt time.Time
	ctx         context.Context
	cancel      context.CancelFunc
}

func (s *Subscription) Done() <-chan struct{} {
	return s.ctx.Done()
}

// StreamRegistry tracks open subscriptions so that shutdown can end them
// before the gRPC server drains.
type StreamRegistry struct {
	streams map[string]*Subscription
	mu      sync.RWMutex
	closed  bool
}

func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{streams: make(map[string]*Subscription)}
}

// Register returns a subscription whose context ends with parent or on
// CloseAll. After CloseAll the subscription is already done.
func (r *StreamRegistry) Register(parent context.Context, peer string) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	sub := &Subscription{
		ID:          uuid.New().String(),
		Peer:        peer,
		ConnectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		cancel()
		return sub
	}
	r.streams[sub.ID] = sub
	slog.Info("Event subscriber connected", "subscription_id", sub.ID, "peer", peer, "total_subscribers", len(r.streams))
	return sub
}

func (r *StreamRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.streams[id]
	if !ok {
		return
	}
	sub.cancel()
	delete(r.streams, id)
	slog.Info("Event subscriber disconnected",
		"subscription_id", id,
		"duration", time.Since(sub.ConnectedAt),
		"total_subscribers", len(r.streams))
}

func (r *StreamRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}

func (r *StreamRegistry) List() []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Subscription, 0, len(r.streams))
	for _, sub := range r.streams {
		out = append(out, Subscription{ID: sub.ID, Peer: sub.Peer, ConnectedAt: sub.ConnectedAt})
	}
	return out
}

// CloseAll ends every subscription and refuses new ones.
func (r *StreamRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for id, sub := range r.streams {
		sub.cancel()
		delete(r.streams, id)
	}
}
