package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/EternisAI/claude-watch/internal/grpc/server"
	"github.com/EternisAI/claude-watch/internal/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

type staticVerifier struct{ valid string }

func (v staticVerifier) HasCredentials() bool           { return true }
func (v staticVerifier) IsValidToken(token string) bool { return token == v.valid }

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func startDaemon(t *testing.T, token string) (*sessions.Manager, grpc.DialOption) {
	t.Helper()

	manager := sessions.NewManager(sessions.Config{})
	srv := server.NewServer(0, manager, staticVerifier{valid: token}, time.Hour)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()

	t.Cleanup(func() {
		_ = srv.StopWithTimeout(time.Second)
		manager.Stop()
	})

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	return manager, dialer
}

func TestClientReceivesEvents(t *testing.T) {
	manager, dialer := startDaemon(t, "secret")
	log := &eventLog{}

	c := NewClient("passthrough:///bufnet", "secret", log.add, dialer)
	require.NoError(t, c.Start())
	defer c.Stop()

	require.Eventually(t, func() bool { return manager.ListenerCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	manager.Upsert("s1", sessions.Update{Cwd: "/x"})

	require.Eventually(t, func() bool { return len(log.types()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"init", "session_update"}, log.types())

	log.mu.Lock()
	session, ok := log.events[1].Payload["session"].(map[string]any)
	log.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, "s1", session["id"])
}

func TestClientStopsWhenRejected(t *testing.T) {
	_, dialer := startDaemon(t, "secret")

	c := NewClient("passthrough:///bufnet", "wrong", func(Event) {}, dialer)
	require.NoError(t, c.Start())

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client kept retrying a rejected token")
	}
	assert.ErrorIs(t, c.Err(), ErrUnauthenticated)
	require.NoError(t, c.Stop())
}

func TestIncreaseReconnectDelay(t *testing.T) {
	c := NewClient("localhost:0", "", func(Event) {})

	for i := 0; i < 10; i++ {
		c.increaseReconnectDelay()
	}
	assert.Equal(t, maxDelay, c.reconnectDelay)
}
