package approvals

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/EternisAI/claude-watch/internal/permission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for approval result")
		return Result{}
	}
}

func TestOpen(t *testing.T) {
	s := NewStore(time.Hour)

	id1, _ := s.Open("s1", "Bash", map[string]any{"command": "ls"})
	id2, _ := s.Open("s1", "Bash", map[string]any{"command": "ls"})

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, s.Size())
}

func TestResolve(t *testing.T) {
	s := NewStore(time.Hour)

	id, ch := s.Open("s1", "Bash", nil)
	require.True(t, s.Resolve(id, permission.Deny, "no"))

	r := receive(t, ch)
	assert.Equal(t, permission.Deny, r.Decision)
	assert.Equal(t, "no", r.Reason)
	assert.Equal(t, 0, s.Size())
}

func TestResolveTwice(t *testing.T) {
	s := NewStore(time.Hour)

	id, _ := s.Open("s1", "Bash", nil)
	assert.True(t, s.Resolve(id, permission.Allow, ""))
	assert.False(t, s.Resolve(id, permission.Deny, ""))
}

func TestResolveUnknown(t *testing.T) {
	s := NewStore(time.Hour)
	assert.False(t, s.Resolve("missing", permission.Allow, ""))
}

func TestTimeout(t *testing.T) {
	s := NewStore(20 * time.Millisecond)

	id, ch := s.Open("s1", "Bash", nil)

	r := receive(t, ch)
	assert.Equal(t, permission.Ask, r.Decision)
	assert.Equal(t, "Timeout — escalated to local terminal", r.Reason)
	assert.Equal(t, 0, s.Size())

	// Explicit resolution after the deadline is a no-op.
	assert.False(t, s.Resolve(id, permission.Allow, ""))
}

func TestResolveBeatsTimeout(t *testing.T) {
	s := NewStore(50 * time.Millisecond)

	id, ch := s.Open("s1", "Bash", nil)
	require.True(t, s.Resolve(id, permission.Allow, "ok"))

	r := receive(t, ch)
	assert.Equal(t, permission.Allow, r.Decision)

	time.Sleep(100 * time.Millisecond)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected second result: %+v", extra)
	default:
	}
}

func TestClose(t *testing.T) {
	s := NewStore(time.Hour)

	_, ch1 := s.Open("s1", "Bash", nil)
	id2, ch2 := s.Open("s2", "Bash", nil)

	s.Close()

	assert.Equal(t, permission.Ask, receive(t, ch1).Decision)
	assert.Equal(t, ShutdownReason, receive(t, ch2).Reason)
	assert.False(t, s.Resolve(id2, permission.Allow, ""))
	assert.Equal(t, 0, s.Size())
}

func TestConcurrentResolve(t *testing.T) {
	s := NewStore(time.Hour)
	id, ch := s.Open("s1", "Bash", nil)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Resolve(id, permission.Allow, "") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	receive(t, ch)
}
