package broker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/EternisAI/claude-watch/internal/approvals"
	"github.com/EternisAI/claude-watch/internal/permission"
	"github.com/EternisAI/claude-watch/internal/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureListener struct {
	mu     sync.Mutex
	events []sessions.EventType
	ids    chan string
}

func newCaptureListener() *captureListener {
	return &captureListener{ids: make(chan string, 8)}
}

func (c *captureListener) Deliver(event sessions.EventType, payload []byte) error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	if event == sessions.EventApprovalRequest {
		var req sessions.ApprovalRequestEvent
		if err := json.Unmarshal(payload, &req); err != nil {
			return err
		}
		c.ids <- req.Approval.ApprovalID
	}
	return nil
}

func (c *captureListener) snapshot() []sessions.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sessions.EventType(nil), c.events...)
}

func setup(t *testing.T, timeout time.Duration) (*Broker, *sessions.Manager, *captureListener) {
	t.Helper()
	manager := sessions.NewManager(sessions.Config{SweepInterval: time.Hour})
	t.Cleanup(manager.Stop)

	listener := newCaptureListener()
	require.NoError(t, manager.Subscribe(listener))

	return New(approvals.NewStore(timeout), manager), manager, listener
}

func awaitApprovalID(t *testing.T, l *captureListener) string {
	t.Helper()
	select {
	case id := <-l.ids:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("no approval request broadcast")
		return ""
	}
}

func TestRequestApproval_Resolved(t *testing.T) {
	b, manager, listener := setup(t, time.Hour)

	resultCh := make(chan approvals.Result, 1)
	go func() {
		resultCh <- b.RequestApproval(context.Background(), ToolCall{
			SessionID: "s1",
			ToolName:  "Bash",
			ToolInput: map[string]any{"command": "rm -rf /"},
			Cwd:       "/x",
		})
	}()

	approvalID := awaitApprovalID(t, listener)
	s, ok := manager.Get("s1")
	require.True(t, ok)
	assert.Equal(t, sessions.StatusWaitingApproval, s.Status)
	assert.Equal(t, "/x", s.Cwd)

	require.NoError(t, b.Respond("s1", approvalID, permission.Deny, "no"))

	result := <-resultCh
	assert.Equal(t, permission.Deny, result.Decision)
	assert.Equal(t, "no", result.Reason)

	s, _ = manager.Get("s1")
	assert.Equal(t, sessions.StatusIdle, s.Status)
	assert.Nil(t, s.Pending)

	assert.Equal(t, []sessions.EventType{
		sessions.EventInit,
		sessions.EventSessionUpdate,
		sessions.EventSessionUpdate,
		sessions.EventApprovalRequest,
		sessions.EventSessionUpdate,
		sessions.EventApprovalResolved,
	}, listener.snapshot())

	assert.ErrorIs(t, b.Respond("s1", approvalID, permission.Allow, ""), ErrApprovalNotFound)
}

func TestRequestApproval_Timeout(t *testing.T) {
	b, manager, _ := setup(t, 20*time.Millisecond)

	result := b.RequestApproval(context.Background(), ToolCall{SessionID: "s1", ToolName: "Bash"})
	assert.Equal(t, permission.Ask, result.Decision)
	assert.Equal(t, approvals.TimeoutReason, result.Reason)

	s, _ := manager.Get("s1")
	assert.Equal(t, sessions.StatusIdle, s.Status)
	assert.Equal(t, 0, b.PendingCount())
}

func TestRequestApproval_CallerCancelledStillWaits(t *testing.T) {
	b, _, listener := setup(t, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	resultCh := make(chan approvals.Result, 1)
	go func() {
		resultCh <- b.RequestApproval(ctx, ToolCall{SessionID: "s1", ToolName: "Bash"})
	}()

	approvalID := awaitApprovalID(t, listener)
	cancel()

	select {
	case <-resultCh:
		t.Fatal("request returned before resolution")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, b.Respond("s1", approvalID, permission.Allow, ""))
	assert.Equal(t, permission.Allow, (<-resultCh).Decision)
}

func TestRespond_InvalidDecision(t *testing.T) {
	b, _, _ := setup(t, time.Hour)
	assert.ErrorIs(t, b.Respond("s1", "a1", permission.Ask, ""), ErrInvalidDecision)
}

func TestRespond_Unknown(t *testing.T) {
	b, _, _ := setup(t, time.Hour)
	assert.ErrorIs(t, b.Respond("s1", "missing", permission.Allow, ""), ErrApprovalNotFound)
}
