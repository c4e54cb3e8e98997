package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/EternisAI/claude-watch/internal/api/http/dto"
	"github.com/EternisAI/claude-watch/internal/hook"
	"github.com/EternisAI/claude-watch/internal/permission"
	"github.com/EternisAI/claude-watch/internal/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestApprovalRoundTrip drives the hook pipeline against the daemon and
// answers the approval as a paired device would.
func TestApprovalRoundTrip(t *testing.T, env *Env) {
	cred := Pair(t, env)
	require.NoError(t, env.Services.RemoteMode.Set(true))
	defer env.Services.RemoteMode.Set(false)

	server := httptest.NewServer(env.Engine)
	defer server.Close()

	feed := sessions.NewFeed(sessions.DefaultFeedBuffer)
	require.NoError(t, env.Services.Sessions.Subscribe(feed))
	defer env.Services.Sessions.RemoveListener(feed)

	pipeline := hook.NewPipeline(env.Services.RemoteMode, "", hook.NewClient(server.URL, 10*time.Second))

	verdicts := make(chan *hook.Verdict, 1)
	go func() {
		input := `{"session_id":"sys-1","tool_name":"Bash","tool_input":{"command":"make deploy"},"cwd":"/srv"}`
		verdicts <- pipeline.Run(context.Background(), strings.NewReader(input))
	}()

	var approvalID string
	var order []sessions.EventType
	deadline := time.After(5 * time.Second)
	for approvalID == "" {
		select {
		case frame := <-feed.Frames():
			order = append(order, frame.Type)
			if frame.Type == sessions.EventApprovalRequest {
				s, ok := env.Services.Sessions.Get("sys-1")
				require.True(t, ok)
				require.NotNil(t, s.Pending)
				approvalID = s.Pending.ApprovalID
			}
		case <-deadline:
			t.Fatal("approval request was never broadcast")
		}
	}

	rr := env.Do(http.MethodPost, "/sessions/sys-1/respond", dto.RespondRequest{
		ApprovalID: approvalID,
		Decision:   "deny",
		Reason:     "not on a friday",
	}, cred.Token)
	require.Equal(t, http.StatusOK, rr.Code)

	select {
	case v := <-verdicts:
		require.NotNil(t, v)
		assert.Equal(t, permission.Deny, v.Decision)
		assert.Equal(t, "not on a friday", v.Reason)
	case <-time.After(5 * time.Second):
		t.Fatal("hook did not receive the decision")
	}

	for len(order) < 5 {
		select {
		case frame := <-feed.Frames():
			order = append(order, frame.Type)
		case <-time.After(2 * time.Second):
			t.Fatalf("missing events, got %v", order)
		}
	}
	assert.Equal(t, []sessions.EventType{
		sessions.EventInit,
		sessions.EventSessionUpdate,
		sessions.EventSessionUpdate,
		sessions.EventApprovalRequest,
		sessions.EventSessionUpdate,
	}, order)

	frame := <-feed.Frames()
	assert.Equal(t, sessions.EventApprovalResolved, frame.Type)

	s, ok := env.Services.Sessions.Get("sys-1")
	require.True(t, ok)
	assert.Equal(t, sessions.StatusIdle, s.Status)
	assert.Equal(t, 0, env.Approvals.Size())
}

// TestShutdownReleasesHooks checks that closing the approval store answers
// blocked hooks with ask.
func TestShutdownReleasesHooks(t *testing.T, env *Env) {
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- env.Do(http.MethodPost, "/hooks/pre-tool-use", dto.PreToolUseRequest{
			SessionID: "sys-2", ToolName: "Bash", ToolInput: map[string]any{"command": "ls"},
		}, "")
	}()

	require.Eventually(t, func() bool { return env.Approvals.Size() == 1 }, 2*time.Second, 5*time.Millisecond)
	env.Approvals.Close()

	select {
	case rr := <-done:
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"decision":"ask"`)
	case <-time.After(2 * time.Second):
		t.Fatal("hook stayed blocked after shutdown")
	}
}
