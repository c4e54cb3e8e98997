package broker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/EternisAI/claude-watch/internal/approvals"
	"github.com/EternisAI/claude-watch/internal/permission"
	"github.com/EternisAI/claude-watch/internal/sessions"
)

var (
	ErrApprovalNotFound = errors.New("approval not found or already resolved")
	ErrInvalidDecision  = errors.New("decision must be allow or deny")
)

// ToolCall is an intercepted tool invocation awaiting a remote decision.
type ToolCall struct {
	SessionID string
	ToolName  string
	ToolInput map[string]any
	Cwd       string
}

// Broker joins the pending approval store with the session registry.
type Broker struct {
	approvals *approvals.Store
	sessions  *sessions.Manager
}

func New(approvalStore *approvals.Store, sessionManager *sessions.Manager) *Broker {
	return &Broker{
		approvals: approvalStore,
		sessions:  sessionManager,
	}
}

// RequestApproval records the call against its session and blocks until the
// approval is resolved or times out. The wait is bounded by the store's own
// deadline; ctx is only used for logging the caller going away.
func (b *Broker) RequestApproval(ctx context.Context, call ToolCall) approvals.Result {
	if call.ToolInput == nil {
		call.ToolInput = map[string]any{}
	}

	b.sessions.Upsert(call.SessionID, sessions.Update{Cwd: call.Cwd, Status: sessions.StatusWorking})

	approvalID, resultCh := b.approvals.Open(call.SessionID, call.ToolName, call.ToolInput)
	b.sessions.SetPending(call.SessionID, sessions.PendingApproval{
		ApprovalID: approvalID,
		SessionID:  call.SessionID,
		ToolName:   call.ToolName,
		ToolInput:  call.ToolInput,
		Timestamp:  sessions.Timestamp(time.Now()),
	})

	slog.Info("Approval requested",
		"approval_id", approvalID,
		"session_id", call.SessionID,
		"tool_name", call.ToolName)

	done := ctx.Done()
	for {
		select {
		case result := <-resultCh:
			b.sessions.ClearPending(call.SessionID, approvalID, result.Decision.String())
			return result
		case <-done:
			slog.Warn("Caller went away while awaiting approval", "approval_id", approvalID, "session_id", call.SessionID)
			done = nil
		}
	}
}

// Respond delivers a remote decision for an outstanding approval.
func (b *Broker) Respond(sessionID, approvalID string, decision permission.Decision, reason string) error {
	if decision != permission.Allow && decision != permission.Deny {
		return ErrInvalidDecision
	}
	if !b.approvals.Resolve(approvalID, decision, reason) {
		slog.Warn("Response for unknown approval", "approval_id", approvalID, "session_id", sessionID)
		return ErrApprovalNotFound
	}
	return nil
}

func (b *Broker) Sessions() []sessions.Session {
	return b.sessions.List()
}

func (b *Broker) PendingCount() int {
	return b.approvals.Size()
}
