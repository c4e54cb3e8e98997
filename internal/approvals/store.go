package approvals

import (
	"log/slog"
	"sync"
	"time"

	"github.com/EternisAI/claude-watch/internal/permission"
	"github.com/google/uuid"
)

const (
	// DefaultTimeout sits just under the agent's 300s hook deadline.
	DefaultTimeout = 295 * time.Second

	TimeoutReason  = "Timeout — escalated to local terminal"
	ShutdownReason = "Daemon shutting down, escalated to local terminal"
)

// Result is the terminal outcome of a pending approval.
type Result struct {
	Decision permission.Decision
	Reason   string
}

type entry struct {
	sessionID string
	toolName  string
	createdAt time.Time
	timer     *time.Timer
	resultCh  chan Result
}

// Store holds one entry per outstanding approval. Each entry resolves exactly
// once: by Resolve, by its deadline, or by Close.
type Store struct {
	mu      sync.Mutex
	pending map[string]*entry
	timeout time.Duration
}

func NewStore(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{
		pending: make(map[string]*entry),
		timeout: timeout,
	}
}

// Open registers a new approval and returns its id and a channel that receives
// exactly one Result.
func (s *Store) Open(sessionID, toolName string, toolInput map[string]any) (string, <-chan Result) {
	approvalID := uuid.New().String()
	e := &entry{
		sessionID: sessionID,
		toolName:  toolName,
		createdAt: time.Now(),
		resultCh:  make(chan Result, 1),
	}

	s.mu.Lock()
	s.pending[approvalID] = e
	e.timer = time.AfterFunc(s.timeout, func() { s.expire(approvalID) })
	s.mu.Unlock()

	slog.Debug("Approval opened",
		"approval_id", approvalID,
		"session_id", sessionID,
		"tool_name", toolName,
		"input_fields", len(toolInput))

	return approvalID, e.resultCh
}

// Resolve completes the approval with an explicit decision. It returns false
// when the id is unknown or already resolved.
func (s *Store) Resolve(approvalID string, decision permission.Decision, reason string) bool {
	e, ok := s.take(approvalID)
	if !ok {
		return false
	}

	e.timer.Stop()
	e.resultCh <- Result{Decision: decision, Reason: reason}

	slog.Info("Approval resolved",
		"approval_id", approvalID,
		"session_id", e.sessionID,
		"decision", decision,
		"waited", time.Since(e.createdAt).Round(time.Millisecond))
	return true
}

// Size returns the number of outstanding approvals.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close resolves every outstanding approval with Ask.
func (s *Store) Close() {
	s.mu.Lock()
	drained := s.pending
	s.pending = make(map[string]*entry)
	s.mu.Unlock()

	for approvalID, e := range drained {
		e.timer.Stop()
		e.resultCh <- Result{Decision: permission.Ask, Reason: ShutdownReason}
		slog.Info("Approval released on shutdown", "approval_id", approvalID, "session_id", e.sessionID)
	}
}

func (s *Store) expire(approvalID string) {
	e, ok := s.take(approvalID)
	if !ok {
		return
	}

	e.resultCh <- Result{Decision: permission.Ask, Reason: TimeoutReason}

	slog.Warn("Approval timed out",
		"approval_id", approvalID,
		"session_id", e.sessionID,
		"tool_name", e.toolName)
}

func (s *Store) take(approvalID string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[approvalID]
	if ok {
		delete(s.pending, approvalID)
	}
	return e, ok
}
