package sessions

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const (
	DefaultIdleTimeout   = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Listener receives every broadcast event. Deliver must not block; an error
// unregisters the listener.
type Listener interface {
	Deliver(event EventType, payload []byte) error
}

type Config struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// Manager tracks session state and fans events out to listeners. A single
// mutex guards both maps so that the events of one transition are delivered
// back-to-back.
type Manager struct {
	sessions  map[string]*Session
	listeners map[Listener]struct{}
	mu        sync.Mutex

	idleTimeout   time.Duration
	sweepInterval time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	now           func() time.Time
}

// NewManager creates a Manager and starts its idle sweep.
func NewManager(cfg Config) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	m := &Manager{
		sessions:      make(map[string]*Session),
		listeners:     make(map[Listener]struct{}),
		idleTimeout:   cfg.IdleTimeout,
		sweepInterval: cfg.SweepInterval,
		stopCh:        make(chan struct{}),
		now:           time.Now,
	}
	go m.sweepLoop()
	return m
}

// Upsert creates the session if needed, merges the update, refreshes its
// activity time and broadcasts the new state.
func (m *Manager) Upsert(id string, update Update) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		s = &Session{ID: id, Status: StatusIdle}
		m.sessions[id] = s
		slog.Info("Session registered", "session_id", id, "total_sessions", len(m.sessions))
	}
	if update.Status != "" {
		s.Status = update.Status
	}
	if update.Cwd != "" {
		s.Cwd = update.Cwd
	}
	s.LastActivity = Timestamp(m.now())

	snapshot := *s
	m.broadcastLocked(NewSessionUpdateEvent(snapshot))
	return snapshot
}

// SetPending marks the session as waiting on approval and broadcasts the
// update followed by the approval request. It returns false for unknown sessions.
func (m *Manager) SetPending(id string, approval PendingApproval) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		slog.Warn("Pending approval for unknown session", "session_id", id, "approval_id", approval.ApprovalID)
		return false
	}

	s.Status = StatusWaitingApproval
	s.Pending = &approval
	s.LastActivity = Timestamp(m.now())

	m.broadcastLocked(NewSessionUpdateEvent(*s))
	m.broadcastLocked(NewApprovalRequestEvent(id, approval))
	return true
}

// ClearPending returns the session to idle and broadcasts the update followed
// by the resolution. If a different approval has since been attached to the
// session it is kept.
func (m *Manager) ClearPending(id, approvalID, decision string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		slog.Warn("Resolution for unknown session", "session_id", id, "approval_id", approvalID)
		return false
	}

	if s.Pending == nil || s.Pending.ApprovalID == approvalID {
		s.Status = StatusIdle
		s.Pending = nil
	}
	s.LastActivity = Timestamp(m.now())

	m.broadcastLocked(NewSessionUpdateEvent(*s))
	m.broadcastLocked(NewApprovalResolvedEvent(id, approvalID, decision))
	return true
}

func (m *Manager) Get(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// List returns all sessions, most recently active first.
func (m *Manager) List() []Session {
	m.mu.Lock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].LastActivity.Time(), out[j].LastActivity.Time()
		if ti.Equal(tj) {
			return out[i].ID < out[j].ID
		}
		return ti.After(tj)
	})
	return out
}

// Subscribe registers l and delivers the init event to it before any other
// event can reach it.
func (m *Manager) Subscribe(l Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, *s)
	}
	payload, err := Encode(NewInitEvent(sessions))
	if err != nil {
		return err
	}
	if err := l.Deliver(EventInit, payload); err != nil {
		return err
	}

	m.listeners[l] = struct{}{}
	slog.Debug("Listener subscribed", "total_listeners", len(m.listeners))
	return nil
}

func (m *Manager) RemoveListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, l)
}

func (m *Manager) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// Broadcast sends an event to every listener. It never fails; listeners that
// cannot accept the event are dropped.
func (m *Manager) Broadcast(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastLocked(event)
}

func (m *Manager) broadcastLocked(event Event) {
	if len(m.listeners) == 0 {
		return
	}

	payload, err := Encode(event)
	if err != nil {
		slog.Error("Failed to encode event", "type", event.EventType(), "error", err)
		return
	}

	for l := range m.listeners {
		if err := l.Deliver(event.EventType(), payload); err != nil {
			delete(m.listeners, l)
			slog.Warn("Dropping listener after failed delivery",
				"type", event.EventType(),
				"error", err,
				"total_listeners", len(m.listeners))
		}
	}
}

// Stop ends the sweep and forgets all listeners.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = make(map[Listener]struct{})
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.removeIdleSessions()
		case <-m.stopCh:
			return
		}
	}
}

// removeIdleSessions evicts sessions inactive beyond the idle timeout. Sessions
// waiting on approval are never evicted.
func (m *Manager) removeIdleSessions() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, s := range m.sessions {
		if s.Status == StatusWaitingApproval {
			continue
		}
		if now.Sub(s.LastActivity.Time()) <= m.idleTimeout {
			continue
		}

		delete(m.sessions, id)
		slog.Info("Removing idle session",
			"session_id", id,
			"last_activity", s.LastActivity.Time(),
			"total_sessions", len(m.sessions))

		final := *s
		final.Status = StatusIdle
		m.broadcastLocked(NewSessionUpdateEvent(final))
	}
}

// Encode serializes an event once for all transports.
func Encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}
