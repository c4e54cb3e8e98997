package sessions

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockListener is a mock implementation of Listener
type MockListener struct {
	mock.Mock
}

func (m *MockListener) Deliver(event EventType, payload []byte) error {
	args := m.Called(event, payload)
	return args.Error(0)
}

type recordedEvent struct {
	Type    EventType
	Payload map[string]any
}

type recordingListener struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingListener) Deliver(event EventType, payload []byte) error {
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return err
	}
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{Type: event, Payload: decoded})
	r.mu.Unlock()
	return nil
}

func (r *recordingListener) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recordingListener) last() recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// addListener registers l without the init event.
func (m *Manager) addListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[l] = struct{}{}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(Config{SweepInterval: time.Hour})
	t.Cleanup(m.Stop)
	return m
}

func testApproval(id, sessionID string) PendingApproval {
	return PendingApproval{
		ApprovalID: id,
		SessionID:  sessionID,
		ToolName:   "Bash",
		ToolInput:  map[string]any{"command": "rm -rf /"},
		Timestamp:  Timestamp(time.Now()),
	}
}

func TestNewManager(t *testing.T) {
	m := newTestManager(t)
	assert.NotNil(t, m.sessions)
	assert.NotNil(t, m.listeners)
	assert.Equal(t, DefaultIdleTimeout, m.idleTimeout)
}

func TestManager_UpsertCreatesSession(t *testing.T) {
	m := newTestManager(t)

	s := m.Upsert("s1", Update{Cwd: "/x"})
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, StatusIdle, s.Status)
	assert.Equal(t, "/x", s.Cwd)
	assert.False(t, s.LastActivity.Time().IsZero())

	s = m.Upsert("s1", Update{Status: StatusWorking})
	assert.Equal(t, StatusWorking, s.Status)
	assert.Equal(t, "/x", s.Cwd)
}

func TestManager_UpsertBroadcasts(t *testing.T) {
	m := newTestManager(t)
	rec := &recordingListener{}
	m.addListener(rec)

	m.Upsert("s1", Update{Cwd: "/x", Status: StatusWorking})

	require.Equal(t, []EventType{EventSessionUpdate}, rec.types())
	session := rec.last().Payload["session"].(map[string]any)
	assert.Equal(t, "s1", session["id"])
	assert.Equal(t, "working", session["status"])
	assert.NotContains(t, session, "pending")
}

func TestManager_SetPendingUnknownSession(t *testing.T) {
	m := newTestManager(t)
	rec := &recordingListener{}
	m.addListener(rec)

	assert.False(t, m.SetPending("missing", testApproval("a1", "missing")))
	assert.False(t, m.ClearPending("missing", "a1", "allow"))
	assert.Empty(t, rec.types())
}

func TestManager_ApprovalLifecycle(t *testing.T) {
	m := newTestManager(t)
	rec := &recordingListener{}

	m.Upsert("s1", Update{Cwd: "/x"})
	m.addListener(rec)

	require.True(t, m.SetPending("s1", testApproval("a1", "s1")))
	s, ok := m.Get("s1")
	require.True(t, ok)
	assert.Equal(t, StatusWaitingApproval, s.Status)
	require.NotNil(t, s.Pending)
	assert.Equal(t, "a1", s.Pending.ApprovalID)

	require.True(t, m.ClearPending("s1", "a1", "deny"))
	s, _ = m.Get("s1")
	assert.Equal(t, StatusIdle, s.Status)
	assert.Nil(t, s.Pending)

	assert.Equal(t, []EventType{
		EventSessionUpdate,
		EventApprovalRequest,
		EventSessionUpdate,
		EventApprovalResolved,
	}, rec.types())

	resolved := rec.last().Payload
	assert.Equal(t, "s1", resolved["sessionId"])
	assert.Equal(t, "a1", resolved["approvalId"])
	assert.Equal(t, "deny", resolved["decision"])
}

func TestManager_ClearPendingKeepsNewerApproval(t *testing.T) {
	m := newTestManager(t)

	m.Upsert("s1", Update{})
	m.SetPending("s1", testApproval("a1", "s1"))
	m.SetPending("s1", testApproval("a2", "s1"))

	m.ClearPending("s1", "a1", "allow")

	s, _ := m.Get("s1")
	assert.Equal(t, StatusWaitingApproval, s.Status)
	require.NotNil(t, s.Pending)
	assert.Equal(t, "a2", s.Pending.ApprovalID)
}

func TestManager_BroadcastWithoutListeners(t *testing.T) {
	m := newTestManager(t)
	assert.NotPanics(t, func() {
		m.Broadcast(NewHeartbeatEvent(time.Now()))
	})
}

func TestManager_AddThenRemoveListener(t *testing.T) {
	m := newTestManager(t)
	listener := new(MockListener)

	m.addListener(listener)
	m.addListener(listener)
	assert.Equal(t, 1, m.ListenerCount())

	m.RemoveListener(listener)
	m.RemoveListener(listener)
	assert.Equal(t, 0, m.ListenerCount())

	m.Broadcast(NewHeartbeatEvent(time.Now()))
	listener.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestManager_FailedListenerIsIsolated(t *testing.T) {
	m := newTestManager(t)

	broken := new(MockListener)
	broken.On("Deliver", mock.Anything, mock.Anything).Return(errors.New("write failed"))
	healthy := new(MockListener)
	healthy.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	m.addListener(broken)
	m.addListener(healthy)

	m.Broadcast(NewHeartbeatEvent(time.Now()))
	m.Broadcast(NewHeartbeatEvent(time.Now()))

	assert.Equal(t, 1, m.ListenerCount())
	broken.AssertNumberOfCalls(t, "Deliver", 1)
	healthy.AssertNumberOfCalls(t, "Deliver", 2)
}

func TestManager_SubscribeSendsInit(t *testing.T) {
	m := newTestManager(t)
	m.Upsert("s1", Update{Cwd: "/x"})

	rec := &recordingListener{}
	require.NoError(t, m.Subscribe(rec))

	require.Equal(t, []EventType{EventInit}, rec.types())
	sessions := rec.last().Payload["sessions"].([]any)
	assert.Len(t, sessions, 1)
	assert.Equal(t, 1, m.ListenerCount())
}

func TestManager_SubscribeEmptyInit(t *testing.T) {
	m := newTestManager(t)

	rec := &recordingListener{}
	require.NoError(t, m.Subscribe(rec))
	assert.Equal(t, []any{}, rec.last().Payload["sessions"])
}

func TestManager_SubscribeFailure(t *testing.T) {
	m := newTestManager(t)
	listener := new(MockListener)
	listener.On("Deliver", EventInit, mock.Anything).Return(errors.New("closed"))

	assert.Error(t, m.Subscribe(listener))
	assert.Equal(t, 0, m.ListenerCount())
}

func TestManager_RemoveIdleSessions(t *testing.T) {
	m := newTestManager(t)
	base := time.Now()
	m.now = func() time.Time { return base }

	m.Upsert("idle", Update{})
	m.Upsert("waiting", Update{})
	m.SetPending("waiting", testApproval("a1", "waiting"))
	m.Upsert("fresh", Update{})

	rec := &recordingListener{}
	m.addListener(rec)

	m.now = func() time.Time { return base.Add(DefaultIdleTimeout + time.Second) }
	m.mu.Lock()
	m.sessions["fresh"].LastActivity = Timestamp(base.Add(DefaultIdleTimeout))
	m.mu.Unlock()

	m.removeIdleSessions()

	_, ok := m.Get("idle")
	assert.False(t, ok)
	_, ok = m.Get("waiting")
	assert.True(t, ok)
	_, ok = m.Get("fresh")
	assert.True(t, ok)

	require.Equal(t, []EventType{EventSessionUpdate}, rec.types())
	session := rec.last().Payload["session"].(map[string]any)
	assert.Equal(t, "idle", session["id"])
	assert.Equal(t, "idle", session["status"])
}

func TestManager_List(t *testing.T) {
	m := newTestManager(t)
	base := time.Now()

	m.now = func() time.Time { return base }
	m.Upsert("older", Update{})
	m.now = func() time.Time { return base.Add(time.Second) }
	m.Upsert("newer", Update{})

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID)
	assert.Equal(t, "older", list[1].ID)
}

func TestManager_ConcurrentListeners(t *testing.T) {
	m := newTestManager(t)
	m.Upsert("s1", Update{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			l := &recordingListener{}
			m.addListener(l)
			m.RemoveListener(l)
		}()
		go func() {
			defer wg.Done()
			m.Upsert("s1", Update{Status: StatusWorking})
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, m.ListenerCount())
}

func TestTimestampJSON(t *testing.T) {
	ts := Timestamp(time.UnixMilli(1700000000123))

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, "1700000000123", string(data))

	var decoded Timestamp
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Time().Equal(ts.Time()))
}
