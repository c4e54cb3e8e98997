package sessions

import "time"

type EventType string

const (
	EventInit             EventType = "init"
	EventSessionUpdate    EventType = "session_update"
	EventApprovalRequest  EventType = "approval_request"
	EventApprovalResolved EventType = "approval_resolved"
	EventHeartbeat        EventType = "heartbeat"
)

// Event is one message on the subscriber stream.
type Event interface {
	EventType() EventType
}

type InitEvent struct {
	Type     EventType `json:"type"`
	Sessions []Session `json:"sessions"`
}

type SessionUpdateEvent struct {
	Type    EventType `json:"type"`
	Session Session   `json:"session"`
}

type ApprovalRequestEvent struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"sessionId"`
	Approval  PendingApproval `json:"approval"`
}

type ApprovalResolvedEvent struct {
	Type       EventType `json:"type"`
	SessionID  string    `json:"sessionId"`
	ApprovalID string    `json:"approvalId"`
	Decision   string    `json:"decision"`
}

type HeartbeatEvent struct {
	Type      EventType `json:"type"`
	Timestamp Timestamp `json:"timestamp"`
}

func (InitEvent) EventType() EventType             { return EventInit }
func (SessionUpdateEvent) EventType() EventType    { return EventSessionUpdate }
func (ApprovalRequestEvent) EventType() EventType  { return EventApprovalRequest }
func (ApprovalResolvedEvent) EventType() EventType { return EventApprovalResolved }
func (HeartbeatEvent) EventType() EventType        { return EventHeartbeat }

func NewInitEvent(sessions []Session) InitEvent {
	if sessions == nil {
		sessions = []Session{}
	}
	return InitEvent{Type: EventInit, Sessions: sessions}
}

func NewSessionUpdateEvent(s Session) SessionUpdateEvent {
	return SessionUpdateEvent{Type: EventSessionUpdate, Session: s}
}

func NewApprovalRequestEvent(sessionID string, approval PendingApproval) ApprovalRequestEvent {
	return ApprovalRequestEvent{Type: EventApprovalRequest, SessionID: sessionID, Approval: approval}
}

func NewApprovalResolvedEvent(sessionID, approvalID, decision string) ApprovalResolvedEvent {
	return ApprovalResolvedEvent{
		Type:       EventApprovalResolved,
		SessionID:  sessionID,
		ApprovalID: approvalID,
		Decision:   decision,
	}
}

func NewHeartbeatEvent(now time.Time) HeartbeatEvent {
	return HeartbeatEvent{Type: EventHeartbeat, Timestamp: Timestamp(now)}
}
