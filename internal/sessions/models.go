package sessions

import (
	"encoding/json"
	"strconv"
	"time"
)

type Status string

const (
	StatusIdle            Status = "idle"
	StatusWorking         Status = "working"
	StatusWaitingApproval Status = "waiting_approval"
	// StatusError is part of the wire model; nothing transitions into it yet.
	StatusError Status = "error"
)

// Timestamp marshals as unix milliseconds.
type Timestamp time.Time

func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, time.Time(t).UnixMilli(), 10), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*t = Timestamp(time.UnixMilli(ms))
	return nil
}

type PendingApproval struct {
	ApprovalID string         `json:"approvalId"`
	SessionID  string         `json:"sessionId"`
	ToolName   string         `json:"toolName"`
	ToolInput  map[string]any `json:"toolInput"`
	Timestamp  Timestamp      `json:"timestamp"`
}

type Session struct {
	ID           string           `json:"id"`
	Status       Status           `json:"status"`
	Cwd          string           `json:"cwd"`
	LastActivity Timestamp        `json:"lastActivity"`
	Pending      *PendingApproval `json:"pending,omitempty"`
}

// Update carries the fields Upsert merges into a session. Empty fields are
// left unchanged.
type Update struct {
	Status Status
	Cwd    string
}
