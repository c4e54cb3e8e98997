package dto

type RespondRequest struct {
	ApprovalID string `json:"approvalId" binding:"required"`
	Decision   string `json:"decision" binding:"required,oneof=allow deny"`
	Reason     string `json:"reason"`
}

type RespondResponse struct {
	OK bool `json:"ok"`
}

// SocketMessage is a frame sent by a WebSocket subscriber.
type SocketMessage struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	ApprovalID string `json:"approvalId"`
	Decision   string `json:"decision"`
	Reason     string `json:"reason,omitempty"`
}

// SocketReply answers a SocketMessage on the same connection.
type SocketReply struct {
	Type       string `json:"type"`
	ApprovalID string `json:"approvalId,omitempty"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}
