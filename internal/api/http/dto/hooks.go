package dto

type PreToolUseRequest struct {
	SessionID string         `json:"session_id" binding:"required"`
	ToolName  string         `json:"tool_name" binding:"required"`
	ToolInput map[string]any `json:"tool_input"`
	Cwd       string         `json:"cwd"`
}

type PreToolUseResponse struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

type RemoteModeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type RemoteModeResponse struct {
	RemoteMode bool `json:"remoteMode"`
}
