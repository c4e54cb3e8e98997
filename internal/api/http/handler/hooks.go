package handler

import (
	"log/slog"
	"net/http"

	"github.com/EternisAI/claude-watch/internal/api/http/dto"
	"github.com/EternisAI/claude-watch/internal/broker"
	"github.com/EternisAI/claude-watch/internal/remotemode"
	"github.com/gin-gonic/gin"
)

type HooksHandler struct {
	broker *broker.Broker
	remote *remotemode.Switch
}

func NewHooksHandler(b *broker.Broker, remote *remotemode.Switch) *HooksHandler {
	return &HooksHandler{broker: b, remote: remote}
}

// PreToolUse blocks until the tool call is decided remotely or times out.
func (h *HooksHandler) PreToolUse(c *gin.Context) {
	var req dto.PreToolUseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.broker.RequestApproval(c.Request.Context(), broker.ToolCall{
		SessionID: req.SessionID,
		ToolName:  req.ToolName,
		ToolInput: req.ToolInput,
		Cwd:       req.Cwd,
	})

	c.JSON(http.StatusOK, dto.PreToolUseResponse{
		Decision: result.Decision.String(),
		Reason:   result.Reason,
	})
}

func (h *HooksHandler) GetRemoteMode(c *gin.Context) {
	c.JSON(http.StatusOK, dto.RemoteModeResponse{RemoteMode: h.remote.Enabled()})
}

func (h *HooksHandler) SetRemoteMode(c *gin.Context) {
	var req dto.RemoteModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.remote.Set(*req.Enabled); err != nil {
		slog.Error("Failed to toggle remote mode", "enabled", *req.Enabled, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle remote mode"})
		return
	}

	slog.Info("Remote mode toggled", "enabled", *req.Enabled)
	c.JSON(http.StatusOK, dto.RemoteModeResponse{RemoteMode: *req.Enabled})
}
