package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/EternisAI/claude-watch/internal/api/http/dto"
	"github.com/EternisAI/claude-watch/internal/broker"
	"github.com/EternisAI/claude-watch/internal/permission"
	"github.com/EternisAI/claude-watch/internal/sessions"
	"github.com/gin-gonic/gin"
)

const DefaultHeartbeatInterval = 30 * time.Second

type SessionsHandler struct {
	broker    *broker.Broker
	sessions  *sessions.Manager
	heartbeat time.Duration
}

func NewSessionsHandler(b *broker.Broker, manager *sessions.Manager, heartbeat time.Duration) *SessionsHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &SessionsHandler{broker: b, sessions: manager, heartbeat: heartbeat}
}

func (h *SessionsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.broker.Sessions())
}

func (h *SessionsHandler) Respond(c *gin.Context) {
	var req dto.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.broker.Respond(c.Param("id"), req.ApprovalID, permission.Decision(req.Decision), req.Reason)
	switch {
	case errors.Is(err, broker.ErrApprovalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Approval not found or already resolved"})
	case errors.Is(err, broker.ErrInvalidDecision):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		slog.Error("Failed to respond to approval", "approval_id", req.ApprovalID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to respond"})
	default:
		c.JSON(http.StatusOK, dto.RespondResponse{OK: true})
	}
}

// Events streams session events as server-sent events. The first event is
// always init, followed by live events and a heartbeat on every interval.
func (h *SessionsHandler) Events(c *gin.Context) {
	feed := sessions.NewFeed(sessions.DefaultFeedBuffer)
	if err := h.sessions.Subscribe(feed); err != nil {
		slog.Error("Failed to subscribe event stream", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open event stream"})
		return
	}
	defer func() {
		h.sessions.RemoveListener(feed)
		feed.Close()
		slog.Debug("Event stream closed", "client_ip", c.ClientIP())
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	done := c.Request.Context().Done()
	c.Stream(func(io.Writer) bool {
		select {
		case <-done:
			return false
		case frame, ok := <-feed.Frames():
			if !ok {
				return false
			}
			c.SSEvent(string(frame.Type), string(frame.Payload))
			return true
		case now := <-ticker.C:
			payload, err := sessions.Encode(sessions.NewHeartbeatEvent(now))
			if err != nil {
				return false
			}
			c.SSEvent(string(sessions.EventHeartbeat), string(payload))
			return true
		}
	})
}
