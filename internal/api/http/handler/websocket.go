package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/EternisAI/claude-watch/internal/api/http/dto"
	"github.com/EternisAI/claude-watch/internal/permission"
	"github.com/EternisAI/claude-watch/internal/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	socketMessageRespond = "respond"
	socketReplyRespond   = "respond_result"

	socketReplyBuffer = 16
	socketWriteWait   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the phone client is served from another origin; auth is the bearer token
	CheckOrigin: func(*http.Request) bool { return true },
}

// WebSocket carries the same events as Events and additionally accepts
// respond frames from the device.
func (h *SessionsHandler) WebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	feed := sessions.NewFeed(sessions.DefaultFeedBuffer)
	if err := h.sessions.Subscribe(feed); err != nil {
		slog.Error("Failed to subscribe websocket", "error", err)
		return
	}
	defer func() {
		h.sessions.RemoveListener(feed)
		feed.Close()
	}()

	slog.Debug("WebSocket subscriber connected", "client_ip", c.ClientIP())

	replies := make(chan dto.SocketReply, socketReplyBuffer)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		h.readSocket(conn, replies)
	}()

	h.writeSocket(conn, feed, replies, readDone, c.Request.Context().Done())
	slog.Debug("WebSocket subscriber disconnected", "client_ip", c.ClientIP())
}

func (h *SessionsHandler) readSocket(conn *websocket.Conn, replies chan<- dto.SocketReply) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg dto.SocketMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("Ignoring malformed websocket message", "error", err)
			continue
		}
		if msg.Type != socketMessageRespond {
			continue
		}

		reply := dto.SocketReply{Type: socketReplyRespond, ApprovalID: msg.ApprovalID, OK: true}
		if err := h.broker.Respond(msg.SessionID, msg.ApprovalID, permission.Decision(msg.Decision), msg.Reason); err != nil {
			reply.OK = false
			reply.Error = err.Error()
		}

		select {
		case replies <- reply:
		default:
		}
	}
}

func (h *SessionsHandler) writeSocket(conn *websocket.Conn, feed *sessions.Feed, replies <-chan dto.SocketReply, readDone, ctxDone <-chan struct{}) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		var (
			payload []byte
			err     error
		)

		select {
		case <-readDone:
			return
		case <-ctxDone:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon shutting down"),
				time.Now().Add(socketWriteWait))
			return
		case frame, ok := <-feed.Frames():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow"),
					time.Now().Add(socketWriteWait))
				return
			}
			payload = frame.Payload
		case reply := <-replies:
			payload, err = json.Marshal(reply)
		case now := <-ticker.C:
			payload, err = sessions.Encode(sessions.NewHeartbeatEvent(now))
		}
		if err != nil {
			slog.Error("Failed to encode websocket frame", "error", err)
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Debug("WebSocket write failed", "error", err)
			return
		}
	}
}
