package http

import (
	"time"

	"github.com/EternisAI/claude-watch/internal/api/http/handler"
	"github.com/EternisAI/claude-watch/internal/api/http/middleware"
	"github.com/EternisAI/claude-watch/internal/broker"
	"github.com/EternisAI/claude-watch/internal/pairing"
	"github.com/EternisAI/claude-watch/internal/remotemode"
	"github.com/EternisAI/claude-watch/internal/sessions"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Pairing           *pairing.Service
	Broker            *broker.Broker
	Sessions          *sessions.Manager
	RemoteMode        *remotemode.Switch
	HeartbeatInterval time.Duration
}

func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler(srvs.Pairing, srvs.Broker)
	authHandler := handler.NewAuthHandler(srvs.Pairing)
	hooksHandler := handler.NewHooksHandler(srvs.Broker, srvs.RemoteMode)
	sessionsHandler := handler.NewSessionsHandler(srvs.Broker, srvs.Sessions, srvs.HeartbeatInterval)

	// Pairing and the local hook intake stay open
	engine.GET("/health", healthHandler.Check)
	engine.POST("/auth/pair", authHandler.Pair)
	engine.POST("/hooks/pre-tool-use", hooksHandler.PreToolUse)

	protected := engine.Group("", middleware.DeviceAuth(srvs.Pairing))
	{
		protected.GET("/hooks/remote-mode", hooksHandler.GetRemoteMode)
		protected.POST("/hooks/remote-mode", hooksHandler.SetRemoteMode)

		protected.GET("/sessions", sessionsHandler.List)
		protected.GET("/sessions/events", sessionsHandler.Events)
		protected.GET("/sessions/ws", sessionsHandler.WebSocket)
		protected.POST("/sessions/:id/respond", sessionsHandler.Respond)
	}
}
