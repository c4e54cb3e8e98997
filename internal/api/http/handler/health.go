package handler

import (
	"net/http"

	"github.com/EternisAI/claude-watch/internal/api/http/dto"
	"github.com/EternisAI/claude-watch/internal/broker"
	"github.com/gin-gonic/gin"
)

// PairingState reports whether any device has paired.
type PairingState interface {
	HasCredentials() bool
}

type HealthHandler struct {
	pairing PairingState
	broker  *broker.Broker
}

func NewHealthHandler(pairing PairingState, b *broker.Broker) *HealthHandler {
	return &HealthHandler{pairing: pairing, broker: b}
}

// Check is unauthenticated, so it exposes counts only.
func (h *HealthHandler) Check(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.HealthResponse{
		Status:           "ok",
		Paired:           h.pairing.HasCredentials(),
		Sessions:         len(h.broker.Sessions()),
		PendingApprovals: h.broker.PendingCount(),
	})
}
