package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/EternisAI/claude-watch/internal/api/http/dto"
	"github.com/EternisAI/claude-watch/internal/pairing"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	pairing *pairing.Service
}

func NewAuthHandler(pairingService *pairing.Service) *AuthHandler {
	return &AuthHandler{pairing: pairingService}
}

func (h *AuthHandler) Pair(c *gin.Context) {
	var req dto.PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cred, err := h.pairing.ValidatePin(c.Request.Context(), req.Pin)
	if err != nil {
		if errors.Is(err, pairing.ErrUnauthorized) {
			slog.Warn("Pairing attempt rejected", "client_ip", c.ClientIP(), "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired PIN"})
			return
		}
		slog.Error("Failed to pair device", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to pair device"})
		return
	}

	c.JSON(http.StatusOK, dto.PairResponse{Token: cred.Token, DeviceID: cred.DeviceID})
}
