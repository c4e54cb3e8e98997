package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const tokenQueryParam = "token"

// TokenVerifier checks device bearer tokens.
type TokenVerifier interface {
	HasCredentials() bool
	IsValidToken(token string) bool
}

// DeviceAuth requires a paired device token, taken from the Authorization
// header or the token query parameter. Until the first device pairs, every
// request is let through so that pairing can be bootstrapped.
func DeviceAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !verifier.HasCredentials() {
			c.Next()
			return
		}

		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query(tokenQueryParam)
		}

		if !verifier.IsValidToken(token) {
			slog.Warn("Rejected unauthenticated request",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Next()
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
