package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/EternisAI/claude-watch/internal/api/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T, env *Env) {
	rr := env.Do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var health dto.HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.Paired)
	assert.Zero(t, health.PendingApprovals)
}
