package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/EternisAI/claude-watch/internal/api/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Pair exchanges the active PIN for a device token.
func Pair(t *testing.T, env *Env) dto.PairResponse {
	t.Helper()
	pin, ok := env.Services.Pairing.CurrentPin()
	require.True(t, ok)

	rr := env.Do(http.MethodPost, "/auth/pair", dto.PairRequest{Pin: pin.Value}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp dto.PairResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestPairing(t *testing.T, env *Env) {
	t.Run("open until first pairing", func(t *testing.T) {
		if env.Services.Pairing.HasCredentials() {
			t.Skip("registry already holds devices")
		}
		rr := env.Do(http.MethodGet, "/sessions", nil, "")
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	used, ok := env.Services.Pairing.CurrentPin()
	require.True(t, ok)
	cred := Pair(t, env)

	t.Run("pin is single use", func(t *testing.T) {
		next, _ := env.Services.Pairing.CurrentPin()
		if next.Value == used.Value {
			t.Skip("regenerated pin collided with the used one")
		}
		rr := env.Do(http.MethodPost, "/auth/pair", dto.PairRequest{Pin: used.Value}, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("token required", func(t *testing.T) {
		rr := env.Do(http.MethodGet, "/sessions", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		rr = env.Do(http.MethodGet, "/sessions", nil, cred.Token)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("credentials persist", func(t *testing.T) {
		devices, err := env.Registry.Load(t.Context())
		require.NoError(t, err)

		var found bool
		for _, d := range devices {
			if d.ID == cred.DeviceID {
				found = true
				assert.NotContains(t, d.TokenHash, cred.Token)
			}
		}
		assert.True(t, found)

		restarted := NewPairingService(env.Registry)
		assert.True(t, restarted.HasCredentials())
		assert.True(t, restarted.IsValidToken(cred.Token))
	})
}
