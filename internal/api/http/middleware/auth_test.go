package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type staticVerifier struct {
	paired bool
	valid  string
}

func (v staticVerifier) HasCredentials() bool           { return v.paired }
func (v staticVerifier) IsValidToken(token string) bool { return token != "" && token == v.valid }

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("Bearer  abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}

func TestDeviceAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		verifier staticVerifier
		header   string
		query    string
		want     int
	}{
		{"no devices paired", staticVerifier{}, "", "", http.StatusOK},
		{"missing token", staticVerifier{paired: true, valid: "t"}, "", "", http.StatusUnauthorized},
		{"wrong token", staticVerifier{paired: true, valid: "t"}, "Bearer x", "", http.StatusUnauthorized},
		{"header token", staticVerifier{paired: true, valid: "t"}, "Bearer t", "", http.StatusOK},
		{"query token", staticVerifier{paired: true, valid: "t"}, "", "t", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			engine.GET("/x", DeviceAuth(tt.verifier), func(c *gin.Context) { c.Status(http.StatusOK) })

			path := "/x"
			if tt.query != "" {
				path += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}
