package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	internalhttp "github.com/EternisAI/claude-watch/internal/api/http"
	"github.com/EternisAI/claude-watch/internal/approvals"
	"github.com/EternisAI/claude-watch/internal/broker"
	"github.com/EternisAI/claude-watch/internal/pairing"
	"github.com/EternisAI/claude-watch/internal/registry"
	"github.com/EternisAI/claude-watch/internal/remotemode"
	"github.com/EternisAI/claude-watch/internal/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

var tokenSecret = []byte("systemtest-secret-systemtest-sec")

// Env is a fully wired daemon over one credential registry.
type Env struct {
	Engine    *gin.Engine
	Services  *internalhttp.Services
	Approvals *approvals.Store
	Registry  registry.Store
	StateDir  string
}

func NewEnv(t *testing.T, store registry.Store, stateDir string) *Env {
	t.Helper()

	pairingService := NewPairingService(store)

	approvalStore := approvals.NewStore(5 * time.Second)
	manager := sessions.NewManager(sessions.Config{})
	t.Cleanup(func() {
		approvalStore.Close()
		manager.Stop()
	})

	srvs := &internalhttp.Services{
		Pairing:           pairingService,
		Broker:            broker.New(approvalStore, manager),
		Sessions:          manager,
		RemoteMode:        remotemode.NewSwitch(stateDir),
		HeartbeatInterval: time.Hour,
	}

	engine := gin.New()
	internalhttp.SetupRoute(engine, srvs)

	return &Env{
		Engine:    engine,
		Services:  srvs,
		Approvals: approvalStore,
		Registry:  store,
		StateDir:  stateDir,
	}
}

// NewPairingService builds a pairing service the way the daemon does on
// startup, loading whatever the registry already holds.
func NewPairingService(store registry.Store) *pairing.Service {
	svc := pairing.NewService(store, pairing.Config{TokenSecret: tokenSecret, HashCost: bcrypt.MinCost})
	svc.Init(context.Background())
	return svc
}

func (e *Env) Do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var b []byte
	if body != nil {
		b, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.Engine.ServeHTTP(rr, req)
	return rr
}
