package pairing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/EternisAI/claude-watch/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type failingStore struct {
	loadErr error
	addErr  error
}

func (f *failingStore) Load(context.Context) ([]registry.Device, error) { return nil, f.loadErr }
func (f *failingStore) Add(context.Context, registry.Device) error      { return f.addErr }
func (f *failingStore) Close() error                                     { return nil }

func newTestService(t *testing.T, store registry.Store) *Service {
	t.Helper()
	if store == nil {
		store = registry.NewFileStore(filepath.Join(t.TempDir(), registry.DevicesFileName))
	}
	svc := NewService(store, Config{
		TokenSecret: []byte("0123456789abcdef0123456789abcdef"),
		HashCost:    bcrypt.MinCost,
	})
	svc.Init(context.Background())
	return svc
}

func TestGeneratePin(t *testing.T) {
	for i := 0; i < 200; i++ {
		pin, err := generatePin()
		require.NoError(t, err)
		assert.Len(t, pin, 6)
		assert.NotEqual(t, byte('0'), pin[0])
	}
}

func TestInitIssuesPin(t *testing.T) {
	svc := newTestService(t, nil)

	pin, ok := svc.CurrentPin()
	require.True(t, ok)
	assert.Len(t, pin.Value, 6)
	assert.WithinDuration(t, time.Now().Add(DefaultPinTTL), pin.ExpiresAt, 5*time.Second)
	assert.False(t, svc.HasCredentials())
}

func TestValidatePin(t *testing.T) {
	svc := newTestService(t, nil)
	pin, _ := svc.CurrentPin()

	cred, err := svc.ValidatePin(context.Background(), pin.Value)
	require.NoError(t, err)
	assert.NotEmpty(t, cred.DeviceID)
	assert.NotEmpty(t, cred.Token)
	assert.True(t, svc.HasCredentials())
	assert.True(t, svc.IsValidToken(cred.Token))

	_, ok := svc.CurrentPin()
	assert.True(t, ok, "a new pin replaces the consumed one")
}

func TestValidatePinSingleUse(t *testing.T) {
	svc := newTestService(t, nil)
	pin, _ := svc.CurrentPin()

	_, err := svc.ValidatePin(context.Background(), pin.Value)
	require.NoError(t, err)

	next, _ := svc.CurrentPin()
	if next.Value == pin.Value {
		t.Skip("regenerated pin collided with the consumed one")
	}
	_, err = svc.ValidatePin(context.Background(), pin.Value)
	assert.ErrorIs(t, err, ErrPinMismatch)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidatePinMismatch(t *testing.T) {
	svc := newTestService(t, nil)
	pin, _ := svc.CurrentPin()

	wrong := "000000"
	if pin.Value == wrong {
		wrong = "000001"
	}
	_, err := svc.ValidatePin(context.Background(), wrong)
	assert.ErrorIs(t, err, ErrPinMismatch)

	// a failed attempt leaves the pin usable
	_, err = svc.ValidatePin(context.Background(), pin.Value)
	assert.NoError(t, err)
}

func TestValidatePinExpired(t *testing.T) {
	svc := newTestService(t, nil)
	pin, _ := svc.CurrentPin()

	svc.now = func() time.Time { return pin.ExpiresAt.Add(time.Second) }

	_, ok := svc.CurrentPin()
	assert.False(t, ok)

	_, err := svc.ValidatePin(context.Background(), pin.Value)
	assert.ErrorIs(t, err, ErrPinExpired)
	assert.False(t, svc.HasCredentials())
}

func TestValidatePinNotActive(t *testing.T) {
	svc := NewService(&failingStore{}, Config{TokenSecret: []byte("secret")})

	_, err := svc.ValidatePin(context.Background(), "123456")
	assert.ErrorIs(t, err, ErrPinNotActive)
}

func TestValidatePinPersistFailure(t *testing.T) {
	svc := newTestService(t, &failingStore{addErr: errors.New("disk full")})
	pin, _ := svc.CurrentPin()

	_, err := svc.ValidatePin(context.Background(), pin.Value)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.False(t, svc.HasCredentials())

	_, ok := svc.CurrentPin()
	assert.True(t, ok, "a fresh pin is issued after the attempt")
}

func TestInitWithUnreadableRegistry(t *testing.T) {
	svc := newTestService(t, &failingStore{loadErr: errors.New("corrupt")})

	assert.False(t, svc.HasCredentials())
	_, ok := svc.CurrentPin()
	assert.True(t, ok)
}

func TestCredentialsSurviveRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), registry.DevicesFileName)
	cfg := Config{TokenSecret: []byte("0123456789abcdef0123456789abcdef"), HashCost: bcrypt.MinCost}

	first := NewService(registry.NewFileStore(path), cfg)
	first.Init(context.Background())
	pin, _ := first.CurrentPin()
	cred, err := first.ValidatePin(context.Background(), pin.Value)
	require.NoError(t, err)

	second := NewService(registry.NewFileStore(path), cfg)
	second.Init(context.Background())
	assert.True(t, second.HasCredentials())
	assert.True(t, second.IsValidToken(cred.Token))
}

func TestIsValidToken(t *testing.T) {
	svc := newTestService(t, nil)
	pin, _ := svc.CurrentPin()
	cred, err := svc.ValidatePin(context.Background(), pin.Value)
	require.NoError(t, err)

	assert.True(t, svc.IsValidToken(cred.Token))
	assert.False(t, svc.IsValidToken(""))
	assert.False(t, svc.IsValidToken("not-a-token"))
	assert.False(t, svc.IsValidToken(cred.Token+"x"))

	// signed with the right key but never registered
	forged, err := svc.tokens.Issue("unknown-device", time.Now())
	require.NoError(t, err)
	assert.False(t, svc.IsValidToken(forged))

	other := NewTokenIssuer([]byte("another-secret-another-secret-12"))
	foreign, err := other.Issue(cred.DeviceID, time.Now())
	require.NoError(t, err)
	assert.False(t, svc.IsValidToken(foreign))
}

func TestIsValidTokenConcurrent(t *testing.T) {
	svc := newTestService(t, nil)
	pin, _ := svc.CurrentPin()
	cred, err := svc.ValidatePin(context.Background(), pin.Value)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, svc.IsValidToken(cred.Token))
		}()
	}
	wg.Wait()
}

func TestOnPinCallback(t *testing.T) {
	var mu sync.Mutex
	var issued []PIN

	svc := NewService(&failingStore{}, Config{
		TokenSecret: []byte("secret"),
		OnPin: func(p PIN) {
			mu.Lock()
			issued = append(issued, p)
			mu.Unlock()
		},
	})
	svc.Init(context.Background())
	svc.RegeneratePin()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, issued, 2)
}

func TestStartPinRefresh(t *testing.T) {
	svc := newTestService(t, nil)
	pin, _ := svc.CurrentPin()

	var mu sync.Mutex
	now := pin.ExpiresAt.Add(time.Second)
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.StartPinRefresh(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, ok := svc.CurrentPin()
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"))

	token, err := issuer.Issue("device-1", time.Now())
	require.NoError(t, err)

	id, err := issuer.DeviceID(token)
	require.NoError(t, err)
	assert.Equal(t, "device-1", id)

	_, err = issuer.DeviceID("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLoadOrCreateSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.secret")

	first, err := LoadOrCreateSecret(path)
	require.NoError(t, err)
	assert.Len(t, first, tokenSecretSize)

	second, err := LoadOrCreateSecret(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrCreateSecret_TruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.secret")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := LoadOrCreateSecret(path)
	assert.ErrorIs(t, err, ErrShortSecret)

	kept, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "short", string(kept))
}

func TestHashToken(t *testing.T) {
	token := "a-bearer-token"

	hash, err := HashToken(token, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, "$2a$", hash[:4])

	assert.True(t, CheckToken(token, hash))
	assert.False(t, CheckToken("another-token", hash))
	assert.False(t, CheckToken("", hash))
}
