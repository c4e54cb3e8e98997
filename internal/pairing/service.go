package pairing

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/EternisAI/claude-watch/internal/registry"
	"github.com/google/uuid"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrPinNotActive = fmt.Errorf("%w: no active pin", ErrUnauthorized)
	ErrPinExpired   = fmt.Errorf("%w: pin expired", ErrUnauthorized)
	ErrPinMismatch  = fmt.Errorf("%w: pin mismatch", ErrUnauthorized)
)

// Credential is handed to a device once, on successful pairing.
type Credential struct {
	DeviceID  string
	Token     string
	CreatedAt time.Time
}

type Config struct {
	PinTTL      time.Duration
	TokenSecret []byte
	HashCost    int
	// OnPin is called with every newly issued PIN.
	OnPin func(PIN)
}

// Service owns the active pairing PIN and the registry of paired devices.
type Service struct {
	mu       sync.RWMutex
	pin      *PIN
	devices  map[string]registry.Device
	verified map[string]string // token digest -> device id

	store    registry.Store
	tokens   *TokenIssuer
	pinTTL   time.Duration
	hashCost int
	onPin    func(PIN)
	now      func() time.Time
}

func NewService(store registry.Store, cfg Config) *Service {
	if cfg.PinTTL <= 0 {
		cfg.PinTTL = DefaultPinTTL
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = DefaultHashCost
	}
	return &Service{
		devices:  make(map[string]registry.Device),
		verified: make(map[string]string),
		store:    store,
		tokens:   NewTokenIssuer(cfg.TokenSecret),
		pinTTL:   cfg.PinTTL,
		hashCost: cfg.HashCost,
		onPin:    cfg.OnPin,
		now:      time.Now,
	}
}

// Init loads the registry and issues the first PIN. A registry that cannot
// be read is treated as empty.
func (s *Service) Init(ctx context.Context) {
	devices, err := s.store.Load(ctx)
	if err != nil {
		slog.Warn("Failed to load device registry, starting empty", "error", err)
		devices = nil
	}

	s.mu.Lock()
	for _, d := range devices {
		s.devices[d.ID] = d
	}
	count := len(s.devices)
	s.mu.Unlock()

	slog.Info("Device registry loaded", "devices", count)
	s.RegeneratePin()
}

// RegeneratePin replaces the active PIN with a fresh one.
func (s *Service) RegeneratePin() PIN {
	value, err := generatePin()
	if err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	pin := PIN{Value: value, ExpiresAt: s.now().Add(s.pinTTL)}

	s.mu.Lock()
	s.pin = &pin
	s.mu.Unlock()

	slog.Debug("Pairing PIN issued", "expires_at", pin.ExpiresAt)
	if s.onPin != nil {
		s.onPin(pin)
	}
	return pin
}

// CurrentPin returns the active PIN, if any.
func (s *Service) CurrentPin() (PIN, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pin == nil || s.pin.Expired(s.now()) {
		return PIN{}, false
	}
	return *s.pin, true
}

// ValidatePin exchanges the active PIN for a new device credential. The PIN
// is consumed on a match even if persisting the credential fails.
func (s *Service) ValidatePin(ctx context.Context, candidate string) (Credential, error) {
	s.mu.Lock()
	switch {
	case s.pin == nil:
		s.mu.Unlock()
		return Credential{}, ErrPinNotActive
	case s.pin.Expired(s.now()):
		s.mu.Unlock()
		return Credential{}, ErrPinExpired
	case subtle.ConstantTimeCompare([]byte(candidate), []byte(s.pin.Value)) != 1:
		s.mu.Unlock()
		return Credential{}, ErrPinMismatch
	}
	s.pin = nil
	s.mu.Unlock()

	defer s.RegeneratePin()

	cred, device, err := s.mint()
	if err != nil {
		return Credential{}, err
	}

	if err := s.store.Add(ctx, device); err != nil {
		return Credential{}, fmt.Errorf("persist device: %w", err)
	}

	s.mu.Lock()
	s.devices[device.ID] = device
	s.verified[digest(cred.Token)] = device.ID
	total := len(s.devices)
	s.mu.Unlock()

	slog.Info("Device paired", "device_id", device.ID, "total_devices", total)
	return cred, nil
}

func (s *Service) mint() (Credential, registry.Device, error) {
	now := s.now()
	deviceID := uuid.New().String()

	token, err := s.tokens.Issue(deviceID, now)
	if err != nil {
		return Credential{}, registry.Device{}, err
	}
	hash, err := HashToken(token, s.hashCost)
	if err != nil {
		return Credential{}, registry.Device{}, err
	}

	cred := Credential{DeviceID: deviceID, Token: token, CreatedAt: now}
	device := registry.Device{ID: deviceID, TokenHash: hash, CreatedAt: now}
	return cred, device, nil
}

// IsValidToken reports whether token belongs to a paired device.
func (s *Service) IsValidToken(token string) bool {
	if token == "" {
		return false
	}
	key := digest(token)

	s.mu.RLock()
	if deviceID, ok := s.verified[key]; ok {
		_, known := s.devices[deviceID]
		s.mu.RUnlock()
		return known
	}
	s.mu.RUnlock()

	deviceID, err := s.tokens.DeviceID(token)
	if err != nil {
		return false
	}

	s.mu.RLock()
	device, ok := s.devices[deviceID]
	s.mu.RUnlock()
	if !ok || !CheckToken(token, device.TokenHash) {
		return false
	}

	s.mu.Lock()
	s.verified[key] = deviceID
	s.mu.Unlock()
	return true
}

// HasCredentials reports whether any device has ever been paired. Until one
// has, the HTTP layer does not enforce authentication.
func (s *Service) HasCredentials() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices) > 0
}

// StartPinRefresh replaces an expired PIN on every tick until ctx is done.
func (s *Service) StartPinRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshExpiredPin()
		}
	}
}

func (s *Service) refreshExpiredPin() {
	s.mu.RLock()
	expired := s.pin != nil && s.pin.Expired(s.now())
	s.mu.RUnlock()

	if expired {
		slog.Info("Pairing PIN expired, issuing a new one")
		s.RegeneratePin()
	}
}
