package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	DevicesFileName = "devices.json"

	storeDirMode   = 0o700
	devicesFileMod = 0o600
)

type fileDevice struct {
	DeviceID  string `json:"deviceId"`
	TokenHash string `json:"tokenHash"`
	CreatedAt int64  `json:"createdAt"`
}

type devicesFile struct {
	Devices []fileDevice `json:"devices"`
}

// FileStore keeps the registry in a single JSON file, rewritten atomically on
// every Add.
type FileStore struct {
	path    string
	mu      sync.Mutex
	devices []fileDevice
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: filepath.Clean(path)}
}

func (s *FileStore) Load(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.devices = nil
			return []Device{}, nil
		}
		return nil, fmt.Errorf("read devices file: %w", err)
	}

	var parsed devicesFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse devices file: %w", err)
	}
	s.devices = parsed.Devices

	out := make([]Device, 0, len(parsed.Devices))
	for _, d := range parsed.Devices {
		out = append(out, Device{
			ID:        d.DeviceID,
			TokenHash: d.TokenHash,
			CreatedAt: time.UnixMilli(d.CreatedAt),
		})
	}
	return out, nil
}

func (s *FileStore) Add(ctx context.Context, d Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(append([]fileDevice(nil), s.devices...), fileDevice{
		DeviceID:  d.ID,
		TokenHash: d.TokenHash,
		CreatedAt: d.CreatedAt.UnixMilli(),
	})

	data, err := json.MarshalIndent(devicesFile{Devices: next}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode devices file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), storeDirMode); err != nil {
		return fmt.Errorf("create devices directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), DevicesFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp devices file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write devices file: %w", err)
	}
	if err := tmp.Chmod(devicesFileMod); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod devices file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close devices file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace devices file: %w", err)
	}

	s.devices = next
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
