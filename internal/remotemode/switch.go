package remotemode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const FileName = "remote-mode"

// Switch is the global remote interception toggle, backed by the presence of
// a marker file.
type Switch struct {
	path string
}

func NewSwitch(stateDir string) *Switch {
	return &Switch{path: filepath.Join(stateDir, FileName)}
}

func (s *Switch) Path() string {
	return s.path
}

func (s *Switch) Enabled() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *Switch) Set(enabled bool) error {
	if !enabled {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove remote mode marker: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	stamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := os.WriteFile(s.path, []byte(stamp), 0o600); err != nil {
		return fmt.Errorf("write remote mode marker: %w", err)
	}
	return nil
}
