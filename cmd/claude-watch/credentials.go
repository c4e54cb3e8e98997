package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var errNotPaired = errors.New("not paired, run claude-watch pair --pin <PIN> first")

// clientConfig is what a paired CLI remembers about its daemon.
type clientConfig struct {
	URL      string `yaml:"url"`
	DeviceID string `yaml:"device_id"`
	Token    string `yaml:"token"`
}

func loadClientConfig(path string) (clientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return clientConfig{}, errNotPaired
		}
		return clientConfig{}, fmt.Errorf("read client config: %w", err)
	}

	var cfg clientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return clientConfig{}, fmt.Errorf("parse client config: %w", err)
	}
	if cfg.Token == "" {
		return clientConfig{}, errNotPaired
	}
	return cfg, nil
}

func saveClientConfig(path string, cfg clientConfig) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal client config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write client config: %w", err)
	}
	return nil
}
