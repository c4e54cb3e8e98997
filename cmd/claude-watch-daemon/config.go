package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/EternisAI/claude-watch/internal/api/http"
	"github.com/EternisAI/claude-watch/internal/approvals"
	"github.com/EternisAI/claude-watch/internal/db"
	grpcserver "github.com/EternisAI/claude-watch/internal/grpc/server"
	"github.com/EternisAI/claude-watch/internal/pairing"
	"github.com/EternisAI/claude-watch/internal/registry"
	"github.com/EternisAI/claude-watch/internal/sessions"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log       LogConfig         `mapstructure:"log"`
	Http      http.Config       `mapstructure:"http"`
	Grpc      grpcserver.Config `mapstructure:"grpc"`
	StateDir  string            `mapstructure:"state_dir"`
	Auth      AuthConfig        `mapstructure:"auth"`
	Registry  registry.Config   `mapstructure:"registry"`
	Sessions  SessionsConfig    `mapstructure:"sessions"`
	Approvals ApprovalsConfig   `mapstructure:"approvals"`
	Stream    StreamConfig      `mapstructure:"stream"`
}

type AuthConfig struct {
	PinTTL      time.Duration `mapstructure:"pin_ttl"`
	TokenSecret string        `mapstructure:"token_secret" json:"-"`
	HashCost    int           `mapstructure:"hash_cost"`
}

type SessionsConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type ApprovalsConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type StreamConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

var config Config

func setDefaults() {
	viper.SetDefault("log.level", LOG_LEVEL_INFO)
	viper.SetDefault("log.format", LOG_FORMAT_TEXT)
	viper.SetDefault("http.port", 3100)
	viper.SetDefault("grpc.enabled", false)
	viper.SetDefault("grpc.port", 3101)
	viper.SetDefault("grpc.tls.enabled", false)
	viper.SetDefault("grpc.tls.cert_file", "")
	viper.SetDefault("grpc.tls.key_file", "")
	viper.SetDefault("state_dir", "~/.claude-watch")
	viper.SetDefault("auth.pin_ttl", pairing.DefaultPinTTL)
	viper.SetDefault("auth.token_secret", "")
	viper.SetDefault("auth.hash_cost", pairing.DefaultHashCost)
	viper.SetDefault("registry.driver", registry.DriverFile)
	viper.SetDefault("registry.path", "")
	viper.SetDefault("registry.db.url", "")
	viper.SetDefault("registry.db.schema", db.DefaultSchema)
	viper.SetDefault("registry.db.max_conns", db.DefaultMaxConns)
	viper.SetDefault("sessions.idle_timeout", sessions.DefaultIdleTimeout)
	viper.SetDefault("sessions.sweep_interval", sessions.DefaultSweepInterval)
	viper.SetDefault("approvals.timeout", approvals.DefaultTimeout)
	viper.SetDefault("stream.heartbeat_interval", grpcserver.DefaultHeartbeatInterval)
}

func InitConfig() {
	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/claude-watch-daemon")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("http.port", "CLAUDE_WATCH_PORT")
	_ = viper.BindEnv("state_dir", "CLAUDE_WATCH_STATE_DIR")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(err)
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		panic(err)
	}

	stateDir, err := expandHome(config.StateDir)
	if err != nil {
		panic(err)
	}
	config.StateDir = stateDir

	initLogger(config.Log)

	// Pretty print config as JSON (only at DEBUG level)
	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		configJSON, err := json.MarshalIndent(config, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}

func expandHome(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, rest), nil
}
