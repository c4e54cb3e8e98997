package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultPort      = "3100"
	defaultGrpcAddr  = "localhost:3101"
	defaultStateDir  = ".claude-watch"
	defaultSettings  = ".claude/settings.json"
	clientConfigName = "client.yaml"
	defaultLogLevel  = "WARNING"
	envDaemonURL     = "CLAUDE_WATCH_URL"
	envDaemonPort    = "CLAUDE_WATCH_PORT"
	envStateDir      = "CLAUDE_WATCH_STATE_DIR"
	envSettings      = "CLAUDE_SETTINGS"
	envLogLevel      = "CLAUDE_WATCH_LOG_LEVEL"
)

// options resolves flags and environment for every subcommand.
type options struct {
	v *viper.Viper
}

func (o *options) daemonURL() string {
	if url := o.v.GetString("url"); url != "" {
		return strings.TrimRight(url, "/")
	}
	port := o.v.GetString("port")
	if port == "" {
		port = defaultPort
	}
	return "http://localhost:" + port
}

func (o *options) stateDir() string {
	if dir := o.v.GetString("state_dir"); dir != "" {
		return dir
	}
	return homePath(defaultStateDir)
}

func (o *options) settingsPath() string {
	if path := o.v.GetString("settings"); path != "" {
		return path
	}
	return homePath(defaultSettings)
}

func (o *options) clientConfigPath() string {
	return filepath.Join(o.stateDir(), clientConfigName)
}

func homePath(rel string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return rel
	}
	return filepath.Join(home, rel)
}

func newRootCmd() *cobra.Command {
	opts := &options{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "claude-watch",
		Short:         "Approve Claude Code tool calls from another device",
		Long:          "claude-watch intercepts Claude Code tool calls as a PreToolUse hook and escalates the ones local permission rules cannot decide to a paired device through the claude-watch daemon.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initLogger(cmd.ErrOrStderr(), opts.v.GetString("log_level"))
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("url", "", fmt.Sprintf("daemon base URL (env %s, default http://localhost:%s)", envDaemonURL, defaultPort))
	flags.String("state-dir", "", fmt.Sprintf("state directory (env %s, default ~/%s)", envStateDir, defaultStateDir))
	flags.String("log-level", defaultLogLevel, "log level written to stderr")

	_ = opts.v.BindPFlag("url", flags.Lookup("url"))
	_ = opts.v.BindPFlag("state_dir", flags.Lookup("state-dir"))
	_ = opts.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = opts.v.BindEnv("url", envDaemonURL)
	_ = opts.v.BindEnv("port", envDaemonPort)
	_ = opts.v.BindEnv("state_dir", envStateDir)
	_ = opts.v.BindEnv("settings", envSettings)
	_ = opts.v.BindEnv("log_level", envLogLevel)

	rootCmd.AddCommand(
		newHookCmd(opts),
		newRemoteModeCmd(opts),
		newPairCmd(opts),
		newRespondCmd(opts),
		newWatchCmd(opts),
	)

	return rootCmd
}

func initLogger(w io.Writer, level string) {
	var l slog.Level
	switch strings.ToUpper(level) {
	case "ERROR":
		l = slog.LevelError
	case "INFO":
		l = slog.LevelInfo
	case "DEBUG":
		l = slog.LevelDebug
	default:
		l = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})))
}
