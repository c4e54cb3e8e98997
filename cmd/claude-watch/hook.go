package main

import (
	"github.com/EternisAI/claude-watch/internal/hook"
	"github.com/EternisAI/claude-watch/internal/remotemode"
	"github.com/spf13/cobra"
)

func newHookCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Run as the Claude Code PreToolUse hook",
		Long:  "Reads one PreToolUse payload from stdin and prints a permission decision to stdout. Prints nothing when the call should follow the normal terminal flow.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipeline := hook.NewPipeline(
				remotemode.NewSwitch(opts.stateDir()),
				opts.settingsPath(),
				hook.NewClient(opts.daemonURL(), hook.DefaultTimeout),
			)

			verdict := pipeline.Run(cmd.Context(), cmd.InOrStdin())
			if verdict == nil {
				return nil
			}
			// the agent only reads stdout; a write failure has nowhere to go
			_ = hook.WriteOutput(cmd.OutOrStdout(), *verdict)
			return nil
		},
	}

	cmd.Flags().String("settings", "", "Claude Code settings file (env CLAUDE_SETTINGS, default ~/.claude/settings.json)")
	_ = opts.v.BindPFlag("settings", cmd.Flags().Lookup("settings"))

	return cmd
}
