package main

import (
	"fmt"

	"github.com/EternisAI/claude-watch/internal/remotemode"
	"github.com/spf13/cobra"
)

func newRemoteModeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "remote-mode [on|off]",
		Short:     "Show or toggle remote approval mode",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			sw := remotemode.NewSwitch(opts.stateDir())

			if len(args) == 1 {
				if err := sw.Set(args[0] == "on"); err != nil {
					return fmt.Errorf("toggle remote mode: %w", err)
				}
			}

			state := "off"
			if sw.Enabled() {
				state = "on"
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "remote mode: %s\n", state)
			return err
		},
	}
}
