package main

import (
	"fmt"

	"github.com/EternisAI/claude-watch/internal/api/http/dto"
	"github.com/spf13/cobra"
)

func newPairCmd(opts *options) *cobra.Command {
	var pin string

	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Pair this CLI with the daemon using the PIN it printed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url := opts.daemonURL()

			var resp dto.PairResponse
			if err := postJSON(cmd.Context(), url+"/auth/pair", "", dto.PairRequest{Pin: pin}, &resp); err != nil {
				return fmt.Errorf("pair: %w", err)
			}

			cfg := clientConfig{URL: url, DeviceID: resp.DeviceID, Token: resp.Token}
			if err := saveClientConfig(opts.clientConfigPath(), cfg); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "paired as device %s\n", resp.DeviceID)
			return err
		},
	}

	cmd.Flags().StringVar(&pin, "pin", "", "six digit PIN shown by the daemon")
	_ = cmd.MarkFlagRequired("pin")
	return cmd
}
