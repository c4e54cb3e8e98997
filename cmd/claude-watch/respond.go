package main

import (
	"fmt"
	"net/url"

	"github.com/EternisAI/claude-watch/internal/api/http/dto"
	"github.com/spf13/cobra"
)

func newRespondCmd(opts *options) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "respond <session-id> <approval-id> <allow|deny>",
		Short: "Answer a pending approval",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, approvalID, decision := args[0], args[1], args[2]
			if decision != "allow" && decision != "deny" {
				return fmt.Errorf("decision must be allow or deny, got %q", decision)
			}

			cfg, err := loadClientConfig(opts.clientConfigPath())
			if err != nil {
				return err
			}
			base := cfg.URL
			if opts.v.GetString("url") != "" || base == "" {
				base = opts.daemonURL()
			}

			endpoint := fmt.Sprintf("%s/sessions/%s/respond", base, url.PathEscape(sessionID))
			req := dto.RespondRequest{ApprovalID: approvalID, Decision: decision, Reason: reason}
			if err := postJSON(cmd.Context(), endpoint, cfg.Token, req, &dto.RespondResponse{}); err != nil {
				return fmt.Errorf("respond: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", decision, approvalID)
			return err
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason shown to the agent")
	return cmd
}
