package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/EternisAI/claude-watch/internal/grpc/client"
	grpctls "github.com/EternisAI/claude-watch/internal/grpc/tls"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

func newWatchCmd(opts *options) *cobra.Command {
	var (
		grpcAddr   string
		tlsEnabled bool
		tlsCAFile  string
		serverName string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print daemon events as JSON lines over the gRPC stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadClientConfig(opts.clientConfigPath())
			if err != nil && !errors.Is(err, errNotPaired) {
				return err
			}

			var dialOpts []grpc.DialOption
			if tlsEnabled || tlsCAFile != "" {
				creds, err := grpctls.LoadClientCredentials(tlsCAFile, serverName)
				if err != nil {
					return err
				}
				dialOpts = append(dialOpts, grpc.WithTransportCredentials(creds))
			}

			var mu sync.Mutex
			enc := json.NewEncoder(cmd.OutOrStdout())
			c := client.NewClient(grpcAddr, cfg.Token, func(e client.Event) {
				mu.Lock()
				defer mu.Unlock()
				_ = enc.Encode(e.Payload)
			}, dialOpts...)
			if err := c.Start(); err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			select {
			case <-sigChan:
			case <-cmd.Context().Done():
			case <-c.Done():
			}
			_ = c.Stop()

			if err := c.Err(); err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", defaultGrpcAddr, "daemon gRPC address")
	cmd.Flags().BoolVar(&tlsEnabled, "tls", false, "connect to the gRPC stream over TLS")
	cmd.Flags().StringVar(&tlsCAFile, "tls-ca", "", "CA certificate for the gRPC stream (implies --tls)")
	cmd.Flags().StringVar(&serverName, "tls-server-name", "", "override the TLS server name")
	return cmd
}
