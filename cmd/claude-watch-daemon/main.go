package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	internalhttp "github.com/EternisAI/claude-watch/internal/api/http"
	"github.com/EternisAI/claude-watch/internal/approvals"
	"github.com/EternisAI/claude-watch/internal/broker"
	grpcserver "github.com/EternisAI/claude-watch/internal/grpc/server"
	grpctls "github.com/EternisAI/claude-watch/internal/grpc/tls"
	"github.com/EternisAI/claude-watch/internal/pairing"
	"github.com/EternisAI/claude-watch/internal/registry"
	"github.com/EternisAI/claude-watch/internal/remotemode"
	"github.com/EternisAI/claude-watch/internal/sessions"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
)

const (
	tokenSecretFile    = "token.secret"
	pinRefreshInterval = 30 * time.Second
	shutdownTimeout    = 10 * time.Second
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Claude Watch daemon", "version", AppVersion)

	if err := run(); err != nil {
		slog.Error("Daemon failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(config.StateDir, 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	secret := []byte(config.Auth.TokenSecret)
	if len(secret) == 0 {
		var err error
		secret, err = pairing.LoadOrCreateSecret(filepath.Join(config.StateDir, tokenSecretFile))
		if err != nil {
			return err
		}
	}

	store, err := registry.Open(ctx, config.Registry, config.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	pairingService := pairing.NewService(store, pairing.Config{
		PinTTL:      config.Auth.PinTTL,
		TokenSecret: secret,
		HashCost:    config.Auth.HashCost,
		OnPin: func(pin pairing.PIN) {
			slog.Info("Pairing PIN", "pin", pin.Value, "expires_at", pin.ExpiresAt.Format(time.Kitchen))
		},
	})
	pairingService.Init(ctx)
	if pin, ok := pairingService.CurrentPin(); ok {
		fmt.Printf("\n  Pair a device with PIN %s (valid until %s)\n\n", pin.Value, pin.ExpiresAt.Format(time.Kitchen))
	}
	go pairingService.StartPinRefresh(ctx, pinRefreshInterval)

	approvalStore := approvals.NewStore(config.Approvals.Timeout)
	sessionManager := sessions.NewManager(sessions.Config{
		IdleTimeout:   config.Sessions.IdleTimeout,
		SweepInterval: config.Sessions.SweepInterval,
	})
	defer sessionManager.Stop()

	remote := remotemode.NewSwitch(config.StateDir)
	slog.Info("Remote mode", "enabled", remote.Enabled(), "path", remote.Path())

	services := &internalhttp.Services{
		Pairing:           pairingService,
		Broker:            broker.New(approvalStore, sessionManager),
		Sessions:          sessionManager,
		RemoteMode:        remote,
		HeartbeatInterval: config.Stream.HeartbeatInterval,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services)

	// Request contexts derive from streamCtx so that shutdown can end
	// long-lived event streams.
	streamCtx, endStreams := context.WithCancel(ctx)
	defer endStreams()

	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", config.Http.Port),
		Handler:     engine,
		BaseContext: func(net.Listener) context.Context { return streamCtx },
	}

	var grpcSrv *grpcserver.Server
	if config.Grpc.Enabled {
		opts, err := grpcServerOptions(config.Grpc.TLS)
		if err != nil {
			return err
		}
		grpcSrv = grpcserver.NewServer(config.Grpc.Port, sessionManager, pairingService, config.Stream.HeartbeatInterval, opts...)
	}

	errChan := make(chan error, 2)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if grpcSrv != nil {
		go func() {
			if err := grpcSrv.Start(); err != nil {
				errChan <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down servers...")

	// Release blocked hooks first so HTTP shutdown does not wait on them
	approvalStore.Close()
	endStreams()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}
	}()

	if grpcSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := grpcSrv.StopWithTimeout(shutdownTimeout); err != nil {
				slog.Error("gRPC server shutdown error", "error", err)
			}
		}()
	}

	wg.Wait()
	slog.Info("Shutdown complete")
	return nil
}

func grpcServerOptions(cfg grpctls.Config) ([]grpc.ServerOption, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	creds, err := grpctls.LoadServerCredentials(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load gRPC TLS credentials: %w", err)
	}
	slog.Info("gRPC TLS enabled", "cert", cfg.CertFile)
	return []grpc.ServerOption{grpc.Creds(creds)}, nil
}
