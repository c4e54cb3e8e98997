package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	grpctls "github.com/EternisAI/claude-watch/internal/grpc/tls"
	"github.com/EternisAI/claude-watch/internal/grpc/watchv1"
	"github.com/EternisAI/claude-watch/internal/sessions"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const DefaultHeartbeatInterval = 30 * time.Second

type Config struct {
	Enabled bool           `mapstructure:"enabled"`
	Port    int            `mapstructure:"port"`
	TLS     grpctls.Config `mapstructure:"tls"`
}

// Server streams session events to gRPC subscribers.
type Server struct {
	grpcServer *grpc.Server
	streams    *StreamRegistry
	sessions   *sessions.Manager
	heartbeat  time.Duration
	port       int
}

func NewServer(port int, manager *sessions.Manager, verifier TokenVerifier, heartbeat time.Duration, opts ...grpc.ServerOption) *Server {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}

	s := &Server{
		streams:   NewStreamRegistry(),
		sessions:  manager,
		heartbeat: heartbeat,
		port:      port,
	}
	opts = append([]grpc.ServerOption{grpc.StreamInterceptor(streamAuthInterceptor(verifier))}, opts...)
	s.grpcServer = grpc.NewServer(opts...)
	watchv1.RegisterEventServiceServer(s.grpcServer, s)
	return s
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}

	slog.Info("Starting gRPC server", "port", s.port)
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Stopping gRPC server")

	for _, sub := range s.streams.List() {
		slog.Info("Closing event subscriber",
			"subscription_id", sub.ID,
			"peer", sub.Peer,
			"connected_for", time.Since(sub.ConnectedAt).Round(time.Second))
	}
	// Subscribe streams never end on their own
	s.streams.CloseAll()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		slog.Info("gRPC server stopped gracefully")
	case <-ctx.Done():
		slog.Warn("gRPC server stop timeout, forcing shutdown")
		s.grpcServer.Stop()
	}

	return nil
}

func (s *Server) StopWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Stop(ctx)
}

func (s *Server) SubscriberCount() int {
	return s.streams.Count()
}

func (s *Server) Subscribe(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	feed := sessions.NewFeed(sessions.DefaultFeedBuffer)
	if err := s.sessions.Subscribe(feed); err != nil {
		slog.Error("Failed to subscribe gRPC stream", "error", err)
		return status.Error(codes.Internal, "failed to subscribe")
	}

	peerAddr := ""
	if p, ok := peer.FromContext(stream.Context()); ok {
		peerAddr = p.Addr.String()
	}
	sub := s.streams.Register(stream.Context(), peerAddr)

	defer func() {
		s.sessions.RemoveListener(feed)
		feed.Close()
		s.streams.Unregister(sub.ID)
	}()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		var payload []byte

		select {
		case <-sub.Done():
			if stream.Context().Err() != nil {
				return nil
			}
			return status.Error(codes.Unavailable, "server shutting down")
		case frame, ok := <-feed.Frames():
			if !ok {
				return status.Error(codes.ResourceExhausted, "subscriber fell behind")
			}
			payload = frame.Payload
		case now := <-ticker.C:
			encoded, err := sessions.Encode(sessions.NewHeartbeatEvent(now))
			if err != nil {
				return status.Error(codes.Internal, "failed to encode heartbeat")
			}
			payload = encoded
		}

		msg := &structpb.Struct{}
		if err := protojson.Unmarshal(payload, msg); err != nil {
			slog.Error("Failed to convert event for gRPC", "error", err)
			continue
		}
		if err := stream.Send(msg); err != nil {
			slog.Debug("gRPC send failed", "subscription_id", sub.ID, "error", err)
			return err
		}
	}
}
