package server

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TokenVerifier checks device bearer tokens.
type TokenVerifier interface {
	HasCredentials() bool
	IsValidToken(token string) bool
}

func streamAuthInterceptor(verifier TokenVerifier) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if verifier == nil || !verifier.HasCredentials() {
			return handler(srv, ss)
		}
		if !verifier.IsValidToken(tokenFromContext(ss.Context())) {
			return status.Error(codes.Unauthenticated, "invalid or missing device token")
		}
		return handler(srv, ss)
	}
}

func tokenFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, value := range md.Get("authorization") {
		if token, ok := strings.CutPrefix(value, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return ""
}
