package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/shopkeeper/internal/common"
	"github.com/dmitrijs2005/shopkeeper/internal/server/auth"
	"github.com/dmitrijs2005/shopkeeper/internal/wire"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const identityIDKey ctxKey = "identityID"

// bearerMethods require a valid access token.
var bearerMethods = map[string]bool{
	wire.MethodChangePassword: true,
	wire.MethodGetProfile:     true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !bearerMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(wire.AccessTokenHeaderName); len(values) > 0 {
			accessToken = values[0]
		}
	}
	if accessToken == "" {
		return nil, wire.Error(codes.Unauthenticated, wire.ReasonMissingToken, "missing token", nil)
	}

	identityID, err := auth.GetIdentityIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, wire.Error(codes.Unauthenticated, wire.ReasonTokenExpired, "token expired", nil)
		}
		return nil, wire.Error(codes.Unauthenticated, wire.ReasonSessionExpired, "invalid token", nil)
	}

	return handler(context.WithValue(ctx, identityIDKey, identityID), req)
}

func identityIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityIDKey).(string)
	return id, ok && id != ""
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "request handled",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start))
	return resp, err
}
