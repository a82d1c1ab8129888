// Package grpc exposes the identity and profile services over gRPC using
// Struct payloads (see internal/wire).
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/shopkeeper/internal/logging"
	"github.com/dmitrijs2005/shopkeeper/internal/server/services"
	"github.com/dmitrijs2005/shopkeeper/internal/wire"
	"google.golang.org/grpc"
)

// IdentityService is the subset of services.IdentityService served here.
type IdentityService interface {
	SignInWithPassword(ctx context.Context, identifier, password string) (*services.Session, error)
	RequestOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*services.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*services.Session, error)
	ChangePassword(ctx context.Context, identityID, newPassword string) error
	SignOut(ctx context.Context, refreshToken string) error
}

type ProfileService interface {
	GetProfile(ctx context.Context, callerID, identityID string) (*services.ProfileView, error)
}

type GRPCServer struct {
	address    string
	identities IdentityService
	profiles   ProfileService
	logger     logging.Logger
	jwtSecret  []byte
}

func NewGRPCServer(a string, l logging.Logger, is IdentityService, ps ProfileService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:    a,
		logger:     l.With("module", "grpc_server"),
		identities: is,
		profiles:   ps,
		jwtSecret:  []byte(secretKey),
	}
}

// NewServer builds a grpc.Server with both services registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	srv := grpc.NewServer(opts...)

	srv.RegisterService(wire.ServiceDesc(wire.IdentityService, map[string]wire.Handler{
		"SignInWithPassword": s.signInWithPassword,
		"RequestOTP":         s.requestOTP,
		"VerifyOTP":          s.verifyOTP,
		"RefreshSession":     s.refreshSession,
		"ChangePassword":     s.changePassword,
		"SignOut":            s.signOut,
	}), nil)
	srv.RegisterService(wire.ServiceDesc(wire.ProfileService, map[string]wire.Handler{
		"GetProfile": s.getProfile,
	}), nil)

	return srv
}

// Run serves on the configured address until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		if errors.Is(err, grpc.ErrServerStopped) && ctx.Err() != nil {
			return nil
		}
		return err
	}

	return nil
}
