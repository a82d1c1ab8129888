package grpc

import (
	"context"
	"errors"
	"strconv"

	"github.com/dmitrijs2005/shopkeeper/internal/server/services"
	"github.com/dmitrijs2005/shopkeeper/internal/wire"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) signInWithPassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	identifier := wire.String(req, wire.FieldIdentifier)
	password := wire.String(req, wire.FieldPassword)
	if identifier == "" || password == "" {
		return nil, s.toStatus(ctx, services.ErrInvalidCredentials)
	}

	session, err := s.identities.SignInWithPassword(ctx, identifier, password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "signed in", "identity_id", session.IdentityID, "method", "password")
	return sessionStruct(session), nil
}

func (s *GRPCServer) requestOTP(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email := wire.String(req, wire.FieldEmail)
	if email == "" {
		return nil, status.Error(codes.InvalidArgument, "email is required")
	}

	if err := s.identities.RequestOTP(ctx, email); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return wire.Struct(nil), nil
}

func (s *GRPCServer) verifyOTP(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email := wire.String(req, wire.FieldEmail)
	code := wire.String(req, wire.FieldCode)
	if email == "" || code == "" {
		return nil, s.toStatus(ctx, services.ErrInvalidOrExpiredCode)
	}

	session, err := s.identities.VerifyOTP(ctx, email, code)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "signed in", "identity_id", session.IdentityID, "method", "otp")
	return sessionStruct(session), nil
}

func (s *GRPCServer) refreshSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token := wire.String(req, wire.FieldRefreshToken)
	if token == "" {
		return nil, s.toStatus(ctx, services.ErrSessionExpired)
	}

	session, err := s.identities.Refresh(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return sessionStruct(session), nil
}

func (s *GRPCServer) changePassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	identityID, ok := identityIDFromContext(ctx)
	if !ok {
		return nil, wire.Error(codes.Unauthenticated, wire.ReasonMissingToken, "missing token", nil)
	}

	if err := s.identities.ChangePassword(ctx, identityID, wire.String(req, wire.FieldNewPassword)); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return wire.Struct(nil), nil
}

func (s *GRPCServer) signOut(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.identities.SignOut(ctx, wire.String(req, wire.FieldRefreshToken)); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return wire.Struct(nil), nil
}

func (s *GRPCServer) getProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	callerID, ok := identityIDFromContext(ctx)
	if !ok {
		return nil, wire.Error(codes.Unauthenticated, wire.ReasonMissingToken, "missing token", nil)
	}

	identityID := wire.String(req, wire.FieldIdentityID)
	if identityID == "" {
		identityID = callerID
	}

	p, err := s.profiles.GetProfile(ctx, callerID, identityID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if p == nil {
		return wire.NotFound(), nil
	}

	return wire.Profile{
		ID:       p.ID,
		Name:     p.Name,
		Email:    p.Email,
		Role:     p.Role,
		Active:   p.Active,
		PhotoURL: p.PhotoURL,
	}.Struct(), nil
}

func sessionStruct(s *services.Session) *structpb.Struct {
	return wire.Identity{
		IdentityID:    s.IdentityID,
		Email:         s.Email,
		EmailVerified: s.EmailVerified,
		AccessToken:   s.AccessToken,
		RefreshToken:  s.RefreshToken,
		ExpiresAt:     s.ExpiresAt,
	}.Struct()
}

// toStatus maps service errors to status errors carrying an ErrorInfo
// reason. Unexpected errors are logged and reported as Internal.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	var unverified *services.EmailUnverifiedError
	var weak *services.WeakPasswordError

	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return wire.Error(codes.Unauthenticated, wire.ReasonInvalidCredentials, "invalid credentials", nil)
	case errors.Is(err, services.ErrAccountInactive):
		return wire.Error(codes.PermissionDenied, wire.ReasonAccountInactive, "account inactive", nil)
	case errors.As(err, &unverified):
		return wire.Error(codes.FailedPrecondition, wire.ReasonEmailUnverified, "email not verified",
			map[string]string{wire.MetaEmail: unverified.Email})
	case errors.Is(err, services.ErrInvalidOrExpiredCode):
		return wire.Error(codes.InvalidArgument, wire.ReasonInvalidOrExpiredCode, "invalid or expired code", nil)
	case errors.As(err, &weak):
		return wire.Error(codes.InvalidArgument, wire.ReasonWeakPassword, weak.Error(),
			map[string]string{wire.MetaMinLength: strconv.Itoa(weak.MinLength)})
	case errors.Is(err, services.ErrSessionExpired):
		return wire.Error(codes.Unauthenticated, wire.ReasonSessionExpired, "session expired", nil)
	case errors.Is(err, services.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, "permission denied")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}

	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
