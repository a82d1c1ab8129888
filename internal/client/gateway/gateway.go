package gateway

import (
	"context"

	"github.com/dmitrijs2005/shopkeeper/internal/client/models"
)

// Gateway is the contract the session lifecycle needs from the identity
// provider and the profile store. Implementations must be safe for
// concurrent use.
type Gateway interface {
	SignInWithPassword(ctx context.Context, identifier, password string) (*models.Identity, error)
	RequestOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*models.Identity, error)
	ChangePassword(ctx context.Context, newPassword string) error
	Refresh(ctx context.Context) (*models.Identity, error)
	// SignOut drops the local tokens before contacting the backend; the
	// returned error only describes the remote revoke.
	SignOut(ctx context.Context) error

	// Adopt installs a previously persisted identity.
	Adopt(identity *models.Identity)

	// GetProfile returns (nil, nil) when the identity has no profile.
	GetProfile(ctx context.Context, identityID string) (*models.UserProfile, error)

	SetListener(l Listener)
	Close() error
}

// Listener is told about token changes that happen behind the caller's
// back, during an interceptor-driven refresh.
type Listener interface {
	SessionRefreshed(ctx context.Context, identity *models.Identity)
	SessionExpired(ctx context.Context)
}
