// Package refreshtokens declares the repository contract for refresh tokens
// issued by the identity service.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/shopkeeper/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh tokens.
type Repository interface {
	// Create stores a new refresh token for identityID that expires at expires.
	Create(ctx context.Context, identityID string, token string, expires time.Time) error

	// Find looks up a refresh token by its opaque token string. It returns
	// common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a refresh token. Deleting a non-existent token is not
	// an error.
	Delete(ctx context.Context, token string) error
}
