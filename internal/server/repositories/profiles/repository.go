// Package profiles declares the repository contract for application
// profiles attached to identities.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/shopkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, profile *models.Profile) (*models.Profile, error)

	// FindByIdentityID returns common.ErrorNotFound when the identity has no
	// profile.
	FindByIdentityID(ctx context.Context, identityID string) (*models.Profile, error)
}
