// Package identities declares the repository contract for accounts known to
// the identity provider.
package identities

import (
	"context"

	"github.com/dmitrijs2005/shopkeeper/internal/server/models"
)

// Repository stores identities. Lookups return common.ErrorNotFound when no
// row matches; username and email comparisons are case-insensitive.
type Repository interface {
	Create(ctx context.Context, identity *models.Identity) (*models.Identity, error)

	// FindByLogin matches login against username or email.
	FindByLogin(ctx context.Context, login string) (*models.Identity, error)
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	FindByID(ctx context.Context, id string) (*models.Identity, error)

	MarkEmailVerified(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
}
