// Package profiles maps a signed-in identity to the application's own user
// record, which carries the business role.
package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/shopkeeper/internal/client/models"
	"github.com/dmitrijs2005/shopkeeper/internal/logging"
)

// Store is the remote profile read the resolver depends on.
// gateway.Gateway satisfies it.
type Store interface {
	GetProfile(ctx context.Context, identityID string) (*models.UserProfile, error)
}

type Resolver struct {
	store  Store
	logger logging.Logger
}

func NewResolver(store Store, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Resolver{store: store, logger: logger.With("module", "profiles")}
}

// Resolve looks up the profile of identityID in one round trip.
//
// A missing profile is (nil, nil). A profile whose role is neither staff nor
// admin is treated as missing too, so no caller ever sees an unknown role.
// Lookup failures other than an expired session are reported as
// gateway.ErrTransient.
func (r *Resolver) Resolve(ctx context.Context, identityID string) (*models.UserProfile, error) {
	p, err := r.store.GetProfile(ctx, identityID)
	if err != nil {
		if errors.Is(err, gateway.ErrTransient) || errors.Is(err, gateway.ErrSessionExpired) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", gateway.ErrTransient, err)
	}
	if p == nil {
		return nil, nil
	}
	if !p.Role.Valid() {
		r.logger.Warn(ctx, "profile has unknown role", "identity_id", identityID, "role", string(p.Role))
		return nil, nil
	}
	return p, nil
}
