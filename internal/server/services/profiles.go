package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopkeeper/internal/common"
	"github.com/dmitrijs2005/shopkeeper/internal/logging"
	"github.com/dmitrijs2005/shopkeeper/internal/server/models"
	"github.com/dmitrijs2005/shopkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ProfileService is the application-side profile store.
type ProfileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	photos      PhotoSigner
	logger      logging.Logger
}

func NewProfileService(db *sql.DB, m repomanager.RepositoryManager, photos PhotoSigner, l logging.Logger) *ProfileService {
	return &ProfileService{
		db:          db,
		repomanager: m,
		photos:      photos,
		logger:      l.With("module", "profile_service"),
	}
}

// ProfileView is a profile as handed to clients.
type ProfileView struct {
	models.Profile
	PhotoURL string
}

// GetProfile returns the profile of identityID, or (nil, nil) when there is
// none. Callers may read their own profile; admins may read any.
func (s *ProfileService) GetProfile(ctx context.Context, callerID, identityID string) (*ProfileView, error) {
	if _, err := uuid.Parse(identityID); err != nil {
		return nil, nil
	}

	repo := s.repomanager.Profiles(s.db)

	if callerID != identityID {
		caller, err := repo.FindByIdentityID(ctx, callerID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
		if caller == nil || caller.Role != models.RoleAdmin || !caller.Active {
			return nil, ErrPermissionDenied
		}
	}

	profile, err := repo.FindByIdentityID(ctx, identityID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	view := &ProfileView{Profile: *profile}
	if s.photos != nil {
		url, err := s.photos.PhotoURL(ctx, profile.PhotoKey)
		if err != nil {
			// served without a photo URL
			s.logger.Warn(ctx, "failed to presign photo", "identity_id", identityID, "error", err)
		} else {
			view.PhotoURL = url
		}
	}
	return view, nil
}
