package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopkeeper/internal/common"
	"github.com/dmitrijs2005/shopkeeper/internal/dbx"
	"github.com/dmitrijs2005/shopkeeper/internal/logging"
	"github.com/dmitrijs2005/shopkeeper/internal/server/models"
	"github.com/dmitrijs2005/shopkeeper/internal/server/repositories/repomanager"
)

// DemoAccount describes one seeded identity. A nil Profile seeds an identity
// that was never provisioned in the application.
type DemoAccount struct {
	Username      string
	Email         string
	Password      string
	EmailVerified bool
	Disabled      bool
	Profile       *models.Profile
}

// DemoPassword is the password of every demo account.
const DemoPassword = "shopkeeper"

// DemoAccounts covers each sign-in outcome the client distinguishes.
var DemoAccounts = []DemoAccount{
	{Username: "alice", Email: "alice@shop.test", EmailVerified: true,
		Profile: &models.Profile{Name: "Alice Staff", Role: models.RoleStaff, Active: true, PhotoKey: "profiles/alice.jpg"}},
	{Username: "bob", Email: "bob@shop.test", EmailVerified: true,
		Profile: &models.Profile{Name: "Bob Admin", Role: models.RoleAdmin, Active: true}},
	{Username: "carol", Email: "carol@shop.test", EmailVerified: true, Disabled: true,
		Profile: &models.Profile{Name: "Carol Disabled", Role: models.RoleStaff, Active: true}},
	{Username: "dave", Email: "dave@shop.test",
		Profile: &models.Profile{Name: "Dave Unverified", Role: models.RoleStaff, Active: true}},
	{Username: "erin", Email: "erin@shop.test", EmailVerified: true,
		Profile: &models.Profile{Name: "Erin Inactive", Role: models.RoleStaff, Active: false}},
	{Username: "frank", Email: "frank@shop.test", EmailVerified: true},
}

// Seeder creates demo accounts that do not exist yet.
type Seeder struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	identities  *IdentityService
	logger      logging.Logger
}

func NewSeeder(db *sql.DB, m repomanager.RepositoryManager, identities *IdentityService, l logging.Logger) *Seeder {
	return &Seeder{db: db, repomanager: m, identities: identities, logger: l.With("module", "seeder")}
}

func (s *Seeder) Seed(ctx context.Context, accounts []DemoAccount) error {
	for _, a := range accounts {
		created, err := s.seedOne(ctx, a)
		if err != nil {
			return fmt.Errorf("seed %s: %w", a.Username, err)
		}
		if created {
			s.logger.Info(ctx, "demo account created", "username", a.Username, "email", a.Email)
		}
	}
	return nil
}

func (s *Seeder) seedOne(ctx context.Context, a DemoAccount) (bool, error) {
	_, err := s.repomanager.Identities(s.db).FindByLogin(ctx, a.Username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return false, err
	}

	password := a.Password
	if password == "" {
		password = DemoPassword
	}
	hash, err := s.identities.HashPassword(password)
	if err != nil {
		return false, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		identity, err := s.repomanager.Identities(tx).Create(ctx, &models.Identity{
			Username:      a.Username,
			Email:         a.Email,
			PasswordHash:  hash,
			EmailVerified: a.EmailVerified,
			Disabled:      a.Disabled,
		})
		if err != nil {
			return err
		}
		if a.Profile == nil {
			return nil
		}
		profile := *a.Profile
		profile.IdentityID = identity.ID
		profile.Email = a.Email
		_, err = s.repomanager.Profiles(tx).Create(ctx, &profile)
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
