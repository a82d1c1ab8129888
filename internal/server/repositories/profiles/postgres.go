package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopkeeper/internal/common"
	"github.com/dmitrijs2005/shopkeeper/internal/dbx"
	"github.com/dmitrijs2005/shopkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	query :=
		`INSERT INTO profiles (identity_id, name, email, role, active, photo_key)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		profile.IdentityID, profile.Name, profile.Email, profile.Role, profile.Active, profile.PhotoKey).
		Scan(&profile.ID, &profile.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return profile, nil
}

func (r *PostgresRepository) FindByIdentityID(ctx context.Context, identityID string) (*models.Profile, error) {
	query :=
		`SELECT id, identity_id, name, email, role, active, photo_key, created_at
		 FROM profiles
		 WHERE identity_id = $1`

	p := &models.Profile{}
	err := r.db.QueryRowContext(ctx, query, identityID).Scan(
		&p.ID, &p.IdentityID, &p.Name, &p.Email, &p.Role, &p.Active, &p.PhotoKey, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}
