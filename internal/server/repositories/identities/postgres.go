package identities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopkeeper/internal/common"
	"github.com/dmitrijs2005/shopkeeper/internal/dbx"
	"github.com/dmitrijs2005/shopkeeper/internal/server/models"
)

const selectIdentity = `SELECT id, username, email, password_hash, email_verified, disabled, created_at FROM identities`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	query :=
		`INSERT INTO identities (username, email, password_hash, email_verified, disabled)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		identity.Username, identity.Email, identity.PasswordHash, identity.EmailVerified, identity.Disabled).
		Scan(&identity.ID, &identity.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return identity, nil
}

func (r *PostgresRepository) FindByLogin(ctx context.Context, login string) (*models.Identity, error) {
	return r.findOne(ctx, selectIdentity+` WHERE lower(username) = lower($1) OR lower(email) = lower($1)`, login)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return r.findOne(ctx, selectIdentity+` WHERE lower(email) = lower($1)`, email)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	return r.findOne(ctx, selectIdentity+` WHERE id = $1`, id)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg string) (*models.Identity, error) {
	identity := &models.Identity{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&identity.ID, &identity.Username, &identity.Email, &identity.PasswordHash,
		&identity.EmailVerified, &identity.Disabled, &identity.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return identity, nil
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.updateOne(ctx, `UPDATE identities SET email_verified = TRUE WHERE id = $1`, id)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, passwordHash []byte) error {
	return r.updateOne(ctx, `UPDATE identities SET password_hash = $2 WHERE id = $1`, id, passwordHash)
}

func (r *PostgresRepository) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
