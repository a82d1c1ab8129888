package otpcodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopkeeper/internal/common"
	"github.com/dmitrijs2005/shopkeeper/internal/dbx"
	"github.com/dmitrijs2005/shopkeeper/internal/server/models"
)

type PostgresStore struct {
	db dbx.DBTX
}

func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, code *models.OTPCode) error {
	query :=
		`INSERT INTO otp_codes (email, code_hash, expires_at, attempts)
		 VALUES ($1, $2, $3, 0)
		 ON CONFLICT (email) DO UPDATE
		 SET code_hash = EXCLUDED.code_hash, expires_at = EXCLUDED.expires_at, attempts = 0`

	if _, err := s.db.ExecContext(ctx, query, code.Email, code.CodeHash, code.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, email string) (*models.OTPCode, error) {
	query :=
		`SELECT email, code_hash, expires_at, attempts
		 FROM otp_codes
		 WHERE email = $1`

	code := &models.OTPCode{}
	err := s.db.QueryRowContext(ctx, query, email).Scan(&code.Email, &code.CodeHash, &code.ExpiresAt, &code.Attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return code, nil
}

func (s *PostgresStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	query :=
		`UPDATE otp_codes SET attempts = attempts + 1
		 WHERE email = $1
		 RETURNING attempts`

	var attempts int
	if err := s.db.QueryRowContext(ctx, query, email).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return attempts, nil
}

func (s *PostgresStore) Consume(ctx context.Context, email string, codeHash []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE email = $1 AND code_hash = $2`, email, codeHash)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) Delete(ctx context.Context, email string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE email = $1`, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
