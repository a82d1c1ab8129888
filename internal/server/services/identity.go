// Package services contains the backend's business logic. IdentityService
// plays the hosted identity provider: password and one-time-code sign-in,
// refresh token rotation, password changes and sign-out.
package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/shopkeeper/internal/common"
	"github.com/dmitrijs2005/shopkeeper/internal/dbx"
	"github.com/dmitrijs2005/shopkeeper/internal/logging"
	"github.com/dmitrijs2005/shopkeeper/internal/server/auth"
	"github.com/dmitrijs2005/shopkeeper/internal/server/config"
	"github.com/dmitrijs2005/shopkeeper/internal/server/models"
	"github.com/dmitrijs2005/shopkeeper/internal/server/repositories/otpcodes"
	"github.com/dmitrijs2005/shopkeeper/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

const otpDigits = 6

// Session is what a successful sign-in, code verification or refresh returns.
type Session struct {
	IdentityID    string
	Email         string
	EmailVerified bool
	AccessToken   string
	RefreshToken  string
	// ExpiresAt is when RefreshToken stops being accepted.
	ExpiresAt time.Time
}

type IdentityService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	otp         otpcodes.Store
	mailer      Mailer
	logger      logging.Logger

	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	otpValidityDuration          time.Duration
	otpMaxAttempts               int
	passwordMinLength            int

	bcryptCost int
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, otp otpcodes.Store, mailer Mailer,
	cfg *config.Config, l logging.Logger) *IdentityService {
	return &IdentityService{
		db:                           db,
		repomanager:                  m,
		otp:                          otp,
		mailer:                       mailer,
		logger:                       l.With("module", "identity_service"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		otpValidityDuration:          cfg.OTPValidityDuration,
		otpMaxAttempts:               cfg.OTPMaxAttempts,
		passwordMinLength:            cfg.PasswordMinLength,
		bcryptCost:                   bcrypt.DefaultCost,
		now:                          time.Now,
	}
}

// SignInWithPassword checks identifier (username or email) and password.
// Checks run in order: credentials, disabled account, unverified email.
func (s *IdentityService) SignInWithPassword(ctx context.Context, identifier, password string) (*Session, error) {
	repo := s.repomanager.Identities(s.db)

	identity, err := repo.FindByLogin(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// same work as a real comparison
			_ = bcrypt.CompareHashAndPassword(s.getDummyHash(), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if err := bcrypt.CompareHashAndPassword(identity.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if identity.Disabled {
		return nil, ErrAccountInactive
	}
	if !identity.EmailVerified {
		return nil, &EmailUnverifiedError{Email: identity.Email}
	}

	return s.issueSession(ctx, identity, s.db)
}

// RequestOTP emails a fresh code to email, replacing any earlier one.
// Unknown addresses succeed silently.
func (s *IdentityService) RequestOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	identity, err := s.repomanager.Identities(s.db).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Debug(ctx, "code requested for unknown email")
			return nil
		}
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	code, err := common.MakeNumericCode(otpDigits)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	expiresAt := s.now().Add(s.otpValidityDuration)
	if err := s.otp.Put(ctx, &models.OTPCode{
		Email:     email,
		CodeHash:  hashCode(code),
		ExpiresAt: expiresAt,
	}); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if err := s.mailer.SendCode(ctx, identity.Email, code, expiresAt); err != nil {
		return fmt.Errorf("%w: send code: %v", common.ErrorInternal, err)
	}
	return nil
}

// VerifyOTP exchanges the latest code for email for a session and marks the
// email verified. A code is burned once it expires or after otpMaxAttempts
// wrong guesses.
func (s *IdentityService) VerifyOTP(ctx context.Context, email, code string) (*Session, error) {
	email = normalizeEmail(email)

	stored, err := s.otp.Get(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrInvalidOrExpiredCode
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if !s.now().Before(stored.ExpiresAt) || stored.Attempts >= s.otpMaxAttempts {
		s.burnCode(ctx, email)
		return nil, ErrInvalidOrExpiredCode
	}

	if subtle.ConstantTimeCompare(hashCode(strings.TrimSpace(code)), stored.CodeHash) != 1 {
		attempts, err := s.otp.IncrementAttempts(ctx, email)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
		if attempts >= s.otpMaxAttempts {
			s.burnCode(ctx, email)
		}
		return nil, ErrInvalidOrExpiredCode
	}

	consumed, err := s.otp.Consume(ctx, email, stored.CodeHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if !consumed {
		// Used by a concurrent request or replaced by a newer code.
		return nil, ErrInvalidOrExpiredCode
	}

	var session *Session
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Identities(tx)
		identity, err := repo.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return ErrInvalidOrExpiredCode
			}
			return fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
		if identity.Disabled {
			return ErrAccountInactive
		}
		if !identity.EmailVerified {
			if err := repo.MarkEmailVerified(ctx, identity.ID); err != nil {
				return fmt.Errorf("%w: %v", common.ErrorInternal, err)
			}
			identity.EmailVerified = true
		}
		session, err = s.issueSession(ctx, identity, tx)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrAccountInactive) && !errors.Is(err, ErrInvalidOrExpiredCode) {
			s.restoreCode(ctx, stored)
		}
		return nil, err
	}
	return session, nil
}

// Refresh rotates refreshToken: the presented token is revoked and a new
// pair is issued in the same transaction.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	token, err := s.repomanager.RefreshTokens(s.db).Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if token.Expires.Before(s.now()) {
		if err := s.repomanager.RefreshTokens(s.db).Delete(ctx, refreshToken); err != nil {
			s.logger.Warn(ctx, "failed to delete expired refresh token", "error", err)
		}
		return nil, ErrSessionExpired
	}

	var session *Session
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		identity, err := s.repomanager.Identities(tx).FindByID(ctx, token.IdentityID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return ErrSessionExpired
			}
			return fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
		if identity.Disabled {
			return ErrSessionExpired
		}
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
		session, err = s.issueSession(ctx, identity, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ChangePassword replaces the password of identityID.
func (s *IdentityService) ChangePassword(ctx context.Context, identityID, newPassword string) error {
	if len([]rune(newPassword)) < s.passwordMinLength {
		return &WeakPasswordError{MinLength: s.passwordMinLength}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if err := s.repomanager.Identities(s.db).UpdatePassword(ctx, identityID, hash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return ErrSessionExpired
		}
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "password changed", "identity_id", identityID)
	return nil
}

// SignOut revokes refreshToken. Unknown tokens are ignored.
func (s *IdentityService) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.repomanager.RefreshTokens(s.db).Delete(ctx, refreshToken); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return nil
}

// HashPassword hashes password with the service's bcrypt cost.
func (s *IdentityService) HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
}

// --- helpers below ---

func (s *IdentityService) issueSession(ctx context.Context, identity *models.Identity, tx dbx.DBTX) (*Session, error) {
	access, err := auth.GenerateToken(identity.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}

	expiresAt := s.now().Add(s.refreshTokenValidityDuration)
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, identity.ID, refresh, expiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	return &Session{
		IdentityID:    identity.ID,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		AccessToken:   access,
		RefreshToken:  refresh,
		ExpiresAt:     expiresAt,
	}, nil
}

func (s *IdentityService) burnCode(ctx context.Context, email string) {
	if err := s.otp.Delete(ctx, email); err != nil {
		s.logger.Warn(ctx, "failed to delete one-time code", "error", err)
	}
}

// restoreCode puts back a consumed code after the sign-in failed for an
// internal reason, unless a newer code was issued in the meantime.
func (s *IdentityService) restoreCode(ctx context.Context, code *models.OTPCode) {
	if _, err := s.otp.Get(ctx, code.Email); !errors.Is(err, common.ErrorNotFound) {
		return
	}
	if err := s.otp.Put(ctx, code); err != nil {
		s.logger.Warn(ctx, "failed to restore one-time code", "error", err)
	}
}

func (s *IdentityService) getDummyHash() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword(common.GenerateRandByteArray(16), s.bcryptCost)
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func hashCode(code string) []byte {
	sum := sha256.Sum256([]byte(code))
	return sum[:]
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
