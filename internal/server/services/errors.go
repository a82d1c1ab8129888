package services

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountInactive      = errors.New("account inactive")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrSessionExpired       = errors.New("session expired")
	ErrPermissionDenied     = errors.New("permission denied")
)

// EmailUnverifiedError rejects a password sign-in whose credentials were
// correct but whose email address was never confirmed.
type EmailUnverifiedError struct {
	Email string
}

func (e *EmailUnverifiedError) Error() string {
	return fmt.Sprintf("email %s is not verified", e.Email)
}

// WeakPasswordError rejects a new password shorter than MinLength.
type WeakPasswordError struct {
	MinLength int
}

func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("password must be at least %d characters", e.MinLength)
}
