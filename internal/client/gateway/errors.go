package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountInactive      = errors.New("account inactive")
	ErrEmailUnverified      = errors.New("email unverified")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrWeakPassword         = errors.New("weak password")
	ErrTransient            = errors.New("identity service unavailable")
	ErrSessionExpired       = errors.New("session expired")
	ErrNoSession            = errors.New("no active session")
)

// EmailUnverifiedError is returned by SignInWithPassword when the password
// matched but the account has never completed a one-time-code
// verification. Email is the address the code must be sent to.
type EmailUnverifiedError struct {
	Email string
}

func (e *EmailUnverifiedError) Error() string {
	return fmt.Sprintf("email unverified: %s", e.Email)
}

func (e *EmailUnverifiedError) Is(target error) bool {
	return target == ErrEmailUnverified
}

// WeakPasswordError is returned by ChangePassword when the new password is
// shorter than the backend's policy allows.
type WeakPasswordError struct {
	MinLength int
}

func (e *WeakPasswordError) Error() string {
	if e.MinLength > 0 {
		return fmt.Sprintf("weak password: at least %d characters required", e.MinLength)
	}
	return ErrWeakPassword.Error()
}

func (e *WeakPasswordError) Is(target error) bool {
	return target == ErrWeakPassword
}
