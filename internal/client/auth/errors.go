package auth

import (
	"errors"

	"github.com/dmitrijs2005/shopkeeper/internal/client/gateway"
)

// Failures surfaced by the machine. Gateway failures are re-exported so
// screens only import this package.
var (
	ErrInvalidCredentials   = gateway.ErrInvalidCredentials
	ErrAccountInactive      = gateway.ErrAccountInactive
	ErrEmailUnverified      = gateway.ErrEmailUnverified
	ErrInvalidOrExpiredCode = gateway.ErrInvalidOrExpiredCode
	ErrWeakPassword         = gateway.ErrWeakPassword
	ErrTransient            = gateway.ErrTransient
	ErrSessionExpired       = gateway.ErrSessionExpired

	// ErrProfileNotProvisioned: the identity provider accepted the user but
	// there is no application profile for them.
	ErrProfileNotProvisioned = errors.New("profile not provisioned")
	ErrNotAuthenticated      = errors.New("not signed in")
)
