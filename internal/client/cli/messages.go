package cli

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopkeeper/internal/client/auth"
	"github.com/dmitrijs2005/shopkeeper/internal/client/gateway"
)

// describeError turns a machine failure into the line shown to the user.
// Hard failures, retryable failures and the unverified-email redirect read
// differently.
func describeError(err error) string {
	var weak *gateway.WeakPasswordError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, auth.ErrEmailUnverified):
		return "Your email is not verified yet. A one-time code is required."
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Wrong username or password."
	case errors.Is(err, auth.ErrAccountInactive):
		return "This account is disabled. Contact your administrator."
	case errors.Is(err, auth.ErrInvalidOrExpiredCode):
		return "The code is wrong or has expired. Request a new one with 'resend'."
	case errors.Is(err, auth.ErrProfileNotProvisioned):
		return "Your account has no shop profile yet. Contact your administrator."
	case errors.As(err, &weak) && weak.MinLength > 0:
		return fmt.Sprintf("Password too short: use at least %d characters.", weak.MinLength)
	case errors.Is(err, auth.ErrWeakPassword):
		return "Password too weak."
	case errors.Is(err, auth.ErrSessionExpired):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, auth.ErrNotAuthenticated):
		return "You are not signed in."
	case errors.Is(err, auth.ErrTransient):
		return "The shop service is unreachable. Check the connection and try again."
	default:
		return "Unexpected error: " + err.Error()
	}
}
