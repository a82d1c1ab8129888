// Package models holds the client-side data types of the session lifecycle.
package models

import "time"

// Identity is what the identity provider returns after a successful
// sign-in: who logged in and the tokens proving it. It knows nothing about
// application roles.
type Identity struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Expired reports whether the session behind the identity can no longer be
// refreshed at now.
func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}

// Valid reports whether the identity has the fields a session needs.
func (i *Identity) Valid() bool {
	return i.ID != "" && i.RefreshToken != "" && !i.ExpiresAt.IsZero()
}
