// Package models defines backend data models persisted in the database.
package models

import "time"

// Identity is an account known to the identity provider. PasswordHash is a
// bcrypt hash; Disabled accounts cannot sign in by any method.
type Identity struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  []byte
	EmailVerified bool
	Disabled      bool
	CreatedAt     time.Time
}
