// Package otpcodes stores the latest one-time sign-in code per email.
// Two backends are provided: PostgreSQL and Redis.
package otpcodes

import (
	"context"

	"github.com/dmitrijs2005/shopkeeper/internal/server/models"
)

// Store keeps at most one code per email; Put replaces any earlier code and
// resets its attempt counter. Emails are expected in lower case.
type Store interface {
	Put(ctx context.Context, code *models.OTPCode) error

	// Get returns common.ErrorNotFound when no code is stored.
	Get(ctx context.Context, email string) (*models.OTPCode, error)

	// IncrementAttempts records a failed guess and returns the new count.
	// It returns common.ErrorNotFound when no code is stored.
	IncrementAttempts(ctx context.Context, email string) (int, error)

	// Consume deletes the code for email if its hash is still codeHash and
	// reports whether it did. Of several concurrent callers at most one
	// gets true.
	Consume(ctx context.Context, email string, codeHash []byte) (bool, error)

	Delete(ctx context.Context, email string) error
}
