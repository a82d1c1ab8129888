package models

import "time"

// Roles a profile may carry.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Profile is the application-level record of an identity: display name,
// role and the business-level active flag.
type Profile struct {
	ID         string
	IdentityID string
	Name       string
	Email      string
	Role       string
	Active     bool
	// PhotoKey is the object-storage key of the profile photo, "" when none.
	PhotoKey  string
	CreatedAt time.Time
}
