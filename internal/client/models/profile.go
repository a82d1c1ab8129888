package models

// Role is the business role carried by a UserProfile.
type Role string

const (
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStaff || r == RoleAdmin
}

// UserProfile is the application's own record about a user.
type UserProfile struct {
	ID       string
	Name     string
	Email    string
	Role     Role
	Active   bool
	PhotoURL string
}
