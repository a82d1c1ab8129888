package auth

import "github.com/dmitrijs2005/shopkeeper/internal/client/models"

// Status is the active variant of a State.
type Status int

const (
	// StatusUnknown is the state before the persisted session was restored.
	StatusUnknown Status = iota
	StatusUnauthenticated
	// StatusPendingVerification means the password matched but the email has
	// never been confirmed; State.Email holds the address to verify.
	StatusPendingVerification
	// StatusAuthenticated means State.Profile is set.
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusPendingVerification:
		return "pending_verification"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "invalid"
	}
}

// State is the session as observed by the rest of the application. Values
// are immutable once published.
type State struct {
	Status  Status
	Email   string
	Profile *models.UserProfile
	// Err is the failure that caused the transition into this state, if any.
	Err error
}

func (s State) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.Profile != nil
}

func (s State) IsAdmin() bool {
	return s.IsAuthenticated() && s.Profile.Role == models.RoleAdmin
}

func (s State) IsStaff() bool {
	return s.IsAuthenticated() && s.Profile.Role == models.RoleStaff
}

func unknown() State { return State{Status: StatusUnknown} }

func unauthenticated(err error) State {
	return State{Status: StatusUnauthenticated, Err: err}
}

func pendingVerification(email string, err error) State {
	return State{Status: StatusPendingVerification, Email: email, Err: err}
}

func authenticated(p *models.UserProfile) State {
	cp := *p
	return State{Status: StatusAuthenticated, Email: p.Email, Profile: &cp}
}
