// Package navigation decides which entry screen the session state leads to
// and keeps the screen stack in line with it.
package navigation

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/shopkeeper/internal/client/auth"
	"github.com/dmitrijs2005/shopkeeper/internal/client/models"
	"github.com/dmitrijs2005/shopkeeper/internal/logging"
)

type Screen int

const (
	ScreenSplash Screen = iota
	ScreenLoginChooser
	ScreenOTP
	ScreenAdminDashboard
	ScreenStaffHome
)

func (s Screen) String() string {
	switch s {
	case ScreenSplash:
		return "splash"
	case ScreenLoginChooser:
		return "login"
	case ScreenOTP:
		return "otp"
	case ScreenAdminDashboard:
		return "admin"
	case ScreenStaffHome:
		return "staff"
	default:
		return fmt.Sprintf("screen(%d)", int(s))
	}
}

// Route is an entry screen plus its parameters.
type Route struct {
	Screen Screen
	// Email prefills the OTP screen.
	Email string
}

func (r Route) String() string {
	if r.Email != "" {
		return r.Screen.String() + "?email=" + r.Email
	}
	return r.Screen.String()
}

// Destination maps a session state to the screen the user belongs on.
func Destination(s auth.State) Route {
	switch s.Status {
	case auth.StatusUnauthenticated:
		return Route{Screen: ScreenLoginChooser}
	case auth.StatusPendingVerification:
		return Route{Screen: ScreenOTP, Email: s.Email}
	case auth.StatusAuthenticated:
		if s.Profile != nil {
			switch s.Profile.Role {
			case models.RoleAdmin:
				return Route{Screen: ScreenAdminDashboard}
			case models.RoleStaff:
				return Route{Screen: ScreenStaffHome}
			}
		}
		return Route{Screen: ScreenLoginChooser}
	default:
		return Route{Screen: ScreenSplash}
	}
}

// Navigator owns the screen stack. Reset discards the whole stack and shows
// route alone, so there is no way back across a sign-in or sign-out.
type Navigator interface {
	Reset(route Route)
}

// Guard is the single subscriber that turns state changes into navigation.
type Guard struct {
	nav    Navigator
	logger logging.Logger
}

func NewGuard(nav Navigator, logger logging.Logger) *Guard {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Guard{nav: nav, logger: logger.With("module", "navigation")}
}

// Run resets the navigator whenever the destination of the received state
// or the signed-in profile differs from the last one, so one user's stack
// never survives into another user's session. It returns when states is
// closed or ctx is done.
func (g *Guard) Run(ctx context.Context, states <-chan auth.State) {
	var (
		current Route
		owner   string
		started bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			next, who := Destination(s), profileID(s)
			if started && next == current && who == owner {
				continue
			}
			g.logger.Debug(ctx, "navigating", "route", next.String(), "status", s.Status.String())
			g.nav.Reset(next)
			current, owner, started = next, who, true
		}
	}
}

func profileID(s auth.State) string {
	if s.Status != auth.StatusAuthenticated || s.Profile == nil {
		return ""
	}
	return s.Profile.ID
}
