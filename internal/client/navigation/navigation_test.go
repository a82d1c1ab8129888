package navigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/shopkeeper/internal/client/auth"
	"github.com/dmitrijs2005/shopkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/shopkeeper/internal/client/models"
	"github.com/dmitrijs2005/shopkeeper/internal/client/profiles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestination(t *testing.T) {
	staff := &models.UserProfile{Role: models.RoleStaff, Active: true}
	admin := &models.UserProfile{Role: models.RoleAdmin, Active: true}

	tests := []struct {
		name  string
		state auth.State
		want  Route
	}{
		{"unknown", auth.State{}, Route{Screen: ScreenSplash}},
		{"unauthenticated", auth.State{Status: auth.StatusUnauthenticated}, Route{Screen: ScreenLoginChooser}},
		{"inactive account stays on login", auth.State{Status: auth.StatusUnauthenticated, Err: auth.ErrAccountInactive}, Route{Screen: ScreenLoginChooser}},
		{"pending", auth.State{Status: auth.StatusPendingVerification, Email: "dave@x.com"}, Route{Screen: ScreenOTP, Email: "dave@x.com"}},
		{"staff", auth.State{Status: auth.StatusAuthenticated, Profile: staff}, Route{Screen: ScreenStaffHome}},
		{"admin", auth.State{Status: auth.StatusAuthenticated, Profile: admin}, Route{Screen: ScreenAdminDashboard}},
		{"authenticated without profile", auth.State{Status: auth.StatusAuthenticated}, Route{Screen: ScreenLoginChooser}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Destination(tt.state))
		})
	}
}

func TestRouteString(t *testing.T) {
	assert.Equal(t, "login", Route{Screen: ScreenLoginChooser}.String())
	assert.Equal(t, "otp?email=dave@x.com", Route{Screen: ScreenOTP, Email: "dave@x.com"}.String())
	assert.Equal(t, "screen(9)", Screen(9).String())
}

type recordingNavigator struct {
	mu     sync.Mutex
	resets []Route
}

func (n *recordingNavigator) Reset(r Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, r)
}

func (n *recordingNavigator) snapshot() []Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Route(nil), n.resets...)
}

func TestGuard_ResetsOnlyOnDestinationChange(t *testing.T) {
	nav := &recordingNavigator{}
	g := NewGuard(nav, nil)
	states := make(chan auth.State)
	done := make(chan struct{})
	go func() {
		g.Run(context.Background(), states)
		close(done)
	}()

	staff := &models.UserProfile{Role: models.RoleStaff, Active: true}
	states <- auth.State{}
	states <- auth.State{Status: auth.StatusUnauthenticated}
	states <- auth.State{Status: auth.StatusUnauthenticated, Err: auth.ErrInvalidCredentials}
	states <- auth.State{Status: auth.StatusAuthenticated, Profile: staff}
	states <- auth.State{Status: auth.StatusUnauthenticated}
	close(states)
	<-done

	assert.Equal(t, []Route{
		{Screen: ScreenSplash},
		{Screen: ScreenLoginChooser},
		{Screen: ScreenStaffHome},
		{Screen: ScreenLoginChooser},
	}, nav.snapshot())
}

func TestGuard_ResetsWhenSignedInUserChanges(t *testing.T) {
	nav := &recordingNavigator{}
	g := NewGuard(nav, nil)
	states := make(chan auth.State)
	done := make(chan struct{})
	go func() {
		g.Run(context.Background(), states)
		close(done)
	}()

	alice := &models.UserProfile{ID: "p-alice", Role: models.RoleStaff, Active: true}
	dave := &models.UserProfile{ID: "p-dave", Role: models.RoleStaff, Active: true}
	states <- auth.State{Status: auth.StatusAuthenticated, Profile: alice}
	states <- auth.State{Status: auth.StatusAuthenticated, Profile: alice}
	states <- auth.State{Status: auth.StatusAuthenticated, Profile: dave}
	close(states)
	<-done

	assert.Equal(t, []Route{
		{Screen: ScreenStaffHome},
		{Screen: ScreenStaffHome},
	}, nav.snapshot())
}

func TestGuard_StopsOnContextCancel(t *testing.T) {
	g := NewGuard(&recordingNavigator{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx, make(chan auth.State))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("guard did not stop")
	}
}

type guardScenario struct {
	m   *auth.Machine
	nav *recordingNavigator
}

func TestGuard_FollowsMachine(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()

	s.m.Start(ctx)
	require.Eventually(t, func() bool { return lastRoute(s.nav) == Route{Screen: ScreenLoginChooser} }, time.Second, time.Millisecond)

	_, err := s.m.SignInWithPassword(ctx, "alice", "Secret1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return lastRoute(s.nav) == Route{Screen: ScreenStaffHome} }, time.Second, time.Millisecond)

	s.m.Logout(ctx)
	require.Eventually(t, func() bool { return lastRoute(s.nav) == Route{Screen: ScreenLoginChooser} }, time.Second, time.Millisecond)

	_, err = s.m.SignInWithPassword(ctx, "carol@x.com", "Secret3")
	require.ErrorIs(t, err, auth.ErrAccountInactive)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, Route{Screen: ScreenLoginChooser}, lastRoute(s.nav))
}

func lastRoute(n *recordingNavigator) Route {
	r := n.snapshot()
	if len(r) == 0 {
		return Route{Screen: -1}
	}
	return r[len(r)-1]
}

// stubGateway knows alice (active staff) and carol (inactive).
type stubGateway struct{}

func (stubGateway) SignInWithPassword(_ context.Context, identifier, password string) (*models.Identity, error) {
	switch {
	case identifier == "alice" && password == "Secret1":
		return &models.Identity{ID: "id-alice", Email: "alice@x.com", EmailVerified: true, RefreshToken: "R", ExpiresAt: time.Now().Add(time.Hour)}, nil
	case identifier == "carol@x.com":
		return nil, gateway.ErrAccountInactive
	}
	return nil, gateway.ErrInvalidCredentials
}

func (stubGateway) RequestOTP(context.Context, string) error { return nil }
func (stubGateway) VerifyOTP(context.Context, string, string) (*models.Identity, error) {
	return nil, gateway.ErrInvalidOrExpiredCode
}
func (stubGateway) ChangePassword(context.Context, string) error { return nil }
func (stubGateway) Refresh(context.Context) (*models.Identity, error) {
	return nil, errors.New("not used")
}
func (stubGateway) SignOut(context.Context) error { return nil }
func (stubGateway) Adopt(*models.Identity)        {}
func (stubGateway) SetListener(gateway.Listener)  {}
func (stubGateway) Close() error                  { return nil }
func (stubGateway) GetProfile(_ context.Context, id string) (*models.UserProfile, error) {
	if id == "id-alice" {
		return &models.UserProfile{ID: "p-alice", Email: "alice@x.com", Role: models.RoleStaff, Active: true}, nil
	}
	return nil, nil
}

type nopStore struct{}

func (nopStore) Restore(context.Context) *models.Identity     { return nil }
func (nopStore) Save(context.Context, *models.Identity) error { return nil }
func (nopStore) Clear(context.Context) error                  { return nil }

func newScenario(t *testing.T) guardScenario {
	t.Helper()
	gw := stubGateway{}
	m := auth.NewMachine(gw, nopStore{}, profiles.NewResolver(gw, nil), nil)
	nav := &recordingNavigator{}

	ctx, cancel := context.WithCancel(context.Background())
	states, unsubscribe := m.Subscribe()
	go NewGuard(nav, nil).Run(ctx, states)
	t.Cleanup(func() {
		cancel()
		unsubscribe()
	})
	return guardScenario{m: m, nav: nav}
}
