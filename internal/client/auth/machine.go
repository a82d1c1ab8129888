// Package auth owns the session state of the client.
//
// Machine combines the credential gateway, the session store and the
// profile resolver into one observable State. It is the only writer of that
// state; everything else reads it through Current or Subscribe.
//
// Identical concurrent calls of an operation share a single gateway request.
// Logout waits for operations already running and is applied after them,
// so a sign-in that resolves late can never resurrect a signed-out session.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/dmitrijs2005/shopkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/shopkeeper/internal/client/models"
	"github.com/dmitrijs2005/shopkeeper/internal/logging"
	"golang.org/x/sync/singleflight"
)

// SessionStore persists the identity between runs.
type SessionStore interface {
	Restore(ctx context.Context) *models.Identity
	Save(ctx context.Context, identity *models.Identity) error
	Clear(ctx context.Context) error
}

// ProfileResolver maps an identity to its profile; (nil, nil) means none.
type ProfileResolver interface {
	Resolve(ctx context.Context, identityID string) (*models.UserProfile, error)
}

type Machine struct {
	gateway  gateway.Gateway
	store    SessionStore
	profiles ProfileResolver
	logger   logging.Logger

	flights singleflight.Group
	// gate: operations hold it shared, Logout exclusively.
	gate sync.RWMutex

	mu    sync.Mutex
	state State
	// identity is the session the gateway holds for state, if any.
	identity *models.Identity
	subs     map[int]chan State
	nextSub  int
}

// NewMachine wires the machine and registers it as the gateway's session
// listener. The state is Unknown until Start.
func NewMachine(gw gateway.Gateway, store SessionStore, profiles ProfileResolver, logger logging.Logger) *Machine {
	if logger == nil {
		logger = logging.Nop{}
	}
	m := &Machine{
		gateway:  gw,
		store:    store,
		profiles: profiles,
		logger:   logger.With("module", "auth"),
		state:    unknown(),
		subs:     make(map[int]chan State),
	}
	gw.SetListener(m)
	return m
}

// Current returns the latest state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) IsAuthenticated() bool { return m.Current().IsAuthenticated() }
func (m *Machine) IsAdmin() bool         { return m.Current().IsAdmin() }
func (m *Machine) IsStaff() bool         { return m.Current().IsStaff() }

// Subscribe returns a channel that always holds the most recent state: the
// current one is delivered immediately and intermediate states a slow
// reader misses are dropped. cancel closes the channel.
func (m *Machine) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan State, 1)
	ch <- m.state
	m.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// commitSession publishes s and records the gateway session behind it.
func (m *Machine) commitSession(ctx context.Context, s State, identity *models.Identity) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = identity
	return m.commitLocked(ctx, s)
}

func (m *Machine) commitLocked(ctx context.Context, s State) State {
	prev := m.state
	m.state = s
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
	if prev.Status != s.Status {
		m.logger.Info(ctx, "session state changed", "from", prev.Status.String(), "to", s.Status.String())
	}
	return s
}

// run executes fn once for all concurrent callers using the same key.
func (m *Machine) run(key string, fn func() (State, error)) (State, error) {
	v, err, _ := m.flights.Do(key, func() (any, error) {
		m.gate.RLock()
		defer m.gate.RUnlock()
		return fn()
	})
	return v.(State), err
}

func flightKey(op string, args ...string) string {
	h := sha256.New()
	for _, a := range args {
		h.Write([]byte(a))
		h.Write([]byte{0})
	}
	return op + ":" + hex.EncodeToString(h.Sum(nil))
}

// Start restores a persisted session. It moves the machine out of Unknown
// unless another operation already did.
func (m *Machine) Start(ctx context.Context) State {
	st, _ := m.run("start", func() (State, error) {
		return m.start(ctx), nil
	})
	return st
}

func (m *Machine) start(ctx context.Context) State {
	identity := m.store.Restore(ctx)
	if identity == nil || !identity.EmailVerified {
		return m.commitIfUnknown(ctx, unauthenticated(nil), nil)
	}

	m.gateway.Adopt(identity)
	profile, err := m.profiles.Resolve(ctx, identity.ID)
	switch {
	case errors.Is(err, gateway.ErrSessionExpired):
		return m.commitIfUnknown(ctx, unauthenticated(nil), nil)
	case err != nil:
		// Keep the stored session: the next start may reach the backend.
		m.logger.Warn(ctx, "profile lookup failed during restore", "error", err)
		m.gateway.Adopt(nil)
		return m.commitIfUnknown(ctx, unauthenticated(err), nil)
	}

	if rejected := profileRejection(profile); rejected != nil {
		m.discardSession(ctx)
		return m.commitIfUnknown(ctx, unauthenticated(rejected), nil)
	}
	return m.commitIfUnknown(ctx, authenticated(profile), identity)
}

func (m *Machine) commitIfUnknown(ctx context.Context, s State, identity *models.Identity) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status != StatusUnknown {
		return m.state
	}
	m.identity = identity
	return m.commitLocked(ctx, s)
}

// SignInWithPassword authenticates with an identifier (username or email)
// and password.
//
// An unverified account ends in PendingVerification and the error is a
// *gateway.EmailUnverifiedError. Invalid credentials and inactive accounts
// end in Unauthenticated. A transient failure leaves the state unchanged.
func (m *Machine) SignInWithPassword(ctx context.Context, identifier, password string) (State, error) {
	return m.run(flightKey("password", identifier, password), func() (State, error) {
		identity, err := m.gateway.SignInWithPassword(ctx, identifier, password)
		if err != nil {
			var unverified *gateway.EmailUnverifiedError
			switch {
			case errors.As(err, &unverified):
				email := unverified.Email
				if email == "" {
					email = identifier
				}
				m.dropSession(ctx)
				return m.commitSession(ctx, pendingVerification(email, err), nil), err
			case errors.Is(err, gateway.ErrInvalidCredentials), errors.Is(err, gateway.ErrAccountInactive):
				m.dropSession(ctx)
				return m.commitSession(ctx, unauthenticated(err), nil), err
			default:
				return m.Current(), err
			}
		}
		return m.establish(ctx, identity)
	})
}

// SignInWithOTP asks the backend to email a one-time code. The state does
// not change.
func (m *Machine) SignInWithOTP(ctx context.Context, email string) error {
	_, err := m.run(flightKey("otp-request", email), func() (State, error) {
		return m.Current(), m.gateway.RequestOTP(ctx, email)
	})
	return err
}

// VerifyOTP completes a one-time-code sign-in. A wrong or expired code
// leaves the state unchanged.
func (m *Machine) VerifyOTP(ctx context.Context, email, code string) (State, error) {
	return m.run(flightKey("otp-verify", email, code), func() (State, error) {
		identity, err := m.gateway.VerifyOTP(ctx, email, code)
		if err != nil {
			return m.Current(), err
		}
		return m.establish(ctx, identity)
	})
}

// establish resolves the profile of a freshly signed-in identity and
// commits Authenticated, or tears the session down again.
func (m *Machine) establish(ctx context.Context, identity *models.Identity) (State, error) {
	profile, err := m.profiles.Resolve(ctx, identity.ID)
	if errors.Is(err, gateway.ErrTransient) {
		m.revert(ctx)
		return m.Current(), err
	}
	if err != nil {
		m.discardSession(ctx)
		return m.commitSession(ctx, unauthenticated(err), nil), err
	}
	if rejected := profileRejection(profile); rejected != nil {
		m.discardSession(ctx)
		return m.commitSession(ctx, unauthenticated(rejected), nil), rejected
	}

	if err := m.store.Save(ctx, identity); err != nil {
		m.logger.Warn(ctx, "session not persisted", "error", err)
	}
	return m.commitSession(ctx, authenticated(profile), identity), nil
}

// dropSession discards the session of the current state, if there is one.
func (m *Machine) dropSession(ctx context.Context) {
	m.mu.Lock()
	held := m.identity != nil
	m.mu.Unlock()
	if held {
		m.discardSession(ctx)
	}
}

// revert revokes the session the gateway just obtained and gives it back
// the one that belongs to the current state. The persisted session is not
// touched.
func (m *Machine) revert(ctx context.Context) {
	if err := m.gateway.SignOut(ctx); err != nil {
		m.logger.Debug(ctx, "remote sign-out failed", "error", err)
	}
	m.mu.Lock()
	prev := m.identity
	m.mu.Unlock()
	m.gateway.Adopt(prev)
}

func profileRejection(p *models.UserProfile) error {
	switch {
	case p == nil:
		return ErrProfileNotProvisioned
	case !p.Active:
		return ErrAccountInactive
	}
	return nil
}

func (m *Machine) discardSession(ctx context.Context) {
	if err := m.gateway.SignOut(ctx); err != nil {
		m.logger.Debug(ctx, "remote sign-out failed", "error", err)
	}
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn(ctx, "session not cleared", "error", err)
	}
}

// Logout always ends in Unauthenticated. Operations already running finish
// first; remote and storage failures are only logged.
func (m *Machine) Logout(ctx context.Context) State {
	v, _, _ := m.flights.Do("logout", func() (any, error) {
		m.gate.Lock()
		defer m.gate.Unlock()

		m.discardSession(ctx)
		return m.commitSession(ctx, unauthenticated(nil), nil), nil
	})
	return v.(State)
}

// ChangePassword sets a new password for the signed-in user. Failures are
// returned without a state change.
func (m *Machine) ChangePassword(ctx context.Context, newPassword string) error {
	_, err := m.run(flightKey("change-password", newPassword), func() (State, error) {
		if !m.Current().IsAuthenticated() {
			return m.Current(), ErrNotAuthenticated
		}
		return m.Current(), m.gateway.ChangePassword(ctx, newPassword)
	})
	return err
}

// SessionRefreshed persists rotated tokens.
func (m *Machine) SessionRefreshed(ctx context.Context, identity *models.Identity) {
	m.mu.Lock()
	if m.identity != nil && m.identity.ID == identity.ID {
		m.identity = identity
	}
	m.mu.Unlock()

	if err := m.store.Save(ctx, identity); err != nil {
		m.logger.Warn(ctx, "refreshed session not persisted", "error", err)
	}
}

// SessionExpired is called by the gateway when the backend refused to
// refresh the session. It runs outside the operation gate because the
// gateway reports expiry from inside running operations.
func (m *Machine) SessionExpired(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn(ctx, "session not cleared", "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = nil
	if m.state.Status == StatusAuthenticated {
		m.commitLocked(ctx, unauthenticated(ErrSessionExpired))
	}
}
