package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/shopkeeper/internal/client/models"
	"github.com/dmitrijs2005/shopkeeper/internal/logging"
	"github.com/dmitrijs2005/shopkeeper/internal/wire"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultRequestTimeout = 10 * time.Second
	signOutTimeout        = 3 * time.Second
	// accessTokenSkew refreshes slightly before exp so the token does not
	// expire in flight.
	accessTokenSkew = 5 * time.Second
)

// bearerMethods need an access token attached.
var bearerMethods = map[string]bool{
	wire.MethodChangePassword: true,
	wire.MethodGetProfile:     true,
}

// GRPCGateway implements Gateway over gRPC.
type GRPCGateway struct {
	endpointURL    string
	dialOptions    []grpc.DialOption
	conn           *grpc.ClientConn
	requestTimeout time.Duration
	logger         logging.Logger
	now            func() time.Time

	mu       sync.Mutex
	identity *models.Identity
	listener Listener

	refreshGroup singleflight.Group
}

// Option customizes a GRPCGateway.
type Option func(*GRPCGateway)

func WithLogger(l logging.Logger) Option {
	return func(g *GRPCGateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithRequestTimeout bounds every remote call.
func WithRequestTimeout(d time.Duration) Option {
	return func(g *GRPCGateway) {
		if d > 0 {
			g.requestTimeout = d
		}
	}
}

// WithDialOptions appends gRPC dial options (transport credentials,
// custom dialers).
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(g *GRPCGateway) {
		g.dialOptions = append(g.dialOptions, opts...)
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *GRPCGateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGRPCGateway creates a gateway for endpointURL. The connection is lazy:
// no network traffic happens until the first call.
func NewGRPCGateway(endpointURL string, opts ...Option) (*GRPCGateway, error) {
	g := &GRPCGateway{
		endpointURL:    endpointURL,
		requestTimeout: defaultRequestTimeout,
		logger:         logging.Nop{},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("module", "gateway")

	dialOptions := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, g.dialOptions...)
	dialOptions = append(dialOptions, grpc.WithUnaryInterceptor(g.accessTokenInterceptor))

	conn, err := grpc.NewClient(endpointURL, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("grpc client: %w", err)
	}
	g.conn = conn
	return g, nil
}

func (g *GRPCGateway) SetListener(l Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listener = l
}

func (g *GRPCGateway) Close() error {
	return g.conn.Close()
}

func (g *GRPCGateway) Adopt(identity *models.Identity) {
	g.setIdentity(identity)
}

func (g *GRPCGateway) SignInWithPassword(ctx context.Context, identifier, password string) (*models.Identity, error) {
	out, err := g.call(ctx, wire.MethodSignInWithPassword, map[string]any{
		wire.FieldIdentifier: identifier,
		wire.FieldPassword:   password,
	})
	if err != nil {
		return nil, err
	}
	return g.adoptResponse(out), nil
}

func (g *GRPCGateway) RequestOTP(ctx context.Context, email string) error {
	_, err := g.call(ctx, wire.MethodRequestOTP, map[string]any{wire.FieldEmail: email})
	return err
}

func (g *GRPCGateway) VerifyOTP(ctx context.Context, email, code string) (*models.Identity, error) {
	out, err := g.call(ctx, wire.MethodVerifyOTP, map[string]any{
		wire.FieldEmail: email,
		wire.FieldCode:  code,
	})
	if err != nil {
		return nil, err
	}
	return g.adoptResponse(out), nil
}

func (g *GRPCGateway) ChangePassword(ctx context.Context, newPassword string) error {
	if g.current() == nil {
		return ErrNoSession
	}
	_, err := g.call(ctx, wire.MethodChangePassword, map[string]any{wire.FieldNewPassword: newPassword})
	return err
}

func (g *GRPCGateway) Refresh(ctx context.Context) (*models.Identity, error) {
	return g.refresh(ctx, "")
}

func (g *GRPCGateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	cur := g.identity
	g.identity = nil
	g.mu.Unlock()

	if cur == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, signOutTimeout)
	defer cancel()
	_, err := g.call(ctx, wire.MethodSignOut, map[string]any{wire.FieldRefreshToken: cur.RefreshToken})
	if err != nil {
		return fmt.Errorf("remote sign-out: %w", err)
	}
	return nil
}

func (g *GRPCGateway) GetProfile(ctx context.Context, identityID string) (*models.UserProfile, error) {
	out, err := g.call(ctx, wire.MethodGetProfile, map[string]any{wire.FieldIdentityID: identityID})
	if err != nil {
		return nil, err
	}
	p, ok := wire.ProfileFromStruct(out)
	if !ok {
		return nil, nil
	}
	return &models.UserProfile{
		ID:       p.ID,
		Name:     p.Name,
		Email:    p.Email,
		Role:     models.Role(p.Role),
		Active:   p.Active,
		PhotoURL: p.PhotoURL,
	}, nil
}

// call invokes method with a per-request timeout and maps failures.
func (g *GRPCGateway) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	out := new(structpb.Struct)
	if err := g.conn.Invoke(ctx, method, wire.Struct(fields), out); err != nil {
		mapped := mapError(err)
		g.logger.Debug(ctx, "remote call failed", "method", method, "error", mapped)
		return nil, mapped
	}
	return out, nil
}

func (g *GRPCGateway) adoptResponse(out *structpb.Struct) *models.Identity {
	identity := identityFromWire(wire.IdentityFromStruct(out))
	g.setIdentity(identity)
	return identity
}

func (g *GRPCGateway) current() *models.Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.identity == nil {
		return nil
	}
	cp := *g.identity
	return &cp
}

func (g *GRPCGateway) setIdentity(identity *models.Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if identity == nil {
		g.identity = nil
		return
	}
	cp := *identity
	g.identity = &cp
}

func (g *GRPCGateway) currentListener() Listener {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listener
}

// refresh rotates the token pair. Concurrent callers share one request.
// When stale is set and the held access token already differs from it,
// another caller has refreshed in the meantime and nothing is sent.
func (g *GRPCGateway) refresh(ctx context.Context, stale string) (*models.Identity, error) {
	v, err, _ := g.refreshGroup.Do("refresh", func() (any, error) {
		cur := g.current()
		if cur == nil {
			return nil, ErrNoSession
		}
		if stale != "" && cur.AccessToken != stale {
			return cur, nil
		}

		out, err := g.call(ctx, wire.MethodRefreshSession, map[string]any{wire.FieldRefreshToken: cur.RefreshToken})
		if err != nil {
			if errors.Is(err, ErrSessionExpired) {
				g.logger.Info(ctx, "session refused by identity service", "identity_id", cur.ID)
				g.setIdentity(nil)
				if l := g.currentListener(); l != nil {
					l.SessionExpired(ctx)
				}
			}
			return nil, err
		}

		identity := g.adoptResponse(out)
		if l := g.currentListener(); l != nil {
			l.SessionRefreshed(ctx, identity)
		}
		return identity, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Identity), nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(wire.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

// accessTokenInterceptor attaches the bearer token to bearerMethods,
// refreshing it up front when expired and once more on TOKEN_EXPIRED.
func (g *GRPCGateway) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if !bearerMethods[method] {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	cur := g.current()
	if cur == nil {
		return errSessionStatus()
	}

	token := cur.AccessToken
	if accessTokenExpired(token, g.now()) {
		refreshed, err := g.refresh(ctx, token)
		if err != nil {
			return err
		}
		token = refreshed.AccessToken
	}

	err := invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
	if f, ok := wire.Decode(err); !ok || f.Reason != wire.ReasonTokenExpired {
		return err
	}

	refreshed, rerr := g.refresh(ctx, token)
	if rerr != nil {
		return rerr
	}
	return invoker(withAccessToken(ctx, refreshed.AccessToken), method, req, reply, cc, opts...)
}

// errSessionStatus lets a missing session travel through mapError like a
// backend answer would.
func errSessionStatus() error {
	return wire.Error(codes.Unauthenticated, wire.ReasonSessionExpired, "no session", nil)
}

// accessTokenExpired reads exp without verifying the signature; the backend
// stays the authority, this only saves a doomed round trip.
func accessTokenExpired(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.After(now.Add(accessTokenSkew))
}

func identityFromWire(w wire.Identity) *models.Identity {
	return &models.Identity{
		ID:            w.IdentityID,
		Email:         w.Email,
		EmailVerified: w.EmailVerified,
		AccessToken:   w.AccessToken,
		RefreshToken:  w.RefreshToken,
		ExpiresAt:     w.ExpiresAt,
	}
}

// mapError turns a gRPC failure into the gateway taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var (
		unverified *EmailUnverifiedError
		weak       *WeakPasswordError
	)
	if errors.As(err, &unverified) || errors.As(err, &weak) {
		return err
	}
	for _, known := range []error{ErrInvalidCredentials, ErrAccountInactive, ErrInvalidOrExpiredCode, ErrSessionExpired, ErrNoSession, ErrTransient} {
		if errors.Is(err, known) {
			return err
		}
	}

	f, ok := wire.Decode(err)
	if !ok {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	switch f.Reason {
	case wire.ReasonInvalidCredentials:
		return ErrInvalidCredentials
	case wire.ReasonAccountInactive:
		return ErrAccountInactive
	case wire.ReasonEmailUnverified:
		return &EmailUnverifiedError{Email: f.Metadata[wire.MetaEmail]}
	case wire.ReasonInvalidOrExpiredCode:
		return ErrInvalidOrExpiredCode
	case wire.ReasonWeakPassword:
		minLength, _ := strconv.Atoi(f.Metadata[wire.MetaMinLength])
		return &WeakPasswordError{MinLength: minLength}
	case wire.ReasonSessionExpired, wire.ReasonTokenExpired, wire.ReasonMissingToken:
		return ErrSessionExpired
	}

	return fmt.Errorf("%w: %s: %s", ErrTransient, f.Code, f.Message)
}
