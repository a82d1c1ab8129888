package services

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/shopkeeper/internal/common"
	"github.com/dmitrijs2005/shopkeeper/internal/dbx"
	"github.com/dmitrijs2005/shopkeeper/internal/logging"
	"github.com/dmitrijs2005/shopkeeper/internal/server/config"
	"github.com/dmitrijs2005/shopkeeper/internal/server/models"
	"github.com/dmitrijs2005/shopkeeper/internal/server/repositories/identities"
	"github.com/dmitrijs2005/shopkeeper/internal/server/repositories/otpcodes"
	"github.com/dmitrijs2005/shopkeeper/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/shopkeeper/internal/server/repositories/refreshtokens"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// memRepos is an in-memory RepositoryManager; the DBTX argument is ignored.
type memRepos struct {
	mu         sync.Mutex
	identities map[string]*models.Identity
	profiles   map[string]*models.Profile
	tokens     map[string]*models.RefreshToken
	codes      map[string]*models.OTPCode

	// failWith makes every repository call fail.
	failWith error
}

func newMemRepos() *memRepos {
	return &memRepos{
		identities: map[string]*models.Identity{},
		profiles:   map[string]*models.Profile{},
		tokens:     map[string]*models.RefreshToken{},
		codes:      map[string]*models.OTPCode{},
	}
}

func (m *memRepos) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *memRepos) Identities(dbx.DBTX) identities.Repository       { return memIdentities{m} }
func (m *memRepos) Profiles(dbx.DBTX) profiles.Repository           { return memProfiles{m} }
func (m *memRepos) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return memTokens{m} }
func (m *memRepos) OTPCodes(dbx.DBTX) otpcodes.Store                { return memCodes{m} }

func (m *memRepos) addIdentity(t *testing.T, username, email, password string, verified, disabled bool) *models.Identity {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	identity := &models.Identity{
		ID: uuid.NewString(), Username: username, Email: email,
		PasswordHash: hash, EmailVerified: verified, Disabled: disabled,
	}
	m.identities[identity.ID] = identity
	return identity
}

func (m *memRepos) addProfile(identity *models.Identity, name, role string, active bool, photoKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[identity.ID] = &models.Profile{
		ID: uuid.NewString(), IdentityID: identity.ID, Name: name, Email: identity.Email,
		Role: role, Active: active, PhotoKey: photoKey,
	}
}

func (m *memRepos) identity(id string) models.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.identities[id]
}

func (m *memRepos) tokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

type memIdentities struct{ m *memRepos }

func (r memIdentities) Create(_ context.Context, identity *models.Identity) (*models.Identity, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failWith != nil {
		return nil, r.m.failWith
	}
	c := *identity
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	r.m.identities[c.ID] = &c
	identity.ID = c.ID
	return identity, nil
}

func (r memIdentities) find(match func(*models.Identity) bool) (*models.Identity, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failWith != nil {
		return nil, r.m.failWith
	}
	for _, i := range r.m.identities {
		if match(i) {
			c := *i
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memIdentities) FindByLogin(_ context.Context, login string) (*models.Identity, error) {
	return r.find(func(i *models.Identity) bool {
		return strings.EqualFold(i.Username, login) || strings.EqualFold(i.Email, login)
	})
}

func (r memIdentities) FindByEmail(_ context.Context, email string) (*models.Identity, error) {
	return r.find(func(i *models.Identity) bool { return strings.EqualFold(i.Email, email) })
}

func (r memIdentities) FindByID(_ context.Context, id string) (*models.Identity, error) {
	return r.find(func(i *models.Identity) bool { return i.ID == id })
}

func (r memIdentities) update(id string, fn func(*models.Identity)) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failWith != nil {
		return r.m.failWith
	}
	i, ok := r.m.identities[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(i)
	return nil
}

func (r memIdentities) MarkEmailVerified(_ context.Context, id string) error {
	return r.update(id, func(i *models.Identity) { i.EmailVerified = true })
}

func (r memIdentities) UpdatePassword(_ context.Context, id string, hash []byte) error {
	return r.update(id, func(i *models.Identity) { i.PasswordHash = hash })
}

type memProfiles struct{ m *memRepos }

func (r memProfiles) Create(_ context.Context, p *models.Profile) (*models.Profile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failWith != nil {
		return nil, r.m.failWith
	}
	c := *p
	c.ID = uuid.NewString()
	r.m.profiles[c.IdentityID] = &c
	p.ID = c.ID
	return p, nil
}

func (r memProfiles) FindByIdentityID(_ context.Context, identityID string) (*models.Profile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failWith != nil {
		return nil, r.m.failWith
	}
	p, ok := r.m.profiles[identityID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *p
	return &c, nil
}

type memTokens struct{ m *memRepos }

func (r memTokens) Create(_ context.Context, identityID, token string, expires time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failWith != nil {
		return r.m.failWith
	}
	r.m.tokens[token] = &models.RefreshToken{IdentityID: identityID, Token: token, Expires: expires}
	return nil
}

func (r memTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failWith != nil {
		return nil, r.m.failWith
	}
	t, ok := r.m.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (r memTokens) Delete(_ context.Context, token string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failWith != nil {
		return r.m.failWith
	}
	delete(r.m.tokens, token)
	return nil
}

type memCodes struct{ m *memRepos }

func (s memCodes) Put(_ context.Context, code *models.OTPCode) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c := *code
	c.Attempts = 0
	s.m.codes[code.Email] = &c
	return nil
}

func (s memCodes) Get(_ context.Context, email string) (*models.OTPCode, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.codes[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (s memCodes) IncrementAttempts(_ context.Context, email string) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.codes[email]
	if !ok {
		return 0, common.ErrorNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

func (s memCodes) Consume(_ context.Context, email string, codeHash []byte) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.codes[email]
	if !ok || !bytes.Equal(c.CodeHash, codeHash) {
		return false, nil
	}
	delete(s.m.codes, email)
	return true, nil
}

func (s memCodes) Delete(_ context.Context, email string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.codes, email)
	return nil
}

type sentCode struct {
	email, code string
	expiresAt   time.Time
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (c *captureMailer) SendCode(_ context.Context, email, code string, expiresAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentCode{email: email, code: code, expiresAt: expiresAt})
	return nil
}

func (c *captureMailer) last(t *testing.T) sentCode {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		t.Fatal("no code was sent")
	}
	return c.sent[len(c.sent)-1]
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		OTPValidityDuration:          10 * time.Minute,
		OTPMaxAttempts:               3,
		PasswordMinLength:            8,
	}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type identityFixture struct {
	svc    *IdentityService
	repos  *memRepos
	mailer *captureMailer
	clock  *clock
	mock   sqlmock.Sqlmock
}

func newIdentityFixture(t *testing.T) *identityFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repos := newMemRepos()
	mailer := &captureMailer{}
	clk := &clock{t: time.Now()}

	svc := NewIdentityService(db, repos, repos.OTPCodes(db), mailer, testConfig(), logging.Nop{})
	svc.bcryptCost = bcrypt.MinCost
	svc.now = clk.Now

	return &identityFixture{svc: svc, repos: repos, mailer: mailer, clock: clk, mock: mock}
}
