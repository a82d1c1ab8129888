// Package session persists the signed-in identity across restarts.
//
// The identity is kept as one JSON blob under a fixed key of the metadata
// table. Restore is bounded: a slow or broken database yields "no session"
// instead of a hung start-up. Save and Clear queue behind a restore that is
// still reading, so a restore never observes half of a later write and
// never overwrites one.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/shopkeeper/internal/client/models"
	"github.com/dmitrijs2005/shopkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/shopkeeper/internal/logging"
)

// Key is the metadata key holding the session blob.
const Key = "session"

const DefaultRestoreTimeout = 300 * time.Millisecond

// A read that outlives Restore keeps Save and Clear waiting; it is cut off
// after loadTimeoutFactor restore timeouts.
const loadTimeoutFactor = 10

type Store struct {
	repo           metadata.Repository
	restoreTimeout time.Duration
	logger         logging.Logger
	now            func() time.Time

	// mu orders Save/Clear behind an in-flight Restore.
	mu sync.Mutex
}

type Option func(*Store)

// WithRestoreTimeout bounds Restore. Non-positive values are ignored.
func WithRestoreTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.restoreTimeout = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(repo metadata.Repository, opts ...Option) *Store {
	s := &Store{
		repo:           repo,
		restoreTimeout: DefaultRestoreTimeout,
		logger:         logging.Nop{},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("module", "session")
	return s
}

// Restore returns the persisted identity, or nil when there is none, it is
// expired or unreadable, or reading took longer than the restore timeout.
// Expired and unreadable blobs are removed.
func (s *Store) Restore(ctx context.Context) *models.Identity {
	s.mu.Lock()

	result := make(chan *models.Identity, 1)
	go func() {
		defer s.mu.Unlock()
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeoutFactor*s.restoreTimeout)
		defer cancel()
		result <- s.load(loadCtx)
	}()

	timer := time.NewTimer(s.restoreTimeout)
	defer timer.Stop()

	select {
	case identity := <-result:
		return identity
	case <-timer.C:
		s.logger.Warn(ctx, "session restore timed out", "timeout", s.restoreTimeout)
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (s *Store) load(ctx context.Context) *models.Identity {
	blob, err := s.repo.Get(ctx, Key)
	if err != nil {
		s.logger.Warn(ctx, "session read failed", "error", err)
		return nil
	}
	if blob == nil {
		return nil
	}

	var identity models.Identity
	if err := json.Unmarshal(blob, &identity); err != nil || !identity.Valid() {
		s.logger.Warn(ctx, "discarding unreadable session")
		s.discard(ctx)
		return nil
	}
	if identity.Expired(s.now()) {
		s.logger.Info(ctx, "discarding expired session", "identity_id", identity.ID)
		s.discard(ctx)
		return nil
	}
	return &identity
}

func (s *Store) discard(ctx context.Context) {
	if err := s.repo.Delete(ctx, Key); err != nil {
		s.logger.Warn(ctx, "session delete failed", "error", err)
	}
}

// Save replaces the persisted identity.
func (s *Store) Save(ctx context.Context, identity *models.Identity) error {
	if identity == nil {
		return s.Clear(ctx)
	}
	blob, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Set(ctx, Key, blob); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the persisted identity. Clearing an empty store succeeds.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
