package session

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/shopkeeper/internal/client/models"
	"github.com/dmitrijs2005/shopkeeper/internal/client/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T, opts ...Option) (*Store, *repositories.Repositories) {
	t.Helper()
	repos, err := repositories.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	return NewStore(repos.Metadata, opts...), repos
}

func sampleIdentity(expiresAt time.Time) *models.Identity {
	return &models.Identity{
		ID:            "id-1",
		Email:         "alice@x.com",
		EmailVerified: true,
		AccessToken:   "A",
		RefreshToken:  "R",
		ExpiresAt:     expiresAt.UTC().Truncate(time.Second),
	}
}

func TestSaveRestoreClear(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLiteStore(t)

	assert.Nil(t, s.Restore(ctx))

	want := sampleIdentity(time.Now().Add(time.Hour))
	require.NoError(t, s.Save(ctx, want))
	require.NoError(t, s.Save(ctx, want))

	got := s.Restore(ctx)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	assert.Nil(t, s.Restore(ctx))
}

func TestRestore_ExpiredSessionIsDiscarded(t *testing.T) {
	ctx := context.Background()
	s, repos := newSQLiteStore(t)

	require.NoError(t, s.Save(ctx, sampleIdentity(time.Now().Add(-time.Minute))))

	assert.Nil(t, s.Restore(ctx))

	blob, err := repos.Metadata.Get(ctx, Key)
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestRestore_CorruptBlobIsDiscarded(t *testing.T) {
	ctx := context.Background()
	s, repos := newSQLiteStore(t)

	require.NoError(t, repos.Metadata.Set(ctx, Key, []byte("{not json")))
	assert.Nil(t, s.Restore(ctx))

	incomplete, err := json.Marshal(models.Identity{ID: "id-1"})
	require.NoError(t, err)
	require.NoError(t, repos.Metadata.Set(ctx, Key, incomplete))
	assert.Nil(t, s.Restore(ctx))

	blob, err := repos.Metadata.Get(ctx, Key)
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestSave_NilClears(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLiteStore(t)

	require.NoError(t, s.Save(ctx, sampleIdentity(time.Now().Add(time.Hour))))
	require.NoError(t, s.Save(ctx, nil))
	assert.Nil(t, s.Restore(ctx))
}

// slowRepo blocks Get until release is closed and records write order.
type slowRepo struct {
	mu      sync.Mutex
	blob    []byte
	release chan struct{}
	getErr  error
	events  []string
}

func (r *slowRepo) record(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *slowRepo) Get(ctx context.Context, _ string) ([]byte, error) {
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	r.record("get")
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blob, r.getErr
}

func (r *slowRepo) Set(_ context.Context, _ string, v []byte) error {
	r.record("set")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blob = v
	return nil
}

func (r *slowRepo) Delete(context.Context, string) error {
	r.record("delete")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blob = nil
	return nil
}

func TestRestore_TimesOutInsteadOfHanging(t *testing.T) {
	repo := &slowRepo{release: make(chan struct{})}
	defer close(repo.release)
	s := NewStore(repo, WithRestoreTimeout(20*time.Millisecond))

	start := time.Now()
	assert.Nil(t, s.Restore(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestRestore_ReadErrorMeansNoSession(t *testing.T) {
	repo := &slowRepo{release: make(chan struct{}), getErr: errors.New("disk I/O error")}
	close(repo.release)
	s := NewStore(repo)

	assert.Nil(t, s.Restore(context.Background()))
}

func TestSaveWaitsForInFlightRestore(t *testing.T) {
	repo := &slowRepo{release: make(chan struct{})}
	s := NewStore(repo, WithRestoreTimeout(50*time.Millisecond))

	assert.Nil(t, s.Restore(context.Background()))

	saved := make(chan error, 1)
	go func() {
		saved <- s.Save(context.Background(), sampleIdentity(time.Now().Add(time.Hour)))
	}()

	select {
	case <-saved:
		t.Fatal("save finished while restore was still reading")
	case <-time.After(30 * time.Millisecond):
	}

	close(repo.release)
	require.NoError(t, <-saved)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, []string{"get", "set"}, repo.events)
}

func TestSaveIsNotBlockedForeverByHungRead(t *testing.T) {
	repo := &slowRepo{release: make(chan struct{})}
	defer close(repo.release)
	s := NewStore(repo, WithRestoreTimeout(5*time.Millisecond))

	assert.Nil(t, s.Restore(context.Background()))

	saved := make(chan error, 1)
	go func() {
		saved <- s.Save(context.Background(), sampleIdentity(time.Now().Add(time.Hour)))
	}()

	select {
	case err := <-saved:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("save still waiting for the abandoned read")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, []string{"set"}, repo.events)
}

func TestRestoreTimeoutOption(t *testing.T) {
	assert.Equal(t, DefaultRestoreTimeout, NewStore(&slowRepo{}).restoreTimeout)
	assert.Equal(t, DefaultRestoreTimeout, NewStore(&slowRepo{}, WithRestoreTimeout(0)).restoreTimeout)
	assert.Equal(t, time.Second, NewStore(&slowRepo{}, WithRestoreTimeout(time.Second)).restoreTimeout)
}
