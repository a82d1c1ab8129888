package otpcodes

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/shopkeeper/internal/common"
	"github.com/dmitrijs2005/shopkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresPut_UpsertsAndResetsAttempts(t *testing.T) {
	s, mock := newStoreWithMock(t)
	expires := time.Now().Add(10 * time.Minute)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+otp_codes\b.*ON\s+CONFLICT\s+\(email\)\s+DO\s+UPDATE.*attempts\s*=\s*0$`).
		WithArgs("bob@shop.test", []byte("hash"), expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Put(context.Background(), &models.OTPCode{Email: "bob@shop.test", CodeHash: []byte("hash"), ExpiresAt: expires})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPut_DBError(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`INSERT\s+INTO\s+otp_codes`).WillReturnError(errors.New("db down"))

	err := s.Put(context.Background(), &models.OTPCode{Email: "bob@shop.test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
}

func TestPostgresGet(t *testing.T) {
	s, mock := newStoreWithMock(t)
	expires := time.Now().Add(time.Minute)

	mock.ExpectQuery(`(?s)^SELECT\s+email,\s*code_hash,\s*expires_at,\s*attempts\s+FROM\s+otp_codes\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("bob@shop.test").
		WillReturnRows(sqlmock.NewRows([]string{"email", "code_hash", "expires_at", "attempts"}).
			AddRow("bob@shop.test", []byte("hash"), expires, 2))

	got, err := s.Get(context.Background(), "bob@shop.test")
	require.NoError(t, err)
	assert.Equal(t, []byte("hash"), got.CodeHash)
	assert.Equal(t, 2, got.Attempts)
	assert.True(t, got.ExpiresAt.Equal(expires))
}

func TestPostgresGet_NotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`FROM\s+otp_codes`).WithArgs("x@shop.test").WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "x@shop.test")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPostgresIncrementAttempts(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^UPDATE\s+otp_codes\s+SET\s+attempts\s*=\s*attempts\s*\+\s*1\s+WHERE\s+email\s*=\s*\$1\s+RETURNING\s+attempts$`).
		WithArgs("bob@shop.test").
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(3))

	n, err := s.IncrementAttempts(context.Background(), "bob@shop.test")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPostgresIncrementAttempts_NotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`UPDATE\s+otp_codes`).WithArgs("x@shop.test").WillReturnError(sql.ErrNoRows)

	_, err := s.IncrementAttempts(context.Background(), "x@shop.test")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPostgresConsume(t *testing.T) {
	s, mock := newStoreWithMock(t)
	q := `^DELETE\s+FROM\s+otp_codes\s+WHERE\s+email\s*=\s*\$1\s+AND\s+code_hash\s*=\s*\$2$`

	mock.ExpectExec(q).WithArgs("bob@shop.test", []byte("hash")).WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := s.Consume(context.Background(), "bob@shop.test", []byte("hash"))
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(q).WithArgs("bob@shop.test", []byte("hash")).WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = s.Consume(context.Background(), "bob@shop.test", []byte("hash"))
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec(q).WillReturnError(errors.New("boom"))
	_, err = s.Consume(context.Background(), "bob@shop.test", []byte("hash"))
	assert.ErrorContains(t, err, "db error: boom")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`^DELETE\s+FROM\s+otp_codes\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("bob@shop.test").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Delete(context.Background(), "bob@shop.test"))

	mock.ExpectExec(`DELETE\s+FROM\s+otp_codes`).WillReturnError(errors.New("boom"))
	err := s.Delete(context.Background(), "bob@shop.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: boom")
}
