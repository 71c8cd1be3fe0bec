package visitorstore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/persistence/database"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := New(db, logging.NewDiscardLogger())
	store.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return store, mock
}

func TestEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS visitor_values").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectValueSQL)).
		WithArgs("v1", TokenKey).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("tok"))

	value, ok, err := store.Get(context.Background(), "v1", TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectValueSQL)).
		WithArgs("v1", "absent").
		WillReturnError(sql.ErrNoRows)

	value, ok, err := store.Get(context.Background(), "v1", "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestGetError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectValueSQL)).WillReturnError(errors.New("disk I/O error"))

	_, _, err := store.Get(context.Background(), "v1", TokenKey)
	assert.ErrorContains(t, err, "disk I/O error")
}

func TestSetUpserts(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(upsertValueSQL)).
		WithArgs("v1", TokenKey, "tok", "2024-05-01T10:00:00Z").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Set(context.Background(), "v1", TokenKey, "tok"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(deleteValueSQL)).
		WithArgs("v1", TokenKey).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Delete(context.Background(), "v1", TokenKey))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenUsesVisitorFromContext(t *testing.T) {
	store, mock := newMockStore(t)

	token, err := store.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)

	mock.ExpectQuery(regexp.QuoteMeta(selectValueSQL)).
		WithArgs("v2", TokenKey).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("bearer-xyz"))

	token, err = store.Token(ContextWithVisitorID(context.Background(), "v2"))
	require.NoError(t, err)
	assert.Equal(t, "bearer-xyz", token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{SQLitePath: filepath.Join(t.TempDir(), "visitors.db")}, logging.NewDiscardLogger())
	require.NoError(t, err)
	defer db.Close()

	store := New(db.DB, logging.NewDiscardLogger())
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx))

	require.NoError(t, store.Set(ctx, "v1", TokenKey, "first"))
	require.NoError(t, store.Set(ctx, "v1", TokenKey, "second"))
	require.NoError(t, store.Set(ctx, "v2", TokenKey, "other"))

	value, ok, err := store.Get(ctx, "v1", TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", value)

	require.NoError(t, store.Delete(ctx, "v1", TokenKey))
	_, ok, err = store.Get(ctx, "v1", TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)

	value, _, err = store.Get(ctx, "v2", TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "other", value)
}

func TestPurgeStale(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(purgeStaleSQL)).
		WithArgs("2024-04-01T10:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.PurgeStale(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSealsValuesWithCipher(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{SQLitePath: filepath.Join(t.TempDir(), "visitors.db")}, logging.NewDiscardLogger())
	require.NoError(t, err)
	defer db.Close()

	plain := New(db.DB, logging.NewDiscardLogger())
	require.NoError(t, plain.EnsureSchema(ctx))
	require.NoError(t, plain.Set(ctx, "legacy", TokenKey, "old-token"))

	cipher, err := security.NewTokenCipher("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	store := New(db.DB, logging.NewDiscardLogger()).WithCipher(cipher)
	require.NoError(t, store.Set(ctx, "v1", TokenKey, "secret-token"))

	raw, _, err := plain.Get(ctx, "v1", TokenKey)
	require.NoError(t, err)
	assert.True(t, security.IsSealed(raw))
	assert.NotContains(t, raw, "secret-token")

	value, ok, err := store.Get(ctx, "v1", TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "secret-token", value)

	value, _, err = store.Get(ctx, "legacy", TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "old-token", value)
}
