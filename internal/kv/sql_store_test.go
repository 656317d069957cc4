package kv

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T, d Dialect) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store, err := NewSQLStore(db, d, "kv_store")
	require.NoError(t, err)
	return store, mock
}

func TestSQLStoreMySQLGet(t *testing.T) {
	store, mock := newMockStore(t, MySQL)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv_store WHERE `key` = ?")).
		WithArgs("booking:AA-1234").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"id":"AA-1234"}`)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv_store WHERE `key` = ?")).
		WithArgs("booking:AA-9999").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	v, err := store.Get(context.Background(), "booking:AA-1234")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"AA-1234"}`, string(v))

	_, err = store.Get(context.Background(), "booking:AA-9999")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreMySQLSetUpserts(t *testing.T) {
	store, mock := newMockStore(t, MySQL)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv_store (`key`, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)")).
		WithArgs("pricing_config", `{"currency":"EUR"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Set(context.Background(), "pricing_config", []byte(`{"currency":"EUR"}`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorePostgresSetIfAbsent(t *testing.T) {
	store, mock := newMockStore(t, Postgres)
	stmt := regexp.QuoteMeta("INSERT INTO kv_store (key, value) VALUES ($1, CAST($2 AS jsonb)) ON CONFLICT (key) DO NOTHING")
	mock.ExpectExec(stmt).WithArgs("booking:AB-2000", `{}`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(stmt).WithArgs("booking:AB-2000", `{}`).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := store.SetIfAbsent(context.Background(), "booking:AB-2000", []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SetIfAbsent(context.Background(), "booking:AB-2000", []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreMySQLSetIfAbsentUsesInsertIgnore(t *testing.T) {
	store, mock := newMockStore(t, MySQL)
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO kv_store (`key`, value) VALUES (?, ?)")).
		WithArgs("driver_email:a@b.c", `"d1"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := store.SetIfAbsent(context.Background(), "driver_email:a@b.c", []byte(`"d1"`))
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreCompareAndSwap(t *testing.T) {
	store, mock := newMockStore(t, MySQL)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE kv_store SET value = ? WHERE `key` = ? AND value = ?")).
		WithArgs(`"AB"`, "booking_current_prefix", `"AA"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := store.CompareAndSwap(context.Background(), "booking_current_prefix", []byte(`"AA"`), []byte(`"AB"`))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorePostgresCompareAndSwapLost(t *testing.T) {
	store, mock := newMockStore(t, Postgres)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE kv_store SET value = CAST($1 AS jsonb) WHERE key = $2 AND value = CAST($3 AS jsonb)")).
		WithArgs(`"AB"`, "booking_current_prefix", `"AA"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := store.CompareAndSwap(context.Background(), "booking_current_prefix", []byte(`"AA"`), []byte(`"AB"`))
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorePrefixScanEscapesWildcards(t *testing.T) {
	store, mock := newMockStore(t, Postgres)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, value::text FROM kv_store WHERE key LIKE $1 ORDER BY key")).
		WithArgs(`driver\_email:%`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow("driver_email:a@b.c", []byte(`"d1"`)))

	entries, err := store.GetByPrefix(context.Background(), "driver_email:")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "driver_email:a@b.c", entries[0].Key)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreBatchOperations(t *testing.T) {
	store, mock := newMockStore(t, Postgres)
	upsert := regexp.QuoteMeta("INSERT INTO kv_store (key, value) VALUES ($1, CAST($2 AS jsonb)) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value")
	mock.ExpectBegin()
	mock.ExpectExec(upsert).WithArgs("a", `1`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(upsert).WithArgs("b", `2`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, value::text FROM kv_store WHERE key IN ($1, $2)")).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).AddRow("a", []byte(`1`)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM kv_store WHERE key IN ($1, $2)")).
		WithArgs("a", "b").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, store.MSet(ctx, []Entry{{Key: "a", Value: []byte(`1`)}, {Key: "b", Value: []byte(`2`)}}))

	got, err := store.MGet(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte(`1`)}, got)

	require.NoError(t, store.MDel(ctx, []string{"a", "b"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLStoreRejectsUnsafeTable(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLStore(db, MySQL, "kv; DROP TABLE users")
	assert.Error(t, err)
}
