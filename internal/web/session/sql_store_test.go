package session

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver  string
		want    Dialect
		wantErr bool
	}{
		{"postgres", Postgres, false},
		{"pgx", Postgres, false},
		{"sqlite3", SQLite, false},
		{"mysql", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			got, err := DialectFor(tt.driver)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: Postgres}
	lite := &SQLStore{dialect: SQLite}

	query := "SELECT 1 WHERE a = $1 AND b = $12 AND c = '$x'"
	assert.Equal(t, query, pg.rebind(query))
	assert.Equal(t, "SELECT 1 WHERE a = ? AND b = ? AND c = '$x'", lite.rebind(query))
}

func newPostgresMock(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "sessions"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	config := DefaultSQLConfig(db, Postgres)
	config.CleanupInterval = 0
	store, err := NewSQLStore(context.Background(), config)
	require.NoError(t, err)
	return store, mock
}

func TestSQLStore_PostgresGet(t *testing.T) {
	store, mock := newPostgresMock(t)
	created := time.Now().Add(-time.Minute)
	expires := time.Now().Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data, created_at, expires_at FROM "sessions" WHERE id = $1`)).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"data", "created_at", "expires_at"}).
			AddRow([]byte(`{"user":"ada"}`), created, expires))

	sess, err := store.Get(context.Background(), "abc")
	require.NoError(t, err)
	v, _ := sess.Get("user")
	assert.Equal(t, "ada", v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PostgresMissing(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectQuery(`SELECT data`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PostgresExpired(t *testing.T) {
	store, mock := newPostgresMock(t)
	past := time.Now().Add(-time.Hour)

	mock.ExpectQuery(`SELECT data`).WithArgs("old").
		WillReturnRows(sqlmock.NewRows([]string{"data", "created_at", "expires_at"}).
			AddRow([]byte(`{}`), past, past))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "sessions" WHERE id = $1`)).
		WithArgs("old").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := store.Get(context.Background(), "old")
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PostgresSet(t *testing.T) {
	store, mock := newPostgresMock(t)
	sess := New("abc", time.Hour)
	sess.Set("n", 1)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "sessions" (id, data, created_at, expires_at)`)).
		WithArgs("abc", `{"n":1}`, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Set(context.Background(), sess, time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CreateTableFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE`).WillReturnError(sql.ErrConnDone)

	_, err = NewSQLStore(context.Background(), SQLConfig{DB: db, Dialect: Postgres})
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestSQLStore_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	ctx := context.Background()
	config := DefaultSQLConfig(db, SQLite)
	config.CleanupInterval = 0
	store, err := NewSQLStore(ctx, config)
	require.NoError(t, err)
	defer store.Close()

	sess := New("abc", time.Hour)
	sess.Set("user", "ada")
	require.NoError(t, store.Set(ctx, sess, time.Hour))

	// upsert replaces data
	sess.Set("user", "grace")
	require.NoError(t, store.Set(ctx, sess, time.Hour))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	v, _ := got.Get("user")
	assert.Equal(t, "grace", v)

	require.NoError(t, store.Set(ctx, New("old", time.Hour), -time.Minute))
	_, err = store.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrSessionExpired)

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSQLStore_Cleanup(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	ctx := context.Background()
	store, err := NewSQLStore(ctx, SQLConfig{DB: db, Dialect: SQLite, CleanupInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(ctx, New("old", time.Hour), -time.Minute))
	assert.Eventually(t, func() bool {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM "sessions"`).Scan(&n); err != nil {
			return false
		}
		return n == 0
	}, time.Second, 10*time.Millisecond)
}
