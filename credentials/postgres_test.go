package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const findPattern = `(?s)^SELECT\s+id,\s*email,\s*password,\s*COALESCE\(role,\s*''\),\s*COALESCE\(active,\s*false\)\s+FROM\s+auth_user\s+WHERE\s+email\s*=\s*\$1$`

func newStoreWithMock(t *testing.T, opts PostgresOptions) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewPostgresStore(db, opts)
	require.NoError(t, err)
	return store, mock
}

func TestFindByIdentity_Found(t *testing.T) {
	store, mock := newStoreWithMock(t, DefaultPostgresOptions())

	rows := sqlmock.NewRows([]string{"id", "email", "password", "role", "active"}).
		AddRow(int64(3), "alice@example.com", "$argon2id$hash", "admin", true)
	mock.ExpectQuery(findPattern).WithArgs("alice@example.com").WillReturnRows(rows)

	rec, err := store.FindByIdentity(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.ID)
	assert.Equal(t, "admin", rec.Role)
	assert.True(t, rec.Active)
	assert.Equal(t, "$argon2id$hash", rec.SecretHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIdentity_NotFound(t *testing.T) {
	store, mock := newStoreWithMock(t, DefaultPostgresOptions())

	mock.ExpectQuery(findPattern).WithArgs("ghost@example.com").WillReturnError(sql.ErrNoRows)

	_, err := store.FindByIdentity(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByIdentity_EmptyIdentitySkipsQuery(t *testing.T) {
	store, mock := newStoreWithMock(t, DefaultPostgresOptions())

	_, err := store.FindByIdentity(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIdentity_Unavailable(t *testing.T) {
	store, mock := newStoreWithMock(t, DefaultPostgresOptions())

	mock.ExpectQuery(findPattern).WithArgs("alice@example.com").WillReturnError(errors.New("conn refused"))

	_, err := store.FindByIdentity(context.Background(), "alice@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "conn refused")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestResolveRoles(t *testing.T) {
	store, mock := newStoreWithMock(t, DefaultPostgresOptions())

	rows := sqlmock.NewRows([]string{"role"}).AddRow("admin").AddRow(nil).AddRow(" ").AddRow("auditor")
	mock.ExpectQuery(`(?s)^SELECT\s+role\s+FROM\s+auth_user\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("alice@example.com").WillReturnRows(rows)

	roles, err := store.ResolveRoles(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "auditor"}, roles)
}

func TestResolveRoles_Disabled(t *testing.T) {
	opts := DefaultPostgresOptions()
	opts.RolesQuery = ""
	store, mock := newStoreWithMock(t, opts)

	roles, err := store.ResolveRoles(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Nil(t, roles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveDetails(t *testing.T) {
	opts := DefaultPostgresOptions()
	opts.DetailsQuery = "SELECT first_name FROM auth_user WHERE email = $1"
	store, mock := newStoreWithMock(t, opts)

	rows := sqlmock.NewRows([]string{"first_name"}).AddRow("Alice")
	mock.ExpectQuery(`(?s)^SELECT\s+first_name\s+FROM\s+auth_user`).
		WithArgs("alice@example.com").WillReturnRows(rows)

	details, err := store.ResolveDetails(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"first_name": "Alice"}, details)
}

func TestUpdateSecretHash(t *testing.T) {
	store, mock := newStoreWithMock(t, DefaultPostgresOptions())

	mock.ExpectExec(`(?s)^UPDATE\s+auth_user\s+SET\s+password\s*=\s*\$1\s+WHERE\s+id\s*=\s*\$2$`).
		WithArgs("$argon2id$new", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdateSecretHash(context.Background(), 3, "$argon2id$new"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresStore_RejectsBadIdentifiers(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	opts := DefaultPostgresOptions()
	opts.Table = "auth_user; DROP TABLE x"
	_, err = NewPostgresStore(db, opts)
	assert.Error(t, err)
}

func TestRecordStringRedactsHash(t *testing.T) {
	rec := Record{ID: 1, Identity: "a@b.c", SecretHash: "$argon2id$secret", Role: "user"}
	assert.NotContains(t, rec.String(), "secret")
	assert.NotContains(t, fmt.Sprintf("%v %+v %#v", rec, rec, rec), "$argon2id$secret")
}

func TestRunMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}
	require.NoError(t, RunMigrations(context.Background(), db))

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	err = RunMigrations(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
