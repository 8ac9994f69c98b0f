package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DBTX is the subset of database/sql used by the store.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresOptions maps the store onto an existing user table. Table and
// column names are validated as plain identifiers; the two queries take the
// identity as $1.
type PostgresOptions struct {
	Table          string `koanf:"table" validate:"required"`
	IdentityColumn string `koanf:"identity_column" validate:"required"`
	SecretColumn   string `koanf:"secret_column" validate:"required"`
	RoleColumn     string `koanf:"role_column" validate:"required"`
	ActiveColumn   string `koanf:"active_column" validate:"required"`

	// RolesQuery returns one role per row. Empty disables it.
	RolesQuery string `koanf:"roles_query"`
	// DetailsQuery returns at most one row; every column becomes a detail.
	// Empty disables it.
	DetailsQuery string `koanf:"details_query"`
}

// DefaultPostgresOptions matches the auth_user table created by the
// bundled migrations.
func DefaultPostgresOptions() PostgresOptions {
	return PostgresOptions{
		Table:          "auth_user",
		IdentityColumn: "email",
		SecretColumn:   "password",
		RoleColumn:     "role",
		ActiveColumn:   "active",
		RolesQuery:     "SELECT role FROM auth_user WHERE email = $1",
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresStore reads identity records with plain SQL.
type PostgresStore struct {
	db   DBTX
	opts PostgresOptions

	findQuery   string
	updateQuery string
}

// NewPostgresStore validates opts and prepares the lookup statements.
func NewPostgresStore(db DBTX, opts PostgresOptions) (*PostgresStore, error) {
	for _, ident := range []string{opts.Table, opts.IdentityColumn, opts.SecretColumn, opts.RoleColumn, opts.ActiveColumn} {
		if !identifierPattern.MatchString(ident) {
			return nil, fmt.Errorf("invalid sql identifier %q", ident)
		}
	}

	return &PostgresStore{
		db:   db,
		opts: opts,
		findQuery: fmt.Sprintf(
			`SELECT id, %[2]s, %[3]s, COALESCE(%[4]s, ''), COALESCE(%[5]s, false) FROM %[1]s WHERE %[2]s = $1`,
			opts.Table, opts.IdentityColumn, opts.SecretColumn, opts.RoleColumn, opts.ActiveColumn,
		),
		updateQuery: fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE id = $2`, opts.Table, opts.SecretColumn),
	}, nil
}

func (s *PostgresStore) FindByIdentity(ctx context.Context, identity string) (Record, error) {
	if identity == "" {
		return Record{}, ErrNotFound
	}

	var rec Record
	err := s.db.QueryRowContext(ctx, s.findQuery, identity).
		Scan(&rec.ID, &rec.Identity, &rec.SecretHash, &rec.Role, &rec.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return rec, nil
}

func (s *PostgresStore) ResolveRoles(ctx context.Context, identity string) ([]string, error) {
	if s.opts.RolesQuery == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, s.opts.RolesQuery, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	roles := []string{}
	for rows.Next() {
		var role sql.NullString
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if r := strings.TrimSpace(role.String); role.Valid && r != "" {
			roles = append(roles, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return roles, nil
}

func (s *PostgresStore) ResolveDetails(ctx context.Context, identity string) (map[string]string, error) {
	if s.opts.DetailsQuery == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, s.opts.DetailsQuery, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	details := map[string]string{}
	if rows.Next() {
		values := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		for i, col := range cols {
			if values[i].Valid {
				details[col] = values[i].String
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return details, nil
}

// UpdateSecretHash implements [HashUpdater].
func (s *PostgresStore) UpdateSecretHash(ctx context.Context, id int64, hash string) error {
	if _, err := s.db.ExecContext(ctx, s.updateQuery, hash, id); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
