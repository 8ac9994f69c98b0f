// Package credentials provides read access to persisted identity records:
// a PostgreSQL store for production and an in-memory store for tests and
// demos.
package credentials

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no record matches the identity.
var ErrNotFound = errors.New("identity not found")

// ErrUnavailable wraps every backend failure.
var ErrUnavailable = errors.New("credential store unavailable")

// Record is one persisted identity. SecretHash is opaque and must never be
// logged or serialized to a client.
type Record struct {
	ID         int64
	Identity   string
	SecretHash string
	Role       string
	Active     bool
}

// String omits the secret hash.
func (r Record) String() string {
	return fmt.Sprintf("Record{ID:%d Identity:%q Role:%q Active:%t}", r.ID, r.Identity, r.Role, r.Active)
}

// GoString omits the secret hash from %#v as well.
func (r Record) GoString() string {
	return r.String()
}

// Store is the read side the engine needs. Implementations must be safe
// for concurrent use.
type Store interface {
	// FindByIdentity returns ErrNotFound for an unknown or empty identity
	// and an error wrapping ErrUnavailable for backend failures.
	FindByIdentity(ctx context.Context, identity string) (Record, error)
	// ResolveRoles returns zero or more role labels for identity. A nil
	// result means the store has no role source beyond Record.Role.
	ResolveRoles(ctx context.Context, identity string) ([]string, error)
	// ResolveDetails returns auxiliary attributes, or nil when none are
	// configured.
	ResolveDetails(ctx context.Context, identity string) (map[string]string, error)
}

// HashUpdater is implemented by stores that can replace a stored hash,
// used to upgrade legacy hashes after a successful login.
type HashUpdater interface {
	UpdateSecretHash(ctx context.Context, id int64, hash string) error
}
