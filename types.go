package goGate

import (
	"io"
	"time"

	"github.com/MrEthical07/goGate/credentials"
	internalaudit "github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/session"
	"github.com/rs/zerolog"
)

// IdentityRecord is the persisted credential row. Its String form redacts
// the stored hash.
type IdentityRecord = credentials.Record

// CredentialStore resolves identities to records. Implementations return
// credentials.ErrNotFound or wrap credentials.ErrUnavailable.
type CredentialStore = credentials.Store

// HashUpdater is the optional store capability used to upgrade hashes on
// login.
type HashUpdater = credentials.HashUpdater

// Authorizer is a policy backend.
type Authorizer = permission.Authorizer

// Decision is the result of [Engine.Authorize].
type Decision = permission.Decision

// Reason explains a [Decision].
type Reason = permission.Reason

// SessionIdentity is the identity snapshot bound to a session at login.
// The zero value is the anonymous identity.
type SessionIdentity struct {
	UserID     int64
	Identity   string
	Role       string
	Roles      []string
	Active     bool
	Details    map[string]string
	RememberMe bool

	// IdleTTL is the inactivity window the session slides by.
	IdleTTL       time.Duration
	EstablishedAt time.Time
}

// Anonymous is the identity of a caller with no bound session.
var Anonymous = SessionIdentity{}

// IsAnonymous reports whether no identity is bound.
func (s SessionIdentity) IsAnonymous() bool {
	return s.Identity == ""
}

// HasRole reports whether role is among the identity's roles.
func (s SessionIdentity) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (s SessionIdentity) subject() permission.Subject {
	if s.IsAnonymous() {
		return permission.Subject{}
	}
	return permission.Subject{Authenticated: true, Roles: s.Roles}
}

func identityFromSession(id *session.Identity) SessionIdentity {
	if id == nil {
		return Anonymous
	}
	return SessionIdentity{
		UserID:        id.UserID,
		Identity:      id.Identity,
		Role:          id.Role,
		Roles:         id.Roles,
		Active:        id.Active,
		Details:       id.Details,
		RememberMe:    id.RememberMe,
		IdleTTL:       id.IdleTTL,
		EstablishedAt: time.Unix(id.EstablishedAt, 0).UTC(),
	}
}

// LoginRequest carries one login submission.
type LoginRequest struct {
	// SessionID is the caller's current session; it is replaced on success.
	SessionID  string
	Identity   string
	Secret     string
	RememberMe bool
}

// LoginResult is returned by a successful [Engine.Login].
type LoginResult struct {
	SessionID string
	Identity  SessionIdentity
	// Redirect is the local path the caller was originally denied, or the
	// default landing.
	Redirect string
	// TTL is the lifetime to give the session cookie.
	TTL time.Duration
}

// AuditEvent defines a public type used by goGate APIs.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the Engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink defines a public type used by goGate APIs.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink defines a public type used by goGate APIs.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// LoggerSink writes audit events through zerolog.
type LoggerSink = internalaudit.LoggerSink

// NewChannelSink describes the newchannelsink operation and its observable behavior.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink describes the newjsonwritersink operation and its observable behavior.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLoggerSink returns a sink that logs every event at info, or warn for
// failures.
func NewLoggerSink(logger zerolog.Logger) *LoggerSink {
	return internalaudit.NewLoggerSink(logger)
}
