package session

import "time"

// Identity is the snapshot of an authenticated user bound to a session.
// It is copied from the credential record at login and never refreshed.
type Identity struct {
	UserID   int64
	Identity string
	Role     string
	Roles    []string
	Active   bool
	Details  map[string]string

	RememberMe bool
	// IdleTTL is the inactivity window applied on every touch.
	IdleTTL       time.Duration
	EstablishedAt int64
}

// State is everything stored under one session key.
type State struct {
	SessionID string
	// Identity is nil for an anonymous session.
	Identity     *Identity
	ForgeryToken string
	Flash        string
	Next         string
	CreatedAt    int64
}

const (
	fieldIdentity = "id"
	fieldCSRF     = "csrf"
	fieldFlash    = "flash"
	fieldNext     = "next"
	fieldCreated  = "c"
)

// Field names a mutable per-session slot.
type Field string

const (
	FieldForgeryToken Field = fieldCSRF
	FieldFlash        Field = fieldFlash
	FieldNext         Field = fieldNext
)
