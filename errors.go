package goGate

import "errors"

var (
	// ErrStoreUnavailable is returned when the credential store cannot be
	// reached. The HTTP layer answers it with a generic 500.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrSessionStoreUnavailable is returned when the session backend fails.
	ErrSessionStoreUnavailable = errors.New("session store unavailable")
	// ErrIdentityNotFound is an exported constant or variable used by the gate.
	// Callers of Login only ever see ErrInvalidCredentials.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrVerificationFailed is an exported constant or variable used by the gate.
	ErrVerificationFailed = errors.New("secret verification failed")
	// ErrInvalidCredentials is the only login failure callers can observe
	// for a bad identity or secret.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrIdentityInactive is an exported constant or variable used by the gate.
	ErrIdentityInactive = errors.New("identity inactive")
	// ErrForgeryTokenMismatch is an exported constant or variable used by the gate.
	ErrForgeryTokenMismatch = errors.New("forgery token mismatch")
	// ErrLoginRateLimited is an exported constant or variable used by the gate.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrUnauthenticated is an exported constant or variable used by the gate.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized is an exported constant or variable used by the gate.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEngineNotReady is an exported constant or variable used by the gate.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidLoginForm is an exported constant or variable used by the gate.
	ErrInvalidLoginForm = errors.New("invalid login form")
)
