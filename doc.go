// Package goGate is a session-based authentication and authorization gate
// for server-rendered web applications.
//
// It verifies an identity and secret against a credential store, binds the
// resulting identity to a Redis-backed browser session, and decides access
// to named resources from a static role table. The HTTP surface (login
// form, guard, logout) lives in the middleware package.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goGate is the public surface. It exposes [Engine], [Builder], [Config],
// and value types ([SessionIdentity], [Decision], [LoginResult]). Session
// encoding, rate limiting, and audit dispatch live under internal/ or in
// the session package and never leak Redis types through the Engine API.
//
// # What this package must NOT do
//
//   - Log or return secrets, stored hashes, or forgery tokens in errors.
//   - Reveal whether an identity exists through errors, timing, or flash text.
//   - Hold a lock across any Redis or database round-trip.
package goGate
