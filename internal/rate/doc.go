// Package rate provides Redis-backed fixed-window counters that throttle
// failed logins.
//
// # Window semantics
//
// INCR + EXPIRE NX in one MULTI/EXEC. Key prefixes:
//   - "gl:" login per identity (sha256 prefix, lowercased)
//   - "gli:" login per client IP
//
// # What this package must NOT do
//
//   - Decide what a failed login is; the engine reports failures.
//   - Be imported outside the goGate module.
package rate
