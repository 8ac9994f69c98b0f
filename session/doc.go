// Package session provides Redis-backed server-side session state and the
// compact binary encoding of the authenticated identity stored in it.
//
// # Layout
//
// Each session is one Redis hash under "<prefix>:<session id>":
//
//	id     binary-encoded Identity (absent for anonymous sessions)
//	csrf   current forgery token
//	flash  one-shot message for the next render
//	next   local path requested before login
//	c      creation time, unix seconds
//
// The key TTL is the inactivity window. [Store.Establish] writes a new key
// and drops the previous one in a single MULTI/EXEC.
//
// # What this package must NOT do
//
//   - Import goGate, credentials, or permission.
//   - Make authorization decisions.
//   - Store secret hashes or plaintext secrets.
package session
