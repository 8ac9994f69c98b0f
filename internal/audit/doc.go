// Package audit implements async event dispatching for login, logout, and
// access decisions.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zerolog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured audit record with uuid, timestamp, type, user, IP, reason.
//
// # What this package must NOT do
//
//   - Decide which events to emit; the Engine does that.
//   - Import goGate or any sibling internal package.
//   - Carry secrets, hashes, session ids, or forgery tokens in events.
package audit
