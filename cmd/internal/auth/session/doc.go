// Package session implements server-side sessions with rotating refresh
// tokens and counter-bound access tokens.
//
// Model:
//
//   - A session row is created when a device code verification succeeds. It
//     carries a monotonically increasing counter, starting at 1.
//   - Access tokens are short-lived PASETO v4.public tokens embedding the
//     session id and the counter value at issue time.
//   - Refresh tokens are opaque 256-bit random strings; only their hash is
//     stored. Each refresh atomically rotates the hash and increments the
//     counter, so outstanding access tokens from before the refresh fail
//     validation with ErrCounterMismatch.
//
// Incrementing the counter (or revoking the session) is the server-side
// invalidation mechanism: no token blacklist is kept.
package session
