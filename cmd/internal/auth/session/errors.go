package session

import "errors"

var (
	// ErrInvalidToken means the access token failed signature or claim checks.
	// Not recoverable by refresh.
	ErrInvalidToken = errors.New("invalid access token")

	// ErrTokenExpired means the access token is cryptographically valid but
	// past its expiry. Recoverable by refresh.
	ErrTokenExpired = errors.New("access token expired")

	// ErrSessionNotFound means no session row exists for the id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired means the session row is past its expiry.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionRevoked means the session was explicitly revoked.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrCounterMismatch means the access token embeds a counter value older
	// than the session's live counter. The client should refresh and retry.
	// The literal text "count mismatch" is load-bearing: clients key their
	// refresh-and-retry behavior on it.
	ErrCounterMismatch = errors.New("count mismatch")

	// ErrInvalidRefresh means the presented refresh token does not match the
	// session's current refresh hash. Returned both for garbage tokens and for
	// the losers of a concurrent refresh race.
	ErrInvalidRefresh = errors.New("invalid refresh token")

	// ErrConfig reports invalid session configuration.
	ErrConfig = errors.New("invalid session config")
)
