package session

import (
	"context"
	"time"
)

// Row is the stored representation of a session.
type Row struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	DeviceID      string     `json:"device_id"`
	Counter       uint64     `json:"counter"`
	RefreshHash   string     `json:"refresh_hash"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	LastRefreshAt *time.Time `json:"last_refresh_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason string     `json:"revoked_reason,omitempty"`
}

// Revoked reports whether the row has been explicitly revoked.
func (r Row) Revoked() bool { return r.RevokedAt != nil }

// Expired reports whether the row is past its expiry at now.
func (r Row) Expired(now time.Time) bool { return !now.Before(r.ExpiresAt) }

// Store persists session rows.
//
// Rotate is the concurrency-critical operation: it must be a compare-and-swap
// on (sessionID, oldHash) so that of N concurrent refreshes carrying the same
// refresh token, exactly one succeeds and the rest observe ErrInvalidRefresh.
type Store interface {
	// Create inserts a new row. The id must be unused.
	Create(ctx context.Context, row Row) error

	// Get returns the row, or ErrSessionNotFound. Revoked and expired rows are
	// still returned; state checks are the caller's concern.
	Get(ctx context.Context, id string) (Row, error)

	// Rotate atomically verifies the current refresh hash equals oldHash, then
	// swaps in newHash, increments the counter, stamps LastRefreshAt and
	// extends the expiry. Returns the updated row.
	//
	// Errors: ErrSessionNotFound, ErrSessionRevoked, ErrSessionExpired,
	// ErrInvalidRefresh (hash mismatch, including concurrent-refresh losers).
	Rotate(ctx context.Context, sessionID, oldHash, newHash string, now, expiresAt time.Time) (Row, error)

	// Revoke marks the session revoked at now, recording why. Idempotent (the
	// first reason sticks); ErrSessionNotFound when no row exists.
	Revoke(ctx context.Context, sessionID string, now time.Time, reason string) error

	// RevokeAllForUser revokes every live session belonging to the user and
	// returns how many were revoked.
	RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason string) (int, error)
}
