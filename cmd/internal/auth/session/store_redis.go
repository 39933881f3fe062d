package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/suffus/auth0/cmd/security/token"
)

const (
	sessionKeyPrefix  = "session:"
	userSessionPrefix = "user_sessions:"

	// rotateAttempts bounds the optimistic WATCH loop in Rotate. Contention on
	// a single session key is rare, and a concurrent refresh winner changes
	// the hash, so the loop almost always exits on the second read.
	rotateAttempts = 3
)

// RedisStore is the production Store backed by Redis.
//
// Each session lives at "session:<id>" as a JSON row with a TTL slightly past
// the session expiry. "user_sessions:<uid>" is a set of session ids used by
// RevokeAllForUser.
type RedisStore struct {
	rdb redis.UniversalClient
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

func userSessionKey(uid string) string { return userSessionPrefix + uid }

// rowTTL keeps revoked and just-expired rows readable for a grace period so
// callers get ErrSessionRevoked / ErrSessionExpired instead of not-found.
func rowTTL(row Row, now time.Time) time.Duration {
	ttl := row.ExpiresAt.Sub(now) + time.Hour
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}

func (s *RedisStore) Create(ctx context.Context, row Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	now := time.Now().UTC()
	ok, err := s.rdb.SetNX(ctx, sessionKey(row.ID), data, rowTTL(row, now)).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", row.ID)
	}

	pipe := s.rdb.Pipeline()
	pipe.SAdd(ctx, userSessionKey(row.UserID), row.ID)
	pipe.Expire(ctx, userSessionKey(row.UserID), rowTTL(row, now))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Row, error) {
	data, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, fmt.Errorf("get session: %w", err)
	}

	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return Row{}, fmt.Errorf("decode session: %w", err)
	}
	return row, nil
}

func (s *RedisStore) Rotate(ctx context.Context, sessionID, oldHash, newHash string, now, expiresAt time.Time) (Row, error) {
	key := sessionKey(sessionID)

	var rotated Row
	for attempt := 0; attempt < rotateAttempts; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrSessionNotFound
			}
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}

			var row Row
			if err := json.Unmarshal(data, &row); err != nil {
				return fmt.Errorf("decode session: %w", err)
			}
			if row.Revoked() {
				return ErrSessionRevoked
			}
			if row.Expired(now) {
				return ErrSessionExpired
			}
			if !token.EqualHex(row.RefreshHash, oldHash) {
				return ErrInvalidRefresh
			}

			t := now.UTC()
			row.RefreshHash = newHash
			row.Counter++
			row.LastRefreshAt = &t
			row.ExpiresAt = expiresAt.UTC()

			next, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("marshal session: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, rowTTL(row, now))
				return nil
			})
			if err != nil {
				return err
			}
			rotated = row
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			// Key changed under us. Re-read; a concurrent winner rotated the
			// hash, so the next pass returns ErrInvalidRefresh.
			continue
		}
		if err != nil {
			return Row{}, err
		}
		return rotated, nil
	}
	return Row{}, ErrInvalidRefresh
}

func (s *RedisStore) Revoke(ctx context.Context, sessionID string, now time.Time, reason string) error {
	key := sessionKey(sessionID)

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}

		var row Row
		if err := json.Unmarshal(data, &row); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		if row.RevokedAt != nil {
			return nil
		}

		t := now.UTC()
		row.RevokedAt = &t
		row.RevokedReason = reason
		next, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, rowTTL(row, now))
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		// Raced with a rotate or another revoke; revocation is idempotent, so
		// one more pass settles it.
		return s.Revoke(ctx, sessionID, now, reason)
	}
	return err
}

func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason string) (int, error) {
	ids, err := s.rdb.SMembers(ctx, userSessionKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}

	n := 0
	for _, id := range ids {
		row, err := s.Get(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			// Row expired out from under the index; drop the stale member.
			s.rdb.SRem(ctx, userSessionKey(userID), id)
			continue
		}
		if err != nil {
			return n, err
		}
		if row.Revoked() {
			continue
		}
		if err := s.Revoke(ctx, id, now, reason); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return n, err
		}
		n++
	}
	return n, nil
}
