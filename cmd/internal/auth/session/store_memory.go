package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/suffus/auth0/cmd/security/token"
)

// MemoryStore is an in-memory Store for development and tests.
//
// A single mutex guards the maps. Rotate holds it across the whole
// check-and-swap, which gives the single-winner guarantee directly.
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[string]Row
	byUser map[string]map[string]struct{}
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:   make(map[string]Row),
		byUser: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Create(ctx context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[row.ID]; ok {
		return fmt.Errorf("session %s already exists", row.ID)
	}
	s.rows[row.ID] = row

	set := s.byUser[row.UserID]
	if set == nil {
		set = make(map[string]struct{})
		s.byUser[row.UserID] = set
	}
	set[row.ID] = struct{}{}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	return row, nil
}

func (s *MemoryStore) Rotate(ctx context.Context, sessionID, oldHash, newHash string, now, expiresAt time.Time) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[sessionID]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	if row.Revoked() {
		return Row{}, ErrSessionRevoked
	}
	if row.Expired(now) {
		return Row{}, ErrSessionExpired
	}
	if !token.EqualHex(row.RefreshHash, oldHash) {
		return Row{}, ErrInvalidRefresh
	}

	t := now.UTC()
	row.RefreshHash = newHash
	row.Counter++
	row.LastRefreshAt = &t
	row.ExpiresAt = expiresAt.UTC()
	s.rows[sessionID] = row
	return row, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, sessionID string, now time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if row.RevokedAt == nil {
		t := now.UTC()
		row.RevokedAt = &t
		row.RevokedReason = reason
		s.rows[sessionID] = row
	}
	return nil
}

func (s *MemoryStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	t := now.UTC()
	for id := range s.byUser[userID] {
		row, ok := s.rows[id]
		if !ok || row.RevokedAt != nil {
			continue
		}
		row.RevokedAt = &t
		row.RevokedReason = reason
		s.rows[id] = row
		n++
	}
	return n, nil
}
