package resource

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/suffus/auth0/cmd/identity/ids"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	activity []Activity
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) CreateEntry(ctx context.Context, in CreateEntryInput) (Entry, error) {
	name := NormalizeName(in.Name)
	if name == "" || !ValidKind(in.Kind) {
		return Entry{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.Kind == in.Kind && !e.Deleted() && e.Name == name {
			return Entry{}, ErrConflict
		}
	}

	now := time.Now().UTC()
	id, err := ids.NewULID(now)
	if err != nil {
		return Entry{}, err
	}

	e := Entry{
		ID:          id,
		Kind:        in.Kind,
		Name:        name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.entries[e.ID] = e
	return e, nil
}

func (s *MemoryStore) GetEntry(ctx context.Context, kind Kind, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.Kind != kind || e.Deleted() {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) GetEntryByName(ctx context.Context, kind Kind, name string) (Entry, error) {
	name = NormalizeName(name)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.Kind == kind && !e.Deleted() && e.Name == name {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

func (s *MemoryStore) ListEntries(ctx context.Context, kind Kind) ([]Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.entries {
		if e.Kind == kind && !e.Deleted() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (s *MemoryStore) UpdateEntry(ctx context.Context, kind Kind, id string, in UpdateEntryInput) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.Kind != kind || e.Deleted() {
		return Entry{}, ErrNotFound
	}

	if in.Name != nil {
		name := NormalizeName(*in.Name)
		if name == "" {
			return Entry{}, ErrInvalidInput
		}
		for _, other := range s.entries {
			if other.ID != id && other.Kind == kind && !other.Deleted() && other.Name == name {
				return Entry{}, ErrConflict
			}
		}
		e.Name = name
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	e.UpdatedAt = time.Now().UTC()
	s.entries[id] = e
	return e, nil
}

func (s *MemoryStore) DeleteEntry(ctx context.Context, kind Kind, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.Kind != kind || e.Deleted() {
		return ErrNotFound
	}

	t := now.UTC()
	e.DeletedAt = &t
	e.UpdatedAt = t
	s.entries[id] = e
	return nil
}

func (s *MemoryStore) RecordActivity(ctx context.Context, a Activity) error {
	if a.UserID == "" || a.Action == "" {
		return ErrInvalidInput
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.ID == "" {
		id, err := ids.NewULID(a.CreatedAt)
		if err != nil {
			return err
		}
		a.ID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, a)
	return nil
}

func (s *MemoryStore) ListActivityForUser(ctx context.Context, userID string, limit int) ([]Activity, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Activity
	for _, a := range s.activity {
		if a.UserID == userID {
			all = append(all, a)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}
