package identity

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]User
	devices map[string]Device
}

// NewMemoryStore returns an empty in-memory directory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]User),
		devices: make(map[string]Device),
	}
}

// PutUser inserts or replaces a user. Seeding helper for dev mode and tests.
func (s *MemoryStore) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = NormalizeEmail(u.Email)
	s.users[u.ID] = u
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return u, nil
}

func (s *MemoryStore) GetDeviceByTypeAndIdentifier(ctx context.Context, devType DeviceType, identifier string) (Device, error) {
	const op = "identity.GetDeviceByTypeAndIdentifier"

	identifier = NormalizeIdentifier(identifier)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.devices {
		if d.Active && d.Type == devType && d.Identifier == identifier {
			return d, nil
		}
	}
	return Device{}, NotFoundError{Op: op, Resource: "device"}
}

func (s *MemoryStore) ListDevicesForUser(ctx context.Context, userID string) ([]Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Device
	for _, d := range s.devices {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sortDevices(out)
	return out, nil
}

func (s *MemoryStore) RegisterDevice(ctx context.Context, in RegisterDeviceInput) (Device, error) {
	const op = "identity.RegisterDevice"

	if in.UserID == "" || in.Type == "" || in.Identifier == "" {
		return Device{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "user_id, type and identifier are required"}
	}
	identifier := NormalizeIdentifier(in.Identifier)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[in.UserID]; !ok {
		return Device{}, NotFoundError{Op: op, Resource: "user"}
	}
	for _, d := range s.devices {
		if d.Active && d.Type == in.Type && d.Identifier == identifier {
			return Device{}, ConflictError{Op: op, Field: "identifier"}
		}
	}

	now := time.Now().UTC()
	id, err := NewULID(now)
	if err != nil {
		return Device{}, OpError{Op: op, Kind: err}
	}

	d := Device{
		ID:         id,
		UserID:     in.UserID,
		Type:       in.Type,
		Identifier: identifier,
		Name:       in.Name,
		Active:     true,
		CreatedAt:  now,
	}
	s.devices[d.ID] = d
	return d, nil
}

func (s *MemoryStore) DeactivateDevice(ctx context.Context, deviceID string, now time.Time) error {
	const op = "identity.DeactivateDevice"

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return NotFoundError{Op: op, Resource: "device"}
	}
	if d.Active {
		t := now.UTC()
		d.Active = false
		d.DeactivatedAt = &t
		s.devices[deviceID] = d
	}
	return nil
}

func (s *MemoryStore) TouchDevice(ctx context.Context, deviceID string, now time.Time) error {
	const op = "identity.TouchDevice"

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return NotFoundError{Op: op, Resource: "device"}
	}
	t := now.UTC()
	d.LastUsedAt = &t
	s.devices[deviceID] = d
	return nil
}

// sortDevices orders active first, then newest first. Matches the Postgres
// store's ORDER BY so callers see the same shape in both modes.
func sortDevices(ds []Device) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Active != ds[j].Active {
			return ds[i].Active
		}
		return ds[i].CreatedAt.After(ds[j].CreatedAt)
	})
}
