package identity

import (
	"context"
	"testing"
	"time"
)

func seedUser(t *testing.T, s *MemoryStore) User {
	t.Helper()
	id, err := NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	u := User{ID: id, Email: "Casey@Example.com", Active: true, CreatedAt: time.Now().UTC()}
	s.PutUser(u)
	return u
}

func TestMemoryStoreRegisterAndResolveDevice(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := seedUser(t, s)

	d, err := s.RegisterDevice(ctx, RegisterDeviceInput{
		UserID:     u.ID,
		Type:       DeviceYubikey,
		Identifier: "CCCCCCBCGUJH",
		Name:       "desk key",
	})
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if d.Identifier != "ccccccbcgujh" {
		t.Fatalf("identifier not normalized: %q", d.Identifier)
	}

	got, err := s.GetDeviceByTypeAndIdentifier(ctx, DeviceYubikey, "ccccccbcgujh")
	if err != nil {
		t.Fatalf("GetDeviceByTypeAndIdentifier: %v", err)
	}
	if got.ID != d.ID || got.UserID != u.ID {
		t.Fatalf("resolved wrong device: %+v", got)
	}
}

func TestMemoryStoreRegisterDeviceConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := seedUser(t, s)

	in := RegisterDeviceInput{UserID: u.ID, Type: DeviceYubikey, Identifier: "ccccccbcgujh"}
	if _, err := s.RegisterDevice(ctx, in); err != nil {
		t.Fatalf("first RegisterDevice: %v", err)
	}
	if _, err := s.RegisterDevice(ctx, in); !IsConflict(err) {
		t.Fatalf("want conflict, got %v", err)
	}
}

func TestMemoryStoreRegisterDeviceUnknownUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.RegisterDevice(ctx, RegisterDeviceInput{
		UserID: "no-such-user", Type: DeviceYubikey, Identifier: "ccccccbcgujh",
	})
	if !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestMemoryStoreDeactivatedDeviceDoesNotResolve(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := seedUser(t, s)

	d, err := s.RegisterDevice(ctx, RegisterDeviceInput{
		UserID: u.ID, Type: DeviceYubikey, Identifier: "ccccccbcgujh",
	})
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}

	if err := s.DeactivateDevice(ctx, d.ID, time.Now()); err != nil {
		t.Fatalf("DeactivateDevice: %v", err)
	}
	// Idempotent on repeat.
	if err := s.DeactivateDevice(ctx, d.ID, time.Now()); err != nil {
		t.Fatalf("repeat DeactivateDevice: %v", err)
	}

	if _, err := s.GetDeviceByTypeAndIdentifier(ctx, DeviceYubikey, "ccccccbcgujh"); !IsNotFound(err) {
		t.Fatalf("deactivated device resolved: err=%v", err)
	}

	// Identifier is free for re-enrollment after deactivation.
	if _, err := s.RegisterDevice(ctx, RegisterDeviceInput{
		UserID: u.ID, Type: DeviceYubikey, Identifier: "ccccccbcgujh",
	}); err != nil {
		t.Fatalf("re-register after deactivate: %v", err)
	}
}

func TestMemoryStoreTouchDevice(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := seedUser(t, s)

	d, err := s.RegisterDevice(ctx, RegisterDeviceInput{
		UserID: u.ID, Type: DeviceStatic, Identifier: "dev-code",
	})
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.TouchDevice(ctx, d.ID, now); err != nil {
		t.Fatalf("TouchDevice: %v", err)
	}

	got, err := s.GetDeviceByTypeAndIdentifier(ctx, DeviceStatic, "dev-code")
	if err != nil {
		t.Fatalf("GetDeviceByTypeAndIdentifier: %v", err)
	}
	if got.LastUsedAt == nil || !got.LastUsedAt.Equal(now) {
		t.Fatalf("last_used_at = %v, want %v", got.LastUsedAt, now)
	}

	if err := s.TouchDevice(ctx, "missing", now); !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestMemoryStoreListDevicesOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := seedUser(t, s)

	first, err := s.RegisterDevice(ctx, RegisterDeviceInput{UserID: u.ID, Type: DeviceYubikey, Identifier: "ccccccbcgujh"})
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	second, err := s.RegisterDevice(ctx, RegisterDeviceInput{UserID: u.ID, Type: DeviceTOTP, Identifier: "totp-1"})
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if err := s.DeactivateDevice(ctx, first.ID, time.Now()); err != nil {
		t.Fatalf("DeactivateDevice: %v", err)
	}

	ds, err := s.ListDevicesForUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListDevicesForUser: %v", err)
	}
	if len(ds) != 2 {
		t.Fatalf("len = %d, want 2", len(ds))
	}
	if ds[0].ID != second.ID || !ds[0].Active {
		t.Fatalf("active device not listed first: %+v", ds)
	}
}
