package identity

import (
	"context"
	"time"
)

// Store persists users and their enrolled devices.
//
// Implementations must enforce (type, identifier) uniqueness among active
// devices so a verified code resolves to at most one owner.
type Store interface {
	// GetUserByID returns the user or NotFoundError.
	GetUserByID(ctx context.Context, id string) (User, error)

	// GetDeviceByTypeAndIdentifier returns the active device for
	// (devType, identifier), or NotFoundError when no active device matches.
	// Deactivated devices are never returned; a code from a deregistered
	// device must not resolve.
	GetDeviceByTypeAndIdentifier(ctx context.Context, devType DeviceType, identifier string) (Device, error)

	// ListDevicesForUser returns the user's devices, active first, newest first.
	ListDevicesForUser(ctx context.Context, userID string) ([]Device, error)

	// RegisterDevice enrolls a device for a user. Returns ConflictError when an
	// active device with the same (type, identifier) exists, NotFoundError when
	// the user does not exist.
	RegisterDevice(ctx context.Context, in RegisterDeviceInput) (Device, error)

	// DeactivateDevice marks a device inactive at now. Idempotent on already
	// inactive devices; NotFoundError when the device does not exist.
	DeactivateDevice(ctx context.Context, deviceID string, now time.Time) error

	// TouchDevice records a successful verification against the device.
	// Best effort bookkeeping; NotFoundError when the device does not exist.
	TouchDevice(ctx context.Context, deviceID string, now time.Time) error
}
