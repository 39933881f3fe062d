package identity

import "time"

// User is a directory entry. Users are referenced by sessions and audit
// records; the directory never stores authentication codes.
type User struct {
	ID        string
	Email     string
	Username  string
	FirstName string
	LastName  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Device is a second-factor device enrolled for a user.
//
// Identifier is the stable public identifier extracted from a presented code
// (for YubiKeys, the first 12 modhex characters of the OTP). (Type, Identifier)
// is unique among active devices.
type Device struct {
	ID            string
	UserID        string
	Type          DeviceType
	Identifier    string
	Name          string
	Active        bool
	CreatedAt     time.Time
	LastUsedAt    *time.Time
	DeactivatedAt *time.Time
}

// RegisterDeviceInput is the input for Store.RegisterDevice.
type RegisterDeviceInput struct {
	UserID     string
	Type       DeviceType
	Identifier string
	Name       string
}
