package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeDeviceType canonicalizes a device type string from the wire.
func NormalizeDeviceType(s string) DeviceType {
	return DeviceType(strings.ToLower(strings.TrimSpace(s)))
}

// NormalizeIdentifier canonicalizes a device identifier.
// YubiKey public ids are modhex and case-insensitive; other types are opaque.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
