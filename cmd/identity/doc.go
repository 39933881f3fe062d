// Package identity implements the YubiApp user and device directory.
//
// Users are created by an external registration process; this package resolves
// verified device codes to their owners and tracks device enrollment state.
//
// This package is intentionally dependency-light and security-first.
package identity
