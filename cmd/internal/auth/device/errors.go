package device

import "errors"

var (
	// ErrInvalidCode means the code is malformed, failed verification or was
	// already consumed. Deliberately one error for all three: callers must not
	// be able to distinguish "wrong" from "replayed".
	ErrInvalidCode = errors.New("invalid device code")

	// ErrUnknownDeviceType means no verifier is registered for the type.
	ErrUnknownDeviceType = errors.New("unknown device type")

	// ErrVerifierUnavailable means the upstream verification service failed.
	// Maps to 503, not 401: the code may well be genuine.
	ErrVerifierUnavailable = errors.New("verification service unavailable")
)
