package device

import (
	"context"
	"fmt"

	"github.com/suffus/auth0/cmd/identity"
)

// Verification is the successful result of a code check.
type Verification struct {
	Type identity.DeviceType
	// Identifier is the stable public identifier extracted from the code.
	// Combined with Type it resolves to one enrolled device.
	Identifier string
}

// Verifier checks a single device type's codes.
type Verifier interface {
	Verify(ctx context.Context, code string) (Verification, error)
}

// Registry routes verification by device type.
type Registry struct {
	verifiers map[identity.DeviceType]Verifier
}

// NewRegistry builds a registry from the given type/verifier pairs.
func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[identity.DeviceType]Verifier)}
}

// Register installs a verifier for a device type, replacing any existing one.
func (r *Registry) Register(t identity.DeviceType, v Verifier) {
	r.verifiers[t] = v
}

// Verify dispatches to the verifier for devType.
func (r *Registry) Verify(ctx context.Context, devType identity.DeviceType, code string) (Verification, error) {
	v, ok := r.verifiers[devType]
	if !ok {
		return Verification{}, fmt.Errorf("%w: %s", ErrUnknownDeviceType, devType)
	}
	return v.Verify(ctx, code)
}

// Types returns the registered device types.
func (r *Registry) Types() []identity.DeviceType {
	out := make([]identity.DeviceType, 0, len(r.verifiers))
	for t := range r.verifiers {
		out = append(out, t)
	}
	return out
}
