package device

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/suffus/auth0/cmd/identity"
)

// argon2id parameters for static secret hashing.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// StaticVerifier verifies pre-shared static codes of the form
// "<identifier>:<secret>". Secrets are stored as argon2id hashes. Intended for
// development and automated tests, not production second factors.
//
// A consumed-code window gives replay behavior comparable to real OTPs: a
// code that verified successfully is rejected until the window passes.
type StaticVerifier struct {
	mu       sync.Mutex
	secrets  map[string]staticSecret
	consumed map[string]time.Time
	window   time.Duration
	now      func() time.Time
}

type staticSecret struct {
	salt []byte
	hash []byte
}

// NewStaticVerifier returns an empty verifier. window <= 0 disables replay
// tracking.
func NewStaticVerifier(window time.Duration) *StaticVerifier {
	return &StaticVerifier{
		secrets:  make(map[string]staticSecret),
		consumed: make(map[string]time.Time),
		window:   window,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Enroll registers a secret for an identifier, replacing any existing one.
func (v *StaticVerifier) Enroll(identifier, secret string) error {
	identifier = identity.NormalizeIdentifier(identifier)
	if identifier == "" || secret == "" {
		return fmt.Errorf("static: identifier and secret are required")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("static: generate salt: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.secrets[identifier] = staticSecret{
		salt: salt,
		hash: argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen),
	}
	return nil
}

func (v *StaticVerifier) Verify(ctx context.Context, code string) (Verification, error) {
	identifier, secret, ok := strings.Cut(strings.TrimSpace(code), ":")
	if !ok {
		return Verification{}, ErrInvalidCode
	}
	identifier = identity.NormalizeIdentifier(identifier)

	v.mu.Lock()
	defer v.mu.Unlock()

	stored, ok := v.secrets[identifier]
	if !ok {
		return Verification{}, ErrInvalidCode
	}

	hash := argon2.IDKey([]byte(secret), stored.salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	if subtle.ConstantTimeCompare(hash, stored.hash) != 1 {
		return Verification{}, ErrInvalidCode
	}

	if v.window > 0 {
		now := v.now()
		v.prune(now)
		key := consumedKey(identifier, secret)
		if _, seen := v.consumed[key]; seen {
			return Verification{}, ErrInvalidCode
		}
		v.consumed[key] = now
	}

	return Verification{Type: identity.DeviceStatic, Identifier: identifier}, nil
}

// prune drops consumed entries older than the window. Called with mu held.
func (v *StaticVerifier) prune(now time.Time) {
	for k, t := range v.consumed {
		if now.Sub(t) >= v.window {
			delete(v.consumed, k)
		}
	}
}

func consumedKey(identifier, secret string) string {
	sum := sha256.Sum256([]byte(identifier + ":" + secret))
	return hex.EncodeToString(sum[:])
}
