package session

import (
	"fmt"
	"time"

	"github.com/suffus/auth0/cmd/security/token"
)

// hmacMinKeyBytes is the minimum AUTH0_TOKEN_HMAC_KEY length accepted in
// enforced-HMAC mode.
const hmacMinKeyBytes = 16

// Config controls token and session lifetimes.
type Config struct {
	// Issuer is the iss claim stamped into access tokens.
	Issuer string `env:"AUTH0_TOKEN_ISSUER" envDefault:"yubiapp"`

	// AccessTokenKeyHex is the hex-encoded Ed25519 secret key for signing
	// access tokens. Empty generates an ephemeral key (dev/test only).
	AccessTokenKeyHex string `env:"AUTH0_ACCESS_TOKEN_KEY"`

	// AccessTTL is the access token lifetime.
	AccessTTL time.Duration `env:"AUTH0_ACCESS_TTL" envDefault:"10m"`

	// SessionTTL is the session lifetime. Each successful refresh extends the
	// session by this much from the refresh time.
	SessionTTL time.Duration `env:"AUTH0_SESSION_TTL" envDefault:"24h"`

	// RequireHMAC refuses to start unless AUTH0_TOKEN_HMAC_KEY is set and long
	// enough, so refresh token hashes can never silently fall back to plain
	// SHA-256.
	RequireHMAC bool `env:"AUTH0_REQUIRE_TOKEN_HMAC" envDefault:"false"`
}

// Validate checks the config for internal consistency.
func (c Config) Validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("%w: issuer is required", ErrConfig)
	}
	if c.AccessTTL <= 0 {
		return fmt.Errorf("%w: access ttl must be positive", ErrConfig)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("%w: session ttl must be positive", ErrConfig)
	}
	if c.AccessTTL >= c.SessionTTL {
		return fmt.Errorf("%w: access ttl must be shorter than session ttl", ErrConfig)
	}
	if c.RequireHMAC {
		if _, err := token.HMACKeyFromEnv(hmacMinKeyBytes); err != nil {
			return fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}
	return nil
}
