package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/suffus/auth0/cmd/security/token"
)

// newOpaqueRefreshToken returns a new refresh token and its storage hash.
// The raw token leaves the server exactly once, in the issue/refresh response;
// only the hash is persisted.
func newOpaqueRefreshToken() (raw string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, token.HashRefreshTokenHex(raw), nil
}
