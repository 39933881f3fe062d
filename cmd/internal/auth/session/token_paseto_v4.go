package session

import (
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
)

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	UserID    string
	SessionID string
	DeviceID  string
	Counter   uint64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AccessTokenManager issues and verifies access tokens.
type AccessTokenManager interface {
	Issue(claims AccessClaims) (string, error)
	Verify(tok string, now time.Time) (AccessClaims, error)
}

// pasetoV4PublicManager implements AccessTokenManager with PASETO v4.public
// (Ed25519). Public tokens let sibling services verify access tokens with the
// public key alone.
type pasetoV4PublicManager struct {
	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
	issuer string
}

// NewPasetoV4PublicManager builds a manager from a hex-encoded Ed25519 secret
// key (as produced by ExportHex). Empty hex generates an ephemeral key, which
// is only suitable for tests and single-process dev mode.
func NewPasetoV4PublicManager(secretKeyHex, issuer string) (AccessTokenManager, error) {
	if issuer == "" {
		return nil, fmt.Errorf("%w: issuer is required", ErrConfig)
	}

	var secret paseto.V4AsymmetricSecretKey
	if secretKeyHex == "" {
		secret = paseto.NewV4AsymmetricSecretKey()
	} else {
		var err error
		secret, err = paseto.NewV4AsymmetricSecretKeyFromHex(secretKeyHex)
		if err != nil {
			return nil, fmt.Errorf("%w: bad access token key: %v", ErrConfig, err)
		}
	}

	return &pasetoV4PublicManager{
		secret: secret,
		public: secret.Public(),
		issuer: issuer,
	}, nil
}

func (m *pasetoV4PublicManager) Issue(claims AccessClaims) (string, error) {
	tok := paseto.NewToken()
	tok.SetIssuer(m.issuer)
	tok.SetIssuedAt(claims.IssuedAt)
	tok.SetNotBefore(claims.IssuedAt)
	tok.SetExpiration(claims.ExpiresAt)
	tok.SetString("uid", claims.UserID)
	tok.SetString("sid", claims.SessionID)
	tok.SetString("did", claims.DeviceID)
	if err := tok.Set("cnt", claims.Counter); err != nil {
		return "", fmt.Errorf("set counter claim: %w", err)
	}
	return tok.V4Sign(m.secret, nil), nil
}

// Verify checks signature and claims. Expiry is checked by hand, after the
// signature, so an expired-but-genuine token yields ErrTokenExpired rather
// than the generic ErrInvalidToken; callers route the two differently.
func (m *pasetoV4PublicManager) Verify(tok string, now time.Time) (AccessClaims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.IssuedBy(m.issuer))

	parsed, err := parser.ParseV4Public(m.public, tok, nil)
	if err != nil {
		return AccessClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, err := claimsFromToken(parsed)
	if err != nil {
		return AccessClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if now.Before(claims.IssuedAt) {
		return AccessClaims{}, fmt.Errorf("%w: not yet valid", ErrInvalidToken)
	}
	if !now.Before(claims.ExpiresAt) {
		return claims, ErrTokenExpired
	}
	return claims, nil
}

func claimsFromToken(tok *paseto.Token) (AccessClaims, error) {
	var c AccessClaims
	var err error

	if c.UserID, err = tok.GetString("uid"); err != nil {
		return AccessClaims{}, errors.New("missing uid claim")
	}
	if c.SessionID, err = tok.GetString("sid"); err != nil {
		return AccessClaims{}, errors.New("missing sid claim")
	}
	if c.DeviceID, err = tok.GetString("did"); err != nil {
		return AccessClaims{}, errors.New("missing did claim")
	}
	if err = tok.Get("cnt", &c.Counter); err != nil {
		return AccessClaims{}, errors.New("missing cnt claim")
	}
	if c.IssuedAt, err = tok.GetIssuedAt(); err != nil {
		return AccessClaims{}, errors.New("missing iat claim")
	}
	if c.ExpiresAt, err = tok.GetExpiration(); err != nil {
		return AccessClaims{}, errors.New("missing exp claim")
	}
	return c, nil
}
