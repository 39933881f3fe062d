package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/suffus/auth0/cmd/identity/ids"
	"github.com/suffus/auth0/cmd/security/token"
)

// Principal is the authenticated caller derived from a valid access token.
type Principal struct {
	UserID    string
	SessionID string
	DeviceID  string
	Counter   uint64
}

// Issued is the result of session creation or refresh.
type Issued struct {
	Session         Row
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// Service implements the session operations over a Store and a token manager.
type Service struct {
	store  Store
	tokens AccessTokenManager
	cfg    Config
	log    *slog.Logger
	now    func() time.Time
}

// NewService validates cfg and builds a Service. log may be nil.
func NewService(store Store, tokens AccessTokenManager, cfg Config, log *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		tokens: tokens,
		cfg:    cfg,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// IssueSession creates a session for a user whose device code already
// verified. The caller is responsible for that verification. The new session's
// counter starts at 1 and the first access token embeds it.
func (s *Service) IssueSession(ctx context.Context, userID, deviceID string) (Issued, error) {
	now := s.now()

	id, err := ids.NewULID(now)
	if err != nil {
		return Issued{}, fmt.Errorf("issue session: %w", err)
	}
	refresh, refreshHash, err := newOpaqueRefreshToken()
	if err != nil {
		return Issued{}, fmt.Errorf("issue session: %w", err)
	}

	row := Row{
		ID:          id,
		UserID:      userID,
		DeviceID:    deviceID,
		Counter:     1,
		RefreshHash: refreshHash,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.SessionTTL),
	}
	if err := s.store.Create(ctx, row); err != nil {
		return Issued{}, fmt.Errorf("issue session: %w", err)
	}

	issued, err := s.issueAccess(row, refresh, now)
	if err != nil {
		return Issued{}, err
	}

	s.log.InfoContext(ctx, "session issued",
		slog.String("session_id", row.ID),
		slog.String("user_id", userID),
		slog.String("device_id", deviceID),
	)
	return issued, nil
}

// ValidateAccessToken verifies the token and checks it against the live
// session row.
//
// Errors, in checking order: ErrInvalidToken, ErrTokenExpired,
// ErrSessionNotFound, ErrSessionRevoked, ErrSessionExpired,
// ErrCounterMismatch. Only ErrTokenExpired and ErrCounterMismatch are
// recoverable by refresh.
func (s *Service) ValidateAccessToken(ctx context.Context, tok string) (Principal, error) {
	now := s.now()

	claims, err := s.tokens.Verify(tok, now)
	if err != nil {
		return Principal{}, err
	}

	row, err := s.store.Get(ctx, claims.SessionID)
	if err != nil {
		return Principal{}, err
	}
	if row.Revoked() {
		return Principal{}, ErrSessionRevoked
	}
	if row.Expired(now) {
		return Principal{}, ErrSessionExpired
	}
	if claims.Counter != row.Counter {
		return Principal{}, ErrCounterMismatch
	}

	return Principal{
		UserID:    row.UserID,
		SessionID: row.ID,
		DeviceID:  row.DeviceID,
		Counter:   row.Counter,
	}, nil
}

// Refresh rotates the refresh token, increments the session counter and
// issues a fresh access token bound to the new counter value. Of concurrent
// refreshes with the same token, exactly one succeeds; the rest get
// ErrInvalidRefresh and their caller must re-authenticate.
func (s *Service) Refresh(ctx context.Context, sessionID, refreshToken string) (Issued, error) {
	now := s.now()

	oldHash := token.HashRefreshTokenHex(refreshToken)
	newRefresh, newHash, err := newOpaqueRefreshToken()
	if err != nil {
		return Issued{}, fmt.Errorf("refresh: %w", err)
	}

	row, err := s.store.Rotate(ctx, sessionID, oldHash, newHash, now, now.Add(s.cfg.SessionTTL))
	if err != nil {
		return Issued{}, err
	}

	issued, err := s.issueAccess(row, newRefresh, now)
	if err != nil {
		return Issued{}, err
	}

	s.log.InfoContext(ctx, "session refreshed",
		slog.String("session_id", row.ID),
		slog.Uint64("counter", row.Counter),
	)
	return issued, nil
}

// SessionRow returns the stored row for a session id, revoked or not.
// Ownership checks before revocation need the row, not a principal.
func (s *Service) SessionRow(ctx context.Context, sessionID string) (Row, error) {
	return s.store.Get(ctx, sessionID)
}

// RevokeSession marks the session revoked, recording why. Existing access
// tokens for it fail validation immediately; its refresh token is dead.
func (s *Service) RevokeSession(ctx context.Context, sessionID, reason string) error {
	if err := s.store.Revoke(ctx, sessionID, s.now(), reason); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "session revoked",
		slog.String("session_id", sessionID),
		slog.String("reason", reason),
	)
	return nil
}

// RevokeAllForUser revokes every live session for the user and reports the count.
func (s *Service) RevokeAllForUser(ctx context.Context, userID, reason string) (int, error) {
	n, err := s.store.RevokeAllForUser(ctx, userID, s.now(), reason)
	if err != nil {
		return n, err
	}
	s.log.InfoContext(ctx, "user sessions revoked",
		slog.String("user_id", userID),
		slog.String("reason", reason),
		slog.Int("count", n),
	)
	return n, nil
}

func (s *Service) issueAccess(row Row, refreshToken string, now time.Time) (Issued, error) {
	expiresAt := now.Add(s.cfg.AccessTTL)
	access, err := s.tokens.Issue(AccessClaims{
		UserID:    row.UserID,
		SessionID: row.ID,
		DeviceID:  row.DeviceID,
		Counter:   row.Counter,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return Issued{}, fmt.Errorf("issue access token: %w", err)
	}
	return Issued{
		Session:         row,
		AccessToken:     access,
		RefreshToken:    refreshToken,
		AccessExpiresAt: expiresAt,
	}, nil
}
