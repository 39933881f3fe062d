package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()

	store := NewMemoryStore()
	tokens, err := NewPasetoV4PublicManager("", "yubiapp-test")
	if err != nil {
		t.Fatalf("NewPasetoV4PublicManager: %v", err)
	}
	svc, err := NewService(store, tokens, Config{
		Issuer:     "yubiapp-test",
		AccessTTL:  10 * time.Minute,
		SessionTTL: 24 * time.Hour,
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestIssueAndValidate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	issued, err := svc.IssueSession(ctx, "u1", "d1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if issued.Session.Counter != 1 {
		t.Fatalf("new session counter = %d, want 1", issued.Session.Counter)
	}
	if issued.RefreshToken == "" || issued.AccessToken == "" {
		t.Fatal("missing tokens in issue result")
	}

	p, err := svc.ValidateAccessToken(ctx, issued.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if p.UserID != "u1" || p.DeviceID != "d1" || p.SessionID != issued.Session.ID {
		t.Fatalf("wrong principal: %+v", p)
	}
	if p.Counter != 1 {
		t.Fatalf("principal counter = %d, want 1", p.Counter)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	if _, err := svc.ValidateAccessToken(ctx, "v4.public.not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestRefreshRotatesAndInvalidatesOldAccess(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	issued, err := svc.IssueSession(ctx, "u1", "d1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	refreshed, err := svc.Refresh(ctx, issued.Session.ID, issued.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.Session.Counter != 2 {
		t.Fatalf("counter after refresh = %d, want 2", refreshed.Session.Counter)
	}
	if refreshed.RefreshToken == issued.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The pre-refresh access token now carries a stale counter.
	if _, err := svc.ValidateAccessToken(ctx, issued.AccessToken); !errors.Is(err, ErrCounterMismatch) {
		t.Fatalf("want ErrCounterMismatch, got %v", err)
	}
	// The post-refresh token is good.
	if _, err := svc.ValidateAccessToken(ctx, refreshed.AccessToken); err != nil {
		t.Fatalf("ValidateAccessToken after refresh: %v", err)
	}
}

func TestRefreshRejectsConsumedToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	issued, err := svc.IssueSession(ctx, "u1", "d1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if _, err := svc.Refresh(ctx, issued.Session.ID, issued.RefreshToken); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// Replay of the consumed token.
	if _, err := svc.Refresh(ctx, issued.Session.ID, issued.RefreshToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("want ErrInvalidRefresh, got %v", err)
	}
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	issued, err := svc.IssueSession(ctx, "u1", "d1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Refresh(ctx, issued.Session.ID, issued.RefreshToken)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInvalidRefresh):
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("concurrent refresh winners = %d, want exactly 1", wins)
	}
}

func TestRevokeSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	issued, err := svc.IssueSession(ctx, "u1", "d1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if err := svc.RevokeSession(ctx, issued.Session.ID, "logout"); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, issued.AccessToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("want ErrSessionRevoked, got %v", err)
	}
	if _, err := svc.Refresh(ctx, issued.Session.ID, issued.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("refresh on revoked session: want ErrSessionRevoked, got %v", err)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	a, err := svc.IssueSession(ctx, "u1", "d1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	b, err := svc.IssueSession(ctx, "u1", "d2")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	other, err := svc.IssueSession(ctx, "u2", "d3")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	n, err := svc.RevokeAllForUser(ctx, "u1", "revoke_all")
	if err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	if n != 2 {
		t.Fatalf("revoked = %d, want 2", n)
	}

	for _, tok := range []string{a.AccessToken, b.AccessToken} {
		if _, err := svc.ValidateAccessToken(ctx, tok); !errors.Is(err, ErrSessionRevoked) {
			t.Fatalf("want ErrSessionRevoked, got %v", err)
		}
	}
	if _, err := svc.ValidateAccessToken(ctx, other.AccessToken); err != nil {
		t.Fatalf("other user's session affected: %v", err)
	}
}

func TestExpiredAccessTokenIsRecoverable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	issued, err := svc.IssueSession(ctx, "u1", "d1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	// Jump the service clock past the access TTL but within the session TTL.
	base := time.Now().UTC()
	svc.now = func() time.Time { return base.Add(time.Hour) }

	if _, err := svc.ValidateAccessToken(ctx, issued.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
	if _, err := svc.Refresh(ctx, issued.Session.ID, issued.RefreshToken); err != nil {
		t.Fatalf("refresh after access expiry: %v", err)
	}
}

func TestExpiredSessionRejectsRefresh(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	issued, err := svc.IssueSession(ctx, "u1", "d1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	base := time.Now().UTC()
	svc.now = func() time.Time { return base.Add(48 * time.Hour) }

	if _, err := svc.Refresh(ctx, issued.Session.ID, issued.RefreshToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("want ErrSessionExpired, got %v", err)
	}
}

func TestRefreshUnknownSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	if _, err := svc.Refresh(ctx, "no-such-session", "whatever"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
}
