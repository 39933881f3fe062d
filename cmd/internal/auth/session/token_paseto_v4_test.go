package session

import (
	"errors"
	"testing"
	"time"
)

func newTestManager(t *testing.T, issuer string) AccessTokenManager {
	t.Helper()
	m, err := NewPasetoV4PublicManager("", issuer)
	if err != nil {
		t.Fatalf("NewPasetoV4PublicManager: %v", err)
	}
	return m
}

func testClaims(now time.Time) AccessClaims {
	return AccessClaims{
		UserID:    "u1",
		SessionID: "s1",
		DeviceID:  "d1",
		Counter:   3,
		IssuedAt:  now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	m := newTestManager(t, "yubiapp-test")

	tok, err := m.Issue(testClaims(now))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := m.Verify(tok, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.UserID != "u1" || got.SessionID != "s1" || got.DeviceID != "d1" {
		t.Fatalf("wrong claims: %+v", got)
	}
	if got.Counter != 3 {
		t.Fatalf("counter = %d, want 3", got.Counter)
	}
}

func TestTokenExpiredIsDistinctFromInvalid(t *testing.T) {
	now := time.Now().UTC()
	m := newTestManager(t, "yubiapp-test")

	tok, err := m.Issue(testClaims(now))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = m.Verify(tok, now.Add(time.Hour))
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Fatal("expired token must not map to ErrInvalidToken")
	}
}

func TestTokenRejectsWrongKey(t *testing.T) {
	now := time.Now().UTC()
	issuerA := newTestManager(t, "yubiapp-test")
	issuerB := newTestManager(t, "yubiapp-test")

	tok, err := issuerA.Issue(testClaims(now))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := issuerB.Verify(tok, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestTokenRejectsWrongIssuer(t *testing.T) {
	now := time.Now().UTC()
	m, err := NewPasetoV4PublicManager("", "service-a")
	if err != nil {
		t.Fatalf("NewPasetoV4PublicManager: %v", err)
	}

	tok, err := m.Issue(testClaims(now))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Same key, different expected issuer.
	other := m.(*pasetoV4PublicManager)
	verifier := &pasetoV4PublicManager{secret: other.secret, public: other.public, issuer: "service-b"}
	if _, err := verifier.Verify(tok, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestTokenRejectsTampering(t *testing.T) {
	now := time.Now().UTC()
	m := newTestManager(t, "yubiapp-test")

	tok, err := m.Issue(testClaims(now))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tampered := tok[:len(tok)-4] + "AAAA"
	if _, err := m.Verify(tampered, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestManagerRequiresIssuer(t *testing.T) {
	if _, err := NewPasetoV4PublicManager("", ""); !errors.Is(err, ErrConfig) {
		t.Fatalf("want ErrConfig, got %v", err)
	}
}
