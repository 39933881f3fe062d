package token

import (
	"errors"
	"testing"
)

func TestHashRefreshTokenHexWithoutKey(t *testing.T) {
	t.Setenv(HMACEnvKey, "")

	got := HashRefreshTokenHex("abc")
	if got != HashSHA256Hex("abc") {
		t.Fatalf("expected SHA-256 fallback, got %s", got)
	}
	if HMACEnabled() {
		t.Fatal("HMACEnabled with empty key")
	}
}

func TestHashRefreshTokenHexWithKey(t *testing.T) {
	t.Setenv(HMACEnvKey, "0123456789abcdef0123456789abcdef")

	got := HashRefreshTokenHex("abc")
	want := HashHMACSHA256Hex("abc", []byte("0123456789abcdef0123456789abcdef"))
	if got != want {
		t.Fatalf("got %s, want HMAC digest %s", got, want)
	}
	if got == HashSHA256Hex("abc") {
		t.Fatal("HMAC digest equals plain SHA-256 digest")
	}
	if !HMACEnabled() {
		t.Fatal("HMACEnabled false with key set")
	}
}

func TestHMACKeyFromEnv(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	if _, err := HMACKeyFromEnv(16); !errors.Is(err, ErrHMACKeyMissing) {
		t.Fatalf("want ErrHMACKeyMissing, got %v", err)
	}

	t.Setenv(HMACEnvKey, "short")
	if _, err := HMACKeyFromEnv(16); !errors.Is(err, ErrHMACKeyTooShort) {
		t.Fatalf("want ErrHMACKeyTooShort, got %v", err)
	}

	t.Setenv(HMACEnvKey, "0123456789abcdef0123456789abcdef")
	key, err := HMACKeyFromEnv(16)
	if err != nil {
		t.Fatalf("HMACKeyFromEnv: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("key length = %d", len(key))
	}
}

func TestEqualHex(t *testing.T) {
	a := HashSHA256Hex("abc")
	if !EqualHex(a, HashSHA256Hex("abc")) {
		t.Fatal("equal digests compare unequal")
	}
	if EqualHex(a, HashSHA256Hex("abd")) {
		t.Fatal("different digests compare equal")
	}
	if EqualHex(a, a[:10]) {
		t.Fatal("different lengths compare equal")
	}
}
