package device

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/suffus/auth0/cmd/identity"
)

const (
	// OTPLength is the fixed length of a YubiKey OTP in modhex characters.
	OTPLength = 44
	// PublicIDLength is the length of the public identifier prefix.
	PublicIDLength = 12

	modhexAlphabet = "cbdefghijklnrtuv"

	defaultYubicoURL = "https://api.yubico.com/wsapi/2.0/verify"
)

// IsModhex reports whether s consists only of modhex characters.
func IsModhex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune(modhexAlphabet, r) {
			return false
		}
	}
	return len(s) > 0
}

// PublicID extracts the 12-char public identifier from a well-formed OTP.
// Returns ErrInvalidCode for anything that is not 44 modhex characters.
func PublicID(otp string) (string, error) {
	otp = strings.ToLower(strings.TrimSpace(otp))
	if len(otp) != OTPLength || !IsModhex(otp) {
		return "", ErrInvalidCode
	}
	return otp[:PublicIDLength], nil
}

// YubicoConfig configures the YubiCloud verifier.
type YubicoConfig struct {
	// URL of the validation endpoint. Empty means the public YubiCloud.
	URL string `env:"AUTH0_YUBICO_URL"`
	// ClientID is the YubiCloud API client id.
	ClientID string `env:"AUTH0_YUBICO_CLIENT_ID"`
	// APIKey is the base64 YubiCloud API key. When set, requests are signed
	// and response signatures are checked.
	APIKey string `env:"AUTH0_YUBICO_API_KEY"`
	// Timeout bounds a single verification round trip.
	Timeout time.Duration `env:"AUTH0_YUBICO_TIMEOUT" envDefault:"5s"`
}

// YubicoVerifier verifies YubiKey OTPs against a YubiCloud-compatible
// validation server (key=value response protocol).
type YubicoVerifier struct {
	url    string
	client *http.Client
	id     string
	apiKey []byte
}

// NewYubicoVerifier builds a verifier from cfg.
func NewYubicoVerifier(cfg YubicoConfig) (*YubicoVerifier, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("yubico: client id is required")
	}

	var key []byte
	if cfg.APIKey != "" {
		var err error
		key, err = base64.StdEncoding.DecodeString(cfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("yubico: bad api key: %w", err)
		}
	}

	u := cfg.URL
	if u == "" {
		u = defaultYubicoURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &YubicoVerifier{
		url:    u,
		client: &http.Client{Timeout: timeout},
		id:     cfg.ClientID,
		apiKey: key,
	}, nil
}

func (v *YubicoVerifier) Verify(ctx context.Context, code string) (Verification, error) {
	otp := strings.ToLower(strings.TrimSpace(code))
	publicID, err := PublicID(otp)
	if err != nil {
		return Verification{}, err
	}

	nonce, err := newNonce()
	if err != nil {
		return Verification{}, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}

	params := url.Values{}
	params.Set("id", v.id)
	params.Set("otp", otp)
	params.Set("nonce", nonce)
	if len(v.apiKey) > 0 {
		params.Set("h", signParams(params, v.apiKey))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url+"?"+params.Encode(), nil)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verification{}, fmt.Errorf("%w: validation server returned %d", ErrVerifierUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return Verification{}, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}

	fields := parseKeyValueLines(string(body))

	// The response must echo our otp and nonce, or it is not an answer to
	// this request.
	if fields["otp"] != otp || fields["nonce"] != nonce {
		return Verification{}, fmt.Errorf("%w: response does not match request", ErrVerifierUnavailable)
	}
	if len(v.apiKey) > 0 && !validSignature(fields, v.apiKey) {
		return Verification{}, fmt.Errorf("%w: bad response signature", ErrVerifierUnavailable)
	}

	switch status := fields["status"]; status {
	case "OK":
		return Verification{Type: identity.DeviceYubikey, Identifier: publicID}, nil
	case "BAD_OTP", "REPLAYED_OTP", "REPLAYED_REQUEST":
		return Verification{}, ErrInvalidCode
	case "":
		return Verification{}, fmt.Errorf("%w: missing status", ErrVerifierUnavailable)
	default:
		return Verification{}, fmt.Errorf("%w: status %s", ErrVerifierUnavailable, status)
	}
}

func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// parseKeyValueLines parses the "k=v" line protocol. Values may contain '='
// (the h param is base64), so split on the first '=' only.
func parseKeyValueLines(body string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

// signParams computes the protocol HMAC-SHA1 over the sorted k=v pairs.
func signParams(params url.Values, key []byte) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "h" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params.Get(k))
	}

	mac := hmac.New(sha1.New, key)
	mac.Write([]byte(strings.Join(pairs, "&")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func validSignature(fields map[string]string, key []byte) bool {
	got := fields["h"]
	if got == "" {
		return false
	}
	params := url.Values{}
	for k, v := range fields {
		if k == "h" {
			continue
		}
		params.Set(k, v)
	}
	return hmac.Equal([]byte(signParams(params, key)), []byte(got))
}
