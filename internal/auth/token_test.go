package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vestibule/vestibule/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testIdentity = model.Identity{UserID: 12, Username: "alice_1", Email: "alice@example.com"}

func testTokenConfig() TokenConfig {
	return TokenConfig{
		Secret:    []byte("0123456789abcdef0123456789abcdef"),
		Algorithm: "HS256",
		Issuer:    "http://localhost",
		Audience:  "http://localhost",
		TTL:       time.Hour,
	}
}

func newTestManager(t *testing.T, clock *fakeClock) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(testTokenConfig(), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	return m
}

func TestNewTokenManager_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*TokenConfig)
		wantErr error
	}{
		{"valid", func(c *TokenConfig) {}, nil},
		{"default algorithm", func(c *TokenConfig) { c.Algorithm = "" }, nil},
		{"hs512", func(c *TokenConfig) { c.Algorithm = "HS512" }, nil},
		{"empty secret", func(c *TokenConfig) { c.Secret = nil }, ErrSecretEmpty},
		{"zero ttl", func(c *TokenConfig) { c.TTL = 0 }, ErrInvalidTTL},
		{"rsa algorithm", func(c *TokenConfig) { c.Algorithm = "RS256" }, ErrUnsupportedAlgorithm},
		{"none algorithm", func(c *TokenConfig) { c.Algorithm = "none" }, ErrUnsupportedAlgorithm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testTokenConfig()
			tt.mutate(&cfg)

			_, err := NewTokenManager(cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewTokenManager() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIssue_ClaimsShape(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)}
	m := newTestManager(t, clock)

	token, issued, err := m.Issue(testIdentity)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if claims.Data != testIdentity {
		t.Errorf("Data = %+v, want %+v", claims.Data, testIdentity)
	}
	if claims.Issuer != "http://localhost" {
		t.Errorf("Issuer = %s", claims.Issuer)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "http://localhost" {
		t.Errorf("Audience = %v", claims.Audience)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Errorf("exp - iat = %s, want 1h", got)
	}
	if claims.ID == "" || claims.ID != issued.ID {
		t.Errorf("jti = %q, issued jti = %q", claims.ID, issued.ID)
	}
}

func TestIssue_PayloadUsesDataEnvelope(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeClock{now: time.Now()})
	token, _, err := m.Issue(testIdentity)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token should have 3 segments, got %d", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	for _, key := range []string{"iss", "aud", "iat", "exp", "jti", "data"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("payload missing %q: %s", key, payload)
		}
	}
	if !strings.Contains(string(payload), `"userId":12`) {
		t.Errorf("payload should carry data.userId, got %s", payload)
	}
}

func TestVerify_Expiry(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		advance time.Duration
		wantErr error
	}{
		{"fresh", 0, nil},
		{"one second before expiry", time.Hour - time.Second, nil},
		{"exactly at expiry", time.Hour, ErrTokenExpired},
		{"long after expiry", 48 * time.Hour, ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := &fakeClock{now: start}
			m := newTestManager(t, clock)

			token, _, err := m.Issue(testIdentity)
			if err != nil {
				t.Fatalf("Issue failed: %v", err)
			}

			clock.Advance(tt.advance)

			_, err = m.Verify(token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	otherCfg := testTokenConfig()
	otherCfg.Secret = []byte("another-secret-another-secret-xx")
	other, err := NewTokenManager(otherCfg, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}

	token, _, err := other.Issue(testIdentity)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrTokenInvalidSignature) {
		t.Errorf("Verify() error = %v, want %v", err, ErrTokenInvalidSignature)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeClock{now: time.Now()})
	token, _, err := m.Issue(testIdentity)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	parts := strings.Split(token, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	forged := strings.Replace(string(payload), `"userId":12`, `"userId":1`, 1)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))

	_, err = m.Verify(strings.Join(parts, "."))
	if !errors.Is(err, ErrTokenInvalidSignature) {
		t.Errorf("Verify() error = %v, want %v", err, ErrTokenInvalidSignature)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	cfg := testTokenConfig()
	cfg.Algorithm = "HS512"
	other, err := NewTokenManager(cfg, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	token, _, err := other.Issue(testIdentity)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrTokenInvalidSignature) {
		t.Errorf("HS512 token against HS256 manager: error = %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Data: testIdentity}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := m.Verify(unsigned); err == nil {
		t.Error("unsigned token must be rejected")
	}
}

func TestVerify_WrongAudienceOrIssuer(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	for _, mutate := range []func(*TokenConfig){
		func(c *TokenConfig) { c.Audience = "https://other.example" },
		func(c *TokenConfig) { c.Issuer = "https://other.example" },
	} {
		cfg := testTokenConfig()
		mutate(&cfg)
		other, err := NewTokenManager(cfg, WithClock(clock.Now))
		if err != nil {
			t.Fatalf("NewTokenManager failed: %v", err)
		}
		token, _, err := other.Issue(testIdentity)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if _, err := m.Verify(token); !errors.Is(err, ErrTokenInvalidClaims) {
			t.Errorf("Verify() error = %v, want %v", err, ErrTokenInvalidClaims)
		}
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeClock{now: time.Now()})

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", ErrTokenMissing},
		{"garbage", "not-a-token", ErrTokenMalformed},
		{"two segments", "abc.def", ErrTokenMalformed},
		{"bad base64", "!!!.###.$$$", ErrTokenMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := m.Verify(tt.token); !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify(%q) error = %v, want %v", tt.token, err, tt.wantErr)
			}
		})
	}
}

func TestExtractBearer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"bearer prefix", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"raw token", "abc.def.ghi", "abc.def.ghi"},
		{"empty", "", ""},
		{"tab separator", "Bearer\tabc", "abc"},
		{"trailing text", "Bearer abc extra", "abc"},
		{"lowercase scheme is not stripped", "bearer abc", "bearer abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractBearer(tt.header); got != tt.want {
				t.Errorf("ExtractBearer(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestVerifyHeader(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeClock{now: time.Now()})
	token, _, err := m.Issue(testIdentity)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	for _, header := range []string{"Bearer " + token, token} {
		claims, err := m.VerifyHeader(header)
		if err != nil {
			t.Fatalf("VerifyHeader(%q) failed: %v", header[:10], err)
		}
		if claims.Data.UserID != testIdentity.UserID {
			t.Errorf("UserID = %d, want %d", claims.Data.UserID, testIdentity.UserID)
		}
	}

	if _, err := m.VerifyHeader("Bearer "); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("bare scheme should be malformed, got %v", err)
	}
}
