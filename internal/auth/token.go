package auth

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/vestibule/vestibule/internal/model"
)

// Token errors. Verify wraps the underlying jwt error with one of these.
var (
	ErrTokenMissing          = errors.New("token: missing")
	ErrTokenMalformed        = errors.New("token: malformed")
	ErrTokenInvalidSignature = errors.New("token: invalid signature")
	ErrTokenExpired          = errors.New("token: expired")
	ErrTokenInvalidClaims    = errors.New("token: invalid claims")
)

// Token configuration errors.
var (
	ErrSecretEmpty          = errors.New("token secret must not be empty")
	ErrUnsupportedAlgorithm = errors.New("token algorithm must be HMAC")
	ErrInvalidTTL           = errors.New("token TTL must be positive")
)

// bearerPattern captures the credential of an "Authorization: Bearer <token>" value.
var bearerPattern = regexp.MustCompile(`Bearer\s(\S+)`)

// Claims is the signed payload of an access token.
type Claims struct {
	jwt.RegisteredClaims
	Data model.Identity `json:"data"`
}

// TokenConfig holds the process-wide signing settings.
type TokenConfig struct {
	Secret    []byte
	Algorithm string // HS256, HS384 or HS512
	Issuer    string
	Audience  string
	TTL       time.Duration
}

// TokenManager issues and verifies HMAC-signed JWTs.
// It is immutable after construction and safe for concurrent use.
type TokenManager struct {
	method   *jwt.SigningMethodHMAC
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// TokenOption configures a TokenManager.
type TokenOption func(*TokenManager)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewTokenManager validates cfg and returns a manager.
func NewTokenManager(cfg TokenConfig, opts ...TokenOption) (*TokenManager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrSecretEmpty
	}
	if cfg.TTL <= 0 {
		return nil, ErrInvalidTTL
	}

	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	m := &TokenManager{
		method:   method,
		secret:   secret,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// TTL returns the lifetime of issued tokens.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for the given identity.
// The returned claims are exactly what was signed.
func (m *TokenManager) Issue(identity model.Identity) (string, *Claims, error) {
	// NumericDate has second precision; truncate once so exp-iat == ttl.
	now := m.now().Truncate(time.Second)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Data: identity,
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	return signed, claims, nil
}

// Verify parses a token string and checks signature, issuer, audience
// and expiry. A token whose exp is not after now is rejected.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		// Algorithm already validated by WithValidMethods
		return m.secret, nil
	})
	if err != nil {
		return nil, mapJWTError(err)
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// VerifyHeader verifies the token carried by an Authorization header value.
func (m *TokenManager) VerifyHeader(header string) (*Claims, error) {
	return m.Verify(ExtractBearer(header))
}

// ExtractBearer returns the credential following "Bearer " when present,
// otherwise the whole value.
func ExtractBearer(header string) string {
	if match := bearerPattern.FindStringSubmatch(header); match != nil {
		return match[1]
	}
	return header
}

// mapJWTError translates jwt library errors to auth package errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrTokenInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", ErrTokenInvalidClaims, err)
	}
}
