package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed reports a token that is not three well-formed segments.
	ErrMalformed = errors.New("token malformed")
	// ErrBadSignature reports a signature that does not match the current secret.
	ErrBadSignature = errors.New("token signature mismatch")
	// ErrExpired reports a token past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrSecretUnavailable reports that no signing secret could be resolved.
	ErrSecretUnavailable = errors.New("signing secret unavailable")
)

// SecretSource supplies the authoritative HMAC signing secret. All signers
// and verifiers in the deployment must observe the same value; see the
// secret package for the provider that guarantees this.
type SecretSource interface {
	Current(ctx context.Context) ([]byte, error)
}

// Config holds token manager tuning parameters.
type Config struct {
	// DefaultTTL applies when Issue is called with ttl <= 0. The product
	// default is weeks-long to satisfy the remember-me requirement.
	DefaultTTL   time.Duration
	Issuer       string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
}

// Claims is the decoded payload of a verified token.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID returns the principal id the token was issued for.
func (c *Claims) SubjectID() string {
	return c.Subject
}

// Manager signs and parses compact HS256 tokens.
type Manager struct {
	config  Config
	secrets SecretSource
}

// NewManager validates cfg and returns a [Manager] bound to the given
// secret source.
func NewManager(cfg Config, secrets SecretSource) (*Manager, error) {
	if secrets == nil {
		return nil, errors.New("nil secret source")
	}
	if cfg.DefaultTTL <= 0 {
		return nil, errors.New("invalid default TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)

	return &Manager{config: cfg, secrets: secrets}, nil
}

// Issue signs a claim set for subjectID with the given role. A ttl <= 0
// falls back to Config.DefaultTTL.
func (m *Manager) Issue(ctx context.Context, subjectID, role string, ttl time.Duration) (string, error) {
	if subjectID == "" {
		return "", errors.New("empty subject id")
	}
	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}

	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    m.config.Issuer,
		},
	}

	secret, err := m.secrets.Current(ctx)
	if err != nil || len(secret) == 0 {
		return "", ErrSecretUnavailable
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Parse verifies structure, signature, and expiry against the current
// secret and returns the decoded claims. It reports which check failed
// through the package sentinel errors; callers that face clients must
// collapse these into a single opaque failure.
func (m *Manager) Parse(ctx context.Context, tokenStr string) (*Claims, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return nil, ErrMalformed
	}

	secret, err := m.secrets.Current(ctx)
	if err != nil || len(secret) == 0 {
		return nil, ErrSecretUnavailable
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		default:
			return nil, ErrMalformed
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" {
		return nil, ErrMalformed
	}
	if claims.ExpiresAt == nil {
		return nil, ErrExpired
	}
	if claims.IssuedAt != nil && m.config.MaxFutureIAT > 0 {
		if claims.IssuedAt.Time.After(time.Now().Add(m.config.MaxFutureIAT)) {
			return nil, ErrMalformed
		}
	}

	return claims, nil
}
