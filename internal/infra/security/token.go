package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
)

// ErrSecretTooShort indicates the configured HMAC secret is below the minimum length.
var ErrSecretTooShort = errors.New("jwt: signing secret must be at least 32 bytes")

// ErrMalformedClaims indicates a token verified but did not carry the expected claims.
var ErrMalformedClaims = errors.New("jwt: malformed session claims")

const minSecretLength = 32

// SessionTokenClaims is the JWT body of a console session token.
type SessionTokenClaims struct {
	Kind         string           `json:"knd"`
	Role         domain.RoleClaim `json:"role"`
	SessionStart int64            `json:"sst"`
	jwt.RegisteredClaims
}

// HMACSigner signs session tokens with a shared HS256 secret.
type HMACSigner struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

var _ port.TokenSigner = (*HMACSigner)(nil)

// NewHMACSigner constructs a signer for the supplied secret and issuer.
func NewHMACSigner(secret []byte, issuer string) (*HMACSigner, error) {
	if len(secret) < minSecretLength {
		return nil, ErrSecretTooShort
	}
	key := make([]byte, len(secret))
	copy(key, secret)

	issuer = strings.TrimSpace(issuer)
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// expiry is evaluated by the session manager against its own clock
		jwt.WithoutClaimsValidation(),
	}
	return &HMACSigner{
		secret: key,
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Sign encodes claims into a signed compact JWT.
func (s *HMACSigner) Sign(claims domain.SessionClaims) (string, error) {
	if strings.TrimSpace(claims.SessionID) == "" || strings.TrimSpace(claims.PrincipalID) == "" {
		return "", fmt.Errorf("jwt: session id and principal id are required")
	}
	body := SessionTokenClaims{
		Kind:         string(claims.PrincipalKind),
		Role:         claims.Role.Claim(),
		SessionStart: claims.StartedAt.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.SessionID,
			Subject:   claims.PrincipalID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, body)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and decodes the session claims.
func (s *HMACSigner) Parse(raw string) (*domain.SessionClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("jwt: empty token")
	}

	var body SessionTokenClaims
	token, err := s.parser.ParseWithClaims(raw, &body, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("jwt: token invalid")
	}
	if s.issuer != "" && body.Issuer != s.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrMalformedClaims, body.Issuer)
	}
	if body.ID == "" || body.Subject == "" || body.IssuedAt == nil || body.ExpiresAt == nil || body.SessionStart == 0 {
		return nil, ErrMalformedClaims
	}
	kind := domain.PrincipalKind(body.Kind)
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown principal kind %q", ErrMalformedClaims, body.Kind)
	}

	return &domain.SessionClaims{
		SessionID:     body.ID,
		PrincipalID:   body.Subject,
		PrincipalKind: kind,
		Role:          body.Role.Ref(),
		IssuedAt:      body.IssuedAt.Time.UTC(),
		ExpiresAt:     body.ExpiresAt.Time.UTC(),
		StartedAt:     time.Unix(body.SessionStart, 0).UTC(),
	}, nil
}
