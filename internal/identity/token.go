package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

const (
	MockTokenPrefix       = "mock_token_"
	legacyMockTokenPrefix = "mock-token-"
)

var errMalformedToken = errors.New("malformed token")

// TokenMinter issues and reads back session tokens. Resolve returns the
// token's subject, or an empty subject when the minter cannot tell who the
// token belongs to.
type TokenMinter interface {
	Mint(subject string, kind TokenKind, now time.Time) (string, error)
	Resolve(token string, kind TokenKind) (string, error)
}

// MockMinter produces unsigned mock_token_<subject>_<millis> strings. Only the
// prefix of an access token is checked and refresh tokens are not checked at all.
type MockMinter struct{}

func (MockMinter) Mint(subject string, _ TokenKind, now time.Time) (string, error) {
	return fmt.Sprintf("%s%s_%d", MockTokenPrefix, subject, now.UnixMilli()), nil
}

func (MockMinter) Resolve(token string, kind TokenKind) (string, error) {
	if kind == TokenRefresh {
		return "", nil
	}
	if !HasMockPrefix(token) {
		return "", errMalformedToken
	}
	return "", nil
}

func HasMockPrefix(token string) bool {
	return strings.HasPrefix(token, MockTokenPrefix) || strings.HasPrefix(token, legacyMockTokenPrefix)
}

// JWTMinter signs HS256 tokens whose subject is the user id.
type JWTMinter struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewJWTMinter(secret string, accessTTL time.Duration, refreshTTL time.Duration) (*JWTMinter, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("jwt token lifetimes must be positive")
	}

	return &JWTMinter{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

func (m *JWTMinter) Mint(subject string, kind TokenKind, now time.Time) (string, error) {
	ttl := m.accessTTL
	if kind == TokenRefresh {
		ttl = m.refreshTTL
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"typ": string(kind),
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (m *JWTMinter) Resolve(tokenString string, kind TokenKind) (string, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", errMalformedToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errMalformedToken
	}

	typ, _ := claims["typ"].(string)
	if typ != string(kind) {
		return "", fmt.Errorf("expected %s token, got %q", kind, typ)
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return "", errMalformedToken
	}

	return subject, nil
}
