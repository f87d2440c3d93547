package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope is what a token may do.
type Scope string

const (
	ScopeRead    Scope = "valve:read"
	ScopeControl Scope = "valve:control"
)

// DefaultTTL is the lifetime of tokens issued without an explicit one.
const DefaultTTL = 24 * time.Hour

// Claims are the JWT claims of an API token.
type Claims struct {
	jwt.RegisteredClaims
	Scope Scope `json:"scope"`
}

// Allows reports whether the token grants scope. Control implies read.
func (c *Claims) Allows(scope Scope) bool {
	switch c.Scope {
	case ScopeControl:
		return scope == ScopeControl || scope == ScopeRead
	case ScopeRead:
		return scope == ScopeRead
	default:
		return false
	}
}

// GenerateToken signs a token for subject.
func GenerateToken(subject string, scope Scope, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scope: scope,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies the signature and expiry of a token and returns its claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.Scope == "" {
		return nil, fmt.Errorf("%w: missing scope", ErrTokenInvalid)
	}

	return claims, nil
}
