// Package auth mints and verifies the short-lived bearer tokens the
// engine uses when calling the chat-completion endpoint on behalf of a
// job's owner.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of a minted token. Long enough to cover
// a full 300 s model call, short enough to limit replay exposure.
const DefaultTokenTTL = 5 * time.Minute

// Minter issues HS256 tokens scoped to a single user ID.
type Minter struct {
	secret []byte
	ttl    time.Duration
}

// NewMinter creates a Minter with the given signing secret.
// A zero or negative ttl falls back to DefaultTokenTTL.
func NewMinter(secret string, ttl time.Duration) *Minter {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Minter{secret: []byte(secret), ttl: ttl}
}

type userClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// Mint returns a signed token carrying the user ID, expiring after the
// configured TTL.
func (m *Minter) Mint(userID string) (string, error) {
	now := time.Now()
	claims := userClaims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the embedded user ID.
func (m *Minter) Verify(tokenString string) (string, error) {
	var claims userClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid || claims.ID == "" {
		return "", fmt.Errorf("invalid token")
	}
	return claims.ID, nil
}
