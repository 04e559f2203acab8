// Package token signs and verifies the stateless access tokens carried in
// the session cookie. It is pure: no storage, no clock state beyond TTL.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type Codec struct {
	secret    []byte
	accessTTL time.Duration
}

type accessClaims struct {
	jwt.RegisteredClaims
}

func NewCodec(secret string, accessTTL time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("token: JWT_SECRET is required")
	}
	if accessTTL <= 0 {
		return nil, fmt.Errorf("token: access TTL must be positive")
	}
	return &Codec{secret: []byte(secret), accessTTL: accessTTL}, nil
}

// Issue signs an access token whose subject is the user's email. Expiry is
// always embedded; a token outliving its exp claim never verifies.
func (c *Codec) Issue(email string) (string, error) {
	now := time.Now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify returns the subject email for a well-formed, correctly signed,
// unexpired token. Every failure collapses into ErrInvalidToken so callers
// can fall back to the refresh path without inspecting causes.
func (c *Codec) Verify(tokenStr string) (string, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}
