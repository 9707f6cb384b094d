package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// sessionClaims keeps the record flat in the token payload next to the registered claims.
// Record.ExpiresAt ("expiresAt") and RegisteredClaims.ExpiresAt ("exp") are distinct.
type sessionClaims struct {
	Record
	jwt.RegisteredClaims
}

func (m *Manager) encode(rec Record) (string, error) {
	now := m.now()
	claims := sessionClaims{
		Record: rec,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSign, err)
	}
	return signed, nil
}

func (m *Manager) decode(token string) (*sessionClaims, error) {
	if token == "" {
		return nil, ErrNoActiveSession
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	)

	claims := &sessionClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("session: token not valid")
	}
	return claims, nil
}

// Decode verifies a raw session token and returns its record. Revocation is not consulted.
func (m *Manager) Decode(token string) (*Record, error) {
	claims, err := m.decode(token)
	if err != nil {
		return nil, err
	}
	rec := claims.Record
	return &rec, nil
}

// tokenExpiry returns the registered exp claim, falling back to now+ttl.
func (m *Manager) tokenExpiry(c *sessionClaims) time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return m.now().Add(m.ttl)
}
