// Package auth issues and verifies bearer tokens and guards protected
// routes.
package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const tokenIssuer = "murmur"

// FederatedVerifier validates externally-issued identity tokens (e.g. a
// Google ID token) and resolves them to a local user id. The production
// wiring may leave this nil, in which case federated tokens are rejected.
type FederatedVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// Tokens signs and validates locally-issued JWTs.
type Tokens struct {
	secret []byte
	alg    jwa.SignatureAlgorithm
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokens builds a token authority with the given signing secret and
// token lifetime.
func NewTokens(secret []byte, ttl time.Duration, clk clock.Clock) *Tokens {
	return &Tokens{
		secret: secret,
		alg:    jwa.HS256,
		ttl:    ttl,
		clock:  clk,
	}
}

// Issue creates a signed token for the user.
func (t *Tokens) Issue(userID uuid.UUID) (string, error) {
	now := t.clock.Now()
	token, err := jwt.NewBuilder().
		Issuer(tokenIssuer).
		Subject(userID.String()).
		IssuedAt(now).
		Expiration(now.Add(t.ttl)).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(t.alg, t.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

// Verify parses a token, checks signature and expiry, and returns the
// subject user id.
func (t *Tokens) Verify(raw string) (uuid.UUID, error) {
	token, err := jwt.Parse([]byte(raw),
		jwt.WithKey(t.alg, t.secret),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithClock(t.clock),
		jwt.WithValidate(true))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse token: %w", err)
	}

	userID, err := uuid.Parse(token.Subject())
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse token subject: %w", err)
	}
	return userID, nil
}
